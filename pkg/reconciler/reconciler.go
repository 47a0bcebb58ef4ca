// Package reconciler applies a validated dataset draft to the catalog. It
// looks the record up by name and then creates it, corrects it in place or
// rejects the package, depending on the declared lifecycle status.
//
// The catalog offers no transactions. Every side effect of a create or
// update is recorded on an undo stack, and the stack is unwound when a later
// step fails, so a failed run leaves no new records or resources behind.
package reconciler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
	"github.com/mapaction/mapimport/pkg/mappackage"
)

// Source opens staged resource files. *mappackage.Package implements it.
type Source interface {
	Open(file mappackage.ResourceFile) (afero.File, error)
}

// FsSource opens resource files by path on a filesystem.
type FsSource struct {
	Fs afero.Fs
}

// Open implements Source.
func (s FsSource) Open(file mappackage.ResourceFile) (afero.File, error) {
	f, err := s.Fs.Open(file.Path)
	if err != nil {
		return nil, errors.WrapIO("open", file.Path, err)
	}
	return f, nil
}

// Request is one reconciliation.
type Request struct {
	Dataset     *mappackage.Dataset
	Status      mappackage.Status
	OperationID string
	Files       []mappackage.ResourceFile
	Source      Source

	// OwnerOrg owns created records. Without one, records are public.
	OwnerOrg string
	// Private overrides the default visibility (private) of created records.
	Private *bool
}

// visibility applies the ownership policy: an unowned private record would
// be unreachable, so records without an owner are always public.
func (r *Request) visibility() bool {
	if r.OwnerOrg == "" {
		return false
	}
	if r.Private != nil {
		return *r.Private
	}
	return true
}

func (r *Request) validate() error {
	if r.Dataset == nil {
		return &errors.ValidationError{Field: "dataset", Message: "cannot be nil"}
	}
	if r.Dataset.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "cannot be empty"}
	}
	if _, err := mappackage.ParseStatus(string(r.Status)); err != nil {
		return err
	}
	if len(r.Files) > 0 && r.Source == nil {
		return &errors.ValidationError{Field: "source", Message: "cannot be nil when files are given"}
	}
	return nil
}

// Reconciler drives the create/update/reject decision against one catalog.
type Reconciler struct {
	catalog    catalog.Client
	suffix     func() string
	versioning bool
}

// New creates a Reconciler for the given catalog.
func New(client catalog.Client, opts ...Option) (*Reconciler, error) {
	if client == nil {
		return nil, &errors.ValidationError{Field: "catalog", Message: "cannot be nil"}
	}
	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}
	return &Reconciler{
		catalog:    client,
		suffix:     options.suffix,
		versioning: options.versioning,
	}, nil
}

// Reconcile looks the draft's record up and creates, updates or rejects it.
//
//	exists, status New or Update  -> UnexpectedExisting
//	exists, status Correction     -> update in place
//	absent, status Correction     -> ExpectedExisting
//	absent, status New or Update  -> create
//
// Rejections make no mutating catalog calls.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	name := req.Dataset.Name
	ctx = logging.WithDataset(ctx, name)
	logger := logging.FromContext(ctx)

	existing, err := r.catalog.ShowRecord(ctx, name)
	switch {
	case errors.IsNotFound(err):
		existing = nil
	case err != nil:
		return nil, err
	}

	logger.Debug().
		Str("status", req.Status.String()).
		Bool("exists", existing != nil).
		Msg("Record looked up")

	switch {
	case existing != nil && req.Status != mappackage.StatusCorrection:
		logger.Info().Str("status", req.Status.String()).Msg("Rejected: record already exists")
		return nil, errors.NewUnexpectedExistingError(name, req.Status.String())
	case existing == nil && req.Status == mappackage.StatusCorrection:
		logger.Info().Str("status", req.Status.String()).Msg("Rejected: record does not exist")
		return nil, errors.NewExpectedExistingError(name, req.Status.String())
	case existing != nil:
		return r.update(ctx, logger, &req, existing)
	default:
		return r.create(ctx, logger, &req)
	}
}

// create builds the record under a temporary name, attaches the files,
// files it under the operation group and renames it to its canonical name.
func (r *Reconciler) create(ctx context.Context, logger *zerolog.Logger, req *Request) (*Result, error) {
	result := &Result{
		Action:   ActionCreated,
		Name:     req.Dataset.Name,
		TempName: req.Dataset.Name + "-" + r.suffix(),
		Metadata: ResultMetadata{StartTime: time.Now()},
	}

	group, err := r.catalog.ShowGroup(ctx, req.OperationID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, &errors.UnknownOperationError{OperationID: req.OperationID, Err: err}
		}
		return nil, err
	}

	record := catalog.NewRecord(req.Dataset)
	record.Name = result.TempName
	record.OwnerOrg = req.OwnerOrg
	record.Private = req.visibility()

	created, err := r.catalog.CreateRecord(ctx, record)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("record_id", created.ID).
		Str("temp_name", created.Name).
		Bool("private", created.Private).
		Msg("Record created")

	undo := newUndoStack(logger)
	undo.push("delete record "+created.ID, func(ctx context.Context) error {
		return r.catalog.DeleteRecord(ctx, created.ID)
	})

	fail := func(err error) (*Result, error) {
		failed := undo.unwind(ctx)
		logger.Warn().Err(err).Int("undo_failures", failed).Msg("Create rolled back")
		return nil, err
	}

	ids, err := r.attach(ctx, logger, undo, created.ID, req)
	if err != nil {
		return fail(err)
	}
	result.CreatedResources = ids

	err = r.catalog.CreateMember(ctx, &catalog.Member{
		GroupID:    group.ID,
		ObjectID:   created.ID,
		ObjectType: catalog.ObjectTypeRecord,
		Capacity:   constants.MemberCapacity,
	})
	if err != nil {
		return fail(err)
	}

	current, err := r.catalog.ShowRecord(ctx, created.ID)
	if err != nil {
		return fail(err)
	}
	current.Name = result.Name
	renamed, err := r.catalog.UpdateRecord(ctx, current)
	if err != nil {
		if errors.IsAlreadyExists(err) {
			err = &errors.NameCollisionError{Name: result.Name, Err: err}
		}
		return fail(err)
	}
	undo.commit()
	result.Record = renamed

	logger.Info().
		Str("record_id", renamed.ID).
		Str("group", group.Name).
		Int("resources", len(ids)).
		Msg("Record renamed to canonical name")

	if r.versioning {
		version := &catalog.Version{
			RecordID: renamed.ID,
			BaseName: mappackage.BaseName(result.Name),
			OwnerOrg: req.OwnerOrg,
		}
		if err := r.catalog.CreateVersion(ctx, version); err != nil {
			logger.Warn().Err(err).Str("base_name", version.BaseName).Msg("Version registration failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("version registration failed: %v", err))
		}
	}

	result.finish()
	return result, nil
}

// update attaches the new files to an existing record, removes the files it
// had before and overwrites its fields with the draft.
func (r *Reconciler) update(ctx context.Context, logger *zerolog.Logger, req *Request, existing *catalog.Record) (*Result, error) {
	result := &Result{
		Action:   ActionUpdated,
		Name:     req.Dataset.Name,
		Metadata: ResultMetadata{StartTime: time.Now()},
	}
	previous := existing.ResourceIDs()

	undo := newUndoStack(logger)
	ids, err := r.attach(ctx, logger, undo, existing.ID, req)
	if err != nil {
		failed := undo.unwind(ctx)
		failed += r.sweep(ctx, logger, existing.ID, previous)
		logger.Warn().Err(err).Int("undo_failures", failed).Msg("Update rolled back")
		return nil, err
	}
	undo.commit()
	result.CreatedResources = ids

	for _, id := range previous {
		if err := r.catalog.DeleteResource(ctx, id); err != nil {
			return nil, errors.WrapResource("delete", "resource", id, err)
		}
		result.DeletedResources = append(result.DeletedResources, id)
	}

	current, err := r.catalog.ShowRecord(ctx, existing.ID)
	if err != nil {
		return nil, err
	}
	current.Apply(req.Dataset)
	updated, err := r.catalog.UpdateRecord(ctx, current)
	if err != nil {
		return nil, err
	}
	result.Record = updated

	logger.Info().
		Str("record_id", updated.ID).
		Int("attached", len(ids)).
		Int("removed", len(previous)).
		Msg("Record updated")

	result.finish()
	return result, nil
}

// sweep re-reads the record after a failed update and deletes every
// resource it did not have before. This catches uploads the catalog stored
// without the response reaching us. It returns the number of failures.
func (r *Reconciler) sweep(ctx context.Context, logger *zerolog.Logger, recordID string, keep []string) int {
	ctx = context.WithoutCancel(ctx)
	current, err := r.catalog.ShowRecord(ctx, recordID)
	if err != nil {
		logger.Error().Err(err).Str("record_id", recordID).Msg("Cannot re-read record after rollback")
		return 1
	}

	failed := 0
	for _, id := range current.ResourceIDs() {
		if slices.Contains(keep, id) {
			continue
		}
		if err := r.catalog.DeleteResource(ctx, id); err != nil {
			failed++
			logger.Error().Err(err).Str("resource_id", id).Msg("Cannot delete unconfirmed resource")
			continue
		}
		logger.Warn().Str("resource_id", id).Msg("Deleted unconfirmed resource")
	}
	return failed
}

// attach uploads every payload file to the record, pushing a delete for
// each resource created.
func (r *Reconciler) attach(ctx context.Context, logger *zerolog.Logger, undo *undoStack, recordID string, req *Request) ([]string, error) {
	ids := make([]string, 0, len(req.Files))
	for _, file := range req.Files {
		res, err := r.upload(ctx, recordID, req.Source, file)
		if err != nil {
			logger.Warn().Err(err).Str("file", file.Name).Int("attached", len(ids)).Msg("Resource upload failed")
			return nil, err
		}
		undo.push("delete resource "+res.ID, func(ctx context.Context) error {
			return r.catalog.DeleteResource(ctx, res.ID)
		})
		ids = append(ids, res.ID)
		logger.Debug().Str("file", file.Name).Str("resource_id", res.ID).Msg("Resource attached")
	}
	return ids, nil
}

func (r *Reconciler) upload(ctx context.Context, recordID string, src Source, file mappackage.ResourceFile) (*catalog.Resource, error) {
	f, err := src.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return r.catalog.CreateResource(ctx, &catalog.Resource{
		PackageID: recordID,
		Name:      file.Name,
		URLType:   "upload",
		Size:      file.Size,
	}, f)
}
