package mapimport

import (
	"context"
	"io"

	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/reconciler"
	"github.com/mapaction/mapimport/pkg/schema"
)

// uploadRequired is reported when no archive was supplied.
const uploadRequired = "You must select a file to be imported"

// prepared is an archive carried through the stages that do not touch the
// catalog. The caller owns pkg and must clean it up.
type prepared struct {
	pkg     *mappackage.Package
	info    *mappackage.Info
	dataset *mappackage.Dataset
	fields  errors.Fields
}

// Import runs the full pipeline for one archive.
func (m *importer) Import(ctx context.Context, r io.Reader, opts ...ImportOption) (*Result, error) {
	// Step 0: Set context
	if ctx == nil {
		ctx = context.Background()
	}

	// Step 1: Parse options
	options := NewImportOptions(opts...)
	if options.ArchiveName != "" {
		ctx = logging.WithArchive(ctx, options.ArchiveName)
	}
	logger := logging.FromContext(ctx)

	if m.reconciler == nil {
		return nil, errors.NewConfigError("catalog", "no catalog configured", nil)
	}

	// Step 2: Setup context with timeout
	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	// Step 3: Extract, parse and transform
	p, err := m.prepare(ctx, r)
	if err != nil {
		return nil, m.reject(ctx, options.ArchiveName, err)
	}
	defer m.cleanup(ctx, p.pkg)

	// Step 4: Refuse drafts the schema rejects
	if len(p.fields) > 0 {
		if !m.config.lenientFields {
			return nil, m.reject(ctx, options.ArchiveName, errors.NewFieldsError(p.fields))
		}
		logger.Warn().Strs("fields", p.fields.Keys()).Msg("Importing despite schema field errors")
	}

	// Step 5: Reconcile against the catalog
	rec, err := m.reconciler.Reconcile(ctx, reconciler.Request{
		Dataset:     p.dataset,
		Status:      p.info.Status,
		OperationID: p.info.OperationID,
		Files:       p.info.Files,
		Source:      p.pkg,
		OwnerOrg:    options.OwnerOrg,
		Private:     options.Private,
	})
	if err != nil {
		return nil, m.reject(ctx, options.ArchiveName, err)
	}

	// Step 6: Build result and notify
	result := &Result{
		Result:      rec,
		Archive:     options.ArchiveName,
		Status:      p.info.Status,
		OperationID: p.info.OperationID,
		Dataset:     p.dataset,
		Diagnostics: p.info.Diagnostics,
	}

	logger.Info().
		Str("action", string(rec.Action)).
		Str("dataset", rec.Name).
		Int("resources", len(rec.CreatedResources)).
		Int("diagnostics", len(p.info.Diagnostics)).
		Dur("duration", rec.Metadata.Duration).
		Msg("Import completed")

	switch rec.Action {
	case reconciler.ActionCreated:
		m.hooks.triggerCreated(result)
	case reconciler.ActionUpdated:
		m.hooks.triggerUpdated(result)
	}
	return result, nil
}

// Inspect extracts, parses and transforms an archive without touching the catalog.
func (m *importer) Inspect(ctx context.Context, r io.Reader) (*Inspection, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	p, err := m.prepare(ctx, r)
	if err != nil {
		return nil, err
	}
	defer m.cleanup(ctx, p.pkg)

	return &Inspection{
		MetadataName: p.pkg.MetadataName,
		Status:       p.info.Status,
		OperationID:  p.info.OperationID,
		Dataset:      p.dataset,
		Files:        p.info.Files,
		Diagnostics:  p.info.Diagnostics,
		FieldErrors:  p.fields,
	}, nil
}

// prepare runs extraction, parsing and the schema transform. On error the
// scratch directory is already gone.
func (m *importer) prepare(ctx context.Context, r io.Reader) (p *prepared, err error) {
	if r == nil {
		return nil, &errors.ValidationError{Field: errors.UploadField, Message: uploadRequired}
	}

	pkg, err := m.extractor.Extract(ctx, r)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			m.cleanup(ctx, pkg)
		}
	}()

	info, err := pkg.ToDataset(ctx)
	if err != nil {
		return nil, err
	}

	dataset, fields, err := schema.Transform(ctx, info.Dataset, m.registry())
	if err != nil {
		return nil, err
	}

	return &prepared{pkg: pkg, info: info, dataset: dataset, fields: fields}, nil
}

// reject logs a failed import and notifies the rejected hooks when the
// failure is the submitter's to fix.
func (m *importer) reject(ctx context.Context, archive string, err error) error {
	logger := logging.FromContext(ctx)
	if !errors.IsValidationError(err) {
		logger.Error().Err(err).Msg("Import failed")
		return err
	}
	logger.Info().Err(err).Msg("Import rejected")
	m.hooks.triggerRejected(archive, err)
	return err
}

func (m *importer) cleanup(ctx context.Context, pkg *mappackage.Package) {
	if err := pkg.Cleanup(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("dir", pkg.Dir).Msg("Scratch cleanup failed")
	}
}
