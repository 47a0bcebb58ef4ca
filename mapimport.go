// Package mapimport imports MapAction map packages into a dataset catalog.
//
// An import runs four stages in order: the archive is extracted into a
// scratch directory, its metadata document is parsed into a dataset draft,
// the draft is shaped by the catalog schema, and the result is reconciled
// against the catalog. The scratch directory is removed on every exit path.
package mapimport

import (
	"context"
	"fmt"
	"io"

	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/reconciler"
	"github.com/mapaction/mapimport/pkg/schema"
)

// Importer imports map packages into a catalog.
type Importer interface {
	// Import runs the full pipeline for one archive
	Import(ctx context.Context, r io.Reader, opts ...ImportOption) (*Result, error)

	// Inspect extracts, parses and transforms an archive without touching the catalog
	Inspect(ctx context.Context, r io.Reader) (*Inspection, error)

	// SyncThemes declares the product theme vocabulary in the catalog
	SyncThemes(ctx context.Context) (*catalog.Vocabulary, error)

	// OnCreated registers a callback for when a record is created
	OnCreated(CreatedHook)

	// OnUpdated registers a callback for when a record is corrected
	OnUpdated(UpdatedHook)

	// OnRejected registers a callback for when a package is refused
	OnRejected(RejectedHook)
}

// importer is the internal implementation of the Importer interface
type importer struct {
	config     *config
	extractor  *mappackage.Extractor
	reconciler *reconciler.Reconciler

	// Event hooks
	hooks *hooks
}

// New creates a new Importer with the given options.
func New(opts ...Option) (Importer, error) {
	m := &importer{
		config: defaultConfig(),
		hooks:  newHooks(),
	}

	if err := m.options(opts...); err != nil {
		return nil, fmt.Errorf("applying options: %w", err)
	}

	extractor, err := mappackage.NewExtractor(m.config.extractorOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating extractor: %w", err)
	}
	m.extractor = extractor

	if m.config.catalog != nil {
		r, err := reconciler.New(m.config.catalog, m.config.reconcilerOpts...)
		if err != nil {
			return nil, fmt.Errorf("creating reconciler: %w", err)
		}
		m.reconciler = r
	}

	return m, nil
}

// Inspection is what Inspect learned about an archive.
type Inspection struct {
	Archive      string                    `json:"archive,omitempty" yaml:"archive,omitempty"`
	MetadataName string                    `json:"metadata" yaml:"metadata"`
	Status       mappackage.Status         `json:"status" yaml:"status"`
	OperationID  string                    `json:"operation_id" yaml:"operation_id"`
	Dataset      *mappackage.Dataset       `json:"dataset" yaml:"dataset"`
	Files        []mappackage.ResourceFile `json:"files" yaml:"files"`
	Diagnostics  []string                  `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
	FieldErrors  errors.Fields             `json:"field_errors,omitempty" yaml:"field_errors,omitempty"`
}

// Result is the outcome of a successful import.
type Result struct {
	*reconciler.Result `json:",inline" yaml:",inline"`

	Archive     string              `json:"archive,omitempty" yaml:"archive,omitempty"`
	Status      mappackage.Status   `json:"status" yaml:"status"`
	OperationID string              `json:"operation_id" yaml:"operation_id"`
	Dataset     *mappackage.Dataset `json:"dataset" yaml:"dataset"`
	Diagnostics []string            `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

// SyncThemes declares the product theme vocabulary in the catalog.
func (m *importer) SyncThemes(ctx context.Context) (*catalog.Vocabulary, error) {
	if m.config.catalog == nil {
		return nil, errors.NewConfigError("catalog", "no catalog configured", nil)
	}
	vm, ok := m.config.catalog.(catalog.VocabularyManager)
	if !ok {
		return nil, errors.NewConfigError("catalog", "catalog does not support vocabularies", nil)
	}
	return vm.EnsureVocabulary(ctx, constants.ThemeVocabulary, mappackage.ProductThemes())
}

func (m *importer) registry() schema.Registry {
	if m.config.registry == nil {
		return schema.NopRegistry{}
	}
	return m.config.registry
}
