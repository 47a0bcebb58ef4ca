package mapimport

import (
	"time"

	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/reconciler"
	"github.com/mapaction/mapimport/pkg/schema"
)

// config holds the importer configuration
type config struct {
	catalog        catalog.Client
	registry       schema.Registry
	extractorOpts  []mappackage.Option
	reconcilerOpts []reconciler.Option

	// lenientFields imports drafts that fail schema validation
	lenientFields bool
}

func defaultConfig() *config {
	return &config{}
}

// Option is a function that configures an Importer instance
type Option func(*config) error

// options applies the given options to the importer
func (m *importer) options(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(m.config); err != nil {
			return err
		}
	}
	return nil
}

// WithCatalog configures the catalog packages are imported into.
func WithCatalog(c catalog.Client) Option {
	return func(cfg *config) error {
		if c == nil {
			return &errors.ValidationError{Field: "catalog", Message: "cannot be nil"}
		}
		cfg.catalog = c
		return nil
	}
}

// WithRegistry configures the schema registry drafts are shaped by.
func WithRegistry(r schema.Registry) Option {
	return func(cfg *config) error {
		if r == nil {
			return &errors.ValidationError{Field: "registry", Message: "cannot be nil"}
		}
		cfg.registry = r
		return nil
	}
}

// WithExtractorOptions configures archive extraction.
func WithExtractorOptions(opts ...mappackage.Option) Option {
	return func(cfg *config) error {
		cfg.extractorOpts = append(cfg.extractorOpts, opts...)
		return nil
	}
}

// WithReconcilerOptions configures the reconciler.
func WithReconcilerOptions(opts ...reconciler.Option) Option {
	return func(cfg *config) error {
		cfg.reconcilerOpts = append(cfg.reconcilerOpts, opts...)
		return nil
	}
}

// WithLenientFields imports drafts even when schema validation reports
// field errors. The errors are logged instead.
func WithLenientFields(enabled bool) Option {
	return func(cfg *config) error {
		cfg.lenientFields = enabled
		return nil
	}
}

// ImportOptions are the per-archive settings of an import.
type ImportOptions struct {
	// ArchiveName labels the archive in logs and results
	ArchiveName string

	// OwnerOrg owns a created record; without one the record is public
	OwnerOrg string

	// Private overrides the default (private) visibility of created records
	Private *bool

	// Timeout bounds the whole import; zero means no limit
	Timeout time.Duration
}

// ImportOption configures a single import.
type ImportOption func(*ImportOptions)

// NewImportOptions applies opts to the defaults.
func NewImportOptions(opts ...ImportOption) *ImportOptions {
	o := &ImportOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithArchiveName labels the archive.
func WithArchiveName(name string) ImportOption {
	return func(o *ImportOptions) { o.ArchiveName = name }
}

// WithOwnerOrg sets the organization owning a created record.
func WithOwnerOrg(org string) ImportOption {
	return func(o *ImportOptions) { o.OwnerOrg = org }
}

// WithPrivate sets the visibility of a created record.
func WithPrivate(private bool) ImportOption {
	return func(o *ImportOptions) { o.Private = &private }
}

// WithTimeout bounds the import.
func WithTimeout(d time.Duration) ImportOption {
	return func(o *ImportOptions) { o.Timeout = d }
}
