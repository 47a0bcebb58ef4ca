// Package app provides the application context and dependency management
// for the mapimport CLI. It centralizes configuration, logging and the
// construction of the catalog client and importer.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/internal/cmd/application"
	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/catalog/ckan"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/mappackage"
	"github.com/mapaction/mapimport/pkg/schema"
)

// App represents the mapimport application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	// Configuration
	config *Config

	// Logger
	logger *zerolog.Logger

	// Filesystem for schema files and scratch directories
	fs afero.Fs

	// Catalog client (lazy-initialized, singleton)
	mu      sync.Mutex
	catalog catalog.Client
}

// New creates a new App instance with the given version information.
// Configuration is loaded from the environment and config files; options
// are applied afterwards.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		fs:      afero.NewOsFs(),
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// Fs returns the filesystem archives and schema files are read from.
func (a *App) Fs() afero.Fs {
	return a.fs
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// ImportOptions returns the per-archive defaults from configuration.
func (a *App) ImportOptions() []mapimport.ImportOption {
	return []mapimport.ImportOption{
		mapimport.WithOwnerOrg(a.config.OwnerOrg),
		mapimport.WithPrivate(a.config.Private),
	}
}

// Catalog returns the catalog client, creating it lazily. It returns nil
// without error when no catalog URL is configured.
func (a *App) Catalog() (catalog.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.catalog != nil {
		return a.catalog, nil
	}
	if a.config.CatalogURL == "" {
		return nil, nil
	}

	client, err := ckan.New(a.config.CatalogURL, a.buildCatalogOptions()...)
	if err != nil {
		return nil, errors.WrapResource("create", "catalog client", a.config.CatalogURL, err)
	}

	a.catalog = client
	return client, nil
}

// Importer returns an importer wired to the configured catalog and schema files.
func (a *App) Importer(opts ...mapimport.Option) (mapimport.Importer, error) {
	base, err := a.buildImporterOptions()
	if err != nil {
		return nil, err
	}
	return mapimport.New(append(base, opts...)...)
}

// Shutdown performs graceful shutdown of the application.
func (a *App) Shutdown(_ context.Context) error {
	a.logger.Debug().Msg("Shutting down")
	return nil
}

// buildCatalogOptions constructs CKAN client options from the configuration.
func (a *App) buildCatalogOptions() []ckan.Option {
	var opts []ckan.Option

	if a.config.APIKey != "" {
		opts = append(opts, ckan.WithAPIKey(a.config.APIKey, a.config.AuthScheme))
	}
	if a.config.HTTPTimeout > 0 {
		opts = append(opts, ckan.WithTimeout(a.config.HTTPTimeout))
	}
	if a.config.BreakerFailures > 0 {
		opts = append(opts, ckan.WithBreaker(a.config.BreakerFailures, a.config.BreakerTimeout))
	}
	if a.config.Purge {
		opts = append(opts, ckan.WithPurge())
	}

	return opts
}

// buildImporterOptions constructs importer options from the configuration.
func (a *App) buildImporterOptions() ([]mapimport.Option, error) {
	extractor := []mappackage.Option{mappackage.WithFs(a.fs)}
	if a.config.TempDir != "" {
		extractor = append(extractor, mappackage.WithTempDir(a.config.TempDir))
	}
	if a.config.MaxArchiveSize > 0 {
		extractor = append(extractor, mappackage.WithMaxArchiveSize(a.config.MaxArchiveSize))
	}
	if a.config.MaxEntrySize > 0 {
		extractor = append(extractor, mappackage.WithMaxEntrySize(a.config.MaxEntrySize))
	}

	opts := []mapimport.Option{
		mapimport.WithExtractorOptions(extractor...),
		mapimport.WithLenientFields(a.config.Lenient),
	}

	if len(a.config.SchemaFiles) > 0 {
		registry, err := schema.NewFileRegistry(a.fs, a.config.SchemaFiles...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mapimport.WithRegistry(registry))
	}

	client, err := a.Catalog()
	if err != nil {
		return nil, err
	}
	if client != nil {
		opts = append(opts, mapimport.WithCatalog(client))
	}

	return opts, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithCatalog sets a custom catalog client (useful for testing).
func WithCatalog(c catalog.Client) Option {
	return func(a *App) error {
		a.catalog = c
		return nil
	}
}

// WithFs sets the filesystem schema files and scratch directories live on.
func WithFs(fs afero.Fs) Option {
	return func(a *App) error {
		if fs == nil {
			return &errors.ValidationError{Field: "fs", Message: "cannot be nil"}
		}
		a.fs = fs
		return nil
	}
}

// Ensure App implements application.Application at compile time.
var _ application.Application = (*App)(nil)
