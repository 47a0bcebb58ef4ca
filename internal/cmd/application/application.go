// Package application provides the application interface for mapimport commands.
//
// The Application interface defines the contract between the application layer and
// command implementations, enabling dependency injection and testability.
//
// Usage in Commands:
//
//	func NewCommand(app application.Application) *cobra.Command {
//	    return &cobra.Command{
//	        RunE: func(cmd *cobra.Command, args []string) error {
//	            imp, err := app.Importer()
//	            if err != nil {
//	                return err
//	            }
//	            // ... use the importer
//	            return nil
//	        },
//	    }
//	}
//
// Testing with Mocks:
//
//	mock := &application.Mock{
//	    ImporterFunc: func(opts ...mapimport.Option) (mapimport.Importer, error) {
//	        return mapimport.New(append(opts, mapimport.WithCatalog(memory.New()))...)
//	    },
//	}
//	cmd := NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/mapaction/mapimport"
)

// Application provides the application interface that commands need.
// The App struct from cmd/mapimport/app implements this interface.
type Application interface {
	// Importer returns an importer wired to the configured catalog and schema
	// registry. Extra options are applied after the configured ones.
	Importer(opts ...mapimport.Option) (mapimport.Importer, error)

	// ImportOptions returns the per-archive defaults from configuration,
	// such as the owning organization and record visibility.
	ImportOptions() []mapimport.ImportOption

	// Fs returns the filesystem archives are read from.
	Fs() afero.Fs

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
