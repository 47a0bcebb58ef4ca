// Package importcmd implements the import command.
package importcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport"
	"github.com/mapaction/mapimport/internal/cmd/application"
	"github.com/mapaction/mapimport/internal/cmd/cmdutil"
	"github.com/mapaction/mapimport/internal/cmd/output"
	"github.com/mapaction/mapimport/pkg/errors"
	"github.com/mapaction/mapimport/pkg/logging"
)

// NewCommand creates the import command using app context.
func NewCommand(app application.Application) *cobra.Command {
	var flags *cmdutil.ImportFlags

	cmd := &cobra.Command{
		Use:     "import <archive.zip>",
		GroupID: "core",
		Short:   "Import a map package into the catalog",
		Args:    cobra.ExactArgs(1),
		Long: `Import extracts a MapAction map package, parses its metadata document,
shapes the draft with the configured schema and creates or corrects the
matching dataset in the catalog.

A package with status New or Update creates a new record; Correction
replaces the files and metadata of the existing record in place. If any
step fails the catalog changes made so far are undone.

Use "-" to read the archive from standard input.`,
		Example: `  mapimport import MA001.zip
  mapimport import MA001.zip --owner-org mapaction --public
  mapimport import MA001.zip -o json
  cat MA001.zip | mapimport import -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd, app, args[0], flags)
		},
	}

	flags = cmdutil.AddImportFlags(cmd)

	return cmd
}

// Run imports the archive at path and prints the result. Validation
// failures print the field error map before the error is returned.
func Run(cmd *cobra.Command, app application.Application, path string, flags *cmdutil.ImportFlags) error {
	ctx := logging.WithLogger(cmd.Context(), app.Logger())

	format, err := output.ResolveFormat(app.OutputFormat())
	if err != nil {
		return err
	}

	imp, err := app.Importer(flags.ImporterOptions()...)
	if err != nil {
		return err
	}

	r, name, closeFn, err := cmdutil.OpenArchive(app.Fs(), cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			app.Logger().Warn().Err(err).Str("archive", name).Msg("Failed to close archive")
		}
	}()

	opts := append(app.ImportOptions(), mapimport.WithArchiveName(name))
	opts = append(opts, flags.ImportOptions()...)

	result, err := imp.Import(ctx, r, opts...)
	if err != nil {
		if fields := errors.ToFields(err); fields != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Import of %s rejected:\n", name)
			if ferr := output.FormatFieldErrors(cmd.ErrOrStderr(), fields, format); ferr != nil {
				app.Logger().Warn().Err(ferr).Msg("Failed to print field errors")
			}
		}
		return err
	}

	return output.FormatResult(cmd.OutOrStdout(), result, format)
}
