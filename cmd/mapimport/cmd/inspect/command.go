// Package inspect implements the inspect command.
package inspect

import (
	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport/internal/cmd/application"
	"github.com/mapaction/mapimport/internal/cmd/cmdutil"
	"github.com/mapaction/mapimport/internal/cmd/output"
	"github.com/mapaction/mapimport/pkg/logging"
)

// NewCommand creates the inspect command using app context.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <archive.zip>",
		GroupID: "core",
		Short:   "Show what an import would create without touching the catalog",
		Args:    cobra.ExactArgs(1),
		Long: `Inspect extracts and parses a map package and shapes the draft with the
configured schema, then prints the draft dataset, the files that would be
attached, theme diagnostics and any schema field errors.

No catalog calls are made.`,
		Example: `  mapimport inspect MA001.zip
  mapimport inspect MA001.zip -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logging.WithLogger(cmd.Context(), app.Logger())

			format, err := output.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}

			imp, err := app.Importer()
			if err != nil {
				return err
			}

			r, name, closeFn, err := cmdutil.OpenArchive(app.Fs(), cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			in, err := imp.Inspect(ctx, r)
			if err != nil {
				return err
			}
			in.Archive = name

			return output.FormatInspection(cmd.OutOrStdout(), in, format)
		},
	}
}
