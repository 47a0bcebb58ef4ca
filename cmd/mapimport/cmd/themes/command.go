// Package themes implements the themes command and its subcommands.
package themes

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport/internal/cmd/application"
	"github.com/mapaction/mapimport/internal/cmd/output"
	"github.com/mapaction/mapimport/pkg/constants"
	"github.com/mapaction/mapimport/pkg/logging"
	"github.com/mapaction/mapimport/pkg/mappackage"
)

// NewCommand creates the themes command using app context.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "themes",
		GroupID: "management",
		Short:   "Manage the controlled product theme vocabulary",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newSyncCommand(app))

	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the product themes map packages may declare",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}
			return output.FormatThemes(cmd.OutOrStdout(), mappackage.ProductThemes(), format)
		},
	}
}

func newSyncCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Declare the product themes as a catalog vocabulary",
		Long: fmt.Sprintf(`Sync creates the %q vocabulary in the catalog, or replaces its tags
when it already exists, so that imported records can be tagged with themes.`,
			constants.ThemeVocabulary),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := logging.WithLogger(cmd.Context(), app.Logger())

			format, err := output.ResolveFormat(app.OutputFormat())
			if err != nil {
				return err
			}

			imp, err := app.Importer()
			if err != nil {
				return err
			}

			vocab, err := imp.SyncThemes(ctx)
			if err != nil {
				return err
			}

			if format.IsTable() {
				fmt.Fprintf(cmd.OutOrStdout(), "Vocabulary %s now holds %d themes\n", vocab.Name, len(vocab.Tags))
				return nil
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), vocab)
		},
	}
}
