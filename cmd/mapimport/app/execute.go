package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport/pkg/errors"
)

// Execute runs the mapimport CLI application with the given arguments.
// This is the main entry point called from main.go.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "mapimport",
		Short:   "MapAction map package importer",
		Version: a.version,
		Long: `mapimport imports MapAction map packages (zip archives holding a metadata
document and the rendered map files) into a CKAN dataset catalog.

Configuration is read from flags, MAPIMPORT_* environment variables,
.env files and $HOME/.mapimport.yaml, in that order of precedence.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{
		ID:    "core",
		Title: "Core Commands:",
	})

	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands:",
	})

	// Add global flags
	rootCmd.PersistentFlags().StringVar(&a.config.ConfigFile, "config", "", "config file (default is $HOME/.mapimport.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (shortcut for --log-level=debug)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output (shortcut for --log-level=warn)")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringP("format", "o", "", "output format: table, json, yaml, wide")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error (overrides -v/-q)")
	rootCmd.PersistentFlags().String("catalog-url", "", "catalog base URL (overrides MAPIMPORT_CATALOG_URL)")

	rootCmd.SetVersionTemplate("mapimport {{.Version}}\n")

	a.registerCommands(rootCmd)

	return rootCmd
}

// setupCommand is called before any command runs.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	// An explicit config file replaces what New loaded from the default locations
	if path := mustGetString(cmd, "config"); path != "" {
		config, err := LoadConfigFile(path)
		if err != nil {
			return errors.NewConfigError("config", "cannot read "+path, err)
		}
		a.config = config
	}

	a.config.UpdateFromFlags(
		mustGetBool(cmd, "verbose"),
		mustGetBool(cmd, "quiet"),
		mustGetBool(cmd, "no-color"),
		mustGetString(cmd, "format"),
		mustGetString(cmd, "log-level"),
	)
	if url := mustGetString(cmd, "catalog-url"); url != "" {
		a.config.CatalogURL = url
	}

	logger := NewLogger(a.config)
	a.logger = &logger

	return nil
}

// ExitOnError prints an error and exits with status 1.
// This is meant to be used in main.go for top-level error handling.
func ExitOnError(err error) {
	if err != nil {
		//nolint:errcheck // Ignoring write error since we're exiting anyway
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// mustGetBool retrieves a boolean flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}

// mustGetString retrieves a string flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic("programming error: failed to get flag " + name + ": " + err.Error())
	}
	return val
}
