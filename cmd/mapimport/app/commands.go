package app

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport/cmd/mapimport/cmd/importcmd"
	"github.com/mapaction/mapimport/cmd/mapimport/cmd/inspect"
	"github.com/mapaction/mapimport/cmd/mapimport/cmd/themes"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(importcmd.NewCommand(a))
	rootCmd.AddCommand(inspect.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(themes.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("mapimport %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:     %s\n", a.commit)
				cmd.Printf("  built:      %s\n", a.date)
				cmd.Printf("  built by:   %s\n", a.builtBy)
				cmd.Printf("  go version: %s\n", runtime.Version())
				cmd.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			}
		},
	}
}
