// Package cmdutil provides shared flags and archive helpers for mapimport commands.
package cmdutil

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mapaction/mapimport"
)

// ImportFlags holds the per-archive flags of the import command.
type ImportFlags struct {
	OwnerOrg string
	Private  bool
	Public   bool
	Timeout  time.Duration
	Lenient  bool
}

// AddImportFlags adds the per-archive flags to a command.
func AddImportFlags(cmd *cobra.Command) *ImportFlags {
	flags := &ImportFlags{}

	cmd.Flags().StringVar(&flags.OwnerOrg, "owner-org", "",
		"Organization that owns created records (default from config)")
	cmd.Flags().BoolVar(&flags.Private, "private", false,
		"Create the record as private")
	cmd.Flags().BoolVar(&flags.Public, "public", false,
		"Create the record as public")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0,
		"Abort the import after this long (0 = no limit)")
	cmd.Flags().BoolVar(&flags.Lenient, "lenient", false,
		"Import even when schema validation reports field errors")
	cmd.MarkFlagsMutuallyExclusive("private", "public")

	return flags
}

// ImportOptions returns the import options the flags override. They are
// meant to be applied after the configured defaults.
func (f *ImportFlags) ImportOptions() []mapimport.ImportOption {
	var opts []mapimport.ImportOption
	if f.OwnerOrg != "" {
		opts = append(opts, mapimport.WithOwnerOrg(f.OwnerOrg))
	}
	if f.Private {
		opts = append(opts, mapimport.WithPrivate(true))
	}
	if f.Public {
		opts = append(opts, mapimport.WithPrivate(false))
	}
	if f.Timeout > 0 {
		opts = append(opts, mapimport.WithTimeout(f.Timeout))
	}
	return opts
}

// ImporterOptions returns the importer options the flags select.
func (f *ImportFlags) ImporterOptions() []mapimport.Option {
	if f.Lenient {
		return []mapimport.Option{mapimport.WithLenientFields(true)}
	}
	return nil
}
