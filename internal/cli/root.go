// Package cli implements the loom command surface: lock, build, run,
// develop, and show.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the loom CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "loom",
		Short: "loom - declarative build and environment orchestrator",
		Long: `loom resolves a manifest of pinned inputs into reproducible
per-platform outputs: a built package, a wrapped launcher carrying the
runtime library closure, and a developer shell with the same dependencies.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewLockCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDevelopCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
