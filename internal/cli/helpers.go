package cli

import (
	"github.com/spf13/cobra"
)

// projectDir returns the positional project directory, defaulting to the
// current directory.
func projectDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// newFormatter builds the OutputFormatter for a command invocation.
// Verbose output goes to stderr so it never corrupts JSON on stdout.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
