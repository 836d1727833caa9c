package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/engine"
)

// LockOptions holds flags for the lock command.
type LockOptions struct {
	*RootOptions
}

// lockEntry is the JSON payload shape for one pinned input.
type lockEntry struct {
	Name      string `json:"name"`
	Locator   string `json:"locator"`
	Revision  string `json:"revision"`
	Buildable bool   `json:"buildable"`
}

// NewLockCommand creates the lock command.
func NewLockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lock [project-dir]",
		Short: "Resolve all inputs and write the lock file",
		Long: `Resolve every declared input to a content-addressed revision and
write loom.lock.json. The lock is replaced atomically and only rewritten
when an input's content actually changed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLock(opts, projectDir(args), cmd)
		},
	}

	return cmd
}

func runLock(opts *LockOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng, errs := engine.Open(dir, engine.Options{})
	if len(errs) > 0 {
		return reportErrors(formatter, errs)
	}
	defer eng.Close()

	resolved, err := eng.Resolve(cmd.Context())
	if err != nil {
		return reportError(formatter, err)
	}

	entries := make([]lockEntry, len(resolved))
	for i, ri := range resolved {
		entries[i] = lockEntry{
			Name:      ri.Spec.Name,
			Locator:   ri.Spec.Locator,
			Revision:  ri.Revision,
			Buildable: ri.Spec.Buildable,
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"inputs": entries})
	}

	fmt.Fprintf(formatter.Writer, "✓ Locked %d input(s)\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Name, e.Revision)
	}
	return nil
}
