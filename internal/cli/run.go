package cli

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/output"
	"github.com/loomworks/loom/internal/platform"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Platform string
	App      string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [project-dir] [-- args...]",
		Short: "Build (if needed) and execute the wrapped launcher",
		Long: `Resolve, build, and wrap the app, then execute the launcher with
the given arguments. The process environment is inherited; the launcher
prepends the runtime closure to the search-path variable. The exit code
is the launched process's exit code, or 2 if resolution or the build
fails before execution.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Positional layout: everything before "--" is at most the
			// project dir; everything after is program arguments.
			dir := "."
			var progArgs []string
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				if at > 0 {
					dir = args[0]
				}
				progArgs = args[at:]
			} else if len(args) > 0 {
				dir = args[0]
			}
			return runRun(opts, dir, progArgs, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", "", "target platform (default: host)")
	cmd.Flags().StringVar(&opts.App, "app", output.DefaultName, "named app to execute")

	return cmd
}

func runRun(opts *RunOptions, dir string, progArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng, errs := engine.Open(dir, engine.Options{})
	if len(errs) > 0 {
		return reportErrors(formatter, errs)
	}
	defer eng.Close()

	set, err := eng.BuildPlatform(cmd.Context(), platform.Platform(opts.Platform))
	if err != nil {
		// Anything failing before execution is a distinguished command
		// failure, never confused with the child's exit code.
		code, _ := classify(err)
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, code, err)
	}

	launcher, ok := set.Apps[opts.App]
	if !ok {
		_ = formatter.Error(ErrCodeGeneric, "unknown app "+opts.App, nil)
		return NewExitError(ExitCommandError, "unknown app "+opts.App)
	}

	formatter.VerboseLog("exec %s", launcher.Path)

	child := exec.CommandContext(cmd.Context(), launcher.Path, progArgs...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = os.Environ()

	if err := child.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return NewExitError(exitErr.ExitCode(), "")
		}
		return reportError(formatter, err)
	}
	return nil
}
