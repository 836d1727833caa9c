package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/platform"
)

// DevelopOptions holds flags for the develop command.
type DevelopOptions struct {
	*RootOptions
	Platform string
	PrintEnv bool
	Shell    string
}

// NewDevelopCommand creates the develop command.
func NewDevelopCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevelopOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "develop [project-dir]",
		Short: "Enter a shell with the manifest's dependencies composed",
		Long: `Compose the developer environment for the target platform: the
runtime closure on the loader search path and the full dependency set
available, without building or wrapping anything. An optional .env file
in the project directory is overlaid last.

With --print-env the composed exports are printed instead of spawning a
shell, for consumption by direnv-style integrations.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevelop(opts, projectDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", "", "target platform (default: host)")
	cmd.Flags().BoolVar(&opts.PrintEnv, "print-env", false, "print export lines instead of spawning a shell")
	cmd.Flags().StringVar(&opts.Shell, "shell", "", "shell to spawn (default: $SHELL, then /bin/sh)")

	return cmd
}

func runDevelop(opts *DevelopOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng, errs := engine.Open(dir, engine.Options{})
	if len(errs) > 0 {
		return reportErrors(formatter, errs)
	}
	defer eng.Close()

	shell, p, err := eng.DevShell(cmd.Context(), platform.Platform(opts.Platform))
	if err != nil {
		return reportError(formatter, err)
	}

	env := composeEnv(shell.Env, p)

	// .env overlays last so developers can layer local tweaks on top of
	// the manifest-derived environment.
	if overlay, err := godotenv.Read(filepath.Join(dir, ".env")); err == nil {
		for k, v := range overlay {
			env[k] = v
		}
	}

	if opts.PrintEnv {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(formatter.Writer, "export %s=%q\n", k, env[k])
		}
		return nil
	}

	shellPath := opts.Shell
	if shellPath == "" {
		shellPath = os.Getenv("SHELL")
	}
	if shellPath == "" {
		shellPath = "/bin/sh"
	}

	formatter.VerboseLog("dev shell for %s: %d dependency(ies)", p, len(shell.BuildInputs))

	child := exec.CommandContext(cmd.Context(), shellPath)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Env = mergedEnviron(env)
	if err := child.Run(); err != nil {
		return reportError(formatter, err)
	}
	return nil
}

// composeEnv applies the dev shell's variables additively over the
// inbound process environment: composed values are prepended, inbound
// entries keep their relative order.
func composeEnv(overrides map[string]string, p platform.Platform) map[string]string {
	env := map[string]string{}
	for k, v := range overrides {
		if inbound := os.Getenv(k); inbound != "" {
			v = v + p.ListSeparator() + inbound
		}
		env[k] = v
	}
	return env
}

// mergedEnviron merges computed variables into a copy of the process
// environment for the spawned shell.
func mergedEnviron(env map[string]string) []string {
	merged := []string{}
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if _, overridden := env[key]; overridden {
			continue
		}
		merged = append(merged, kv)
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+env[k])
	}
	return merged
}
