package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/closure"
	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/output"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
}

// showPlatform is the JSON payload for one platform's exposed outputs.
type showPlatform struct {
	Platform   string            `json:"platform"`
	Packages   []string          `json:"packages"`
	Apps       []string          `json:"apps"`
	DevShell   map[string]string `json:"devShellEnv"`
	Closure    []string          `json:"closure,omitempty"`
	ClosureErr string            `json:"closureError,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [project-dir]",
		Short: "Print the output-set structure without building",
		Long: `Preview what the manifest exposes per platform: package and app
names (with their default aliases), the dev-shell environment, and the
runtime closure. Nothing is resolved, built, or written.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, projectDir(args), cmd)
		},
	}

	return cmd
}

func runShow(opts *ShowOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng, errs := engine.Open(dir, engine.Options{})
	if len(errs) > 0 {
		return reportErrors(formatter, errs)
	}
	defer eng.Close()

	m := eng.Manifest()
	name := m.App.Name

	platforms := make([]showPlatform, 0, len(m.Platforms))
	for _, p := range m.Platforms {
		sp := showPlatform{
			Platform: string(p),
			Packages: []string{output.DefaultName, name},
			Apps:     []string{output.DefaultName, name},
			DevShell: map[string]string{},
		}
		cl, err := closure.Compute(m.Deps, p)
		if err != nil {
			sp.ClosureErr = err.Error()
		} else {
			sp.Closure = cl.Paths()
			if !cl.Empty() {
				sp.DevShell[cl.SearchPathVar()] = cl.Serialize()
			}
		}
		platforms = append(platforms, sp)
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{
			"package":   name,
			"platforms": platforms,
		})
	}

	fmt.Fprintf(formatter.Writer, "%s\n", name)
	for _, sp := range platforms {
		fmt.Fprintf(formatter.Writer, "├── %s\n", sp.Platform)
		fmt.Fprintf(formatter.Writer, "│   ├── packages: default, %s\n", name)
		fmt.Fprintf(formatter.Writer, "│   ├── apps:     default, %s\n", name)
		if sp.ClosureErr != "" {
			fmt.Fprintf(formatter.Writer, "│   └── closure:  ✗ %s\n", sp.ClosureErr)
		} else if len(sp.Closure) == 0 {
			fmt.Fprintf(formatter.Writer, "│   └── closure:  (empty)\n")
		} else {
			fmt.Fprintf(formatter.Writer, "│   └── closure:  %d dir(s)\n", len(sp.Closure))
		}
	}
	return nil
}
