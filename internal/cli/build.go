package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/loom/internal/engine"
	"github.com/loomworks/loom/internal/matrix"
	"github.com/loomworks/loom/internal/output"
	"github.com/loomworks/loom/internal/platform"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Platform     string
	AllPlatforms bool
	OutLink      string
}

// buildReport is the JSON payload for one platform's build.
type buildReport struct {
	Platform   string `json:"platform"`
	Package    string `json:"package"`
	RootPath   string `json:"rootPath,omitempty"`
	Executable string `json:"executable,omitempty"`
	Launcher   string `json:"launcher,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"errorCode,omitempty"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [project-dir]",
		Short: "Build the package for one platform or the full matrix",
		Long: `Build the manifest's package. By default the host platform is
built; --platform selects another member of the manifest's platform set,
and --all-platforms fans out over the whole set with per-platform
isolation (one platform failing never blocks another).`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, projectDir(args), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Platform, "platform", "p", "", "target platform (default: host)")
	cmd.Flags().BoolVar(&opts.AllPlatforms, "all-platforms", false, "build every platform in the manifest")
	cmd.Flags().StringVarP(&opts.OutLink, "out", "o", "", "write a stable symlink to the artifact root")

	return cmd
}

func runBuild(opts *BuildOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	eng, errs := engine.Open(dir, engine.Options{})
	if len(errs) > 0 {
		return reportErrors(formatter, errs)
	}
	defer eng.Close()

	if opts.AllPlatforms {
		return runBuildAll(opts, eng, formatter, cmd)
	}

	set, err := eng.BuildPlatform(cmd.Context(), platform.Platform(opts.Platform))
	if err != nil {
		return reportError(formatter, err)
	}

	artifact := set.Packages[output.DefaultName]
	if opts.OutLink != "" {
		if err := writeOutLink(opts.OutLink, artifact.RootPath); err != nil {
			return reportError(formatter, err)
		}
	}

	report := buildReport{
		Platform:   string(set.Platform),
		Package:    eng.Manifest().App.Name,
		RootPath:   artifact.RootPath,
		Executable: artifact.ExecutablePath,
		Launcher:   set.Apps[output.DefaultName].Path,
		Cached:     artifact.Cached,
	}
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	cached := ""
	if report.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(formatter.Writer, "✓ Built %s for %s%s\n", report.Package, report.Platform, cached)
	fmt.Fprintf(formatter.Writer, "  package:  %s\n", report.RootPath)
	fmt.Fprintf(formatter.Writer, "  launcher: %s\n", report.Launcher)
	if opts.OutLink != "" {
		fmt.Fprintf(formatter.Writer, "  out link: %s\n", opts.OutLink)
	}
	return nil
}

func runBuildAll(opts *BuildOptions, eng *engine.Engine, formatter *OutputFormatter, cmd *cobra.Command) error {
	results, err := eng.BuildAll(cmd.Context())
	if err != nil {
		return reportError(formatter, err)
	}

	reports := make([]buildReport, len(results))
	for i, r := range results {
		rep := buildReport{
			Platform: string(r.Platform),
			Package:  eng.Manifest().App.Name,
		}
		if r.Err != nil {
			code, _ := classify(r.Err)
			rep.Error = r.Err.Error()
			rep.ErrorCode = code
		} else {
			artifact := r.Set.Packages[output.DefaultName]
			rep.RootPath = artifact.RootPath
			rep.Executable = artifact.ExecutablePath
			rep.Launcher = r.Set.Apps[output.DefaultName].Path
			rep.Cached = artifact.Cached
		}
		reports[i] = rep
	}

	failed := matrix.Failed(results)

	if formatter.Format == "json" {
		if err := formatter.Success(map[string]any{"results": reports}); err != nil {
			return err
		}
	} else {
		for _, rep := range reports {
			if rep.Error != "" {
				fmt.Fprintf(formatter.Writer, "✗ %s: [%s] %s\n", rep.Platform, rep.ErrorCode, rep.Error)
			} else {
				cached := ""
				if rep.Cached {
					cached = " (cached)"
				}
				fmt.Fprintf(formatter.Writer, "✓ %s: %s%s\n", rep.Platform, rep.RootPath, cached)
			}
		}
	}

	if len(failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d platform(s) failed", len(failed), len(results)))
	}
	return nil
}

// writeOutLink replaces link with a symlink to target, the stable
// reference exposed after a successful build.
func writeOutLink(link, target string) error {
	if err := os.Remove(link); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replacing out link: %w", err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("writing out link: %w", err)
	}
	return nil
}
