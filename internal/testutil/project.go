package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ProjectConfig shapes a fixture project written by WriteProject.
type ProjectConfig struct {
	// AppName defaults to "demo".
	AppName string

	// Platforms defaults to ["x86_64-linux"].
	Platforms []string

	// Deps are rendered verbatim as CUE list elements, e.g.
	// `{name: "x11", runtime: true, libDirs: {"x86_64-linux": "/a"}}`.
	Deps []string

	// ExtraInputs are rendered after the app source input.
	ExtraInputs []string

	// SourceFiles populate the source input tree. Keys are relative
	// paths. Defaults to a single main.src file.
	SourceFiles map[string]string
}

// WriteProject lays out a complete fixture project in a temp directory:
// a manifest, a source input tree, and nothing else. Returns the project
// directory.
func WriteProject(t *testing.T, cfg ProjectConfig) string {
	t.Helper()

	if cfg.AppName == "" {
		cfg.AppName = "demo"
	}
	if len(cfg.Platforms) == 0 {
		cfg.Platforms = []string{"x86_64-linux"}
	}
	if cfg.SourceFiles == nil {
		cfg.SourceFiles = map[string]string{"main.src": "fn main() {}\n"}
	}

	dir := t.TempDir()

	srcDir := filepath.Join(dir, "src")
	for rel, content := range cfg.SourceFiles {
		path := filepath.Join(srcDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating source tree: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("writing source file: %v", err)
		}
	}

	inputs := append([]string{`{name: "src", locator: "path:src"}`}, cfg.ExtraInputs...)

	var b strings.Builder
	fmt.Fprintf(&b, "app: {\n")
	fmt.Fprintf(&b, "\tname:   %q\n", cfg.AppName)
	fmt.Fprintf(&b, "\tsource: \"src\"\n")
	fmt.Fprintf(&b, "\tbuild: {\n")
	fmt.Fprintf(&b, "\t\tcommand:    [\"true\"]\n")
	fmt.Fprintf(&b, "\t\texecutable: \"bin/%s\"\n", cfg.AppName)
	fmt.Fprintf(&b, "\t}\n")
	fmt.Fprintf(&b, "}\n")
	fmt.Fprintf(&b, "inputs: [\n")
	for _, in := range inputs {
		fmt.Fprintf(&b, "\t%s,\n", in)
	}
	fmt.Fprintf(&b, "]\n")
	if len(cfg.Deps) > 0 {
		fmt.Fprintf(&b, "deps: [\n")
		for _, d := range cfg.Deps {
			fmt.Fprintf(&b, "\t%s,\n", d)
		}
		fmt.Fprintf(&b, "]\n")
	}
	fmt.Fprintf(&b, "platforms: [")
	for i, p := range cfg.Platforms {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%q", p)
	}
	fmt.Fprintf(&b, "]\n")

	if err := os.WriteFile(filepath.Join(dir, "loom.cue"), []byte(b.String()), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return dir
}
