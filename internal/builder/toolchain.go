package builder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ExecToolchain runs the manifest's build command as a subprocess. It is
// the default Toolchain; tests substitute a scripted fake.
//
// Contract with the command: it runs from the source root with LOOM_OUT
// set to the artifact directory, and must place the executable at the
// manifest's artifact-relative path under LOOM_OUT. LIBRARY_PATH carries
// the runtime-linked library directories for the linker.
type ExecToolchain struct {
	// Env is extra environment for the command, on top of the inherited
	// process environment.
	Env map[string]string
}

// Build implements Toolchain.
func (t *ExecToolchain) Build(ctx context.Context, req Request) (Result, error) {
	if len(req.Command) == 0 {
		return Result{}, fmt.Errorf("empty build command")
	}

	if err := os.MkdirAll(req.OutDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating artifact directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, req.Command[0], req.Command[1:]...)
	cmd.Dir = req.SourceRoot

	env := os.Environ()
	env = append(env, "LOOM_OUT="+req.OutDir)
	env = append(env, "LOOM_PLATFORM="+string(req.Platform))
	if len(req.LinkDirs) > 0 {
		env = append(env, "LIBRARY_PATH="+strings.Join(req.LinkDirs, req.Platform.ListSeparator()))
	}
	for k, v := range t.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return Result{Log: out.String()}, fmt.Errorf("toolchain command failed: %w", err)
	}

	exe := filepath.Join(req.OutDir, req.Executable)
	if _, err := os.Stat(exe); err != nil {
		return Result{Log: out.String()}, fmt.Errorf("toolchain produced no executable at %s: %w", req.Executable, err)
	}

	return Result{
		RootPath:       req.OutDir,
		ExecutablePath: exe,
		Log:            out.String(),
	}, nil
}
