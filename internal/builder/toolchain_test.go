package builder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/platform"
)

func execRequest(t *testing.T, command []string) Request {
	t.Helper()
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "main.src"), []byte("fn main() {}\n"), 0o644))
	return Request{
		SourceRoot: src,
		SourceName: "src",
		Platform:   platform.LinuxAmd64,
		LinkDirs:   []string{"/x11/lib", "/gl/lib"},
		Command:    command,
		Executable: "bin/demo",
		OutDir:     filepath.Join(t.TempDir(), "out"),
	}
}

func TestExecToolchain_RunsCommandInSourceRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	tc := &ExecToolchain{}
	req := execRequest(t, []string{"sh", "-c", `mkdir -p "$LOOM_OUT/bin" && cp main.src "$LOOM_OUT/bin/demo"`})

	result, err := tc.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req.OutDir, result.RootPath)
	assert.Equal(t, filepath.Join(req.OutDir, "bin", "demo"), result.ExecutablePath)

	content, err := os.ReadFile(result.ExecutablePath)
	require.NoError(t, err)
	assert.Equal(t, "fn main() {}\n", string(content),
		"the command runs from the source root")
}

func TestExecToolchain_ExposesContractEnvironment(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	tc := &ExecToolchain{Env: map[string]string{"EXTRA": "yes"}}
	req := execRequest(t, []string{"sh", "-c",
		`mkdir -p "$LOOM_OUT/bin" && printf '%s\n%s\n%s\n' "$LOOM_PLATFORM" "$LIBRARY_PATH" "$EXTRA" > "$LOOM_OUT/bin/demo"`})

	result, err := tc.Build(context.Background(), req)
	require.NoError(t, err)

	content, err := os.ReadFile(result.ExecutablePath)
	require.NoError(t, err)
	assert.Equal(t, "x86_64-linux\n/x11/lib:/gl/lib\nyes\n", string(content))
}

func TestExecToolchain_CommandFailureCarriesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	tc := &ExecToolchain{}
	req := execRequest(t, []string{"sh", "-c", `echo "error: everything is broken" >&2; exit 3`})

	result, err := tc.Build(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, result.Log, "error: everything is broken")
}

func TestExecToolchain_MissingExecutableIsAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	tc := &ExecToolchain{}
	req := execRequest(t, []string{"true"})

	_, err := tc.Build(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executable")
}

func TestExecToolchain_EmptyCommandRejected(t *testing.T) {
	tc := &ExecToolchain{}
	_, err := tc.Build(context.Background(), Request{OutDir: t.TempDir()})
	assert.Error(t, err)
}
