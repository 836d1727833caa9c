package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/manifest"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newResolver(t *testing.T, opts Options) *Resolver {
	t.Helper()
	r, err := New(opts)
	require.NoError(t, err)
	return r
}

func TestResolve_Reproducible(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"src/main.rs":   "fn main() {}\n",
		"src/Cargo.tml": "[package]\n",
	})
	spec := manifest.InputSpec{Name: "src", Locator: "path:src", Buildable: true}

	first, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)
	again, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	require.Len(t, first, 1)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, first[0].Revision)
	assert.Equal(t, first[0].Revision, again[0].Revision,
		"unchanged content must resolve to the identical revision")
}

func TestResolve_ContentChangeChangesRevision(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/main.rs": "fn main() {}\n"})
	spec := manifest.InputSpec{Name: "src", Locator: "path:src"}

	before, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	writeTree(t, base, map[string]string{"src/main.rs": "fn main() { panic!() }\n"})
	after, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	assert.NotEqual(t, before[0].Revision, after[0].Revision)
}

func TestResolve_ExecutableBitChangesRevision(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/run.sh": "#!/bin/sh\n"})
	spec := manifest.InputSpec{Name: "src", Locator: "path:src"}

	before, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	require.NoError(t, os.Chmod(filepath.Join(base, "src", "run.sh"), 0o755))
	after, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	assert.NotEqual(t, before[0].Revision, after[0].Revision)
}

func TestResolve_DefaultExcludesIgnored(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/main.rs": "fn main() {}\n"})
	spec := manifest.InputSpec{Name: "src", Locator: "path:src"}

	before, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	writeTree(t, base, map[string]string{
		"src/.git/HEAD":        "ref: refs/heads/main\n",
		"src/target/debug/app": "build output",
	})
	after, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	assert.Equal(t, before[0].Revision, after[0].Revision,
		"VCS metadata and build output must not affect the revision")
}

func TestResolve_ConfiguredExcludes(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"src/main.rs":  "fn main() {}\n",
		"src/notes.md": "scratch\n",
	})
	spec := manifest.InputSpec{Name: "src", Locator: "path:src"}

	plain, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)
	excl, err := newResolver(t, Options{Excludes: []string{"*.md"}}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	assert.NotEqual(t, plain[0].Revision, excl[0].Revision)
}

func TestResolve_SymlinkHashesByTarget(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/real.txt": "content"})
	require.NoError(t, os.Symlink("real.txt", filepath.Join(base, "src", "alias")))
	spec := manifest.InputSpec{Name: "src", Locator: "path:src"}

	before, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	// Retargeting the link changes the revision even though no regular
	// file content changed.
	require.NoError(t, os.Remove(filepath.Join(base, "src", "alias")))
	require.NoError(t, os.Symlink("other.txt", filepath.Join(base, "src", "alias")))
	after, err := newResolver(t, Options{}).Resolve(context.Background(), base, []manifest.InputSpec{spec})
	require.NoError(t, err)

	assert.NotEqual(t, before[0].Revision, after[0].Revision)
}

func TestResolve_MissingRootIsUnresolvable(t *testing.T) {
	base := t.TempDir()
	specs := []manifest.InputSpec{{Name: "ghost", Locator: "path:nowhere"}}

	_, err := newResolver(t, Options{}).Resolve(context.Background(), base, specs)
	var unres *UnresolvableError
	require.True(t, errors.As(err, &unres))
	assert.Equal(t, "ghost", unres.Name)
	assert.Equal(t, "path:nowhere", unres.Locator)
	assert.Contains(t, err.Error(), "UNRESOLVABLE_SOURCE")
}

func TestResolve_UnknownSchemeIsUnresolvable(t *testing.T) {
	base := t.TempDir()
	specs := []manifest.InputSpec{{Name: "remote", Locator: "git:github.com/x/y"}}

	_, err := newResolver(t, Options{}).Resolve(context.Background(), base, specs)
	var unres *UnresolvableError
	require.True(t, errors.As(err, &unres))
}

func TestResolve_FailureReturnsNoPartialResults(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/main.rs": "fn main() {}\n"})
	specs := []manifest.InputSpec{
		{Name: "src", Locator: "path:src"},
		{Name: "ghost", Locator: "path:nowhere"},
	}

	resolved, err := newResolver(t, Options{}).Resolve(context.Background(), base, specs)
	require.Error(t, err)
	assert.Nil(t, resolved)
}

func TestResolve_NonBuildableInputsStillResolve(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"compat/lib.so": "elf"})
	specs := []manifest.InputSpec{{Name: "compat", Locator: "path:compat", Buildable: false}}

	resolved, err := newResolver(t, Options{}).Resolve(context.Background(), base, specs)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.False(t, resolved[0].Spec.Buildable)
	assert.NotEmpty(t, resolved[0].Revision)
}

func TestResolve_PreservesDeclarationOrder(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"b/f": "b",
		"a/f": "a",
	})
	specs := []manifest.InputSpec{
		{Name: "second", Locator: "path:b"},
		{Name: "first", Locator: "path:a"},
	}

	resolved, err := newResolver(t, Options{}).Resolve(context.Background(), base, specs)
	require.NoError(t, err)
	require.Len(t, resolved, 2)
	assert.Equal(t, "second", resolved[0].Spec.Name)
	assert.Equal(t, "first", resolved[1].Spec.Name)
}

func TestResolve_CanceledContext(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"src/f": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newResolver(t, Options{}).Resolve(ctx, base, []manifest.InputSpec{{Name: "src", Locator: "path:src"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestByName(t *testing.T) {
	resolved := []ResolvedInput{
		{Spec: manifest.InputSpec{Name: "src"}, Revision: "sha256:aa"},
		{Spec: manifest.InputSpec{Name: "compat"}, Revision: "sha256:bb"},
	}
	byName := ByName(resolved)
	assert.Len(t, byName, 2)
	assert.Equal(t, "sha256:aa", byName["src"].Revision)
}
