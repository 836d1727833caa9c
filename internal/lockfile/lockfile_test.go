package lockfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/resolver"
)

func sampleResolved() []resolver.ResolvedInput {
	return []resolver.ResolvedInput{
		{
			Spec:        manifest.InputSpec{Name: "src", Locator: "path:src", Buildable: true},
			Revision:    "sha256:aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
			ContentRoot: "/tmp/src",
		},
		{
			Spec:        manifest.InputSpec{Name: "compat", Locator: "path:compat", Buildable: false},
			Revision:    "sha256:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
			ContentRoot: "/tmp/compat",
		},
	}
}

func TestFromResolved_PreservesOrder(t *testing.T) {
	f := FromResolved(sampleResolved())
	require.Len(t, f.Inputs, 2)
	assert.Equal(t, "src", f.Inputs[0].Name)
	assert.Equal(t, "compat", f.Inputs[1].Name)
	assert.False(t, f.Inputs[1].Buildable)
}

func TestMarshal_Golden(t *testing.T) {
	f := FromResolved(sampleResolved())
	data, err := f.Marshal()
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "lockfile", data)
}

func TestMarshal_Stable(t *testing.T) {
	f := FromResolved(sampleResolved())
	first, err := f.Marshal()
	require.NoError(t, err)
	again, err := f.Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, again)
}

func TestMarshal_OmitsContentRoot(t *testing.T) {
	f := FromResolved(sampleResolved())
	data, err := f.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "/tmp/src",
		"machine-local paths must not leak into the lock")
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := FromResolved(sampleResolved())
	require.NoError(t, f.Write(dir))

	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestRead_MissingIsNotAnError(t *testing.T) {
	got, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRead_RejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Filename), []byte(`{"version": 99, "inputs": []}`), 0o644))

	_, err := Read(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestWrite_AtomicLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	f := FromResolved(sampleResolved())
	require.NoError(t, f.Write(dir))
	require.NoError(t, f.Write(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{Filename}, names)
}

func TestWrite_UnchangedResolutionRewritesIdenticalBytes(t *testing.T) {
	dir := t.TempDir()
	f := FromResolved(sampleResolved())
	require.NoError(t, f.Write(dir))
	before, err := os.ReadFile(filepath.Join(dir, Filename))
	require.NoError(t, err)

	require.NoError(t, FromResolved(sampleResolved()).Write(dir))
	after, err := os.ReadFile(filepath.Join(dir, Filename))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMatches(t *testing.T) {
	resolved := sampleResolved()
	f := FromResolved(resolved)

	assert.True(t, f.Matches(resolved))

	changed := append([]resolver.ResolvedInput{}, resolved...)
	changed[0].Revision = "sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	assert.False(t, f.Matches(changed))

	var nilFile *File
	assert.False(t, nilFile.Matches(resolved))
}

func TestDiff(t *testing.T) {
	resolved := sampleResolved()
	f := FromResolved(resolved)

	assert.Empty(t, Diff(f, resolved))

	changed := append([]resolver.ResolvedInput{}, resolved...)
	changed[0].Revision = "sha256:cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"
	diff := Diff(f, changed)
	require.Len(t, diff, 1)
	assert.True(t, strings.HasPrefix(diff[0], "~ src"))

	diff = Diff(nil, resolved)
	require.Len(t, diff, 2)
	assert.True(t, strings.HasPrefix(diff[0], "+ src"))
}

func TestSpecsMatch(t *testing.T) {
	resolved := sampleResolved()
	f := FromResolved(resolved)

	specs := []manifest.InputSpec{resolved[0].Spec, resolved[1].Spec}
	assert.True(t, SpecsMatch(f, specs))

	reordered := []manifest.InputSpec{resolved[1].Spec, resolved[0].Spec}
	assert.False(t, SpecsMatch(f, reordered))

	assert.False(t, SpecsMatch(nil, specs))
}
