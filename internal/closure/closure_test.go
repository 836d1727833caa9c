package closure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/platform"
)

func runtimeDep(name, dir string) manifest.Dependency {
	return manifest.Dependency{
		Name:    name,
		Runtime: true,
		LibDirs: map[platform.Platform]string{platform.LinuxAmd64: dir},
	}
}

func TestCompute_DeclarationOrder(t *testing.T) {
	deps := []manifest.Dependency{
		runtimeDep("A", "/a"),
		runtimeDep("B", "/b"),
		runtimeDep("C", "/c"),
	}

	cl, err := Compute(deps, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b", "/c"}, cl.Paths())
	assert.Equal(t, "/a:/b:/c", cl.Serialize())
}

func TestCompute_SkipsNativeTools(t *testing.T) {
	deps := []manifest.Dependency{
		{Name: "compiler", Runtime: false},
		runtimeDep("gl", "/gl"),
	}

	cl, err := Compute(deps, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Equal(t, []string{"/gl"}, cl.Paths())
}

func TestCompute_DedupFirstDeclaredWins(t *testing.T) {
	deps := []manifest.Dependency{
		runtimeDep("x11", "/shared"),
		runtimeDep("xcursor", "/shared"),
		runtimeDep("gl", "/gl"),
	}

	cl, err := Compute(deps, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Equal(t, []string{"/shared", "/gl"}, cl.Paths())
}

func TestCompute_Deterministic(t *testing.T) {
	deps := []manifest.Dependency{
		runtimeDep("A", "/a"),
		runtimeDep("B", "/b"),
	}

	first, err := Compute(deps, platform.LinuxAmd64)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Compute(deps, platform.LinuxAmd64)
		require.NoError(t, err)
		assert.Equal(t, first.Paths(), again.Paths())
		assert.Equal(t, first.Serialize(), again.Serialize())
	}
}

func TestCompute_MissingLibDirIsIncomplete(t *testing.T) {
	deps := []manifest.Dependency{
		runtimeDep("x11", "/x11"),
		{Name: "wayland", Runtime: true}, // no libDirs at all
	}

	_, err := Compute(deps, platform.LinuxAmd64)
	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, "wayland", incomplete.Dependency)
	assert.Equal(t, platform.LinuxAmd64, incomplete.Platform)
	assert.Contains(t, err.Error(), "INCOMPLETE_CLOSURE")
}

func TestCompute_MissingForTargetPlatformOnly(t *testing.T) {
	deps := []manifest.Dependency{
		{
			Name:    "x11",
			Runtime: true,
			LibDirs: map[platform.Platform]string{platform.LinuxAmd64: "/x11"},
		},
	}

	// Declared for linux only: darwin closure is incomplete.
	_, err := Compute(deps, platform.DarwinArm64)
	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))

	// The declared platform still computes fine.
	cl, err := Compute(deps, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x11"}, cl.Paths())
}

func TestEnvValue_PrependsToInbound(t *testing.T) {
	cl, err := Compute([]manifest.Dependency{
		runtimeDep("A", "/a"),
		runtimeDep("B", "/b"),
	}, platform.LinuxAmd64)
	require.NoError(t, err)

	assert.Equal(t, "/a:/b", cl.EnvValue(""))
	assert.Equal(t, "/a:/b:/usr/lib:/opt/lib", cl.EnvValue("/usr/lib:/opt/lib"),
		"inbound entries keep their relative order after the closure")
}

func TestEnvValue_EmptyClosure(t *testing.T) {
	cl, err := Compute(nil, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.True(t, cl.Empty())
	assert.Equal(t, "/usr/lib", cl.EnvValue("/usr/lib"))
	assert.Equal(t, "", cl.EnvValue(""))
}

func TestSearchPathVar_FollowsPlatform(t *testing.T) {
	linux, err := Compute(nil, platform.LinuxAmd64)
	require.NoError(t, err)
	assert.Equal(t, "LD_LIBRARY_PATH", linux.SearchPathVar())

	darwin, err := Compute(nil, platform.DarwinArm64)
	require.NoError(t, err)
	assert.Equal(t, "DYLD_FALLBACK_LIBRARY_PATH", darwin.SearchPathVar())
}
