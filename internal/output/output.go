// Package output assembles the per-platform result exposed to callers:
// built packages, runnable apps, and the developer-shell descriptor, each
// with a "default" alias for the single named unit.
package output

import (
	"github.com/loomworks/loom/internal/builder"
	"github.com/loomworks/loom/internal/closure"
	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/platform"
	"github.com/loomworks/loom/internal/wrapper"
)

// DefaultName is the alias every output set carries for its primary
// package and app.
const DefaultName = "default"

// Set is the complete output for one platform. Computed fresh on every
// invocation; nothing here persists.
type Set struct {
	Platform platform.Platform

	// Packages maps logical name → built artifact, including the
	// "default" alias.
	Packages map[string]builder.Artifact

	// Apps maps logical name → wrapped launcher, including "default".
	Apps map[string]*wrapper.Launcher

	// DevShell is the developer environment descriptor: same dependency
	// set and closure, no wrapping.
	DevShell DevShell
}

// DevShell describes the developer environment for one platform.
type DevShell struct {
	// BuildInputs is the full declared dependency set in declaration
	// order, native build tools and runtime-linked libraries both.
	BuildInputs []manifest.Dependency

	// Env holds the variables the shell exports; the runtime search-path
	// variable carries the serialized closure. Values are additive: the
	// shell prepends them to any inbound value.
	Env map[string]string
}

// Aggregate assembles the Set for one platform. Pure: no failure modes of
// its own beyond what its inputs already carry.
func Aggregate(p platform.Platform, artifact builder.Artifact, launcher *wrapper.Launcher, m *manifest.Manifest, cl *closure.Closure) *Set {
	name := m.App.Name

	packages := map[string]builder.Artifact{
		name:        artifact,
		DefaultName: artifact,
	}
	apps := map[string]*wrapper.Launcher{
		name:        launcher,
		DefaultName: launcher,
	}

	env := map[string]string{}
	if !cl.Empty() {
		env[cl.SearchPathVar()] = cl.Serialize()
	}

	return &Set{
		Platform: p,
		Packages: packages,
		Apps:     apps,
		DevShell: DevShell{
			BuildInputs: append([]manifest.Dependency{}, m.Deps...),
			Env:         env,
		},
	}
}
