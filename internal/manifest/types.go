// Package manifest loads and validates the declarative loom.cue manifest:
// the named pinned inputs, the single buildable app, its dependency set,
// and the platform matrix the outputs fan out over.
package manifest

import (
	"github.com/loomworks/loom/internal/platform"
)

// Manifest is the parsed, validated manifest for one project directory.
// It is immutable once loaded; resolution and building never alter it.
type Manifest struct {
	// App is the single buildable unit this manifest targets.
	App AppSpec

	// Inputs are the named external sources, in declaration order. The
	// lock record preserves this order.
	Inputs []InputSpec

	// Deps is the declared build-input set, in declaration order. The
	// runtime-linked subset additionally feeds the runtime closure.
	Deps []Dependency

	// Platforms is the manifest's target set, a subset of the fixed
	// default set. Empty in the source means "all defaults".
	Platforms []platform.Platform

	// Dir is the directory the manifest was loaded from. Relative input
	// locators resolve against it.
	Dir string
}

// AppSpec describes the buildable package.
type AppSpec struct {
	// Name is the logical package/app name; the aggregator aliases
	// "default" to it.
	Name string

	// Source names the input whose content root is the build's source
	// tree. The referenced input must be buildable.
	Source string

	// Build describes how the opaque toolchain produces the artifact.
	Build BuildSpec
}

// BuildSpec is the opaque toolchain invocation recipe.
type BuildSpec struct {
	// Command is the toolchain command line, run from the source root.
	Command []string

	// Executable is the artifact-root-relative path of the produced
	// executable, e.g. "bin/arborio".
	Executable string
}

// InputSpec names one pinned external source.
type InputSpec struct {
	Name    string
	Locator string

	// Buildable is false for metadata-only inputs (compatibility shims
	// that exist so non-native resolvers can consume the manifest). They
	// still resolve and appear in the lock, but the builder never sees
	// them.
	Buildable bool
}

// Dependency is one entry of the build-input set.
type Dependency struct {
	Name string

	// Runtime marks a runtime-linked library: needed by the linker at
	// build time and by the dynamic loader at run time. Non-runtime
	// entries are native build tools, needed only during compilation.
	Runtime bool

	// LibDirs maps platform to the directory providing this dependency's
	// shared libraries. Consulted only for runtime dependencies; a
	// missing entry for a target platform is an incomplete closure.
	LibDirs map[platform.Platform]string
}

// RuntimeDeps returns the runtime-linked subset of Deps, preserving
// declaration order.
func (m *Manifest) RuntimeDeps() []Dependency {
	var out []Dependency
	for _, d := range m.Deps {
		if d.Runtime {
			out = append(out, d)
		}
	}
	return out
}

// NativeDeps returns the native-build-tool subset of Deps, preserving
// declaration order.
func (m *Manifest) NativeDeps() []Dependency {
	var out []Dependency
	for _, d := range m.Deps {
		if !d.Runtime {
			out = append(out, d)
		}
	}
	return out
}

// Input returns the named input spec, if declared.
func (m *Manifest) Input(name string) (InputSpec, bool) {
	for _, in := range m.Inputs {
		if in.Name == name {
			return in, true
		}
	}
	return InputSpec{}, false
}

// SupportsPlatform reports whether p is in the manifest's platform set.
func (m *Manifest) SupportsPlatform(p platform.Platform) bool {
	for _, q := range m.Platforms {
		if p == q {
			return true
		}
	}
	return false
}
