// Package closure computes the runtime library closure: the ordered,
// de-duplicated set of directories that must be on the dynamic loader's
// search path for the built artifact to start.
//
// The closure is exactly as complete as the manifest's declared
// runtime-linked dependency list. Nothing here introspects the built
// binary's actual link requirements; an undeclared transitive library
// surfaces as a load-time failure in the launcher, not here.
package closure

import (
	"fmt"
	"strings"

	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/platform"
)

// Closure is the ordered library-directory sequence for one platform.
// Immutable once computed.
type Closure struct {
	platform platform.Platform
	paths    []string
}

// IncompleteError reports a runtime-linked dependency with no library
// directory for the target platform. Raised at computation time, before
// any build output is wrapped.
type IncompleteError struct {
	Dependency string
	Platform   platform.Platform
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("INCOMPLETE_CLOSURE: runtime dependency %q provides no library directory for %s",
		e.Dependency, e.Platform)
}

// Compute builds the closure for the runtime-linked subset of deps on
// platform p. Order follows declaration order; a directory contributed by
// more than one dependency keeps its first-declared position.
//
// Deterministic: identical (deps, p) always yields an identical sequence.
func Compute(deps []manifest.Dependency, p platform.Platform) (*Closure, error) {
	var paths []string
	seen := map[string]bool{}
	for _, d := range deps {
		if !d.Runtime {
			continue
		}
		dir, ok := d.LibDirs[p]
		if !ok || dir == "" {
			return nil, &IncompleteError{Dependency: d.Name, Platform: p}
		}
		if seen[dir] {
			continue
		}
		seen[dir] = true
		paths = append(paths, dir)
	}
	return &Closure{platform: p, paths: paths}, nil
}

// Paths returns a copy of the ordered directory sequence.
func (c *Closure) Paths() []string {
	return append([]string{}, c.paths...)
}

// Empty reports whether the closure contains no directories.
func (c *Closure) Empty() bool {
	return len(c.paths) == 0
}

// Serialize joins the sequence with the platform's list separator, the
// exact value the wrapper exports.
func (c *Closure) Serialize() string {
	return strings.Join(c.paths, c.platform.ListSeparator())
}

// EnvValue composes the effective search-path value: the closure
// prepended to any inbound value, preserving the inbound entries and
// their relative order. An empty inbound value yields the bare closure.
func (c *Closure) EnvValue(inbound string) string {
	ser := c.Serialize()
	switch {
	case ser == "":
		return inbound
	case inbound == "":
		return ser
	default:
		return ser + c.platform.ListSeparator() + inbound
	}
}

// SearchPathVar returns the loader variable the closure belongs in on
// this platform.
func (c *Closure) SearchPathVar() string {
	return c.platform.SearchPathVar()
}
