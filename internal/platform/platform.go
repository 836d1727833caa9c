// Package platform defines the target platform identifiers the engine can
// build for, and the platform-specific conventions (runtime search-path
// variable, path-list separator) the rest of the pipeline depends on.
package platform

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies a target triple (architecture + OS). Values use the
// conventional "<arch>-<os>" spelling, e.g. "x86_64-linux".
//
// Platforms are opaque to everything downstream of this package: the
// pipeline is evaluated once per Platform and no data crosses Platform
// boundaries.
type Platform string

// The fixed default platform set. A manifest may restrict this further but
// can never extend it.
const (
	LinuxAmd64  Platform = "x86_64-linux"
	LinuxArm64  Platform = "aarch64-linux"
	DarwinAmd64 Platform = "x86_64-darwin"
	DarwinArm64 Platform = "aarch64-darwin"
)

// DefaultSet returns the fixed, ordered set of supported platforms.
// The returned slice is a fresh copy; callers may mutate it.
func DefaultSet() []Platform {
	return []Platform{LinuxAmd64, LinuxArm64, DarwinAmd64, DarwinArm64}
}

// Host returns the Platform matching the current process, or an
// UnsupportedError if the host is outside the default set.
func Host() (Platform, error) {
	arch, ok := map[string]string{
		"amd64": "x86_64",
		"arm64": "aarch64",
	}[runtime.GOARCH]
	if !ok {
		return "", NewUnsupportedError(Platform(runtime.GOARCH + "-" + runtime.GOOS))
	}
	p := Platform(arch + "-" + runtime.GOOS)
	if !p.Known() {
		return "", NewUnsupportedError(p)
	}
	return p, nil
}

// Known reports whether p is a member of the fixed default set.
func (p Platform) Known() bool {
	for _, d := range DefaultSet() {
		if p == d {
			return true
		}
	}
	return false
}

// OS returns the operating-system component of the triple ("linux",
// "darwin"). Empty for malformed platforms.
func (p Platform) OS() string {
	_, os, ok := strings.Cut(string(p), "-")
	if !ok {
		return ""
	}
	return os
}

// Arch returns the architecture component of the triple.
func (p Platform) Arch() string {
	arch, _, _ := strings.Cut(string(p), "-")
	return arch
}

// SearchPathVar returns the name of the environment variable the dynamic
// loader consults for extra library directories on this platform.
//
// DYLD_FALLBACK_LIBRARY_PATH is used on darwin rather than
// DYLD_LIBRARY_PATH so the closure augments, rather than shadows, install
// names baked into the binary.
func (p Platform) SearchPathVar() string {
	if p.OS() == "darwin" {
		return "DYLD_FALLBACK_LIBRARY_PATH"
	}
	return "LD_LIBRARY_PATH"
}

// ListSeparator returns the separator used to join search-path entries on
// this platform. All supported platforms are POSIX.
func (p Platform) ListSeparator() string {
	return ":"
}

// UnsupportedError is returned when a caller requests a platform outside
// the supported set. It is raised before any pipeline work begins.
type UnsupportedError struct {
	Requested Platform
	Supported []Platform
}

// NewUnsupportedError creates an UnsupportedError against the default set.
func NewUnsupportedError(requested Platform) *UnsupportedError {
	return &UnsupportedError{Requested: requested, Supported: DefaultSet()}
}

// Error implements the error interface.
func (e *UnsupportedError) Error() string {
	names := make([]string, len(e.Supported))
	for i, p := range e.Supported {
		names[i] = string(p)
	}
	return fmt.Sprintf("UNSUPPORTED_PLATFORM: %q is not a supported platform (supported: %s)",
		e.Requested, strings.Join(names, ", "))
}
