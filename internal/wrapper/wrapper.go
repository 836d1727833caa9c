// Package wrapper generates the runnable launcher for a built artifact: a
// small shell entry point that injects the runtime closure into the
// loader's search path and then execs the untouched original executable.
//
// The launcher is a new artifact written alongside the original. Wrapping
// never modifies the built executable, and re-wrapping the same
// (artifact, closure) pair produces byte-identical output.
package wrapper

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loomworks/loom/internal/builder"
	"github.com/loomworks/loom/internal/closure"
)

// Launcher is the wrapped entry point.
type Launcher struct {
	Artifact builder.Artifact

	// Path is the launcher script's location, next to the original
	// executable with a "-wrapped" suffix.
	Path string

	// EnvOverrides records the variables the launcher sets. The
	// search-path entry holds the serialized closure; at run time the
	// script prepends it to any inbound value instead of overwriting.
	EnvOverrides map[string]string
}

// FailureError reports that the launcher could not be written.
type FailureError struct {
	Path string
	Err  error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("WRAP_FAILURE: writing launcher %s: %v", e.Path, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Wrap writes the launcher for artifact with the given closure.
//
// Idempotent: if the launcher already exists with identical content it is
// left alone, so repeated wrapping cannot churn mtimes or bytes.
func Wrap(artifact builder.Artifact, cl *closure.Closure) (*Launcher, error) {
	dir := filepath.Dir(artifact.ExecutablePath)
	base := filepath.Base(artifact.ExecutablePath)
	path := filepath.Join(dir, base+"-wrapped")

	content := Script(artifact.ExecutablePath, cl)

	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return newLauncher(artifact, path, cl), nil
	}

	if err := os.WriteFile(path, content, 0o755); err != nil {
		return nil, &FailureError{Path: path, Err: err}
	}
	return newLauncher(artifact, path, cl), nil
}

func newLauncher(artifact builder.Artifact, path string, cl *closure.Closure) *Launcher {
	env := map[string]string{}
	if !cl.Empty() {
		env[cl.SearchPathVar()] = cl.Serialize()
	}
	return &Launcher{Artifact: artifact, Path: path, EnvOverrides: env}
}

// Script renders the launcher's exact bytes. Deterministic in
// (executable, closure); exposed so tests and previews can inspect the
// output without touching the filesystem.
func Script(executable string, cl *closure.Closure) []byte {
	var b bytes.Buffer
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Generated launcher. The wrapped executable is not modified.\n")
	if !cl.Empty() {
		v := cl.SearchPathVar()
		// VAR=<closure>${VAR:+:$VAR} prepends the closure while keeping
		// any inbound value and its entry order intact.
		fmt.Fprintf(&b, "%s=%s\"${%s:+:$%s}\"\n", v, shellQuote(cl.Serialize()), v, v)
		fmt.Fprintf(&b, "export %s\n", v)
	}
	fmt.Fprintf(&b, "exec %s \"$@\"\n", shellQuote(executable))
	return b.Bytes()
}

// shellQuote single-quotes s for POSIX sh, escaping embedded quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
