// Package lockfile reads and writes loom.lock.json, the only on-disk
// state the engine owns: the ordered record of input name → locator →
// revision produced by resolution.
//
// Lifecycle: read at the start of every invocation, written only after a
// fully successful resolution, and replaced atomically so a crash never
// leaves a partial lock. Output is byte-stable, so re-resolving unchanged
// sources rewrites identical bytes and the file stays quiet under diff.
package lockfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/resolver"
)

// Filename is the lock file's name within a project directory.
const Filename = "loom.lock.json"

// currentVersion is the lock format version. Bump on schema change.
const currentVersion = 1

// File is the parsed lock record. Inputs preserve manifest declaration
// order, which keeps the serialized form diffable.
type File struct {
	Version int     `json:"version"`
	Inputs  []Entry `json:"inputs"`
}

// Entry pins one named input. ContentRoot is deliberately absent: it is
// machine-local and would churn the file across hosts.
type Entry struct {
	Name      string `json:"name"`
	Locator   string `json:"locator"`
	Revision  string `json:"revision"`
	Buildable bool   `json:"buildable"`
}

// FromResolved builds the lock record for a completed resolution.
func FromResolved(resolved []resolver.ResolvedInput) *File {
	f := &File{Version: currentVersion, Inputs: make([]Entry, 0, len(resolved))}
	for _, ri := range resolved {
		f.Inputs = append(f.Inputs, Entry{
			Name:      ri.Spec.Name,
			Locator:   ri.Spec.Locator,
			Revision:  ri.Revision,
			Buildable: ri.Spec.Buildable,
		})
	}
	return f
}

// Read loads the lock file from dir. A missing file is not an error; it
// returns (nil, nil) and the caller resolves from scratch.
func Read(dir string) (*File, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	if f.Version != currentVersion {
		return nil, fmt.Errorf("unsupported lock file version %d (want %d)", f.Version, currentVersion)
	}
	return &f, nil
}

// Write serializes f and atomically replaces the lock file in dir: the
// bytes land in a temp file first and rename into place, so readers see
// either the old complete lock or the new complete lock, never a torn one.
func (f *File) Write(dir string) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, Filename)
	tmp, err := os.CreateTemp(dir, Filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp lock file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp lock file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing lock file: %w", err)
	}
	return nil
}

// Marshal returns the stable serialized form: two-space indent, ordered
// entries, trailing newline.
func (f *File) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling lock file: %w", err)
	}
	return append(data, '\n'), nil
}

// Entry returns the pinned entry for name, if present.
func (f *File) Entry(name string) (Entry, bool) {
	for _, e := range f.Inputs {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Matches reports whether the lock agrees with a fresh resolution of the
// given specs: same names in the same order, same locators, same
// revisions. A mismatch means an upstream source actually changed.
func (f *File) Matches(resolved []resolver.ResolvedInput) bool {
	if f == nil || len(f.Inputs) != len(resolved) {
		return false
	}
	for i, ri := range resolved {
		e := f.Inputs[i]
		if e.Name != ri.Spec.Name || e.Locator != ri.Spec.Locator || e.Revision != ri.Revision {
			return false
		}
	}
	return true
}

// Diff describes what changed between an old lock and a new resolution,
// for user-facing reporting.
func Diff(old *File, resolved []resolver.ResolvedInput) []string {
	var changes []string
	for _, ri := range resolved {
		prev, ok := entryLookup(old, ri.Spec.Name)
		switch {
		case !ok:
			changes = append(changes, fmt.Sprintf("+ %s %s", ri.Spec.Name, ri.Revision))
		case prev.Revision != ri.Revision:
			changes = append(changes, fmt.Sprintf("~ %s %s -> %s", ri.Spec.Name, prev.Revision, ri.Revision))
		}
	}
	if old != nil {
		byName := resolver.ByName(resolved)
		for _, e := range old.Inputs {
			if _, ok := byName[e.Name]; !ok {
				changes = append(changes, fmt.Sprintf("- %s", e.Name))
			}
		}
	}
	return changes
}

func entryLookup(f *File, name string) (Entry, bool) {
	if f == nil {
		return Entry{}, false
	}
	return f.Entry(name)
}

// SpecsMatch reports whether the lock's input list matches the manifest's
// declared specs by name and locator, ignoring revisions. A false result
// means the manifest changed shape and the lock needs a full rewrite.
func SpecsMatch(f *File, specs []manifest.InputSpec) bool {
	if f == nil || len(f.Inputs) != len(specs) {
		return false
	}
	for i, s := range specs {
		if f.Inputs[i].Name != s.Name || f.Inputs[i].Locator != s.Locator {
			return false
		}
	}
	return true
}
