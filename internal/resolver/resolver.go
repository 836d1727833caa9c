// Package resolver turns named input locators into content-addressed
// snapshots. Resolution happens once per invocation, upstream of the
// platform matrix: its output is shared read-only by every platform
// pipeline and is the source of the lock record.
package resolver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/loomworks/loom/internal/manifest"
)

// DefaultExcludes are tree-hash exclude patterns applied to every
// resolution in addition to any configured ones. They keep VCS metadata
// and common build output out of the revision.
var DefaultExcludes = []string{
	".git/**",
	".git",
	"target/**",
	"result",
	"*.lock.json",
}

// ResolvedInput is one input pinned to a concrete revision.
type ResolvedInput struct {
	Spec manifest.InputSpec

	// Revision is the content-addressed identity of the snapshot,
	// "sha256:<hex>". Two resolutions of unchanged content always agree.
	Revision string

	// ContentRoot is the local directory holding the snapshot. Machine
	// local; never recorded in the lock file.
	ContentRoot string
}

// UnresolvableError reports an input whose locator cannot be fetched or
// verified. It aborts resolution for all platforms.
type UnresolvableError struct {
	Name    string
	Locator string
	Err     error
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("UNRESOLVABLE_SOURCE: input %q (%s): %v", e.Name, e.Locator, e.Err)
}

func (e *UnresolvableError) Unwrap() error { return e.Err }

// Options configures a Resolver.
type Options struct {
	// Excludes are extra doublestar patterns (relative to each content
	// root) omitted from tree hashing.
	Excludes []string

	// CacheSize bounds the in-process memo of locator → ResolvedInput.
	// Zero means a default of 128.
	CacheSize int
}

// Resolver resolves input specs against the local filesystem. It memoizes
// by absolute locator within a process: re-resolving an unchanged locator
// is cheap and, by construction, yields the identical revision.
type Resolver struct {
	excludes []string
	memo     *lru.Cache[string, ResolvedInput]
}

// New creates a Resolver.
func New(opts Options) (*Resolver, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = 128
	}
	memo, err := lru.New[string, ResolvedInput](size)
	if err != nil {
		return nil, fmt.Errorf("resolver memo: %w", err)
	}
	return &Resolver{
		excludes: append(append([]string{}, DefaultExcludes...), opts.Excludes...),
		memo:     memo,
	}, nil
}

// Resolve resolves every spec in order. baseDir anchors relative locators
// (normally the manifest directory). The first unresolvable input aborts
// the whole resolution; partial results are never returned.
func (r *Resolver) Resolve(ctx context.Context, baseDir string, specs []manifest.InputSpec) ([]ResolvedInput, error) {
	resolved := make([]ResolvedInput, 0, len(specs))
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ri, err := r.resolveOne(baseDir, spec)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, ri)
	}
	return resolved, nil
}

// ByName indexes resolved inputs for pipeline consumption. The slice
// remains the ordered form used by the lock record.
func ByName(resolved []ResolvedInput) map[string]ResolvedInput {
	out := make(map[string]ResolvedInput, len(resolved))
	for _, ri := range resolved {
		out[ri.Spec.Name] = ri
	}
	return out
}

func (r *Resolver) resolveOne(baseDir string, spec manifest.InputSpec) (ResolvedInput, error) {
	root, err := r.locate(baseDir, spec.Locator)
	if err != nil {
		return ResolvedInput{}, &UnresolvableError{Name: spec.Name, Locator: spec.Locator, Err: err}
	}

	if cached, ok := r.memo.Get(root); ok {
		cached.Spec = spec
		return cached, nil
	}

	revision, err := hashTree(root, r.excludes)
	if err != nil {
		return ResolvedInput{}, &UnresolvableError{Name: spec.Name, Locator: spec.Locator, Err: err}
	}

	ri := ResolvedInput{Spec: spec, Revision: revision, ContentRoot: root}
	r.memo.Add(root, ri)
	return ri, nil
}

// locate maps a locator to an absolute content root. Supported forms:
//
//	path:<dir>  local directory, relative to baseDir unless absolute
//	<dir>       shorthand for path:<dir>
func (r *Resolver) locate(baseDir, locator string) (string, error) {
	path, ok := strings.CutPrefix(locator, "path:")
	if !ok {
		if strings.Contains(locator, ":") {
			return "", fmt.Errorf("unsupported locator scheme in %q", locator)
		}
		path = locator
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	return filepath.Abs(path)
}
