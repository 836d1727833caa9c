// Package builder produces the built artifact for one platform. The
// actual compilation is delegated to an opaque Toolchain capability; this
// package's responsibility is wiring (deciding which declared
// dependencies the toolchain sees, and in what role) plus content-hash
// caching of results.
package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomworks/loom/internal/canon"
	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/platform"
	"github.com/loomworks/loom/internal/resolver"
	"github.com/loomworks/loom/internal/store"
)

// Artifact is the result of one build: a directory owned exclusively by
// the pipeline that produced it. Immutable once returned; the wrapper
// constructs a new entry point rather than patching it.
type Artifact struct {
	Platform       platform.Platform
	RootPath       string
	ExecutablePath string

	// BuildKey is the content hash the artifact was cached under.
	BuildKey string

	// Cached reports whether the artifact came from the store rather
	// than a fresh toolchain run.
	Cached bool
}

// Request is everything the toolchain capability receives. BuildInputs
// carries the full declared set in declaration order, native tools and
// runtime-linked libraries both, while LinkDirs carries the runtime
// subset's library directories so the linker can discover them even
// though they are not native tools.
type Request struct {
	SourceRoot  string
	SourceName  string
	Platform    platform.Platform
	BuildInputs []manifest.Dependency
	LinkDirs    []string
	Command     []string
	Executable  string
	OutDir      string
}

// Result is the toolchain's successful output.
type Result struct {
	RootPath       string
	ExecutablePath string
	Log            string
}

// Toolchain is the opaque compilation capability. Build is synchronous
// and may be long-running; cancellation is the caller's concern via ctx.
type Toolchain interface {
	Build(ctx context.Context, req Request) (Result, error)
}

// Failure wraps a toolchain error for one platform. The diagnostic output
// is carried verbatim; the failure is a deterministic function of the
// resolved inputs, so it is never retried.
type Failure struct {
	Platform    platform.Platform
	Package     string
	Diagnostics string
	Err         error
}

func (e *Failure) Error() string {
	if e.Diagnostics != "" {
		return fmt.Sprintf("BUILD_FAILURE: package %q on %s: %v\n%s", e.Package, e.Platform, e.Err, e.Diagnostics)
	}
	return fmt.Sprintf("BUILD_FAILURE: package %q on %s: %v", e.Package, e.Platform, e.Err)
}

func (e *Failure) Unwrap() error { return e.Err }

// Builder wires resolved inputs and the declared input set into toolchain
// requests, consulting the store cache first when one is attached.
type Builder struct {
	toolchain Toolchain
	cache     *store.Store // optional
	outRoot   string
}

// New creates a Builder. cache may be nil to disable result caching.
// outRoot is the directory artifacts are placed under, one subdirectory
// per (platform, build key).
func New(toolchain Toolchain, cache *store.Store, outRoot string) *Builder {
	return &Builder{toolchain: toolchain, cache: cache, outRoot: outRoot}
}

// Build produces the artifact for m's app on platform p.
//
// Wiring rules:
//   - the source root is the resolved content of the app's source input;
//   - non-buildable inputs are invisible here;
//   - BuildInputs is the full declared set in declaration order;
//   - LinkDirs is the runtime-linked subset's library directories for p,
//     in declaration order, so runtime-only libraries are still
//     discoverable by the linker at build time.
func (b *Builder) Build(ctx context.Context, resolved map[string]resolver.ResolvedInput, m *manifest.Manifest, p platform.Platform) (Artifact, error) {
	src, ok := resolved[m.App.Source]
	if !ok {
		return Artifact{}, &Failure{
			Platform: p,
			Package:  m.App.Name,
			Err:      fmt.Errorf("source input %q was not resolved", m.App.Source),
		}
	}

	key, err := buildKey(src.Revision, m, p)
	if err != nil {
		return Artifact{}, &Failure{Platform: p, Package: m.App.Name, Err: err}
	}

	if b.cache != nil {
		rec, err := b.cache.LookupBuild(ctx, key)
		if err == nil && rec != nil {
			return Artifact{
				Platform:       p,
				RootPath:       rec.RootPath,
				ExecutablePath: rec.Executable,
				BuildKey:       key,
				Cached:         true,
			}, nil
		}
	}

	linkDirs := make([]string, 0)
	for _, d := range m.RuntimeDeps() {
		if dir, ok := d.LibDirs[p]; ok && dir != "" {
			linkDirs = append(linkDirs, dir)
		}
	}

	req := Request{
		SourceRoot:  src.ContentRoot,
		SourceName:  m.App.Source,
		Platform:    p,
		BuildInputs: m.Deps,
		LinkDirs:    linkDirs,
		Command:     m.App.Build.Command,
		Executable:  m.App.Build.Executable,
		OutDir:      b.outDir(p, key),
	}

	result, err := b.toolchain.Build(ctx, req)
	if err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return Artifact{}, f
		}
		return Artifact{}, &Failure{
			Platform:    p,
			Package:     m.App.Name,
			Diagnostics: result.Log,
			Err:         err,
		}
	}

	artifact := Artifact{
		Platform:       p,
		RootPath:       result.RootPath,
		ExecutablePath: result.ExecutablePath,
		BuildKey:       key,
	}

	if b.cache != nil {
		rec := store.BuildRecord{
			BuildKey:   key,
			Platform:   p,
			RootPath:   artifact.RootPath,
			Executable: artifact.ExecutablePath,
		}
		if err := b.cache.RecordBuild(ctx, rec); err != nil {
			// Cache write failures do not fail the build; the artifact
			// is already on disk.
			return artifact, nil
		}
	}
	return artifact, nil
}

func (b *Builder) outDir(p platform.Platform, key string) string {
	// Key is "sha256:<hex>"; the directory name uses a short prefix.
	short := key
	if len(short) > 19 {
		short = short[7:19]
	}
	return fmt.Sprintf("%s/%s-%s", b.outRoot, p, short)
}

// buildKey hashes everything that determines the build output.
func buildKey(sourceRevision string, m *manifest.Manifest, p platform.Platform) (string, error) {
	inputs := make([]any, 0, len(m.Deps))
	for _, d := range m.Deps {
		entry := map[string]any{
			"name":    d.Name,
			"runtime": d.Runtime,
		}
		if dir, ok := d.LibDirs[p]; ok {
			entry["libDir"] = dir
		}
		inputs = append(inputs, entry)
	}

	cmd := make([]any, len(m.App.Build.Command))
	for i, c := range m.App.Build.Command {
		cmd[i] = c
	}

	return canon.Hash(canon.DomainBuildKey, map[string]any{
		"source":     sourceRevision,
		"inputs":     inputs,
		"platform":   string(p),
		"command":    cmd,
		"executable": m.App.Build.Executable,
	})
}
