// Package engine orchestrates the whole pipeline: manifest load, input
// resolution and lock maintenance, the per-platform build → closure →
// wrap chain, and the matrix fan-out across platforms.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/loomworks/loom/internal/builder"
	"github.com/loomworks/loom/internal/closure"
	"github.com/loomworks/loom/internal/lockfile"
	"github.com/loomworks/loom/internal/manifest"
	"github.com/loomworks/loom/internal/matrix"
	"github.com/loomworks/loom/internal/output"
	"github.com/loomworks/loom/internal/platform"
	"github.com/loomworks/loom/internal/resolver"
	"github.com/loomworks/loom/internal/store"
	"github.com/loomworks/loom/internal/wrapper"
)

// Engine ties the pipeline stages together for one project directory.
type Engine struct {
	dir       string
	settings  Settings
	m         *manifest.Manifest
	res       *resolver.Resolver
	toolchain builder.Toolchain

	// The cache store and builder are created on first use, not at Open:
	// rejecting a request (e.g. an unsupported platform) must leave the
	// filesystem untouched.
	initOnce sync.Once
	initErr  error
	cache    *store.Store // nil when caching is disabled
	bld      *builder.Builder
}

// Options configures engine construction.
type Options struct {
	// Toolchain overrides the default exec-based toolchain. Used by
	// tests to substitute a scripted capability.
	Toolchain builder.Toolchain

	// Settings overrides the values loaded from .loom.yaml when
	// non-zero. Primarily for flag plumbing.
	Settings *Settings
}

// Open loads the manifest and settings for dir and prepares the pipeline.
// Manifest problems are returned all at once.
func Open(dir string, opts Options) (*Engine, []error) {
	m, errs := manifest.Load(dir)
	if len(errs) > 0 {
		return nil, errs
	}

	settings, err := LoadSettings(dir)
	if err != nil {
		return nil, []error{err}
	}
	if opts.Settings != nil {
		settings = *opts.Settings
	}

	res, err := resolver.New(resolver.Options{Excludes: settings.Excludes})
	if err != nil {
		return nil, []error{err}
	}

	toolchain := opts.Toolchain
	if toolchain == nil {
		toolchain = &builder.ExecToolchain{}
	}

	return &Engine{
		dir:       dir,
		settings:  settings,
		m:         m,
		res:       res,
		toolchain: toolchain,
	}, nil
}

// init prepares the work directory, cache store, and builder. Runs once,
// the first time pipeline work is actually requested.
func (e *Engine) init() error {
	e.initOnce.Do(func() {
		workDir := e.settings.workDir(e.dir)
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			e.initErr = fmt.Errorf("creating work directory: %w", err)
			return
		}
		if !e.settings.NoCache {
			cache, err := store.Open(filepath.Join(workDir, "cache.db"))
			if err != nil {
				e.initErr = fmt.Errorf("opening cache store: %w", err)
				return
			}
			e.cache = cache
		}
		e.bld = builder.New(e.toolchain, e.cache, filepath.Join(workDir, "builds"))
	})
	return e.initErr
}

// Close releases the cache store.
func (e *Engine) Close() error {
	if e.cache == nil {
		return nil
	}
	return e.cache.Close()
}

// Manifest exposes the loaded manifest.
func (e *Engine) Manifest() *manifest.Manifest { return e.m }

// Resolve resolves every declared input and maintains the lock file:
// read at start, written only after a fully successful resolution, and
// only when the record actually changed.
func (e *Engine) Resolve(ctx context.Context) ([]resolver.ResolvedInput, error) {
	if err := e.init(); err != nil {
		return nil, err
	}
	prev, err := lockfile.Read(e.dir)
	if err != nil {
		return nil, err
	}

	resolved, err := e.res.Resolve(ctx, e.dir, e.m.Inputs)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		for _, ri := range resolved {
			if err := e.cache.RecordResolution(ctx, ri.Spec.Locator, ri.Revision); err != nil {
				slog.Debug("recording resolution", "input", ri.Spec.Name, "error", err)
			}
		}
	}

	if prev.Matches(resolved) {
		return resolved, nil
	}
	for _, change := range lockfile.Diff(prev, resolved) {
		slog.Info("lock change", "entry", change)
	}
	if err := lockfile.FromResolved(resolved).Write(e.dir); err != nil {
		return nil, err
	}
	return resolved, nil
}

// CheckPlatform rejects platforms outside the manifest's set before any
// pipeline work begins. An empty platform selects the host.
func (e *Engine) CheckPlatform(p platform.Platform) (platform.Platform, error) {
	if p == "" {
		host, err := platform.Host()
		if err != nil {
			return "", err
		}
		p = host
	}
	if !p.Known() {
		return "", platform.NewUnsupportedError(p)
	}
	if !e.m.SupportsPlatform(p) {
		return "", &platform.UnsupportedError{Requested: p, Supported: e.m.Platforms}
	}
	return p, nil
}

// BuildPlatform runs the full single-platform pipeline: resolve → build →
// closure → wrap → aggregate. The returned Set is complete for p.
func (e *Engine) BuildPlatform(ctx context.Context, p platform.Platform) (*output.Set, error) {
	p, err := e.CheckPlatform(p)
	if err != nil {
		return nil, err
	}
	resolved, err := e.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return e.pipeline(ctx, resolver.ByName(resolved), p)
}

// BuildAll resolves once, then fans the pipeline out over every manifest
// platform. Each platform's result is isolated; partial success is
// reported per entry rather than escalated.
func (e *Engine) BuildAll(ctx context.Context) ([]matrix.Result, error) {
	resolved, err := e.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	byName := resolver.ByName(resolved)

	return matrix.Expand(ctx, e.m.Platforms, e.settings.Workers, func(ctx context.Context, p platform.Platform) (*output.Set, error) {
		return e.pipeline(ctx, byName, p)
	})
}

// pipeline is the strict per-platform chain. byName is shared read-only
// across platforms; everything created here is owned by this platform's
// run alone.
func (e *Engine) pipeline(ctx context.Context, byName map[string]resolver.ResolvedInput, p platform.Platform) (*output.Set, error) {
	artifact, err := e.bld.Build(ctx, byName, e.m, p)
	if err != nil {
		return nil, err
	}

	cl, err := closure.Compute(e.m.Deps, p)
	if err != nil {
		return nil, err
	}

	launcher, err := wrapper.Wrap(artifact, cl)
	if err != nil {
		return nil, err
	}

	return output.Aggregate(p, artifact, launcher, e.m, cl), nil
}

// DevShell composes the developer-shell descriptor for p without
// building or wrapping anything. Inputs still resolve so the lock stays
// current and the closure is validated.
func (e *Engine) DevShell(ctx context.Context, p platform.Platform) (*output.DevShell, platform.Platform, error) {
	p, err := e.CheckPlatform(p)
	if err != nil {
		return nil, "", err
	}
	if _, err := e.Resolve(ctx); err != nil {
		return nil, "", err
	}

	cl, err := closure.Compute(e.m.Deps, p)
	if err != nil {
		return nil, "", err
	}

	env := map[string]string{}
	if !cl.Empty() {
		env[cl.SearchPathVar()] = cl.Serialize()
	}
	return &output.DevShell{
		BuildInputs: append([]manifest.Dependency{}, e.m.Deps...),
		Env:         env,
	}, p, nil
}
