// Package testutil provides scripted fakes for pipeline tests: a
// controllable toolchain capability and manifest fixtures.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loomworks/loom/internal/builder"
	"github.com/loomworks/loom/internal/platform"
)

// FakeToolchain is a scripted builder.Toolchain. By default every build
// succeeds, producing a small marker executable under the request's
// OutDir. Individual platforms can be scripted to fail.
//
// Thread-safety: all methods are safe for concurrent use; the matrix
// fan-out builds platforms in parallel.
type FakeToolchain struct {
	mu sync.Mutex

	// failures maps platform → diagnostic output for scripted failures.
	failures map[platform.Platform]string

	// requests records every request received, in arrival order.
	requests []builder.Request
}

// NewFakeToolchain creates a FakeToolchain with no scripted failures.
func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{failures: map[platform.Platform]string{}}
}

// FailOn scripts a failure for p with the given diagnostic output.
func (f *FakeToolchain) FailOn(p platform.Platform, diagnostics string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[p] = diagnostics
}

// Requests returns a copy of all recorded requests.
func (f *FakeToolchain) Requests() []builder.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]builder.Request{}, f.requests...)
}

// Calls returns the number of builds attempted.
func (f *FakeToolchain) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// Build implements builder.Toolchain.
func (f *FakeToolchain) Build(ctx context.Context, req builder.Request) (builder.Result, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	diagnostics, fail := f.failures[req.Platform]
	f.mu.Unlock()

	if fail {
		return builder.Result{Log: diagnostics}, fmt.Errorf("scripted toolchain failure")
	}

	exe := filepath.Join(req.OutDir, req.Executable)
	if err := os.MkdirAll(filepath.Dir(exe), 0o755); err != nil {
		return builder.Result{}, err
	}
	content := fmt.Sprintf("#!/bin/sh\necho built-for-%s\n", req.Platform)
	if err := os.WriteFile(exe, []byte(content), 0o755); err != nil {
		return builder.Result{}, err
	}

	return builder.Result{RootPath: req.OutDir, ExecutablePath: exe}, nil
}
