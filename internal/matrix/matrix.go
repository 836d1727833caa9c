// Package matrix fans the pipeline out over the platform set. Platforms
// are mutually independent: they share only the read-only resolution
// computed upstream, and one platform's failure never blocks another's
// success.
package matrix

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/loomworks/loom/internal/output"
	"github.com/loomworks/loom/internal/platform"
)

// Result is one platform's outcome: a Set or an error, never both.
type Result struct {
	Platform platform.Platform
	Set      *output.Set
	Err      error
}

// Pipeline evaluates one platform end to end.
type Pipeline func(ctx context.Context, p platform.Platform) (*output.Set, error)

// Expand runs pipeline once per platform on a bounded worker pool and
// returns results in the same order as platforms. Partial success is the
// expected shape: each entry carries its own error, and Expand itself
// fails only if the pool cannot be created.
func Expand(ctx context.Context, platforms []platform.Platform, workers int, pipeline Pipeline) ([]Result, error) {
	if workers <= 0 {
		workers = len(platforms)
	}
	if workers == 0 {
		return nil, nil
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("matrix worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]Result, len(platforms))
	var wg sync.WaitGroup
	for i, p := range platforms {
		i, p := i, p
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			set, err := pipeline(ctx, p)
			results[i] = Result{Platform: p, Set: set, Err: err}
		})
		if submitErr != nil {
			results[i] = Result{Platform: p, Err: fmt.Errorf("scheduling pipeline: %w", submitErr)}
			wg.Done()
		}
	}
	wg.Wait()

	return results, nil
}

// Failed returns the subset of results that carry errors, preserving
// order.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
