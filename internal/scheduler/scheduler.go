// Package scheduler provides the concurrency model: multi-threaded
// parallelism for CPU-bound graph work (vector search, PPR,
// Leiden) and cooperative concurrency for I/O-bound stages (LLM calls,
// SPARQL writes), with cancellation propagated via context.Context.
package scheduler

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Scheduler bounds CPU-bound fan-out to a worker count (default
// GOMAXPROCS) while leaving I/O-bound work to the caller's own
// goroutines/errgroup, since those are bounded by provider connection
// pools rather than CPU count.
type Scheduler struct {
	workers int
}

// New creates a Scheduler. workers <= 0 defaults to runtime.GOMAXPROCS(0).
func New(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{workers: workers}
}

// Parallel runs fn(i) for i in [0,n) across the scheduler's worker budget,
// returning the first error encountered (others are still allowed to
// finish; the group's context is cancelled on first error). Used for
// CPU-bound fan-out: HNSW layer search, Leiden local moves, PPR seeds.
func (s *Scheduler) Parallel(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}

// Stage runs a set of independent I/O-bound closures (provider calls,
// remote store queries) concurrently, unconstrained by the CPU worker
// budget, returning on first error with remaining work cancelled via ctx.
func Stage(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
