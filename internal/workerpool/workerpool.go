// Package workerpool sizes and runs the CPU-bound worker pool that
// executes hashing, Merkle construction, compression, and chunking —
// the operations the concurrency model requires not to suspend. I/O
// (network, chunk store, index) takes the cooperative-async path
// instead and never goes through this pool.
package workerpool

import (
	"context"
	"os"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// Size returns the configured worker count: TALARIA_THREADS if set to
// a positive integer, otherwise the number of available CPUs.
func Size() int {
	if v := os.Getenv("TALARIA_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}

// Run executes fn once per item in items, with at most Size() running
// concurrently, and returns the first error encountered (subsequent
// work is cancelled via ctx).
func Run[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Size())
	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}
