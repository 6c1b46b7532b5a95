package concurrent

import (
	"context"
	"sync"
)

// WorkerPool manages a pool of workers for concurrent operations
type WorkerPool struct {
	maxWorkers int
	sem        chan struct{}
}

// NewWorkerPool creates a new worker pool with the specified max workers
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}
	return &WorkerPool{
		maxWorkers: maxWorkers,
		sem:        make(chan struct{}, maxWorkers),
	}
}

// Do executes a function with worker pool concurrency control
func (wp *WorkerPool) Do(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.sem <- struct{}{}:
		defer func() { <-wp.sem }()
		return fn()
	}
}

// ParallelMap executes fn on each item in parallel and returns results and
// errors aligned by index. Unlike a fail-fast map, every item is attempted;
// the caller decides what to do with partial failures. Cancellation marks
// unstarted items with ctx.Err() without abandoning in-flight work.
func ParallelMap[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), maxConcurrency int) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrency)

	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				errs[idx] = ctx.Err()
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
				results[idx], errs[idx] = fn(ctx, val)
			}
		}(i, item)
	}

	wg.Wait()

	return results, errs
}

// ParallelForEach executes fn on each item in parallel and returns the first
// error encountered, if any.
func ParallelForEach[T any](ctx context.Context, items []T, fn func(context.Context, T) error, maxConcurrency int) error {
	_, errs := ParallelMap(ctx, items, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	}, maxConcurrency)
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
