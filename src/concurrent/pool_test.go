package concurrent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestParallelMap_AlignedResults(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results, errs := ParallelMap(context.Background(), items, func(_ context.Context, n int) (string, error) {
		return fmt.Sprintf("r%d", n), nil
	}, 2)

	if len(results) != len(items) || len(errs) != len(items) {
		t.Fatalf("lengths = %d, %d; want %d", len(results), len(errs), len(items))
	}
	for i, n := range items {
		if errs[i] != nil {
			t.Errorf("item %d: unexpected error %v", i, errs[i])
		}
		if want := fmt.Sprintf("r%d", n); results[i] != want {
			t.Errorf("item %d: got %q, want %q", i, results[i], want)
		}
	}
}

func TestParallelMap_PartialFailure(t *testing.T) {
	boom := errors.New("boom")
	items := []int{1, 2, 3}
	results, errs := ParallelMap(context.Background(), items, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n * 10, nil
	}, 3)

	if errs[0] != nil || errs[2] != nil {
		t.Errorf("healthy items errored: %v, %v", errs[0], errs[2])
	}
	if !errors.Is(errs[1], boom) {
		t.Errorf("expected boom at index 1, got %v", errs[1])
	}
	if results[0] != 10 || results[2] != 30 {
		t.Errorf("healthy results = %d, %d; want 10, 30", results[0], results[2])
	}
}

func TestParallelMap_RespectsConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int64
	items := make([]int, 20)

	ParallelMap(context.Background(), items, func(_ context.Context, _ int) (struct{}, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return struct{}{}, nil
	}, 3)

	if p := peak.Load(); p > 3 {
		t.Errorf("concurrency peaked at %d, bound is 3", p)
	}
}

func TestParallelMap_EmptyInput(t *testing.T) {
	results, errs := ParallelMap(context.Background(), nil, func(_ context.Context, _ int) (int, error) {
		t.Error("fn must not run for empty input")
		return 0, nil
	}, 4)
	if results != nil || errs != nil {
		t.Errorf("expected nil slices for empty input")
	}
}

func TestParallelForEach_FirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ParallelForEach(context.Background(), []int{1, 2, 3}, func(_ context.Context, n int) error {
		if n == 3 {
			return boom
		}
		return nil
	}, 2)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestWorkerPool_CancelledContext(t *testing.T) {
	wp := NewWorkerPool(1)
	ctx, cancel := context.WithCancel(context.Background())

	release := make(chan struct{})
	go wp.Do(context.Background(), func() error {
		<-release
		return nil
	})
	// Give the first task the only slot.
	time.Sleep(10 * time.Millisecond)
	cancel()

	err := wp.Do(ctx, func() error { return nil })
	close(release)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
