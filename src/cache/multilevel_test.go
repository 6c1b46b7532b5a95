package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_CapacityNeverExceeded(t *testing.T) {
	cache := NewLRUCache(5, time.Hour)

	for i := 0; i < 20; i++ {
		cache.Set(HashKey(string(rune('a'+i))), i)
		if cache.Len() > 5 {
			t.Fatalf("capacity exceeded after insert %d: len=%d", i, cache.Len())
		}
	}
	if cache.Len() != 5 {
		t.Errorf("expected 5 entries, got %d", cache.Len())
	}
}

func TestMultiLevelCache_Tier1Only(t *testing.T) {
	c := NewMultiLevelCache(10, time.Hour, nil)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set(ctx, "k", "v")
	if v, ok := c.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("expected v, got %q (ok=%v)", v, ok)
	}

	c.Delete(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMultiLevelCache_PromotesTier2Hits(t *testing.T) {
	tier2 := NewMemoryStore()
	ctx := context.Background()
	if err := tier2.Set(ctx, "k", "durable", time.Hour); err != nil {
		t.Fatalf("tier-2 set: %v", err)
	}

	c := NewMultiLevelCache(10, time.Hour, tier2)

	v, ok := c.Get(ctx, "k")
	if !ok || v != "durable" {
		t.Fatalf("expected tier-2 hit, got %q (ok=%v)", v, ok)
	}

	// The hit must now be served from tier 1 even if tier 2 loses the key.
	if err := tier2.Delete(ctx, "k"); err != nil {
		t.Fatalf("tier-2 delete: %v", err)
	}
	if v, ok := c.Get(ctx, "k"); !ok || v != "durable" {
		t.Errorf("expected promoted tier-1 hit, got %q (ok=%v)", v, ok)
	}
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("backend down")
}
func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("backend down")
}
func (failingStore) Delete(context.Context, string) error {
	return errors.New("backend down")
}

func TestMultiLevelCache_Tier2FailureIsNotFatal(t *testing.T) {
	c := NewMultiLevelCache(10, time.Hour, failingStore{})
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	if v, ok := c.Get(ctx, "k"); !ok || v != "v" {
		t.Errorf("tier-1 must serve despite tier-2 failures, got %q (ok=%v)", v, ok)
	}

	v, err := c.GetOrCompute(ctx, "k2", func(context.Context) (string, error) {
		return "computed", nil
	})
	if err != nil || v != "computed" {
		t.Errorf("GetOrCompute = %q, %v; want computed, nil", v, err)
	}
}

func TestMultiLevelCache_GetOrComputeMemoizes(t *testing.T) {
	c := NewMultiLevelCache(10, time.Hour, nil)
	ctx := context.Background()

	var calls atomic.Int64
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		return "result", nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrCompute(ctx, "k", fn)
		if err != nil || v != "result" {
			t.Fatalf("GetOrCompute = %q, %v", v, err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 computation, got %d", n)
	}
}

func TestMultiLevelCache_GetOrComputeDoesNotCacheErrors(t *testing.T) {
	c := NewMultiLevelCache(10, time.Hour, nil)
	ctx := context.Background()

	var calls atomic.Int64
	boom := errors.New("boom")
	fn := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "ok", nil
	}

	if _, err := c.GetOrCompute(ctx, "k", fn); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := c.GetOrCompute(ctx, "k", fn)
	if err != nil || v != "ok" {
		t.Errorf("retry after error = %q, %v; want ok, nil", v, err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 computations, got %d", n)
	}
}

func TestMultiLevelCache_SingleFlight(t *testing.T) {
	c := NewMultiLevelCache(10, time.Hour, nil)
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	fn := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]string, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err := c.GetOrCompute(ctx, "k", fn)
			if err != nil {
				t.Errorf("waiter %d: %v", idx, err)
			}
			results[idx] = v
		}(i)
	}

	// Let all waiters reach the in-flight call before it completes.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 computation across %d callers, got %d", waiters, n)
	}
	for i, v := range results {
		if v != "shared" {
			t.Errorf("waiter %d got %q", i, v)
		}
	}
}

func BenchmarkMultiLevelCache_GetOrComputeHit(b *testing.B) {
	c := NewMultiLevelCache(1000, time.Hour, nil)
	ctx := context.Background()
	fn := func(context.Context) (string, error) { return "v", nil }
	if _, err := c.GetOrCompute(ctx, "k", fn); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := c.GetOrCompute(ctx, "k", fn); err != nil {
				b.Fatal(err)
			}
		}
	})
}
