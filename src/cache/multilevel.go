package cache

import (
	"context"
	"log"
	"sync"
	"time"
)

// Store is the durable second tier, typically an external key-value store
// with its own TTL handling (Postgres, MongoDB). Implementations must be
// safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MultiLevelCache layers a bounded in-memory LRU over an optional durable
// store. Reads promote tier-2 hits into tier 1; writes go to both tiers,
// with tier-2 failures logged but never fatal: durability is best-effort,
// intra-process correctness is guaranteed by tier 1 alone.
type MultiLevelCache struct {
	memory *LRUCache
	store  Store
	ttl    time.Duration

	mu       sync.Mutex
	inflight map[string]*call
}

type call struct {
	wg    sync.WaitGroup
	value string
	err   error
}

// NewMultiLevelCache builds a cache with the given tier-1 capacity and the
// TTL applied to tier-2 writes. store may be nil for tier-1-only operation.
func NewMultiLevelCache(capacity int, ttl time.Duration, store Store) *MultiLevelCache {
	return &MultiLevelCache{
		memory:   NewLRUCache(capacity, ttl),
		store:    store,
		ttl:      ttl,
		inflight: make(map[string]*call),
	}
}

// Get looks up key in tier 1, then tier 2. A tier-2 hit is promoted into
// tier 1 before returning. Tier-2 errors degrade to a miss.
func (c *MultiLevelCache) Get(ctx context.Context, key string) (string, bool) {
	if v, ok := c.memory.Get(key); ok {
		if s, ok := v.(string); ok {
			return s, true
		}
	}

	if c.store == nil {
		return "", false
	}

	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		log.Printf("cache: tier-2 get %s: %v", key, err)
		return "", false
	}
	if !ok {
		return "", false
	}

	c.memory.Set(key, v)
	return v, true
}

// Set writes the value to both tiers. A tier-2 failure is logged and does
// not fail the call.
func (c *MultiLevelCache) Set(ctx context.Context, key, value string) {
	c.memory.Set(key, value)

	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		log.Printf("cache: tier-2 set %s: %v", key, err)
	}
}

// Delete removes the key from both tiers.
func (c *MultiLevelCache) Delete(ctx context.Context, key string) {
	c.memory.Delete(key)

	if c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		log.Printf("cache: tier-2 delete %s: %v", key, err)
	}
}

// Len reports the number of tier-1 entries.
func (c *MultiLevelCache) Len() int {
	return c.memory.Len()
}

// GetOrCompute returns the cached value for key, or runs fn exactly once to
// produce it. Concurrent callers for the same uncached key share a single
// in-flight computation instead of each invoking fn. A successful result is
// written to both tiers before being handed to waiters; fn errors are not
// cached, so a later caller retries.
func (c *MultiLevelCache) GetOrCompute(ctx context.Context, key string, fn func(context.Context) (string, error)) (string, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	c.mu.Lock()
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		existing.wg.Wait()
		return existing.value, existing.err
	}
	cl := &call{}
	cl.wg.Add(1)
	c.inflight[key] = cl
	c.mu.Unlock()

	// Re-check under single-flight ownership: another caller may have
	// completed and populated the cache between our miss and registration.
	if v, ok := c.Get(ctx, key); ok {
		cl.value = v
	} else {
		cl.value, cl.err = fn(ctx)
		if cl.err == nil {
			c.Set(ctx, key, cl.value)
		}
	}

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	cl.wg.Done()

	return cl.value, cl.err
}
