package cache

import (
	"container/list"
	"sync"
	"time"
)

// CacheEntry holds a cached value with expiration
type CacheEntry struct {
	Value      any
	InsertedAt time.Time
	ExpiresAt  time.Time
}

// LRUCache is the bounded in-process tier. It is thread-safe, evicts the
// least-recently-used entry under pressure, and expires entries by TTL.
// Capacity is a hard invariant: eviction happens before insertion, so the
// cache never holds more than capacity entries, even transiently.
type LRUCache struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
}

type entry struct {
	key   string
	value CacheEntry
}

// NewLRUCache creates a new LRU cache with the given capacity and TTL.
// A non-positive capacity defaults to 1; a non-positive TTL means no expiry.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a value from the cache. A hit marks the entry most recently used.
func (c *LRUCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false
	}

	ent := elem.Value.(*entry)

	if c.expired(ent.value) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return nil, false
	}

	c.lru.MoveToFront(elem)
	return ent.value.Value, true
}

// Set adds or updates a value in the cache.
func (c *LRUCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	ce := CacheEntry{Value: value, InsertedAt: now}
	if c.ttl > 0 {
		ce.ExpiresAt = now.Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*entry).value = ce
		return
	}

	// Evict before inserting so capacity is never exceeded.
	if c.lru.Len() >= c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*entry).key)
		}
	}

	elem := c.lru.PushFront(&entry{key: key, value: ce})
	c.items[key] = elem
}

// Delete removes a key from the cache if present.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.lru.Remove(elem)
		delete(c.items, key)
	}
}

// Clear removes all entries from the cache
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}

// Len returns the number of items in the cache
func (c *LRUCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

func (c *LRUCache) expired(ce CacheEntry) bool {
	return !ce.ExpiresAt.IsZero() && time.Now().After(ce.ExpiresAt)
}

// Dump returns a snapshot of live cache entries for persistence.
func (c *LRUCache) Dump() map[string]CacheEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dump := make(map[string]CacheEntry, len(c.items))
	for k, elem := range c.items {
		ent := elem.Value.(*entry)
		if c.expired(ent.value) {
			continue
		}
		dump[k] = ent.value
	}
	return dump
}

// Restore populates the cache from a map of entries, discarding expired ones
// and enforcing capacity.
func (c *LRUCache) Restore(dump map[string]CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Init()
	c.items = make(map[string]*list.Element, c.capacity)

	for k, v := range dump {
		if c.expired(v) {
			continue
		}
		if c.lru.Len() >= c.capacity {
			oldest := c.lru.Back()
			if oldest != nil {
				c.lru.Remove(oldest)
				delete(c.items, oldest.Value.(*entry).key)
			}
		}
		elem := c.lru.PushFront(&entry{key: k, value: v})
		c.items[k] = elem
	}
}
