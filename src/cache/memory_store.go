package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests and the demo CLI mode.
// It honors TTLs the way an external store would.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryStoreEntry
}

type memoryStoreEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process tier-2 store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryStoreEntry)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	ent, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", false, nil
	}
	return ent.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	ent := memoryStoreEntry{value: value}
	if ttl > 0 {
		ent.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = ent
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored keys, counting expired ones not yet purged.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
