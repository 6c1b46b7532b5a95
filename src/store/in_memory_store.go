package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// InMemoryStore keeps messages in process memory. It backs tests and the
// CLI demo fixture; malformed messages are rejected at ingestion.
type InMemoryStore struct {
	mu       sync.RWMutex
	messages []model.Message
}

// NewInMemoryStore creates an empty in-memory message store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// StoreMessage ingests one message, keeping the slice timestamp-ordered.
func (s *InMemoryStore) StoreMessage(_ context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].TimestampUnix > msg.TimestampUnix
	})
	s.messages = append(s.messages, model.Message{})
	copy(s.messages[i+1:], s.messages[i:])
	s.messages[i] = msg
	return nil
}

// QueryMessages returns messages in [start, end] in ascending timestamp
// order, optionally filtered by author.
func (s *InMemoryStore) QueryMessages(_ context.Context, start, end time.Time, userFilter string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	for _, msg := range s.messages {
		ts := msg.TimestampUnix
		if ts < start.Unix() || ts > end.Unix() {
			continue
		}
		if userFilter != "" && msg.Author != userFilter {
			continue
		}
		out = append(out, msg)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Len reports the number of stored messages.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
