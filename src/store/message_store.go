package store

import (
	"context"
	"time"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// MessageStore supplies the raw message stream for a time window. Messages
// are returned in ascending timestamp order; callers never re-sort. A limit
// of 0 means the store's own default.
type MessageStore interface {
	QueryMessages(ctx context.Context, start, end time.Time, userFilter string, limit int) ([]model.Message, error)
}

// Ingestor is implemented by stores that accept new messages.
type Ingestor interface {
	StoreMessage(ctx context.Context, msg model.Message) error
}

// DefaultQueryLimit caps a single window query when the caller does not.
const DefaultQueryLimit = 1000
