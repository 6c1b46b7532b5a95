package store

import (
	"context"
	"errors"
	"time"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write operations.
type Neo4jAccessMode string

const (
	// AccessModeWrite opens a session with write access.
	AccessModeWrite Neo4jAccessMode = "write"
	// AccessModeRead opens a session with read access.
	AccessModeRead Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver capabilities used by the store. This
// allows tests to provide lightweight fakes without depending on the real
// driver package (which is guarded behind an optional build tag).
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// ErrNeo4jUnavailable is returned when operations are attempted without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// Neo4jStore implements MessageStore on a Neo4j graph, one node per message.
// Useful when the chat corpus already lives in a graph alongside other
// relationship data.
type Neo4jStore struct {
	driver   neo4jDriver
	database string
}

var _ MessageStore = (*Neo4jStore)(nil)

// NewNeo4jStore constructs a store over the provided driver.
func NewNeo4jStore(driver neo4jDriver, database string) (*Neo4jStore, error) {
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

// StoreMessage merges one message node by id.
func (ns *Neo4jStore) StoreMessage(ctx context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	session, err := ns.driver.NewSession(ctx, Neo4jSessionConfig{
		AccessMode:   AccessModeWrite,
		DatabaseName: ns.database,
	})
	if err != nil {
		return err
	}
	defer session.Close(ctx)

	res, err := session.Run(ctx, `
                MERGE (m:ChatMessage {id: $id})
                SET m.content = $content, m.author = $author,
                    m.group_id = $group_id, m.ts = $ts
        `, map[string]any{
		"id":       msg.ID,
		"content":  msg.Content,
		"author":   msg.Author,
		"group_id": msg.GroupID,
		"ts":       msg.TimestampUnix,
	})
	if err != nil {
		return err
	}
	defer res.Close(ctx)
	return res.Err()
}

// QueryMessages returns messages within [start, end] in ascending timestamp order.
func (ns *Neo4jStore) QueryMessages(ctx context.Context, start, end time.Time, userFilter string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	session, err := ns.driver.NewSession(ctx, Neo4jSessionConfig{
		AccessMode:   AccessModeRead,
		DatabaseName: ns.database,
	})
	if err != nil {
		return nil, err
	}
	defer session.Close(ctx)

	params := map[string]any{
		"start": start.Unix(),
		"end":   end.Unix(),
		"limit": limit,
	}
	query := `
                MATCH (m:ChatMessage)
                WHERE m.ts >= $start AND m.ts <= $end
        `
	if userFilter != "" {
		query += ` AND m.author = $author`
		params["author"] = userFilter
	}
	query += `
                RETURN m.id AS id, m.content AS content, m.author AS author,
                       m.group_id AS group_id, m.ts AS ts
                ORDER BY m.ts ASC
                LIMIT $limit
        `

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	defer res.Close(ctx)

	var msgs []model.Message
	for res.Next(ctx) {
		rec := res.Record()
		if rec == nil {
			continue
		}
		msgs = append(msgs, model.Message{
			ID:            stringValue(rec, "id"),
			Content:       stringValue(rec, "content"),
			Author:        stringValue(rec, "author"),
			GroupID:       stringValue(rec, "group_id"),
			TimestampUnix: intValue(rec, "ts"),
		})
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Close releases the underlying driver.
func (ns *Neo4jStore) Close(ctx context.Context) error {
	if ns == nil || ns.driver == nil {
		return nil
	}
	return ns.driver.Close(ctx)
}

func stringValue(rec neo4jRecord, key string) string {
	v, ok := rec.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(rec neo4jRecord, key string) int64 {
	v, ok := rec.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
