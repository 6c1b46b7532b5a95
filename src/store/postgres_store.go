package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Protocol-Lattice/go-recap/src/model"
)

// PostgresStore implements MessageStore on a Postgres table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed MessageStore.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// CreateSchema creates the messages table and its range index if missing.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
                CREATE TABLE IF NOT EXISTS chat_messages (
                        id        TEXT PRIMARY KEY,
                        content   TEXT NOT NULL,
                        author    TEXT NOT NULL,
                        group_id  TEXT NOT NULL DEFAULT '',
                        ts        BIGINT NOT NULL
                );
                CREATE INDEX IF NOT EXISTS chat_messages_ts_idx ON chat_messages (ts);
        `)
	return err
}

// StoreMessage inserts one message; duplicates by id are ignored.
func (ps *PostgresStore) StoreMessage(ctx context.Context, msg model.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
                INSERT INTO chat_messages (id, content, author, group_id, ts)
                VALUES ($1, $2, $3, $4, $5)
                ON CONFLICT (id) DO NOTHING;
        `, msg.ID, msg.Content, msg.Author, msg.GroupID, msg.TimestampUnix)
	return err
}

// QueryMessages returns messages within [start, end] in ascending timestamp order.
func (ps *PostgresStore) QueryMessages(ctx context.Context, start, end time.Time, userFilter string, limit int) ([]model.Message, error) {
	if ps == nil || ps.DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	query := `
                SELECT id, content, author, group_id, ts
                FROM chat_messages
                WHERE ts >= $1 AND ts <= $2
        `
	args := []any{start.Unix(), end.Unix()}
	if userFilter != "" {
		query += ` AND author = $3`
		args = append(args, userFilter)
	}
	query += fmt.Sprintf(` ORDER BY ts ASC LIMIT %d;`, limit)

	rows, err := ps.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.Content, &m.Author, &m.GroupID, &m.TimestampUnix); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}
