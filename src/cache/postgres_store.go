package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a Postgres table. Expiry is enforced on
// read; a periodic purge keeps the table from growing unbounded.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and returns a Postgres-backed Store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// CreateSchema creates the cache table if it does not exist.
func (ps *PostgresStore) CreateSchema(ctx context.Context) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `
                CREATE TABLE IF NOT EXISTS summary_cache (
                        key        TEXT PRIMARY KEY,
                        value      TEXT NOT NULL,
                        inserted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
                        expires_at TIMESTAMPTZ
                );
        `)
	return err
}

func (ps *PostgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	if ps == nil || ps.DB == nil {
		return "", false, nil
	}
	var value string
	err := ps.DB.QueryRow(ctx, `
                SELECT value FROM summary_cache
                WHERE key = $1 AND (expires_at IS NULL OR expires_at > now());
        `, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (ps *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	_, err := ps.DB.Exec(ctx, `
                INSERT INTO summary_cache (key, value, inserted_at, expires_at)
                VALUES ($1, $2, now(), $3)
                ON CONFLICT (key) DO UPDATE
                SET value = EXCLUDED.value, inserted_at = now(), expires_at = EXCLUDED.expires_at;
        `, key, value, expires)
	return err
}

func (ps *PostgresStore) Delete(ctx context.Context, key string) error {
	if ps == nil || ps.DB == nil {
		return nil
	}
	_, err := ps.DB.Exec(ctx, `DELETE FROM summary_cache WHERE key = $1;`, key)
	return err
}

// Purge removes expired rows and returns how many were deleted.
func (ps *PostgresStore) Purge(ctx context.Context) (int64, error) {
	if ps == nil || ps.DB == nil {
		return 0, nil
	}
	tag, err := ps.DB.Exec(ctx, `DELETE FROM summary_cache WHERE expires_at IS NOT NULL AND expires_at <= now();`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (ps *PostgresStore) Close() {
	if ps != nil && ps.DB != nil {
		ps.DB.Close()
	}
}
