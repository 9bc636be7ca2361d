package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS kepler_runs (
	id            UUID PRIMARY KEY,
	source_id     TEXT NOT NULL DEFAULT '',
	success       BOOLEAN NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	insight       JSONB,
	raw_response  TEXT NOT NULL DEFAULT '',
	metadata      JSONB,
	error         TEXT NOT NULL DEFAULT '',
	warnings      TEXT[] NOT NULL DEFAULT '{}',
	source_counts JSONB NOT NULL DEFAULT '{}',
	verdict       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS kepler_runs_created_at_idx ON kepler_runs (created_at DESC);
CREATE INDEX IF NOT EXISTS kepler_runs_source_idx ON kepler_runs (source_id, created_at DESC);
`

// EnsureSchema creates the runs table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
