package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAdapter stores memory documents in PostgreSQL, one row per logical
// key.
type PostgresAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresAdapter(ctx context.Context, databaseURL string) (*PostgresAdapter, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresAdapter{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_documents (
			key TEXT PRIMARY KEY,
			doc BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_documents_updated ON memory_documents (updated_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (a *PostgresAdapter) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var doc []byte
	err := a.pool.QueryRow(ctx,
		`SELECT doc FROM memory_documents WHERE key=$1`, key,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document %q: %w", key, err)
	}
	return doc, true, nil
}

func (a *PostgresAdapter) Put(ctx context.Context, key string, doc []byte) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO memory_documents (key, doc, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET doc = EXCLUDED.doc, updated_at = EXCLUDED.updated_at`,
		key, doc, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("put document %q: %w", key, err)
	}
	return nil
}

func (a *PostgresAdapter) Delete(ctx context.Context, key string) error {
	if _, err := a.pool.Exec(ctx, `DELETE FROM memory_documents WHERE key=$1`, key); err != nil {
		return fmt.Errorf("delete document %q: %w", key, err)
	}
	return nil
}

func (a *PostgresAdapter) Close() error {
	a.pool.Close()
	return nil
}
