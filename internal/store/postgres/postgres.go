// Package postgres implements the session store on PostgreSQL.
//
// State lives in a single aether_kv table (key text primary key, value
// text). Schema management uses golang-migrate with migrations embedded
// at compile time; Open runs pending migrations before returning.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aetherhq/aether/internal/store"
)

// Store persists key/value state in PostgreSQL.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to PostgreSQL, runs pending migrations and returns a
// ready Store.
//
// dsn is a pgx key=value connection string; migrateURL is the same
// database as a postgres:// URL (golang-migrate needs the URL form).
func Open(ctx context.Context, dsn, migrateURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := Migrate(migrateURL); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// New wraps an existing pool without running migrations.
// Used by tests that manage their own schema lifecycle.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Get returns the stored value for key.
// Returns store.ErrNotFound when the key has never been written.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if err := store.ValidateKey(key); err != nil {
		return "", err
	}

	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM aether_kv WHERE key = $1`, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("getting %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO aether_kv (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}

	s.logger.Debug("stored value", "key", key, "bytes", len(value))
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
