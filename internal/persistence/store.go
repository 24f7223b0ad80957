// Package persistence is the narrow key-value contract from spec.md
// §4.7/§6, backed by PostgreSQL via database/sql + github.com/lib/pq.
// Grounded on the teacher's internal/platform/database/database.go
// (Open with a ping-timeout) and internal/app/storage/postgres/store_admin.go
// (one *Store wrapping *sql.DB, one file per concern, raw SQL with
// numbered placeholders, ON CONFLICT upserts). sql.ErrNoRows is this
// package's analogue of the spec's NotFound — callers (internal/manager)
// treat it as "nothing to restore," never as fatal.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/neuron-gateway/gateway/internal/persistence/migrations"
)

// Store wraps a PostgreSQL connection pool and implements the persister's
// key-value contract.
type Store struct {
	db *sql.DB
}

// Open establishes a PostgreSQL connection, verifies it with a ping, and
// applies the embedded schema migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// New wraps an already-open, already-migrated *sql.DB. Used by tests that
// manage their own connection lifecycle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
