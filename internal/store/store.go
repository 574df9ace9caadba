// Package store is the Game State Store: persistence for Game,
// GameSettings, Player, GameWord, and Word, plus the atomic Mutate
// transaction wrapper the Rules Engine builds every operation on top of.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps a SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// configures it for this workload: WAL journaling so readers don't block
// the writer, a busy timeout so transient lock contention surfaces as a
// bounded wait rather than an immediate error, and foreign keys on.
//
// A single open connection is used deliberately: SQLite allows only one
// writer at a time, and this module's Mutate always takes the write lock
// up front (BEGIN IMMEDIATE), so pooling additional connections would only
// manufacture SQLITE_BUSY contention between them instead of funneling
// writers through Go's own queue.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema migration. It is idempotent
// (every statement is CREATE TABLE/INDEX IF NOT EXISTS).
func (s *Store) Migrate(ctx context.Context) error {
	data, err := migrations.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Conn, letting read/write
// query helpers run identically whether called outside a transaction
// (Store methods) or inside one (Tx methods, see tx.go).
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
