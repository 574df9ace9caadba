package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx is a single BEGIN IMMEDIATE transaction against the store. It
// implements querier by delegating to its connection, so every query
// helper in queries.go works unchanged whether called through a Tx or
// directly through the Store.
type Tx struct {
	conn *sql.Conn
}

var _ querier = (*sql.Conn)(nil)

// ExecContext, QueryContext, and QueryRowContext satisfy querier by
// delegating to the held connection, so Tx can be passed anywhere a
// querier is expected.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.conn.ExecContext(ctx, query, args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.conn.QueryContext(ctx, query, args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.conn.QueryRowContext(ctx, query, args...)
}

// Mutate runs fn inside a serialized write transaction. It issues BEGIN
// IMMEDIATE (rather than relying on database/sql's BeginTx, which does not
// expose SQLite's begin modes) so the write lock is acquired up front:
// every Mutate call either blocks briefly behind another writer or fails
// fast with ErrRetriable, instead of racing to upgrade a deferred
// transaction and deadlocking against itself the way bare BEGIN would
// under concurrent writers.
//
// fn's error, if any, is returned as is (the query helpers classify their
// own driver errors); the transaction is
// rolled back on any error (including a panic, which is re-raised after
// rollback) and committed otherwise.
func (s *Store) Mutate(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return classify(err)
	}

	tx := &Tx{conn: conn}

	defer func() {
		if p := recover(); p != nil {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		_, rbErr := conn.ExecContext(ctx, "ROLLBACK")
		if rbErr != nil {
			return fmt.Errorf("mutate failed (%w) and rollback failed: %v", err, rbErr)
		}
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return classify(err)
	}
	return nil
}

// errNoRows normalizes sql.ErrNoRows to the package's own ErrNotFound so
// callers never need to import database/sql just to check for it.
func errNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return classify(err)
}
