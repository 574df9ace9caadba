package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflict signals a uniqueness-constraint violation inside a Mutate
// transaction (e.g. a duplicate player name or a second HOST).
var ErrConflict = errors.New("store: conflict")

// ErrRetriable signals transient storage contention (a busy/locked SQLite
// database, or a lost optimistic-concurrency update) that the caller
// should retry.
var ErrRetriable = errors.New("store: retriable")

// ErrNotFound signals that a row a query expected to exist does not.
var ErrNotFound = errors.New("store: not found")

// classify maps a raw driver error to one of the sentinels above by
// inspecting modernc.org/sqlite's error text, since the driver does not
// expose structured error codes the way database/sql/driver ideally would.
// Errors that don't match any known transient/constraint pattern are
// returned unwrapped — callers should treat them as fatal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %s", ErrConflict, msg)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "SQLITE_BUSY"),
		strings.Contains(msg, "database table is locked"):
		return fmt.Errorf("%w: %s", ErrRetriable, msg)
	default:
		return err
	}
}
