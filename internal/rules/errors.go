// Package rules implements the authority over legal game-state
// transitions: join, leave, prepare-start, start, submit-turn,
// force-timeout, and winner lookup. Every public operation is atomic,
// built on a single internal/store.Mutate transaction.
package rules

import (
	"errors"
	"fmt"

	"github.com/Wundero/shiritori/internal/store"
)

// Kind classifies why an operation failed, mirroring the taxonomy callers
// (the command API, the turn driver) need to pick an HTTP-equivalent
// status and a retry policy.
type Kind string

const (
	// Invalid is a rule violation: wrong turn, bad word, game not
	// startable. Never retried.
	Invalid Kind = "invalid"
	// Conflict is a uniqueness violation: name taken, duplicate host.
	// Never retried automatically.
	Conflict Kind = "conflict"
	// Retriable is transient storage contention. The engine itself
	// retries this internally before it ever reaches a caller.
	Retriable Kind = "retriable"
	// Unauthorized is a missing or mismatched session key.
	Unauthorized Kind = "unauthorized"
	// NotFound is an unknown game or player.
	NotFound Kind = "not_found"
	// Fatal is storage unreachable or corrupt state. The turn driver
	// exits its loop without marking the game FINISHED on a Fatal
	// error, releasing task_id so a supervisor may restart it.
	Fatal Kind = "fatal"
)

// Error is the error type every rules operation returns on failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) *Error {
	return &Error{Kind: Invalid, Message: fmt.Sprintf(format, args...)}
}

func conflictf(format string, args ...any) *Error {
	return &Error{Kind: Conflict, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedf(format string, args ...any) *Error {
	return &Error{Kind: Unauthorized, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func fatalf(err error, format string, args ...any) *Error {
	return &Error{Kind: Fatal, Message: fmt.Sprintf(format, args...), Err: err}
}

// classifyStoreErr translates a store-level sentinel into a rules Error.
// store never imports rules (it would create a cycle: store is the
// lower layer); this is the one place the translation happens.
func classifyStoreErr(err error, context string) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, store.ErrConflict):
		return conflictf("%s: %v", context, err)
	case errors.Is(err, store.ErrRetriable):
		return &Error{Kind: Retriable, Message: context, Err: err}
	case errors.Is(err, store.ErrNotFound):
		return notFoundf("%s: %v", context, err)
	default:
		return fatalf(err, context)
	}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
