package rules

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/Wundero/shiritori/internal/store"
)

// maxRetries bounds how many times a Retriable mutation is retried before
// being surfaced to the caller as a retriable error.
const maxRetries = 3

// jitter picks a random backoff between 50 and 200ms, per the failure
// semantics: transient storage contention is retried internally up to 3
// times with 50-200ms jitter; nothing retries an Invalid result.
func jitter() time.Duration {
	return 50*time.Millisecond + time.Duration(rand.IntN(151))*time.Millisecond
}

// mutate runs fn inside a store transaction, retrying on ErrRetriable up
// to maxRetries times with jittered backoff, and translating the final
// error (if any) into a rules Error.
func (e *Engine) mutate(ctx context.Context, context_ string, fn func(ctx context.Context, tx *store.Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := e.store.Mutate(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		var ruleErr *Error
		if errors.As(err, &ruleErr) {
			// fn already produced a classified rules.Error (Invalid,
			// Conflict, Unauthorized, NotFound) — return it verbatim
			// rather than reclassifying it as storage-layer Fatal.
			return ruleErr
		}
		if !errors.Is(err, store.ErrRetriable) {
			return classifyStoreErr(err, context_)
		}
		if attempt == maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return classifyStoreErr(ctx.Err(), context_)
		case <-time.After(jitter()):
		}
	}
	return classifyStoreErr(lastErr, context_)
}
