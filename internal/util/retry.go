package util

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. Attempts are spaced by an exponential backoff doubling from
// baseDelay; the error from the final attempt is returned. Callers that can
// tell permanent failures apart (see the fetch error taxonomy) should stop
// retrying from inside fn.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}
