// Package fetch defines the external market-data collaborator: a provider
// that returns daily OHLCV bars for a symbol and date range, and the error
// taxonomy callers use to decide whether a failure is worth retrying.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"marketlab/internal/domain"
)

// Fetcher retrieves daily bars from an external price feed.
type Fetcher interface {
	// FetchBars returns bars for symbol with dates in [start, end]. Failures
	// are either transient (network, rate limit - retryable) or permanent
	// (unknown symbol, malformed data - wrapped in PermanentError).
	FetchBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.PriceBar, error)

	// Name identifies the provider for logs.
	Name() string
}

// PermanentError marks a failure that retrying cannot fix, such as an
// invalid or delisted symbol.
type PermanentError struct {
	Err error
}

// Error implements the error interface.
func (e *PermanentError) Error() string { return e.Err.Error() }

// Unwrap returns the wrapped error.
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
