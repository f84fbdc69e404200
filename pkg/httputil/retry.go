package httputil

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// maxRetryDelay caps the doubling delay between attempts.
const maxRetryDelay = 30 * time.Second

// RetryableError marks a transient failure. [Retry] repeats only operations
// failing with it; every other error ends the loop at once.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry calls fn up to attempts times, sleeping delay after the first
// retryable failure and doubling it (up to 30s) after each further one. It
// returns nil on the first success, the first non-retryable error, ctx.Err()
// when ctx ends while waiting, or the last error once attempts run out.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for i := range max(attempts, 1) {
		if i > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			delay = min(2*delay, maxRetryDelay)
		}
		if err = fn(); err == nil || !errors.As(err, new(*RetryableError)) {
			return err
		}
	}
	return err
}

// RetryableStatus reports whether a response status is worth another
// attempt: 408, 429 and every 5xx.
func RetryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
