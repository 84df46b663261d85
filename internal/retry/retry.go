// internal/retry/retry.go
//
// Bounded retry with linear backoff for device operations. Only failures
// that declare themselves transient (network blips, device 5xx while a
// report is generating) are retried; protocol failures surface at once
// since re-running the same call cannot fix a missing token.
package retry

import (
	"context"
	"errors"
	"time"
)

// transient is implemented by error types whose failures may clear on a
// simple retry.
type transient interface {
	Transient() bool
}

// Transient reports whether any error in err's chain declares itself
// transient.
func Transient(err error) bool {
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}

// Do runs fn up to attempts+1 times, sleeping base*(1+attempt-index)
// between tries. The last error is returned verbatim, never wrapped.
// Attempts are strictly sequential. A context cancellation stops further
// attempts and returns the context error.
func Do(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	var last error
	for i := 0; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		last = fn()
		if last == nil {
			return nil
		}
		if !Transient(last) || i == attempts {
			return last
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(base + time.Duration(i)*base):
		}
	}
	return last
}
