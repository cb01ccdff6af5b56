// Package retry runs an operation a bounded number of times with a delay
// between attempts, honouring context cancellation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy bounds a retry loop. Attempts counts the first call: Attempts 3
// means one call plus two retries.
type Policy struct {
	Attempts int
	Delay    time.Duration
	// Backoff doubles Delay after each failed attempt when set.
	Backoff bool
	// Stop, when non-nil, reports errors that must not be retried.
	Stop func(error) bool
	// OnRetry is called before sleeping, with the 1-based attempt that
	// just failed.
	OnRetry func(attempt int, err error)
}

// Do calls fn until it succeeds, the policy is exhausted, Stop matches, or
// ctx is done. It returns the last error from fn.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := p.Delay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || (p.Stop != nil && p.Stop(err)) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := Sleep(ctx, wait); err != nil {
			return errors.Join(lastErr, err)
		}
		if p.Backoff {
			wait *= 2
		}
	}
	return lastErr
}

// Sleep waits for d or until ctx is done. A non-positive d returns at once.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("retry: sleep interrupted: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
