package application

import (
	"context"
	"time"
)

const retryDelay = 500 * time.Millisecond

// networkRetry runs fn and re-attempts it at most retries more times.
// Only transient network operations go through here; credential failures
// are never retried by callers.
func networkRetry(ctx context.Context, retries int, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		if err = fn(ctx); err == nil {
			return nil
		}
	}

	return err
}
