package simulation

import (
	"context"
	"time"
)

// retryBatch retries a sink call with exponential backoff at day-batch
// granularity. Every error is considered retryable here: the sinks are
// external collaborators and the engine cannot classify their failures.
// Exhausting the attempts surfaces the last error; in-memory state is
// untouched either way.
func retryBatch(ctx context.Context, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return lastErr
		}
	}

	return lastErr
}
