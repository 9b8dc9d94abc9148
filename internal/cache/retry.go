package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"payloadforge/internal/logging"
)

// maxBackoff caps a single retry delay.
const maxBackoff = 10 * time.Minute

// retryPolicy configures one network resolution.
type retryPolicy struct {
	Retries int           // attempts after the first
	Delay   time.Duration // delay before the first retry, doubling after
	Timeout time.Duration // per attempt
}

// ErrRetriesExhausted indicates all attempts failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

type fetchFunc func(ctx context.Context) ([]byte, error)

// withRetry runs fn up to 1+Retries times. Retry k (1-based) waits
// Delay*2^(k-1). Each attempt gets its own timeout.
func withRetry(ctx context.Context, p retryPolicy, operation string, fn fetchFunc) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= p.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			if attempt > 0 {
				logging.Network("retry succeeded for %s on attempt %d", operation, attempt+1)
			}
			return body, nil
		}

		lastErr = err
		logging.NetworkWarn("attempt %d/%d for %s failed: %v", attempt+1, p.Retries+1, operation, err)

		// Don't sleep after the last attempt
		if attempt < p.Retries {
			backoff := calculateBackoff(p.Delay, attempt)
			logging.NetworkDebug("retrying %s in %v", operation, backoff)

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return nil, fmt.Errorf("%w for %s after %d attempts: %w", ErrRetriesExhausted, operation, p.Retries+1, lastErr)
}

func runAttempt(ctx context.Context, timeout time.Duration, fn fetchFunc) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

// calculateBackoff computes exponential backoff: initial * 2^attempt.
func calculateBackoff(initial time.Duration, attempt int) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		return maxBackoff
	}
	return time.Duration(backoff)
}
