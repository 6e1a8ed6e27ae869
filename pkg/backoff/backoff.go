// Package backoff provides the bounded retry loop used by the ledger stores
// to re-run atomic units after transient storage failures.
package backoff

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const maxShift = 62

// Policy bounds a retry loop.
type Policy struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
}

// Exponential calculates base * 2^attempt with overflow protection.
// Negative attempts are treated as 0.
func Exponential(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 0 {
		attempt = 0
	} else if attempt > maxShift {
		attempt = maxShift
	}

	multiplier := int64(1 << attempt)
	if int64(base) > math.MaxInt64/multiplier {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(base) * multiplier)
}

// FullJitter returns a random duration in [0, delay).
func FullJitter(delay time.Duration) time.Duration {
	if delay <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(delay)))
}

// SleepWithContext sleeps for the given duration unless the context is
// cancelled first.
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return nil
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// policy is exhausted. Waits between attempts follow exponential backoff with
// full jitter. fn must be safely repeatable.
func Retry(ctx context.Context, policy Policy, transient func(error) bool, fn func() error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if sleepErr := SleepWithContext(ctx, FullJitter(Exponential(policy.BaseDelay, attempt-1))); sleepErr != nil {
				return sleepErr
			}
		}
		err = fn()
		if err == nil || !transient(err) {
			return err
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, err)
}
