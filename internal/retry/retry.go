package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds repeated attempts at an unreliable external call.
// Between attempt n and n+1 the caller sleeps InitialDelay << (n-1):
// attempt 1 failing waits InitialDelay, attempt 2 failing waits twice that,
// and so on. No jitter is applied.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration

	// Sleep overrides how backoff pauses are performed; tests inject a
	// recorder here. Nil uses a context-aware timer.
	Sleep func(context.Context, time.Duration) error
}

// Do invokes op until it succeeds or the policy's attempts are exhausted.
// The returned error wraps the final underlying failure.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if err := policy.sleep(ctx, policy.delay(attempt)); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 || attempt < 1 {
		return 0
	}
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.Sleep != nil {
		return p.Sleep(ctx, delay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
