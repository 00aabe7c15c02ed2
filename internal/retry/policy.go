package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultMaxAttempts    = 3
	defaultBackoffInitial = 200 * time.Millisecond
	defaultBackoffMax     = 3 * time.Second
)

// Policy retries transient failures with capped exponential backoff.
// Terminal failures return after the first attempt.
type Policy struct {
	MaxAttempts    int
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, decision Decision, err error)

	sleepFn func(ctx context.Context, d time.Duration) error
}

// Do runs fn until it succeeds, fails terminally, ctx ends or the attempt
// budget is spent.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error
	lastDecision := Decision{Class: ClassTerminal, Reason: "unset"}
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		lastDecision = Classify(err)

		if ctx.Err() != nil {
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		}
		if !lastDecision.IsTransient() || attempt == attempts {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, lastDecision, err)
		}
		if sleepErr := p.sleep(ctx, p.delay(attempt)); sleepErr != nil {
			return sleepErr
		}
	}

	if !lastDecision.IsTransient() {
		return lastErr
	}
	return fmt.Errorf("transient_recovery_exhausted attempts=%d reason=%s: %w", attempts, lastDecision.Reason, lastErr)
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BackoffInitial
	if base <= 0 {
		base = defaultBackoffInitial
	}
	max := p.BackoffMax
	if max <= 0 {
		max = defaultBackoffMax
	}
	if max < base {
		max = base
	}

	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= max/2 {
			return max
		}
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	if p.sleepFn != nil {
		return p.sleepFn(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
