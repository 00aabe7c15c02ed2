package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *manualClock) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	b := New(cfg)
	b.nowFn = clock.Now
	return b, clock
}

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, StateClosed, b.GetState())
	assert.Equal(t, 5, b.failureThreshold)
	assert.Equal(t, 2, b.successThreshold)
	assert.Equal(t, 30*time.Second, b.openTimeout)
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, OpenTimeout: time.Minute})

	b.RecordFailure()
	b.RecordFailure()
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 2})

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	assert.Equal(t, StateClosed, b.GetState())
}

func TestBreaker_HalfOpenAfterTimeoutThenCloses(t *testing.T) {
	var transitions []string
	b, clock := newTestBreaker(Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	b.RecordFailure()
	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	clock.Advance(time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.GetState())

	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.GetState())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.GetState())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, OpenTimeout: 10 * time.Second})

	b.RecordFailure()
	clock.Advance(10 * time.Second)
	assert.Equal(t, StateHalfOpen, b.GetState())

	b.RecordFailure()
	assert.Equal(t, StateOpen, b.GetState())

	clock.Advance(5 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreaker_DoRecordsOutcome(t *testing.T) {
	reverted := errors.New("execution reverted")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 2,
		IsFailure:        func(err error) bool { return !errors.Is(err, reverted) },
	})
	ctx := context.Background()

	// Reverts are answers from a healthy endpoint.
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, b.Do(ctx, func(context.Context) error { return reverted }), reverted)
	}
	assert.Equal(t, StateClosed, b.GetState())

	// Caller cancellation does not count.
	for i := 0; i < 5; i++ {
		_ = b.Do(ctx, func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, b.GetState())

	down := errors.New("connection refused")
	_ = b.Do(ctx, func(context.Context) error { return down })
	_ = b.Do(ctx, func(context.Context) error { return down })
	assert.Equal(t, StateOpen, b.GetState())

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_ConcurrentAccess(t *testing.T) {
	b := New(Config{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = b.Do(context.Background(), func(context.Context) error {
				if i%2 == 0 {
					return errors.New("boom")
				}
				return nil
			})
			_ = b.GetState()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, StateClosed, b.GetState())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
