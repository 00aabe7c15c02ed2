package keeper

import "time"

const (
	DefaultAttemptRetry = 60 * time.Second
	DefaultIdleRetry    = 300 * time.Second
	DefaultBuffer       = 30 * time.Second
	DefaultCycleTimeout = 120 * time.Second
)

// Timing holds the scheduler's re-arm delays.
type Timing struct {
	// Buffer is added to the on-chain cooldown before a rebalance is tried.
	Buffer time.Duration
	// AttemptRetry follows any submission and any chain error.
	AttemptRetry time.Duration
	// IdleRetry follows a cycle with nothing to rebalance.
	IdleRetry time.Duration
	// CycleTimeout bounds one cycle's chain calls.
	CycleTimeout time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		Buffer:       DefaultBuffer,
		AttemptRetry: DefaultAttemptRetry,
		IdleRetry:    DefaultIdleRetry,
		CycleTimeout: DefaultCycleTimeout,
	}
}

func (t Timing) withDefaults() Timing {
	d := DefaultTiming()
	if t.Buffer < 0 {
		t.Buffer = 0
	}
	if t.Buffer == 0 && t.AttemptRetry == 0 && t.IdleRetry == 0 && t.CycleTimeout == 0 {
		return d
	}
	if t.AttemptRetry <= 0 {
		t.AttemptRetry = d.AttemptRetry
	}
	if t.IdleRetry <= 0 {
		t.IdleRetry = d.IdleRetry
	}
	if t.CycleTimeout <= 0 {
		t.CycleTimeout = d.CycleTimeout
	}
	return t
}
