package model

import "time"

// DefaultRebalanceBufferSeconds pads the on-chain cooldown so a rebalance
// is never sent in the same block the delay lifts.
const DefaultRebalanceBufferSeconds int64 = 30

// RebalanceWindow is the cooldown state of one asset, read fresh every cycle.
type RebalanceWindow struct {
	LastRebalancedAt int64
	CooldownSeconds  int64
	BufferSeconds    int64
}

// ReadyAt is the unix time from which a rebalance may be sent.
func (w RebalanceWindow) ReadyAt() int64 {
	return w.LastRebalancedAt + w.CooldownSeconds + w.BufferSeconds
}

// Remaining returns how long until ReadyAt, or zero once it has passed.
func (w RebalanceWindow) Remaining(now int64) time.Duration {
	if d := w.ReadyAt() - now; d > 0 {
		return time.Duration(d) * time.Second
	}
	return 0
}
