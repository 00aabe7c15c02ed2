package model

import (
	"time"

	"github.com/google/uuid"
)

// Cycle outcomes, as journaled and used for metric labels.
const (
	OutcomeRebalanced   = "rebalanced"
	OutcomeSubmitFailed = "submit_failed"
	OutcomeCooldown     = "cooldown"
	OutcomeNothingToDo  = "no_action"
	OutcomeReadFailed   = "read_failed"
)

// RebalanceAttempt is the record of one scheduler cycle.
type RebalanceAttempt struct {
	ID           uuid.UUID
	ChainID      ChainID
	Token        string
	AssetSymbol  string
	AssetAddress string
	Outcome      string
	TxHash       string
	Error        string
	NextCheck    time.Duration
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Failed reports whether the cycle ended in a chain error.
func (a RebalanceAttempt) Failed() bool {
	return a.Outcome == OutcomeSubmitFailed || a.Outcome == OutcomeReadFailed
}

// AttemptSummary counts cycles by outcome for one (chain, token, asset).
type AttemptSummary struct {
	ChainID     ChainID
	Token       string
	AssetSymbol string
	Outcome     string
	Count       int64
	LastAt      time.Time
}
