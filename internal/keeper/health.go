package keeper

import (
	"sync"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
)

// HealthStatus is the health state of one asset scheduler.
type HealthStatus string

const (
	HealthStatusUnknown   HealthStatus = "UNKNOWN"
	HealthStatusHealthy   HealthStatus = "HEALTHY"
	HealthStatusUnhealthy HealthStatus = "UNHEALTHY"
	HealthStatusStopped   HealthStatus = "STOPPED"

	// DefaultUnhealthyThreshold is the number of consecutive failed cycles
	// before a scheduler is considered unhealthy.
	DefaultUnhealthyThreshold = 5
)

// AssetHealth tracks consecutive cycle failures for one scheduler.
type AssetHealth struct {
	mu                  sync.RWMutex
	chainID             model.ChainID
	token               string
	asset               string
	status              HealthStatus
	consecutiveFailures int
	unhealthyThreshold  int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	lastOutcome         string
	nextCheckAt         *time.Time
}

func NewAssetHealth(chainID model.ChainID, token, asset string, unhealthyThreshold int) *AssetHealth {
	if unhealthyThreshold <= 0 {
		unhealthyThreshold = DefaultUnhealthyThreshold
	}
	h := &AssetHealth{
		chainID:            chainID,
		token:              token,
		asset:              asset,
		status:             HealthStatusUnknown,
		unhealthyThreshold: unhealthyThreshold,
	}
	h.publish()
	return h
}

// RecordSuccess records a cycle without chain errors. It returns true when
// this success ends an unhealthy streak.
func (h *AssetHealth) RecordSuccess(at time.Time, outcome string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	wasUnhealthy := h.status == HealthStatusUnhealthy
	h.consecutiveFailures = 0
	h.lastSuccessAt = &at
	h.lastOutcome = outcome
	h.status = HealthStatusHealthy
	h.publishLocked()
	return wasUnhealthy
}

// RecordFailure records a failed cycle. It returns true if the scheduler
// became unhealthy on this call.
func (h *AssetHealth) RecordFailure(at time.Time, outcome string, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	h.lastFailureAt = &at
	h.lastOutcome = outcome
	if err != nil {
		h.lastError = err.Error()
	}
	if h.consecutiveFailures >= h.unhealthyThreshold && h.status != HealthStatusUnhealthy {
		h.status = HealthStatusUnhealthy
		h.publishLocked()
		return true
	}
	if h.status == HealthStatusUnknown {
		h.status = HealthStatusHealthy
	}
	h.publishLocked()
	return false
}

// SetNextCheck records when the scheduler's timer is due.
func (h *AssetHealth) SetNextCheck(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextCheckAt = &at
}

// MarkStopped records that the scheduler will not run again.
func (h *AssetHealth) MarkStopped() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = HealthStatusStopped
	h.nextCheckAt = nil
	h.publishLocked()
}

func (h *AssetHealth) ConsecutiveFailures() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.consecutiveFailures
}

// Snapshot returns the current health state.
func (h *AssetHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Chain:               h.chainID.String(),
		ChainID:             int64(h.chainID),
		Token:               h.token,
		Asset:               h.asset,
		Status:              string(h.status),
		ConsecutiveFailures: h.consecutiveFailures,
		LastOutcome:         h.lastOutcome,
		LastError:           h.lastError,
		LastSuccessAt:       h.lastSuccessAt,
		LastFailureAt:       h.lastFailureAt,
		NextCheckAt:         h.nextCheckAt,
	}
}

func (h *AssetHealth) publish() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.publishLocked()
}

func (h *AssetHealth) publishLocked() {
	var v float64
	switch h.status {
	case HealthStatusHealthy:
		v = 1
	case HealthStatusUnknown:
		v = 0.5
	default:
		v = 0
	}
	metrics.AssetHealthStatus.WithLabelValues(h.chainID.Label(), h.token, h.asset).Set(v)
}

// HealthSnapshot is a point-in-time view of scheduler health (JSON-safe).
type HealthSnapshot struct {
	Chain               string     `json:"chain"`
	ChainID             int64      `json:"chain_id"`
	Token               string     `json:"token"`
	Asset               string     `json:"asset"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastOutcome         string     `json:"last_outcome,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	NextCheckAt         *time.Time `json:"next_check_at,omitempty"`
}
