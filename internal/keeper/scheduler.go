package keeper

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/emperorhan/restaking-keeper/internal/alert"
	"github.com/emperorhan/restaking-keeper/internal/chain"
	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
	"github.com/emperorhan/restaking-keeper/internal/retry"
	"github.com/emperorhan/restaking-keeper/internal/store"
	"github.com/emperorhan/restaking-keeper/internal/tracing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const observeTimeout = 10 * time.Second

// State is the lifecycle state of an AssetScheduler.
type State int

const (
	StateIdle State = iota
	StateArmed
	StateDeciding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateDeciding:
		return "deciding"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SchedulerConfig wires one scheduler. Sink and Alerter are optional.
type SchedulerConfig struct {
	Gateway            chain.Gateway
	Token              model.RestakingToken
	Asset              model.Asset
	Clock              Clock
	Timing             Timing
	Sink               store.AttemptSink
	Alerter            alert.Alerter
	UnhealthyThreshold int
	Logger             *slog.Logger
}

// Scheduler runs the decide-and-rearm loop for one (chain, token, asset).
// At most one cycle is in flight and at most one timer is armed at a time.
type Scheduler struct {
	gateway chain.Gateway
	token   model.RestakingToken
	asset   model.Asset
	clock   Clock
	timing  Timing
	sink    store.AttemptSink
	alerter alert.Alerter
	health  *AssetHealth
	logger  *slog.Logger
	baseCtx context.Context
	chain   string

	// stopCtx bounds observe I/O; Stop cancels it.
	stopCtx    context.Context
	stopCancel context.CancelFunc

	// lastWindow is owned by the running cycle.
	lastWindow *model.RebalanceWindow

	mu       sync.Mutex
	state    State
	timer    Timer
	inflight sync.WaitGroup
}

// NewScheduler builds an idle scheduler. ctx supplies values for cycle
// contexts; its cancellation does not interrupt a running cycle.
func NewScheduler(ctx context.Context, cfg SchedulerConfig) *Scheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	chainLabel := cfg.Gateway.ChainID().Label()
	baseCtx := context.WithoutCancel(ctx)
	stopCtx, stopCancel := context.WithCancel(baseCtx)

	return &Scheduler{
		gateway: cfg.Gateway,
		token:   cfg.Token,
		asset:   cfg.Asset,
		clock:   clock,
		timing:  cfg.Timing.withDefaults(),
		sink:    cfg.Sink,
		alerter: cfg.Alerter,
		health:  NewAssetHealth(cfg.Gateway.ChainID(), cfg.Token.Symbol, cfg.Asset.String(), cfg.UnhealthyThreshold),
		logger: logger.With(
			"component", "scheduler",
			"chain_id", int64(cfg.Gateway.ChainID()),
			"token", cfg.Token.Symbol,
			"asset", cfg.Asset.String(),
		),
		baseCtx:    baseCtx,
		chain:      chainLabel,
		stopCtx:    stopCtx,
		stopCancel: stopCancel,
		state:      StateIdle,
	}
}

// Start runs the first cycle immediately, regardless of cooldown.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return fmt.Errorf("start scheduler %s/%s: state is %s", s.token.Symbol, s.asset, s.state)
	}
	s.state = StateDeciding
	s.inflight.Add(1)
	go s.runCycle()
	return nil
}

// Stop cancels any armed timer and prevents further cycles. A gateway call
// already in flight completes, but the cycle makes no further calls and its
// result is discarded. Nothing is logged for the scheduler once Stop
// returns. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.stopCancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	prev := s.state
	s.state = StateStopped
	s.health.MarkStopped()
	s.logger.Info("scheduler stopped", "previous_state", prev.String())
}

// Wait blocks until no cycle is in flight or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Health() HealthSnapshot {
	return s.health.Snapshot()
}

func (s *Scheduler) Token() model.RestakingToken { return s.token }

func (s *Scheduler) Asset() model.Asset { return s.asset }

// tick is the timer callback.
func (s *Scheduler) tick() {
	s.mu.Lock()
	if s.state != StateArmed {
		s.mu.Unlock()
		return
	}
	s.state = StateDeciding
	s.timer = nil
	s.inflight.Add(1)
	s.mu.Unlock()

	s.runCycle()
}

type cycleResult struct {
	outcome  string
	decision Decision
	window   model.RebalanceWindow
	shares   *big.Int
	balance  *big.Int
	txHash   string
	err      error
	delay    time.Duration

	// discarded is set when Stop arrived during the cycle.
	discarded bool
}

func (s *Scheduler) runCycle() {
	defer s.inflight.Done()

	startedAt := s.clock.Now()
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timing.CycleTimeout)
	ctx, span := tracing.Tracer("keeper").Start(ctx, "keeper.cycle",
		otelTrace.WithAttributes(
			attribute.String("chain", s.chain),
			attribute.String("token", s.token.Symbol),
			attribute.String("asset", s.asset.String()),
		),
	)
	res := s.cycle(ctx, startedAt)
	span.SetAttributes(attribute.String("outcome", res.outcome), attribute.Bool("discarded", res.discarded))
	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
	}
	span.End()
	cancel()
	finishedAt := s.clock.Now()

	// Observing under the lock keeps Stop from returning while outcome
	// logs, alerts or sink writes are still pending.
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.discarded || s.state == StateStopped {
		return
	}
	s.observe(startedAt, finishedAt, res)
	s.state = StateArmed
	s.timer = s.clock.AfterFunc(res.delay, s.tick)
	s.health.SetNextCheck(finishedAt.Add(res.delay))
	metrics.SchedulerNextCheckSeconds.WithLabelValues(s.chain, s.token.Symbol, s.asset.String()).Set(res.delay.Seconds())
}

// cycle reads on-chain state lazily in gate order and acts on the decision.
// It checks for Stop after every gateway call and never submits once
// stopped.
func (s *Scheduler) cycle(ctx context.Context, now time.Time) cycleResult {
	readyAt := "now"
	if s.lastWindow != nil {
		readyAt = relativeReadyAt(*s.lastWindow, now)
	}
	if !s.logIfRunning(fmt.Sprintf("attempting rebalance of %s (%s) %s", s.asset, s.token.Symbol, readyAt)) {
		return cycleResult{discarded: true}
	}

	last, err := s.gateway.LastRebalancedAt(ctx, s.token, s.asset)
	if s.stopRequested() {
		return cycleResult{discarded: true}
	}
	if err != nil {
		return s.readFailed(err)
	}
	cooldown, err := s.gateway.RebalanceCooldown(ctx, s.token)
	if s.stopRequested() {
		return cycleResult{discarded: true}
	}
	if err != nil {
		return s.readFailed(err)
	}

	in := Inputs{
		Window: model.RebalanceWindow{
			LastRebalancedAt: last,
			CooldownSeconds:  cooldown,
			BufferSeconds:    int64(s.timing.Buffer / time.Second),
		},
		IsNative:  s.asset.IsNative(),
		IdleRetry: s.timing.IdleRetry,
	}
	s.lastWindow = &in.Window

	unix := now.Unix()
	metrics.SchedulerCooldownRemainingSeconds.WithLabelValues(s.chain, s.token.Symbol, s.asset.String()).
		Set(in.Window.Remaining(unix).Seconds())
	if gate := Decide(in, unix); gate.Action == ActionWaitCooldown {
		return cycleResult{outcome: model.OutcomeCooldown, decision: gate, window: in.Window, delay: gate.Delay}
	}

	in.SharesOwed, err = s.gateway.SharesOwedInCurrentEpoch(ctx, s.token, s.asset)
	if s.stopRequested() {
		return cycleResult{discarded: true}
	}
	if err != nil {
		return s.readFailed(err)
	}
	if !positive(in.SharesOwed) {
		in.DepositBalance, err = s.gateway.DepositPoolBalance(ctx, s.token, s.asset)
		if s.stopRequested() {
			return cycleResult{discarded: true}
		}
		if err != nil {
			return s.readFailed(err)
		}
	}

	decision := Decide(in, unix)
	res := cycleResult{
		decision: decision,
		window:   in.Window,
		shares:   in.SharesOwed,
		balance:  in.DepositBalance,
	}
	if decision.Action != ActionRebalance {
		res.outcome = model.OutcomeNothingToDo
		res.delay = decision.Delay
		return res
	}

	if s.stopRequested() {
		return cycleResult{discarded: true}
	}
	res.delay = s.timing.AttemptRetry
	res.txHash, res.err = s.gateway.SubmitRebalance(ctx, s.token, s.asset)
	if res.err != nil {
		res.outcome = model.OutcomeSubmitFailed
	} else {
		res.outcome = model.OutcomeRebalanced
	}
	return res
}

func (s *Scheduler) stopRequested() bool {
	return s.State() == StateStopped
}

// logIfRunning emits msg unless Stop has been called, reporting which.
func (s *Scheduler) logIfRunning(msg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped {
		return false
	}
	s.logger.Info(msg)
	return true
}

func (s *Scheduler) readFailed(err error) cycleResult {
	return cycleResult{outcome: model.OutcomeReadFailed, err: err, delay: s.timing.AttemptRetry}
}

// observe logs the outcome and feeds metrics, health, alerts and sinks.
// Callers hold s.mu.
func (s *Scheduler) observe(startedAt, finishedAt time.Time, res cycleResult) {
	next := humanize.RelTime(finishedAt.Add(res.delay), finishedAt, "ago", "from now")
	switch res.outcome {
	case model.OutcomeRebalanced:
		s.logger.Info("rebalance submitted", "tx_hash", res.txHash, "shares_owed", formatUnits(res.shares), "deposit_balance", formatUnits(res.balance), "next_check", next)
	case model.OutcomeSubmitFailed:
		s.logger.Error("rebalance failed", "error", res.err, "retry_class", retry.Classify(res.err).Class, "next_check", next)
	case model.OutcomeReadFailed:
		s.logger.Warn("chain read failed", "error", res.err, "retry_class", retry.Classify(res.err).Class, "next_check", next)
	case model.OutcomeCooldown:
		s.logger.Info("rebalance cooldown active", "ready_at", time.Unix(res.window.ReadyAt(), 0).UTC(), "next_check", next)
	default:
		s.logger.Info(fmt.Sprintf("conditions not met, retrying in %s", res.delay), "shares_owed", formatUnits(res.shares), "deposit_balance", formatUnits(res.balance), "next_check", next)
	}

	metrics.SchedulerCyclesTotal.WithLabelValues(s.chain, s.token.Symbol, s.asset.String(), res.outcome).Inc()
	metrics.SchedulerCycleLatency.WithLabelValues(s.chain, s.token.Symbol).Observe(finishedAt.Sub(startedAt).Seconds())
	if res.decision.Action == ActionRebalance {
		status := "ok"
		if res.err != nil {
			status = "failed"
		}
		metrics.RebalanceSubmissionsTotal.WithLabelValues(s.chain, s.token.Symbol, s.asset.String(), status).Inc()
	}

	ctx, cancel := context.WithTimeout(s.stopCtx, observeTimeout)
	defer cancel()

	if res.err != nil {
		becameUnhealthy := s.health.RecordFailure(finishedAt, res.outcome, res.err)
		if res.outcome == model.OutcomeSubmitFailed {
			s.sendAlert(ctx, alert.AlertTypeRebalanceError, "Rebalance transaction failed", res.err.Error())
		}
		if becameUnhealthy {
			s.sendAlert(ctx, alert.AlertTypeUnhealthy, "Scheduler unhealthy",
				fmt.Sprintf("%d consecutive failed cycles, last: %v", s.health.ConsecutiveFailures(), res.err))
		}
	} else if s.health.RecordSuccess(finishedAt, res.outcome) {
		s.sendAlert(ctx, alert.AlertTypeRecovery, "Scheduler recovered", "cycle completed: "+res.outcome)
	}

	if s.sink != nil {
		attempt := &model.RebalanceAttempt{
			ID:           uuid.New(),
			ChainID:      s.gateway.ChainID(),
			Token:        s.token.Symbol,
			AssetSymbol:  s.asset.Symbol,
			AssetAddress: s.asset.Address.Hex(),
			Outcome:      res.outcome,
			TxHash:       res.txHash,
			NextCheck:    res.delay,
			StartedAt:    startedAt,
			FinishedAt:   finishedAt,
		}
		if res.err != nil {
			attempt.Error = res.err.Error()
		}
		if err := s.sink.RecordAttempt(ctx, attempt); err != nil {
			s.logger.Warn("record attempt failed", "attempt_id", attempt.ID, "error", err)
		}
	}
}

func (s *Scheduler) sendAlert(ctx context.Context, typ alert.AlertType, title, message string) {
	if s.alerter == nil {
		return
	}
	err := s.alerter.Send(ctx, alert.Alert{
		Type:    typ,
		Chain:   s.chain,
		Token:   s.token.Symbol,
		Asset:   s.asset.String(),
		Title:   title,
		Message: message,
	})
	if err != nil {
		s.logger.Warn("send alert failed", "type", typ, "error", err)
	}
}

// relativeReadyAt renders when the cooldown lifts: "now" once it has, else
// a humanized offset such as "3 hours from now".
func relativeReadyAt(w model.RebalanceWindow, now time.Time) string {
	readyAt := time.Unix(w.ReadyAt(), 0)
	if !readyAt.After(now) {
		return "now"
	}
	return humanize.RelTime(readyAt, now, "ago", "from now")
}

// formatUnits renders an 18-decimal base-unit amount in whole tokens.
func formatUnits(v *big.Int) string {
	if v == nil {
		return "-"
	}
	return decimal.NewFromBigInt(v, -18).String()
}
