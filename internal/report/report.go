package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/emperorhan/restaking-keeper/internal/keeper"
	"github.com/emperorhan/restaking-keeper/internal/store"
	"github.com/robfig/cron/v3"
)

const (
	DefaultSpec   = "@every 1h"
	DefaultWindow = time.Hour
	queryTimeout  = 30 * time.Second
)

// HealthSource is implemented by keeper.Supervisor.
type HealthSource interface {
	HealthSnapshots() []keeper.HealthSnapshot
}

// Summary is one status report.
type Summary struct {
	Schedulers int
	ByStatus   map[string]int
	// Outcomes counts journaled cycles in the window, keyed by outcome.
	// Nil when no journal is configured.
	Outcomes map[string]int64
	// NextDue is the scheduler whose timer fires soonest.
	NextDue *keeper.HealthSnapshot
	Failing []keeper.HealthSnapshot
}

// Reporter periodically logs a status summary of all schedulers.
type Reporter struct {
	Cron   *cron.Cron
	health HealthSource
	repo   store.AttemptRepository
	window time.Duration
	logger *slog.Logger
	ctx    context.Context
	nowFn  func() time.Time
}

// New builds a reporter. repo may be nil.
func New(ctx context.Context, health HealthSource, repo store.AttemptRepository, window time.Duration, logger *slog.Logger) *Reporter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Reporter{
		Cron:   cron.New(),
		health: health,
		repo:   repo,
		window: window,
		logger: logger.With("component", "report"),
		ctx:    ctx,
		nowFn:  time.Now,
	}
}

// Register schedules the report. spec uses the standard five-field cron
// syntax or a descriptor such as "@every 30m".
func (r *Reporter) Register(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if _, err := r.Cron.AddFunc(spec, func() { r.RunNow() }); err != nil {
		return fmt.Errorf("register status report %q: %w", spec, err)
	}
	return nil
}

func (r *Reporter) Start() {
	r.Cron.Start()
	r.logger.Info("status report scheduled", "entries", len(r.Cron.Entries()))
}

// Stop stops the cron and waits for a running report to finish.
func (r *Reporter) Stop() {
	<-r.Cron.Stop().Done()
}

// RunNow builds and logs a report immediately.
func (r *Reporter) RunNow() Summary {
	sum := r.Build()

	attrs := []any{
		"schedulers", sum.Schedulers,
		"healthy", sum.ByStatus[string(keeper.HealthStatusHealthy)],
		"unhealthy", sum.ByStatus[string(keeper.HealthStatusUnhealthy)],
		"unknown", sum.ByStatus[string(keeper.HealthStatusUnknown)],
		"stopped", sum.ByStatus[string(keeper.HealthStatusStopped)],
	}
	if sum.Outcomes != nil {
		attrs = append(attrs, "window", r.window.String(), "outcomes", sum.Outcomes)
	}
	if sum.NextDue != nil {
		attrs = append(attrs,
			"next_due", fmt.Sprintf("%s/%s", sum.NextDue.Token, sum.NextDue.Asset),
			"next_due_in", humanize.RelTime(*sum.NextDue.NextCheckAt, r.nowFn(), "ago", "from now"),
		)
	}
	r.logger.Info("keeper status", attrs...)

	for _, f := range sum.Failing {
		r.logger.Warn("scheduler failing",
			"chain", f.Chain,
			"token", f.Token,
			"asset", f.Asset,
			"status", f.Status,
			"consecutive_failures", f.ConsecutiveFailures,
			"last_error", f.LastError,
		)
	}
	return sum
}

// Build assembles a summary without logging it.
func (r *Reporter) Build() Summary {
	snaps := r.health.HealthSnapshots()
	sum := Summary{
		Schedulers: len(snaps),
		ByStatus:   make(map[string]int),
	}
	for i := range snaps {
		snap := snaps[i]
		sum.ByStatus[snap.Status]++
		if snap.ConsecutiveFailures > 0 {
			sum.Failing = append(sum.Failing, snap)
		}
		if snap.NextCheckAt != nil && (sum.NextDue == nil || snap.NextCheckAt.Before(*sum.NextDue.NextCheckAt)) {
			sum.NextDue = &snap
		}
	}
	sort.Slice(sum.Failing, func(i, j int) bool {
		return sum.Failing[i].ConsecutiveFailures > sum.Failing[j].ConsecutiveFailures
	})

	if r.repo != nil {
		ctx, cancel := context.WithTimeout(r.ctx, queryTimeout)
		defer cancel()
		rows, err := r.repo.SummarizeSince(ctx, r.nowFn().Add(-r.window))
		if err != nil {
			r.logger.Warn("summarize attempts failed", "error", err)
		} else {
			sum.Outcomes = make(map[string]int64)
			for _, row := range rows {
				sum.Outcomes[row.Outcome] += row.Count
			}
		}
	}
	return sum
}
