package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
)

// AttemptSink receives one record per scheduler cycle.
type AttemptSink interface {
	RecordAttempt(ctx context.Context, attempt *model.RebalanceAttempt) error
}

// AttemptRepository is the queryable attempt journal.
type AttemptRepository interface {
	AttemptSink
	ListRecent(ctx context.Context, chainID model.ChainID, token, asset string, limit int) ([]model.RebalanceAttempt, error)
	SummarizeSince(ctx context.Context, since time.Time) ([]model.AttemptSummary, error)
}

// namedSink pairs a sink with its metric label.
type namedSink struct {
	name string
	sink AttemptSink
}

// FanOut writes each attempt to every registered sink. A failing sink is
// logged and counted but does not stop the others.
type FanOut struct {
	sinks  []namedSink
	logger *slog.Logger
}

func NewFanOut(logger *slog.Logger) *FanOut {
	return &FanOut{logger: logger.With("component", "attempt_sinks")}
}

// Add registers sink under name ("postgres", "redis", ...).
func (f *FanOut) Add(name string, sink AttemptSink) {
	if sink == nil {
		return
	}
	f.sinks = append(f.sinks, namedSink{name: name, sink: sink})
}

// Len returns the number of registered sinks.
func (f *FanOut) Len() int {
	return len(f.sinks)
}

func (f *FanOut) RecordAttempt(ctx context.Context, attempt *model.RebalanceAttempt) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.sink.RecordAttempt(ctx, attempt); err != nil {
			metrics.JournalWriteErrors.WithLabelValues(s.name).Inc()
			f.logger.Warn("record attempt failed", "sink", s.name, "attempt_id", attempt.ID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
