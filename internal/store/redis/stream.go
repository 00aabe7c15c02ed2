package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/store"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultStreamName = "keeper:rebalance"

	// DefaultMaxLen caps the stream (approximately) so it never grows unbounded.
	DefaultMaxLen int64 = 100_000
)

var _ store.AttemptSink = (*Stream)(nil)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Stream publishes cycle outcomes to a Redis stream for downstream
// consumers (dashboards, on-call tooling).
type Stream struct {
	client *redis.Client
	adder  streamAdder
	name   string
	maxLen int64
}

func NewStream(ctx context.Context, url, name string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	s := newStream(client, name)
	s.client = client
	return s, nil
}

func newStream(adder streamAdder, name string) *Stream {
	if name == "" {
		name = DefaultStreamName
	}
	return &Stream{adder: adder, name: name, maxLen: DefaultMaxLen}
}

func (s *Stream) Name() string { return s.name }

// RecordAttempt appends one entry per cycle.
func (s *Stream) RecordAttempt(ctx context.Context, a *model.RebalanceAttempt) error {
	err := s.adder.XAdd(ctx, &redis.XAddArgs{
		Stream: s.name,
		MaxLen: s.maxLen,
		Approx: true,
		Values: attemptValues(a),
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", s.name, err)
	}
	return nil
}

func attemptValues(a *model.RebalanceAttempt) map[string]any {
	return map[string]any{
		"id":            a.ID.String(),
		"chain_id":      strconv.FormatInt(int64(a.ChainID), 10),
		"token":         a.Token,
		"asset":         a.AssetSymbol,
		"asset_address": a.AssetAddress,
		"outcome":       a.Outcome,
		"tx_hash":       a.TxHash,
		"error":         a.Error,
		"next_check_ms": strconv.FormatInt(a.NextCheck.Milliseconds(), 10),
		"started_at":    a.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at":   a.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Stream) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Stream) Client() *redis.Client {
	return s.client
}
