package keeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/emperorhan/restaking-keeper/internal/alert"
	"github.com/emperorhan/restaking-keeper/internal/chain"
	"github.com/emperorhan/restaking-keeper/internal/directory"
	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
	"github.com/emperorhan/restaking-keeper/internal/store"
	"golang.org/x/sync/errgroup"
)

const defaultDiscoveryConcurrency = 4

// GatewayFactory connects to the chain a bot is configured for.
type GatewayFactory func(ctx context.Context, bot model.Bot) (chain.Gateway, error)

type SupervisorConfig struct {
	Dial      GatewayFactory
	Directory directory.Directory
	Clock     Clock
	Timing    Timing
	Sink      store.AttemptSink
	Alerter   alert.Alerter

	UnhealthyThreshold   int
	DiscoveryConcurrency int
	Logger               *slog.Logger
}

// Supervisor owns one Scheduler per (chain, token, asset) across all
// enabled bots.
type Supervisor struct {
	cfg    SupervisorConfig
	logger *slog.Logger

	mu         sync.Mutex
	schedulers map[string]*Scheduler
	started    bool
	stopped    bool
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Directory == nil {
		cfg.Directory = directory.NewStatic()
	}
	if cfg.DiscoveryConcurrency <= 0 {
		cfg.DiscoveryConcurrency = defaultDiscoveryConcurrency
	}
	return &Supervisor{
		cfg:        cfg,
		logger:     cfg.Logger.With("component", "supervisor"),
		schedulers: make(map[string]*Scheduler),
	}
}

// Start connects every enabled bot and starts a scheduler for each asset of
// each of its tokens. A bot or token that cannot be set up is logged and
// skipped; the others still start. Start fails only if called twice or if
// ctx is cancelled during discovery.
func (s *Supervisor) Start(ctx context.Context, bots []model.Bot) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("supervisor already started")
	}
	s.started = true
	s.mu.Unlock()

	g := new(errgroup.Group)
	g.SetLimit(s.cfg.DiscoveryConcurrency)

	err := s.startBots(ctx, g, bots)
	_ = g.Wait()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	total := s.Len()
	s.logger.Info("supervisor started", "schedulers", total, "bots", len(bots))
	return nil
}

func (s *Supervisor) startBots(ctx context.Context, g *errgroup.Group, bots []model.Bot) error {
	for _, bot := range bots {
		if !bot.Enabled {
			s.logger.Info("bot disabled, skipping", "bot", bot.Name, "chain_id", int64(bot.ChainID))
			continue
		}
		if bot.ConfigErr != nil {
			s.skipBot(ctx, bot, fmt.Errorf("invalid config: %w", bot.ConfigErr))
			continue
		}

		var tokens []model.RestakingToken
		for _, token := range bot.Tokens {
			if token.ConfigErr != nil {
				s.skip(ctx, bot, token, nil, fmt.Errorf("invalid config: %w", token.ConfigErr))
				continue
			}
			tokens = append(tokens, token)
		}
		if len(tokens) == 0 {
			continue
		}

		gw, err := s.cfg.Dial(ctx, bot)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			for _, token := range tokens {
				s.skip(ctx, bot, token, nil, fmt.Errorf("connect: %w", err))
			}
			continue
		}

		for _, token := range tokens {
			g.Go(func() error {
				s.startToken(ctx, bot, gw, token)
				return nil
			})
		}
	}
	return nil
}

func (s *Supervisor) startToken(ctx context.Context, bot model.Bot, gw chain.Gateway, token model.RestakingToken) {
	if token.ChainID == 0 {
		token.ChainID = bot.ChainID
	}
	assets, err := s.cfg.Directory.Assets(ctx, token)
	if err != nil {
		s.skip(ctx, bot, token, nil, fmt.Errorf("list assets: %w", err))
		return
	}

	for _, asset := range assets {
		key := schedulerKey(bot.ChainID, token, asset)
		sched := NewScheduler(ctx, SchedulerConfig{
			Gateway:            gw,
			Token:              token,
			Asset:              asset,
			Clock:              s.cfg.Clock,
			Timing:             s.cfg.Timing,
			Sink:               s.cfg.Sink,
			Alerter:            s.cfg.Alerter,
			UnhealthyThreshold: s.cfg.UnhealthyThreshold,
			Logger:             s.cfg.Logger,
		})

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if _, dup := s.schedulers[key]; dup {
			s.mu.Unlock()
			s.logger.Warn("duplicate asset, keeping first scheduler",
				"bot", bot.Name, "token", token.Symbol, "asset", asset.String())
			continue
		}
		s.schedulers[key] = sched
		metrics.SupervisorSchedulers.WithLabelValues(sched.chain).Inc()
		s.mu.Unlock()

		// Start only fails once Stop has reached this scheduler.
		if err := sched.Start(); err != nil {
			return
		}
		s.logger.Info("scheduler started",
			"bot", bot.Name,
			"chain_id", int64(bot.ChainID),
			"token", token.Symbol,
			"asset", asset.String(),
			"native", asset.IsNative(),
		)
	}
}

// skipBot reports every token of an unusable bot, or the bot alone when it
// lists none.
func (s *Supervisor) skipBot(ctx context.Context, bot model.Bot, err error) {
	if len(bot.Tokens) == 0 {
		s.skip(ctx, bot, model.RestakingToken{Symbol: "*"}, nil, err)
		return
	}
	for _, token := range bot.Tokens {
		s.skip(ctx, bot, token, nil, err)
	}
}

func (s *Supervisor) skip(ctx context.Context, bot model.Bot, token model.RestakingToken, asset *model.Asset, err error) {
	assetLabel := "*"
	if asset != nil {
		assetLabel = asset.String()
	}
	s.logger.Error("skipping token pair",
		"bot", bot.Name,
		"chain_id", int64(bot.ChainID),
		"token", token.Symbol,
		"asset", assetLabel,
		"error", err,
	)
	metrics.SupervisorPairFailures.WithLabelValues(bot.ChainID.Label(), token.Symbol).Inc()

	if s.cfg.Alerter == nil {
		return
	}
	sendErr := s.cfg.Alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypePairSkipped,
		Chain:   bot.ChainID.Label(),
		Token:   token.Symbol,
		Asset:   assetLabel,
		Title:   "Token pair not scheduled",
		Message: err.Error(),
		Fields:  map[string]string{"bot": bot.Name},
	})
	if sendErr != nil {
		s.logger.Warn("send alert failed", "type", alert.AlertTypePairSkipped, "error", sendErr)
	}
}

// Stop stops every scheduler. It is idempotent; in-flight cycles finish in
// the background, use Wait to block on them.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	scheds := make([]*Scheduler, 0, len(s.schedulers))
	for _, sched := range s.schedulers {
		scheds = append(scheds, sched)
	}
	s.mu.Unlock()

	for _, sched := range scheds {
		sched.Stop()
		metrics.SupervisorSchedulers.WithLabelValues(sched.chain).Dec()
	}
	s.logger.Info("supervisor stopped", "schedulers", len(scheds))
}

// Wait blocks until every scheduler's in-flight cycle has returned.
func (s *Supervisor) Wait(ctx context.Context) error {
	for _, sched := range s.snapshot() {
		if err := sched.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of registered schedulers.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.schedulers)
}

// HealthSnapshots returns the health of every scheduler, ordered by chain,
// token and asset.
func (s *Supervisor) HealthSnapshots() []HealthSnapshot {
	scheds := s.snapshot()
	out := make([]HealthSnapshot, 0, len(scheds))
	for _, sched := range scheds {
		out = append(out, sched.Health())
	}
	return out
}

func (s *Supervisor) snapshot() []*Scheduler {
	s.mu.Lock()
	keys := make([]string, 0, len(s.schedulers))
	for k := range s.schedulers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Scheduler, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.schedulers[k])
	}
	s.mu.Unlock()
	return out
}

func schedulerKey(chainID model.ChainID, token model.RestakingToken, asset model.Asset) string {
	return fmt.Sprintf("%d/%s/%s", chainID, token.Symbol, asset.Address.Hex())
}
