package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/admin"
	"github.com/emperorhan/restaking-keeper/internal/alert"
	"github.com/emperorhan/restaking-keeper/internal/chain"
	"github.com/emperorhan/restaking-keeper/internal/chain/evm"
	"github.com/emperorhan/restaking-keeper/internal/config"
	"github.com/emperorhan/restaking-keeper/internal/directory"
	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/keeper"
	"github.com/emperorhan/restaking-keeper/internal/report"
	"github.com/emperorhan/restaking-keeper/internal/store"
	"github.com/emperorhan/restaking-keeper/internal/store/postgres"
	redispkg "github.com/emperorhan/restaking-keeper/internal/store/redis"
	"github.com/emperorhan/restaking-keeper/internal/tracing"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout     = 30 * time.Second
	dbPoolStatsInterval = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting restaking-keeper",
		"bots", len(cfg.Bots),
		"bots_path", cfg.BotsPath,
		"buffer", cfg.Keeper.Buffer.String(),
		"attempt_retry", cfg.Keeper.AttemptRetry.String(),
		"idle_retry", cfg.Keeper.IdleRetry.String(),
		"journal", cfg.DB.URL != "",
		"stream", cfg.Redis.URL != "",
		"subgraph", cfg.Directory.SubgraphURL != "",
		"invalid_entries", len(config.InvalidEntries(cfg.Bots)),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("keeper exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("keeper shut down gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, "restaking-keeper", tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	sinks := store.NewFanOut(logger)
	var journal store.AttemptRepository
	var db *postgres.DB
	if cfg.DB.URL != "" {
		db, err = postgres.New(ctx, postgres.Config{
			URL:             cfg.DB.URL,
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer db.Close()
		if err := db.RunMigrations(ctx, cfg.DB.MigrationsDir); err != nil {
			return fmt.Errorf("migrate journal database: %w", err)
		}
		repo := postgres.NewAttemptRepo(db)
		journal = repo
		sinks.Add("postgres", repo)
		logger.Info("attempt journal enabled")
	}
	if cfg.Redis.URL != "" {
		stream, err := redispkg.NewStream(ctx, cfg.Redis.URL, cfg.Redis.Stream)
		if err != nil {
			return fmt.Errorf("connect outcome stream: %w", err)
		}
		defer stream.Close()
		sinks.Add("redis", stream)
		logger.Info("outcome stream enabled", "stream", stream.Name())
	}

	alerter := buildAlerter(cfg.Alert, logger)
	sup := keeper.NewSupervisor(keeper.SupervisorConfig{
		Dial:      gatewayFactory(cfg.RPC, logger),
		Directory: buildDirectory(cfg.Directory, logger),
		Timing: keeper.Timing{
			Buffer:       cfg.Keeper.Buffer,
			AttemptRetry: cfg.Keeper.AttemptRetry,
			IdleRetry:    cfg.Keeper.IdleRetry,
			CycleTimeout: cfg.Keeper.CycleTimeout,
		},
		Sink:                 attemptSink(sinks),
		Alerter:              alerter,
		UnhealthyThreshold:   cfg.Keeper.UnhealthyThreshold,
		DiscoveryConcurrency: cfg.Keeper.DiscoveryConcurrency,
		Logger:               logger,
	})

	reporter := report.New(ctx, sup, journal, cfg.Report.Window, logger)
	if err := reporter.Register(cfg.Report.Cron); err != nil {
		return err
	}
	adminLimiter := admin.NewRateLimitMiddleware(logger)
	defer adminLimiter.Stop()
	adminServer := admin.NewServer(sup, logger,
		admin.WithAttemptRepository(journal),
		admin.WithReportRunner(reporter),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, sup, adminServer.Routes(adminLimiter), logger)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if db != nil {
		startDBPoolStatsPump(gCtx, db.DB, dbPoolStatsInterval, logger)
	}

	if err := sup.Start(gCtx, cfg.Bots); err != nil && !errors.Is(err, context.Canceled) {
		cancel()
		_ = g.Wait()
		return fmt.Errorf("start supervisor: %w", err)
	}
	if sup.Len() == 0 {
		logger.Warn("no schedulers running, check bot configuration and alerts")
	}

	reporter.Start()

	waitErr := g.Wait()

	reporter.Stop()
	sup.Stop()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer drainCancel()
	if err := sup.Wait(drainCtx); err != nil {
		logger.Warn("in-flight cycles did not finish before shutdown timeout", "error", err)
	}

	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// attemptSink returns nil when no sink is configured so schedulers skip
// building records.
func attemptSink(f *store.FanOut) store.AttemptSink {
	if f.Len() == 0 {
		return nil
	}
	return f
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) alert.Alerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	if len(channels) == 0 {
		return &alert.NoopAlerter{}
	}
	return alert.NewMultiAlerter(cfg.Cooldown, logger, channels...)
}

func buildDirectory(cfg config.DirectoryConfig, logger *slog.Logger) directory.Directory {
	static := directory.NewStatic()
	if cfg.SubgraphURL == "" {
		return static
	}
	return directory.NewFallback(directory.NewSubgraph(cfg.SubgraphURL, cfg.Timeout), static, logger)
}

func gatewayFactory(cfg config.RPCConfig, logger *slog.Logger) keeper.GatewayFactory {
	return func(ctx context.Context, bot model.Bot) (chain.Gateway, error) {
		return evm.Dial(ctx, evm.Config{
			ChainID:            bot.ChainID,
			RPCURL:             bot.RPCURL,
			SigningKey:         bot.SigningKey,
			RPCTimeout:         cfg.Timeout,
			RPS:                cfg.RPS,
			Burst:              cfg.Burst,
			ReadAttempts:       cfg.ReadAttempts,
			BreakerFailures:    cfg.BreakerFailures,
			BreakerOpenTimeout: cfg.BreakerOpenTimeout,
			CooldownTTL:        cfg.CooldownCacheTTL,
			GasBufferPercent:   cfg.GasBufferPercent,
		}, logger.With("bot", bot.Name))
	}
}

type healthSource interface {
	HealthSnapshots() []keeper.HealthSnapshot
}

type healthResponse struct {
	Status     string                  `json:"status"`
	Schedulers []keeper.HealthSnapshot `json:"schedulers"`
}

// healthHandler reports "ok" while every scheduler is healthy or not yet
// evaluated, "degraded" otherwise. The HTTP status stays 200 unless nothing
// is scheduled at all, since one failing asset should not restart the
// process.
func healthHandler(src healthSource, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snaps := src.HealthSnapshots()
		resp := healthResponse{Status: "ok", Schedulers: snaps}
		code := http.StatusOK
		for _, s := range snaps {
			if s.Status == string(keeper.HealthStatusUnhealthy) {
				resp.Status = "degraded"
			}
		}
		if len(snaps) == 0 {
			resp.Status = "idle"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	}
}

func runHealthServer(ctx context.Context, port int, src healthSource, adminHandler http.Handler, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler(src, logger))
	mux.Handle("/metrics", promhttp.Handler())
	if adminHandler != nil {
		mux.Handle("/admin/", adminHandler)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
