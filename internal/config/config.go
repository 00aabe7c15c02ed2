package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
)

type Config struct {
	Keeper    KeeperConfig
	RPC       RPCConfig
	Directory DirectoryConfig
	DB        DBConfig
	Redis     RedisConfig
	Tracing   TracingConfig
	Alert     AlertConfig
	Report    ReportConfig
	Server    ServerConfig
	Log       LogConfig

	BotsPath string
	Bots     []model.Bot
}

type KeeperConfig struct {
	Buffer               time.Duration
	AttemptRetry         time.Duration
	IdleRetry            time.Duration
	CycleTimeout         time.Duration
	UnhealthyThreshold   int
	DiscoveryConcurrency int
}

type RPCConfig struct {
	Timeout            time.Duration
	RPS                float64
	Burst              int
	ReadAttempts       int
	BreakerFailures    int
	BreakerOpenTimeout time.Duration
	// CooldownCacheTTL of zero caches the coordinator delay for the
	// process lifetime.
	CooldownCacheTTL time.Duration
	GasBufferPercent int
}

type DirectoryConfig struct {
	SubgraphURL string
	Timeout     time.Duration
}

// DBConfig is optional: an empty URL disables the attempt journal.
type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MigrationsDir   string
}

// RedisConfig is optional: an empty URL disables the outcome stream.
type RedisConfig struct {
	URL    string
	Stream string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type AlertConfig struct {
	SlackWebhookURL string
	WebhookURL      string
	Cooldown        time.Duration
}

type ReportConfig struct {
	Cron   string
	Window time.Duration
}

type ServerConfig struct {
	HealthPort int
}

type LogConfig struct {
	Level string
}

// Load reads settings from the environment and bot definitions from the
// YAML file at KEEPER_CONFIG_PATH.
func Load() (*Config, error) {
	cfg := &Config{
		Keeper: KeeperConfig{
			Buffer:               getEnvSeconds("REBALANCE_BUFFER_SEC", 30),
			AttemptRetry:         getEnvSeconds("REBALANCE_ATTEMPT_RETRY_SEC", 60),
			IdleRetry:            getEnvSeconds("REBALANCE_IDLE_RETRY_SEC", 300),
			CycleTimeout:         getEnvSeconds("CYCLE_TIMEOUT_SEC", 120),
			UnhealthyThreshold:   getEnvInt("HEALTH_UNHEALTHY_THRESHOLD", 5),
			DiscoveryConcurrency: getEnvInt("SUPERVISOR_DISCOVERY_CONCURRENCY", 4),
		},
		RPC: RPCConfig{
			Timeout:            getEnvSeconds("RPC_TIMEOUT_SEC", 30),
			RPS:                getEnvFloat("RPC_RPS", 10),
			Burst:              getEnvInt("RPC_BURST", 20),
			ReadAttempts:       getEnvInt("RPC_READ_ATTEMPTS", 3),
			BreakerFailures:    getEnvInt("RPC_BREAKER_FAILURES", 5),
			BreakerOpenTimeout: getEnvSeconds("RPC_BREAKER_OPEN_SEC", 30),
			CooldownCacheTTL:   getEnvSeconds("COOLDOWN_CACHE_TTL_SEC", 0),
			GasBufferPercent:   getEnvInt("GAS_BUFFER_PERCENT", 20),
		},
		Directory: DirectoryConfig{
			SubgraphURL: getEnv("DIRECTORY_SUBGRAPH_URL", ""),
			Timeout:     getEnvSeconds("DIRECTORY_TIMEOUT_SEC", 15),
		},
		DB: DBConfig{
			URL:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 5),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 30)) * time.Minute,
			MigrationsDir:   getEnv("DB_MIGRATIONS_DIR", "internal/store/postgres/migrations"),
		},
		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", ""),
			Stream: getEnv("REDIS_STREAM", "keeper:rebalance"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvBool("TRACING_ENABLED", false),
			Endpoint:    getEnv("TRACING_ENDPOINT", "localhost:4317"),
			Insecure:    getEnvBool("TRACING_INSECURE", true),
			SampleRatio: getEnvFloat("TRACING_SAMPLE_RATIO", 1),
		},
		Alert: AlertConfig{
			SlackWebhookURL: getEnv("ALERT_SLACK_WEBHOOK_URL", ""),
			WebhookURL:      getEnv("ALERT_WEBHOOK_URL", ""),
			Cooldown:        getEnvSeconds("ALERT_COOLDOWN_SEC", 1800),
		},
		Report: ReportConfig{
			Cron:   getEnv("REPORT_CRON", "@every 1h"),
			Window: time.Duration(getEnvInt("REPORT_WINDOW_MIN", 60)) * time.Minute,
		},
		Server: ServerConfig{
			HealthPort: getEnvInt("HEALTH_PORT", 8080),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		BotsPath: getEnv("KEEPER_CONFIG_PATH", "configs/keeper.yaml"),
	}

	bots, err := LoadBots(cfg.BotsPath)
	if err != nil {
		return nil, err
	}
	cfg.Bots = bots

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Keeper.AttemptRetry <= 0 {
		return fmt.Errorf("REBALANCE_ATTEMPT_RETRY_SEC must be positive")
	}
	if c.Keeper.IdleRetry <= 0 {
		return fmt.Errorf("REBALANCE_IDLE_RETRY_SEC must be positive")
	}
	if c.Keeper.Buffer < 0 {
		return fmt.Errorf("REBALANCE_BUFFER_SEC must not be negative")
	}
	if c.Keeper.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT_SEC must be positive")
	}
	if c.RPC.ReadAttempts < 1 {
		return fmt.Errorf("RPC_READ_ATTEMPTS must be at least 1")
	}
	if c.RPC.GasBufferPercent < 0 {
		return fmt.Errorf("GAS_BUFFER_PERCENT must not be negative")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0, 1]")
	}
	if c.Server.HealthPort <= 0 || c.Server.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be a valid port")
	}
	enabled := 0
	for _, b := range c.Bots {
		if b.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("%s defines no enabled bots", c.BotsPath)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Second
}
