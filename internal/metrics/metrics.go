package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Keeper counters, gauges and histograms, partitioned by chain + token
// (and asset where the cardinality is bounded by configuration).

var (
	// Scheduler
	SchedulerCyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Total decision cycles by outcome",
	}, []string{"chain", "token", "asset", "outcome"})

	SchedulerCycleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "keeper",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Decision cycle duration including any chain write",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"chain", "token"})

	SchedulerNextCheckSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "scheduler",
		Name:      "next_check_seconds",
		Help:      "Delay the scheduler was last re-armed with",
	}, []string{"chain", "token", "asset"})

	SchedulerCooldownRemainingSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "scheduler",
		Name:      "cooldown_remaining_seconds",
		Help:      "Seconds until the on-chain rebalance cooldown lifts (0 when elapsed)",
	}, []string{"chain", "token", "asset"})

	// Rebalance submissions
	RebalanceSubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "rebalance",
		Name:      "submissions_total",
		Help:      "Total rebalance transactions attempted",
	}, []string{"chain", "token", "asset", "status"})

	// Supervisor
	SupervisorSchedulers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "supervisor",
		Name:      "schedulers",
		Help:      "Running asset schedulers",
	}, []string{"chain"})

	SupervisorPairFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "supervisor",
		Name:      "pair_failures_total",
		Help:      "Chain/token pairs skipped at start-up",
	}, []string{"chain", "token"})

	// RPC
	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total chain RPC calls by method and status",
	}, []string{"chain", "method", "status"})

	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "RPC calls delayed by the client-side rate limiter",
	}, []string{"chain"})

	RPCReadRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "rpc",
		Name:      "read_retries_total",
		Help:      "Transient read failures retried inside a cycle",
	}, []string{"chain", "method"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "rpc",
		Name:      "circuit_breaker_state",
		Help:      "RPC circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"chain"})

	// Outcome sinks
	JournalWriteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "journal",
		Name:      "write_errors_total",
		Help:      "Failed outcome writes by sink",
	}, []string{"sink"})

	// Journal database pool
	DBPoolOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "db_pool",
		Name:      "open_connections",
		Help:      "Open connections in the journal database pool",
	}, []string{"pool"})

	DBPoolInUse = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "db_pool",
		Name:      "in_use",
		Help:      "Journal database connections in use",
	}, []string{"pool"})

	DBPoolIdle = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "db_pool",
		Name:      "idle",
		Help:      "Idle journal database connections",
	}, []string{"pool"})

	DBPoolWaitCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "db_pool",
		Name:      "wait_count",
		Help:      "Cumulative waits for a journal database connection",
	}, []string{"pool"})

	DBPoolWaitDurationSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "db_pool",
		Name:      "wait_duration_seconds",
		Help:      "Cumulative time spent waiting for a journal database connection",
	}, []string{"pool"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "keeper",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Alerts suppressed by cooldown",
	}, []string{"channel", "type"})

	// Health
	AssetHealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "keeper",
		Subsystem: "health",
		Name:      "asset_status",
		Help:      "Asset scheduler health (1=healthy, 0=unhealthy, 0.5=unknown)",
	}, []string{"chain", "token", "asset"})
)
