package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	appmetrics "github.com/emperorhan/restaking-keeper/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDBStatsProvider struct {
	stats sql.DBStats
}

func (f fakeDBStatsProvider) Stats() sql.DBStats {
	return f.stats
}

type panicDBStatsProvider struct{}

func (panicDBStatsProvider) Stats() sql.DBStats {
	panic("db stats temporarily unavailable")
}

func testGauges(prefix string) dbPoolStatsGauges {
	vec := func(name string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: prefix + "_" + name}, []string{"pool"})
	}
	return dbPoolStatsGauges{
		open:         vec("open"),
		inUse:        vec("in_use"),
		idle:         vec("idle"),
		waitCount:    vec("wait_count"),
		waitDuration: vec("wait_duration_seconds"),
	}
}

func TestCollectDBPoolStats_RecordsPoolMetrics(t *testing.T) {
	provider := fakeDBStatsProvider{
		stats: sql.DBStats{
			OpenConnections: 5,
			InUse:           2,
			Idle:            3,
			WaitCount:       13,
			WaitDuration:    1500 * time.Millisecond,
		},
	}
	gauges := testGauges("test_db_pool")

	require.NoError(t, collectDBPoolStats(provider, gauges))

	assert.Equal(t, 5.0, readGaugeValue(t, gauges.open, journalPoolLabel))
	assert.Equal(t, 2.0, readGaugeValue(t, gauges.inUse, journalPoolLabel))
	assert.Equal(t, 3.0, readGaugeValue(t, gauges.idle, journalPoolLabel))
	assert.Equal(t, 13.0, readGaugeValue(t, gauges.waitCount, journalPoolLabel))
	assert.Equal(t, 1.5, readGaugeValue(t, gauges.waitDuration, journalPoolLabel))
}

func TestCollectDBPoolStats_ReturnsErrorOnPanic(t *testing.T) {
	err := collectDBPoolStats(panicDBStatsProvider{}, testGauges("test_db_pool_panic"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestCollectDBPoolStats_NilProvider(t *testing.T) {
	err := collectDBPoolStats(nil, testGauges("test_db_pool_nil"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestStartDBPoolStatsPump_CollectsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := fakeDBStatsProvider{stats: sql.DBStats{OpenConnections: 4, Idle: 4}}
	startDBPoolStatsPump(ctx, provider, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Eventually(t, func() bool {
		return readGaugeValue(t, appmetrics.DBPoolOpen, journalPoolLabel) == 4
	}, time.Second, 10*time.Millisecond)
}

func TestStartDBPoolStatsPump_IgnoresInvalidInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NotPanics(t, func() {
		startDBPoolStatsPump(context.Background(), nil, time.Second, logger)
		startDBPoolStatsPump(context.Background(), fakeDBStatsProvider{}, 0, logger)
	})
}

func readGaugeValue(t *testing.T, gauge *prometheus.GaugeVec, pool string) float64 {
	t.Helper()
	metricCh := make(chan prometheus.Metric, 1)
	gauge.WithLabelValues(pool).Collect(metricCh)

	metric := <-metricCh
	dtoMetric := &dto.Metric{}
	require.NoError(t, metric.Write(dtoMetric))

	return dtoMetric.GetGauge().GetValue()
}
