package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/metrics"
	"github.com/emperorhan/restaking-keeper/internal/store"
	storemocks "github.com/emperorhan/restaking-keeper/internal/store/mocks"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestFanOut_WritesEverySinkAndJoinsErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	journal := storemocks.NewMockAttemptSink(ctrl)
	stream := storemocks.NewMockAttemptSink(ctrl)

	attempt := &model.RebalanceAttempt{ID: uuid.New(), Outcome: model.OutcomeRebalanced}
	boom := errors.New("redis down")

	journal.EXPECT().RecordAttempt(gomock.Any(), attempt).Return(nil)
	stream.EXPECT().RecordAttempt(gomock.Any(), attempt).Return(boom)

	fan := store.NewFanOut(slog.New(slog.NewTextHandler(io.Discard, nil)))
	fan.Add("postgres", journal)
	fan.Add("fanout-test-redis", stream)
	fan.Add("ignored", nil)
	assert.Equal(t, 2, fan.Len())

	before := testutil.ToFloat64(metrics.JournalWriteErrors.WithLabelValues("fanout-test-redis"))
	err := fan.RecordAttempt(context.Background(), attempt)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.JournalWriteErrors.WithLabelValues("fanout-test-redis")))
}

func TestFanOut_EmptyIsNoop(t *testing.T) {
	fan := store.NewFanOut(slog.Default())
	assert.NoError(t, fan.RecordAttempt(context.Background(), &model.RebalanceAttempt{}))
}
