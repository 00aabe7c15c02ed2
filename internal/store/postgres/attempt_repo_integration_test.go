//go:build integration

package postgres_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/store/postgres"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttempt(outcome string, finished time.Time) *model.RebalanceAttempt {
	return &model.RebalanceAttempt{
		ID:           uuid.New(),
		ChainID:      model.ChainHolesky,
		Token:        "rsETH",
		AssetSymbol:  "stETH",
		AssetAddress: "0x3F1c547b21f65e10480dE3ad8E19fAAC46C95034",
		Outcome:      outcome,
		NextCheck:    time.Minute,
		StartedAt:    finished.Add(-time.Second),
		FinishedAt:   finished,
	}
}

func TestAttemptRepo_RoundTrip(t *testing.T) {
	db := setupTestContainer(t)
	repo := postgres.NewAttemptRepo(db)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	first := newAttempt(model.OutcomeNothingToDo, base.Add(-10*time.Minute))
	second := newAttempt(model.OutcomeRebalanced, base)
	second.TxHash = "0xabc"
	failed := newAttempt(model.OutcomeSubmitFailed, base.Add(-5*time.Minute))
	failed.Error = "execution reverted"

	for _, a := range []*model.RebalanceAttempt{first, second, failed} {
		require.NoError(t, repo.RecordAttempt(ctx, a))
	}
	// Duplicate IDs are ignored.
	require.NoError(t, repo.RecordAttempt(ctx, second))

	recent, err := repo.ListRecent(ctx, model.ChainHolesky, "rsETH", "stETH", 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Equal(t, "0xabc", recent[0].TxHash)
	assert.Equal(t, time.Minute, recent[0].NextCheck)
	assert.Equal(t, "execution reverted", recent[1].Error)

	summaries, err := repo.SummarizeSince(ctx, base.Add(-time.Hour))
	require.NoError(t, err)
	counts := map[string]int64{}
	for _, s := range summaries {
		counts[s.Outcome] = s.Count
	}
	assert.Equal(t, map[string]int64{
		model.OutcomeNothingToDo:  1,
		model.OutcomeRebalanced:   1,
		model.OutcomeSubmitFailed: 1,
	}, counts)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := setupTestContainer(t)

	_, currentFile, _, _ := runtime.Caller(0)
	require.NoError(t, db.RunMigrations(context.Background(), filepath.Join(filepath.Dir(currentFile), "migrations")))

	var applied int
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}
