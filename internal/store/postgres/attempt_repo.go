package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
	"github.com/emperorhan/restaking-keeper/internal/store"
)

const defaultListLimit = 50

var _ store.AttemptRepository = (*AttemptRepo)(nil)

// AttemptRepo journals scheduler cycles in rebalance_attempts.
type AttemptRepo struct {
	db *DB
}

func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// RecordAttempt inserts one cycle record. Re-recording the same ID is a no-op.
func (r *AttemptRepo) RecordAttempt(ctx context.Context, a *model.RebalanceAttempt) error {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rebalance_attempts (
			id, chain_id, token, asset_symbol, asset_address, outcome,
			tx_hash, error, next_check_ms, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		a.ID, int64(a.ChainID), a.Token, a.AssetSymbol, a.AssetAddress, a.Outcome,
		nullString(a.TxHash), nullString(a.Error), a.NextCheck.Milliseconds(),
		a.StartedAt, a.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rebalance attempt: %w", err)
	}
	return nil
}

// ListRecent returns the newest attempts for one (chain, token, asset
// symbol), newest first. limit <= 0 uses a default page size.
func (r *AttemptRepo) ListRecent(ctx context.Context, chainID model.ChainID, token, asset string, limit int) ([]model.RebalanceAttempt, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chain_id, token, asset_symbol, asset_address, outcome,
			tx_hash, error, next_check_ms, started_at, finished_at
		FROM rebalance_attempts
		WHERE chain_id = $1 AND token = $2 AND asset_symbol = $3
		ORDER BY finished_at DESC
		LIMIT $4
	`, int64(chainID), token, asset, limit)
	if err != nil {
		return nil, fmt.Errorf("list rebalance attempts: %w", err)
	}
	defer rows.Close()

	var out []model.RebalanceAttempt
	for rows.Next() {
		var (
			a           model.RebalanceAttempt
			chain       int64
			txHash      sql.NullString
			errText     sql.NullString
			nextCheckMS int64
		)
		if err := rows.Scan(
			&a.ID, &chain, &a.Token, &a.AssetSymbol, &a.AssetAddress, &a.Outcome,
			&txHash, &errText, &nextCheckMS, &a.StartedAt, &a.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan rebalance attempt: %w", err)
		}
		a.ChainID = model.ChainID(chain)
		a.TxHash = txHash.String
		a.Error = errText.String
		a.NextCheck = time.Duration(nextCheckMS) * time.Millisecond
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rebalance attempts: %w", err)
	}
	return out, nil
}

// SummarizeSince counts attempts per (chain, token, asset, outcome) that
// finished at or after since.
func (r *AttemptRepo) SummarizeSince(ctx context.Context, since time.Time) ([]model.AttemptSummary, error) {
	ctx, cancel := withTimeout(ctx, DefaultQueryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT chain_id, token, asset_symbol, outcome, COUNT(*), MAX(finished_at)
		FROM rebalance_attempts
		WHERE finished_at >= $1
		GROUP BY chain_id, token, asset_symbol, outcome
		ORDER BY chain_id, token, asset_symbol, outcome
	`, since)
	if err != nil {
		return nil, fmt.Errorf("summarize rebalance attempts: %w", err)
	}
	defer rows.Close()

	var out []model.AttemptSummary
	for rows.Next() {
		var (
			s     model.AttemptSummary
			chain int64
		)
		if err := rows.Scan(&chain, &s.Token, &s.AssetSymbol, &s.Outcome, &s.Count, &s.LastAt); err != nil {
			return nil, fmt.Errorf("scan attempt summary: %w", err)
		}
		s.ChainID = model.ChainID(chain)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempt summaries: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
