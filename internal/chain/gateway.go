package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
)

// Gateway is the keeper's view of one chain: the reads a rebalance decision
// needs and the single write it may issue. Implementations are safe for
// concurrent use by every scheduler on that chain.
type Gateway interface {
	// ChainID returns the chain this gateway talks to.
	ChainID() model.ChainID

	// LastRebalancedAt returns the unix time of the asset's last rebalance.
	LastRebalancedAt(ctx context.Context, token model.RestakingToken, asset model.Asset) (int64, error)

	// RebalanceCooldown returns the coordinator's rebalance delay in seconds.
	// The value is fixed per deployment and may be cached.
	RebalanceCooldown(ctx context.Context, token model.RestakingToken) (int64, error)

	// SharesOwedInCurrentEpoch returns the withdrawal shares owed for asset.
	SharesOwedInCurrentEpoch(ctx context.Context, token model.RestakingToken, asset model.Asset) (*big.Int, error)

	// DepositPoolBalance returns the deposit pool's holding of asset: the
	// native balance for the native asset, balanceOf otherwise.
	DepositPoolBalance(ctx context.Context, token model.RestakingToken, asset model.Asset) (*big.Int, error)

	// SubmitRebalance simulates coordinator.rebalance(asset) and, when the
	// simulation succeeds, signs and broadcasts it. It returns the tx hash.
	SubmitRebalance(ctx context.Context, token model.RestakingToken, asset model.Asset) (string, error)
}

// CallError is returned by Gateway implementations for any failed call.
type CallError struct {
	Op    string
	Token string
	Asset string
	Err   error
}

func (e *CallError) Error() string {
	switch {
	case e.Asset != "":
		return fmt.Sprintf("%s(%s/%s): %v", e.Op, e.Token, e.Asset, e.Err)
	case e.Token != "":
		return fmt.Sprintf("%s(%s): %v", e.Op, e.Token, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewCallError wraps err with the failed operation. It returns nil for a nil err.
func NewCallError(op string, token model.RestakingToken, asset *model.Asset, err error) error {
	if err == nil {
		return nil
	}
	ce := &CallError{Op: op, Token: token.Symbol, Err: err}
	if asset != nil {
		ce.Asset = asset.String()
	}
	return ce
}
