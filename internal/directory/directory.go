package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emperorhan/restaking-keeper/internal/domain/model"
)

// ErrNoAssets is returned when a token resolves to an empty asset list.
var ErrNoAssets = errors.New("no underlying assets")

// Directory lists the underlying assets of a restaking token. It is
// consulted once per token at supervisor start-up.
type Directory interface {
	Assets(ctx context.Context, token model.RestakingToken) ([]model.Asset, error)
}

// Static serves the assets configured on the token itself.
type Static struct{}

func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Assets(_ context.Context, token model.RestakingToken) ([]model.Asset, error) {
	if len(token.Assets) == 0 {
		return nil, fmt.Errorf("%s on chain %s: %w", token.Symbol, token.ChainID, ErrNoAssets)
	}
	return normalize(token.ChainID, token.Assets), nil
}

// Fallback asks Primary first and uses Secondary when it fails or returns
// nothing.
type Fallback struct {
	Primary   Directory
	Secondary Directory
	logger    *slog.Logger
}

func NewFallback(primary, secondary Directory, logger *slog.Logger) *Fallback {
	return &Fallback{
		Primary:   primary,
		Secondary: secondary,
		logger:    logger.With("component", "directory"),
	}
}

func (f *Fallback) Assets(ctx context.Context, token model.RestakingToken) ([]model.Asset, error) {
	assets, err := f.Primary.Assets(ctx, token)
	if err == nil && len(assets) > 0 {
		return assets, nil
	}
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	f.logger.Warn("primary asset directory unavailable, using fallback",
		"token", token.Symbol,
		"chain_id", int64(token.ChainID),
		"error", err,
	)
	return f.Secondary.Assets(ctx, token)
}

// normalize stamps the chain ID and drops duplicate addresses, keeping
// the first occurrence.
func normalize(chainID model.ChainID, assets []model.Asset) []model.Asset {
	out := make([]model.Asset, 0, len(assets))
	seen := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		a.ChainID = chainID
		a.Symbol = strings.TrimSpace(a.Symbol)
		if _, dup := seen[a.Key()]; dup {
			continue
		}
		seen[a.Key()] = struct{}{}
		out = append(out, a)
	}
	return out
}
