package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAssetSentinel is the placeholder address several restaking
// protocols use for the chain's native asset.
var NativeAssetSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// NativeDepositFloor is the minimum native deposit-pool balance worth a
// rebalance: one validator stake, 32 ether in wei.
var NativeDepositFloor = new(big.Int).Mul(big.NewInt(32), big.NewInt(1e18))

// Asset identifies one rebalance-able underlying asset of a restaking token.
type Asset struct {
	Address common.Address
	Symbol  string
	ChainID ChainID
}

// IsNative reports whether the asset is the chain's native coin rather
// than an ERC20 token.
func (a Asset) IsNative() bool {
	return a.Address == (common.Address{}) || a.Address == NativeAssetSentinel
}

func (a Asset) String() string {
	if a.Symbol != "" {
		return a.Symbol
	}
	return a.Address.Hex()
}

// Key is unique per (chain, asset address).
func (a Asset) Key() string {
	return fmt.Sprintf("%d:%s", a.ChainID, strings.ToLower(a.Address.Hex()))
}

// RestakingToken is a liquid wrapper over one or more underlying assets.
// Assets is filled by the asset directory at start-up.
type RestakingToken struct {
	Symbol          string
	ChainID         ChainID
	Coordinator     common.Address
	WithdrawalQueue common.Address
	DepositPool     common.Address
	Assets          []Asset

	// ConfigErr marks a token entry that failed validation; only this
	// token is skipped.
	ConfigErr error
}

func (t RestakingToken) String() string {
	return t.Symbol
}
