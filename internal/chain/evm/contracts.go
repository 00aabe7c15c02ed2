package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const coordinatorABIJSON = `[
	{"type":"function","name":"assetLastRebalancedAt","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rebalanceDelay","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rebalance","stateMutability":"nonpayable",
	 "inputs":[{"name":"asset","type":"address"}],"outputs":[]}
]`

const withdrawalQueueABIJSON = `[
	{"type":"function","name":"getSharesOwedInCurrentEpoch","stateMutability":"view",
	 "inputs":[{"name":"asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	coordinatorABI     = mustParseABI(coordinatorABIJSON)
	withdrawalQueueABI = mustParseABI(withdrawalQueueABIJSON)
	erc20ABI           = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// ERC20 is a read handle on one token contract.
type ERC20 struct {
	Address common.Address
}

func (t *ERC20) balanceOfInput(holder common.Address) ([]byte, error) {
	return erc20ABI.Pack("balanceOf", holder)
}

// unpackUint256 decodes the single uint256 return value of method.
func unpackUint256(contract abi.ABI, method string, output []byte) (*big.Int, error) {
	values, err := contract.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: expected 1 value, got %d", method, len(values))
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, values[0])
	}
	return value, nil
}
