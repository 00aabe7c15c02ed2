package evm

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoSigner is returned by writes on a gateway built without a key.
var ErrNoSigner = errors.New("no signing key configured")

// Signer holds the keeper's transaction key for one chain.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, ErrNoSigner
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

type legacyTx struct {
	nonce    uint64
	to       common.Address
	gas      uint64
	gasPrice *big.Int
	data     []byte
}

// sign returns the raw 0x-encoded signed transaction and its hash.
func (s *Signer) sign(chainID *big.Int, in legacyTx) (string, common.Hash, error) {
	to := in.to
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    in.nonce,
		GasPrice: in.gasPrice,
		Gas:      in.gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     in.data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return "", common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return "", common.Hash{}, fmt.Errorf("encode tx: %w", err)
	}
	return hexutil.Encode(raw), signed.Hash(), nil
}
