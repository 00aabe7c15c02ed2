package model

import "strconv"

// ChainID is an EVM chain identifier.
type ChainID int64

const (
	ChainEthereum ChainID = 1
	ChainGoerli   ChainID = 5
	ChainHolesky  ChainID = 17000
	ChainSepolia  ChainID = 11155111
)

var chainNames = map[ChainID]string{
	ChainEthereum: "ethereum",
	ChainGoerli:   "goerli",
	ChainHolesky:  "holesky",
	ChainSepolia:  "sepolia",
}

// String returns the well-known network name, or the decimal ID for
// chains this keeper has no name for.
func (c ChainID) String() string {
	if name, ok := chainNames[c]; ok {
		return name
	}
	return strconv.FormatInt(int64(c), 10)
}

// Known reports whether the chain has a registered name.
func (c ChainID) Known() bool {
	_, ok := chainNames[c]
	return ok
}

// Label is the metrics/log label for the chain ("ethereum", "17000", ...).
func (c ChainID) Label() string {
	return c.String()
}
