package model

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAssetIsNative(t *testing.T) {
	assert.True(t, Asset{Address: common.Address{}}.IsNative())
	assert.True(t, Asset{Address: NativeAssetSentinel}.IsNative())
	assert.False(t, Asset{Address: common.HexToAddress("0xae7ab96520de3a18e5e111b5eaab095312d7fe84")}.IsNative())
}

func TestAssetKey(t *testing.T) {
	a := Asset{Address: common.HexToAddress("0xAE7AB96520DE3A18E5E111B5EAAB095312D7FE84"), ChainID: ChainHolesky}
	assert.Equal(t, "17000:0xae7ab96520de3a18e5e111b5eaab095312d7fe84", a.Key())
}

func TestAssetString(t *testing.T) {
	assert.Equal(t, "cbETH", Asset{Symbol: "cbETH"}.String())
	assert.Equal(t, "0x0000000000000000000000000000000000000001", Asset{Address: common.HexToAddress("0x1")}.String())
}

func TestNativeDepositFloor(t *testing.T) {
	assert.Equal(t, "32000000000000000000", NativeDepositFloor.String())
}
