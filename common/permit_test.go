package common

import (
	"encoding/hex"
	"math/big"
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermitSelector(t *testing.T) {
	assert.Equal(t, "d505accf", hex.EncodeToString(PermitSelector))
}

func TestDecodePermit(t *testing.T) {
	p := &Permit{
		Owner:    ethCommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		Spender:  ethCommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:    big.NewInt(1000),
		Deadline: big.NewInt(99999),
		V:        28,
		R:        [32]byte{1, 2, 3},
		S:        [32]byte{4, 5, 6},
	}
	data, err := p.Bytes()
	require.NoError(t, err)
	assert.Equal(t, PermitDataLen, len(data))

	decoded, err := DecodePermit(data)
	require.NoError(t, err)
	assert.Equal(t, p, decoded)

	// No permit
	decoded, err = DecodePermit(nil)
	require.NoError(t, err)
	assert.Nil(t, decoded)

	// Wrong selector
	wrong := append([]byte{}, data...)
	wrong[0] = 0
	_, err = DecodePermit(wrong)
	assert.Equal(t, ErrNotValidCall, Unwrap(err))

	// Wrong length
	_, err = DecodePermit(data[:len(data)-1])
	assert.Equal(t, ErrNotValidCall, Unwrap(err))
	_, err = DecodePermit(append(append([]byte{}, data...), 0))
	assert.Equal(t, ErrNotValidCall, Unwrap(err))

	// Dirty padding of the owner address
	dirty := append([]byte{}, data...)
	dirty[4] = 0xff
	_, err = DecodePermit(dirty)
	assert.Equal(t, ErrNotValidCall, Unwrap(err))

	// Dirty padding of v
	dirty = append([]byte{}, data...)
	dirty[4+4*32] = 0x01
	_, err = DecodePermit(dirty)
	assert.Equal(t, ErrNotValidCall, Unwrap(err))
}

func TestBidBytes(t *testing.T) {
	bid := &Bid{
		SlotNum:     42,
		BidValue:    new(big.Int).Mul(big.NewInt(11), big.NewInt(1e18)),
		EthBlockNum: 100,
		Bidder:      ethCommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		Forger:      ethCommon.HexToAddress("0x2222222222222222222222222222222222222222"),
		URL:         "https://coordinator.example",
		Fulfilled:   true,
	}
	b, err := bid.Bytes()
	require.NoError(t, err)
	decoded, err := BidFromBytes(b)
	require.NoError(t, err)
	assert.Equal(t, bid, decoded)

	bid.BidValue = new(big.Int).Lsh(big.NewInt(1), 128)
	_, err = bid.Bytes()
	assert.Equal(t, ErrAmountOverflow, Unwrap(err))
}
