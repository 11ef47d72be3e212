package common

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// maxUint128 is the maximum value of the token amounts handled by the auction
var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1)) //nolint:gomnd

// SwapEndianness swaps the order of the bytes in the slice.
func SwapEndianness(b []byte) []byte {
	o := make([]byte, len(b))
	for i := range b {
		o[len(b)-1-i] = b[i]
	}
	return o
}

// EthAddrToBigInt returns a *big.Int from a given ethereum common.Address.
func EthAddrToBigInt(a ethCommon.Address) *big.Int {
	return new(big.Int).SetBytes(a.Bytes())
}

// CheckAmount returns an error if the amount is nil, negative or doesn't fit
// in 128 bits
func CheckAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 || amount.Cmp(maxUint128) > 0 {
		return Wrap(ErrAmountOverflow)
	}
	return nil
}

// BigIntOrZero returns a copy of v, or zero when v is nil
func BigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
