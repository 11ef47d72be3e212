package common

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat40Encoding(t *testing.T) {
	testVector := map[Float40]string{
		6*0x800000000 + 123:    "123000000",
		2*0x800000000 + 4545:   "454500",
		30*0x800000000 + 10235: "10235000000000000000000000000000000",
		0x000000000:            "0",
		0x800000000:            "0",
		0x0001:                 "1",
		0x0401:                 "1025",
		0x800000000 + 1:        "10",
		0xFFFFFFFFFF:           "343597383670000000000000000000000000000000",
	}
	for f40, s := range testVector {
		v, err := f40.BigInt()
		require.NoError(t, err)
		assert.Equal(t, s, v.String())

		b, err := f40.Bytes()
		require.NoError(t, err)
		assert.Len(t, b, Float40BytesLength)
		assert.Equal(t, f40, Float40FromBytes(b))
	}
}

func TestNewFloat40(t *testing.T) {
	for _, s := range []string{"0", "1", "1025", "454500", "123000000",
		"34359738370", "343597383670000000000000000000000000000000"} {
		v, _ := new(big.Int).SetString(s, 10)
		f40, err := NewFloat40(v)
		require.NoError(t, err)
		back, err := f40.BigInt()
		require.NoError(t, err)
		assert.Equal(t, 0, v.Cmp(back), s)
	}

	// Small amounts keep the exponent at 0
	f40, err := NewFloat40(big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, Float40(1000), f40)

	_, err = NewFloat40(big.NewInt(0x800000001))
	assert.Equal(t, ErrFloat40NotEnoughPrecission, Unwrap(err))

	tooBig := new(big.Int).Exp(big.NewInt(10), big.NewInt(44), nil)
	_, err = NewFloat40(tooBig)
	assert.Equal(t, ErrFloat40E31, Unwrap(err))

	_, err = Float40(0x10000000000).Bytes()
	assert.Equal(t, ErrFloat40Overflow, Unwrap(err))
}
