package common

import (
	"encoding/binary"
	"errors"
	"math/big"
)

const (
	// Float40BytesLength defines the length of the Float40 values
	// represented as byte arrays
	Float40BytesLength = 5

	float40MaxValue     = 1<<40 - 1
	float40MantissaBits = 35
	float40MantissaMask = 1<<float40MantissaBits - 1
	float40MaxExp       = 31
)

var (
	// ErrFloat40Overflow is used when a given Float40 overflows the
	// maximum capacity of the Float40 (2**40-1)
	ErrFloat40Overflow = errors.New("Float40 overflow, max value: 2**40 -1")
	// ErrFloat40E31 is used when the exponent needed to encode an amount
	// is greater than 31
	ErrFloat40E31 = errors.New("Float40 error, e > 31")
	// ErrFloat40NotEnoughPrecission is used when an amount has more
	// significant digits than the 35 bit mantissa can hold
	ErrFloat40NotEnoughPrecission = errors.New("Float40 error, not enough precission")

	float40MantissaLimit = big.NewInt(1 << float40MantissaBits)
	bigTen               = big.NewInt(10) //nolint:gomnd
)

// Float40 is an amount m * 10^e packed in 40 bits: the exponent e in the 5
// high bits and the mantissa m in the 35 low bits
type Float40 uint64

// Bytes returns the 5 byte big endian encoding of the Float40
func (f40 Float40) Bytes() ([]byte, error) {
	if f40 > float40MaxValue {
		return nil, Wrap(ErrFloat40Overflow)
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(f40))
	return b[8-Float40BytesLength:], nil
}

// Float40FromBytes decodes the 5 byte big endian encoding of a Float40
func Float40FromBytes(b []byte) Float40 {
	var buf [8]byte
	copy(buf[8-Float40BytesLength:], b)
	return Float40(binary.BigEndian.Uint64(buf[:]))
}

// BigInt returns the amount encoded by the Float40
func (f40 Float40) BigInt() (*big.Int, error) {
	if f40 > float40MaxValue {
		return nil, Wrap(ErrFloat40Overflow)
	}
	e := uint64(f40) >> float40MantissaBits
	m := uint64(f40) & float40MantissaMask
	v := new(big.Int).Exp(bigTen, new(big.Int).SetUint64(e), nil)
	return v.Mul(v, new(big.Int).SetUint64(m)), nil
}

// NewFloat40 encodes an amount as a Float40.  Trailing zeros are moved to
// the exponent only while the mantissa doesn't fit in 35 bits, and an error is
// returned when the amount can't be encoded without loss.
func NewFloat40(f *big.Int) (Float40, error) {
	m := new(big.Int).Set(f)
	var e uint64
	rem := new(big.Int)
	for m.Cmp(float40MantissaLimit) >= 0 {
		q, r := new(big.Int).QuoRem(m, bigTen, rem)
		if r.Sign() != 0 {
			break
		}
		m = q
		e++
	}
	if e > float40MaxExp {
		return 0, Wrap(ErrFloat40E31)
	}
	if m.Cmp(float40MantissaLimit) >= 0 {
		return 0, Wrap(ErrFloat40NotEnoughPrecission)
	}
	return Float40(e<<float40MantissaBits | m.Uint64()), nil
}
