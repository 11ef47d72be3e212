package common

import (
	"encoding/binary"
	"fmt"
)

// TokenID is the unique identifier of the token, as set in the rollup
type TokenID uint32

// Bytes returns a byte array of length 4 representing the TokenID
func (t TokenID) Bytes() []byte {
	var tokenIDBytes [4]byte
	binary.BigEndian.PutUint32(tokenIDBytes[:], uint32(t))
	return tokenIDBytes[:]
}

// TokenIDFromBytes returns TokenID from a byte array of length 4
func TokenIDFromBytes(b []byte) (TokenID, error) {
	if len(b) != 4 { //nolint:gomnd
		return 0, Wrap(fmt.Errorf("can not parse TokenID, bytes len %d, expected 4", len(b)))
	}
	return TokenID(binary.BigEndian.Uint32(b)), nil
}
