package common

import (
	"encoding/binary"
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

const (
	// NLevelsAsBytes is the number of bytes used to represent an idx
	NLevelsAsBytes = 6
	// maxIdxValue is the maximum value that an idx can have (48 bits)
	maxIdxValue = 0xffffffffffff

	// UserThreshold determines the threshold from the User Idxs can be
	UserThreshold = 256
	// IdxUserThreshold is a AccountIdx type value that determines the
	// threshold from the User Idxs can be
	IdxUserThreshold = AccountIdx(UserThreshold)
)

var (
	// EmptyAddr is used to check if an ethereum address is 0
	EmptyAddr = ethCommon.HexToAddress("0x0000000000000000000000000000000000000000")
	// EmptyBJJComp contains the 32 byte array of a empty BabyJubJub PublicKey
	// Compressed. It is a valid point in the BabyJubJub curve, so does not
	// give errors when being decompressed.
	EmptyBJJComp = babyjub.PublicKeyComp([32]byte{})
)

// AccountIdx represents the account index in the rollup state tree
type AccountIdx uint64

// Bytes returns a byte array of length 6 representing the AccountIdx
func (idx AccountIdx) Bytes() ([NLevelsAsBytes]byte, error) {
	if idx > maxIdxValue {
		return [NLevelsAsBytes]byte{}, Wrap(ErrIdxOverflow)
	}
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], uint64(idx))
	var b [NLevelsAsBytes]byte
	copy(b[:], idxBytes[8-NLevelsAsBytes:])
	return b, nil
}

// AccountIdxFromBytes returns AccountIdx from a byte array of length 6
func AccountIdxFromBytes(b []byte) (AccountIdx, error) {
	if len(b) != NLevelsAsBytes {
		return 0, Wrap(fmt.Errorf("can not parse Idx, bytes len %d, expected %d",
			len(b), NLevelsAsBytes))
	}
	var idxBytes [8]byte
	copy(idxBytes[8-NLevelsAsBytes:], b[:])
	return AccountIdx(binary.BigEndian.Uint64(idxBytes[:])), nil
}
