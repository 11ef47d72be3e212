package rollup

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
)

// InitialLastIdx is the last idx before the first batch: the idxs below
// common.UserThreshold are reserved
const InitialLastIdx = common.UserThreshold - 1

var (
	keyState        = []byte("ru:s")
	prefixExitRoots = []byte("ru:e:")
)

// State is the rollup state recorded after the last forged batch
type State struct {
	BatchNum  common.BatchNum
	LastIdx   int64
	StateRoot *big.Int
	ExitRoot  *big.Int
}

// stateLen is [8 bytes] batchNum | [8 bytes] lastIdx | [32 bytes] stateRoot |
// [32 bytes] exitRoot
const stateLen = 8 + 8 + 32 + 32

func (s *State) bytes() []byte {
	var b [stateLen]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(s.BatchNum))
	binary.BigEndian.PutUint64(b[8:16], uint64(s.LastIdx))
	s.StateRoot.FillBytes(b[16:48])
	s.ExitRoot.FillBytes(b[48:80])
	return b[:]
}

func stateFromBytes(b []byte) (*State, error) {
	if len(b) != stateLen {
		return nil, common.Wrap(fmt.Errorf("invalid rollup state length %d", len(b)))
	}
	return &State{
		BatchNum:  common.BatchNum(binary.BigEndian.Uint64(b[0:8])),
		LastIdx:   int64(binary.BigEndian.Uint64(b[8:16])),
		StateRoot: new(big.Int).SetBytes(b[16:48]),
		ExitRoot:  new(big.Int).SetBytes(b[48:80]),
	}, nil
}

// StoreUpdater is a StateUpdater that keeps the roots in the chain store.  It
// doesn't compute anything: the roots are trusted once the proof is verified.
type StoreUpdater struct{}

// State returns the state after the last forged batch
func (u *StoreUpdater) State(tx *chain.Tx) (*State, error) {
	b, err := tx.Get(keyState)
	if chain.IsNotFound(err) {
		return &State{
			LastIdx:   InitialLastIdx,
			StateRoot: big.NewInt(0),
			ExitRoot:  big.NewInt(0),
		}, nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return stateFromBytes(b)
}

// Update records the state after batchNum
func (u *StoreUpdater) Update(tx *chain.Tx, batchNum common.BatchNum, newLastIdx int64,
	newStRoot, newExitRoot *big.Int) error {
	s := &State{
		BatchNum:  batchNum,
		LastIdx:   newLastIdx,
		StateRoot: common.BigIntOrZero(newStRoot),
		ExitRoot:  common.BigIntOrZero(newExitRoot),
	}
	for _, root := range []*big.Int{s.StateRoot, s.ExitRoot} {
		if root.Sign() < 0 || root.BitLen() > 256 { //nolint:gomnd
			return common.Wrap(fmt.Errorf("root out of range: %s", root))
		}
	}
	if err := tx.Put(keyState, s.bytes()); err != nil {
		return common.Wrap(err)
	}
	key := append(append([]byte{}, prefixExitRoots...), batchNum.Bytes()...)
	var exitRoot [32]byte
	s.ExitRoot.FillBytes(exitRoot[:])
	return tx.Put(key, exitRoot[:])
}

// ExitRoot returns the exit root of batchNum
func (u *StoreUpdater) ExitRoot(tx *chain.Tx, batchNum common.BatchNum) (*big.Int, error) {
	key := append(append([]byte{}, prefixExitRoots...), batchNum.Bytes()...)
	b, err := tx.Get(key)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return new(big.Int).SetBytes(b), nil
}
