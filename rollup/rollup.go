/*
Package rollup implements the entry point of the batches: it checks the
forging rights of the caller in the auction, enforces the L1 batch timeout,
consumes the L1 user tx queue, verifies the batch proof and settles the slot.

State keys in the chain store:

	"ru:v" -> RollupVariables (json)
	"ru:b" -> lastForgedBatch [8 bytes] | lastL1L2Batch [8 bytes]
*/
package rollup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/l1queue"
	"tokamak-forge-auction/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

var (
	keyVars    = []byte("ru:v")
	keyBatches = []byte("ru:b")
)

// Verifier checks the proof of a batch for its input hash
type Verifier interface {
	VerifyProof(proofA [2]*big.Int, proofB [2][2]*big.Int, proofC [2]*big.Int,
		input *big.Int) (bool, error)
}

// StateUpdater records the state roots of the forged batches.  The rollup
// reads the previous state to build the input hash and trusts the proof for
// the new one.
type StateUpdater interface {
	State(tx *chain.Tx) (*State, error)
	Update(tx *chain.Tx, batchNum common.BatchNum, newLastIdx int64,
		newStRoot, newExitRoot *big.Int) error
}

// Auction is the part of the auction used by the rollup
type Auction interface {
	CanForge(tx *chain.Tx, forger ethCommon.Address, blockNum int64) (bool, error)
	Forge(tx *chain.Tx, forger ethCommon.Address) (*common.ForgeAllocation, error)
	GetCurrentSlotNumber(tx *chain.Tx) (int64, error)
}

// Rollup is the forge gate of the rollup
type Rollup struct {
	consts    common.RollupConstants
	auction   Auction
	queue     *l1queue.Queue
	verifiers []Verifier
	updater   StateUpdater
}

// NewRollup creates a Rollup.  verifiers are selected by the VerifierIdx of
// each batch and must match consts.Verifiers.
func NewRollup(consts *common.RollupConstants, auction Auction, verifiers []Verifier,
	updater StateUpdater) (*Rollup, error) {
	if len(verifiers) != len(consts.Verifiers) {
		return nil, common.Wrap(fmt.Errorf("%d verifiers for %d verifier constants",
			len(verifiers), len(consts.Verifiers)))
	}
	maxPending := consts.MaxPendingQueues
	if maxPending == 0 {
		maxPending = common.RollupConstDefaultMaxPendingQueues
	}
	queue, err := l1queue.NewQueue(maxPending)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return &Rollup{
		consts:    *consts,
		auction:   auction,
		queue:     queue,
		verifiers: verifiers,
		updater:   updater,
	}, nil
}

// Constants returns the rollup constants
func (r *Rollup) Constants() *common.RollupConstants {
	return &r.consts
}

// Queue returns the L1 user tx queue
func (r *Rollup) Queue() *l1queue.Queue {
	return r.queue
}

// Variables returns the rollup variables
func (r *Rollup) Variables(tx *chain.Tx) (*common.RollupVariables, error) {
	b, err := tx.Get(keyVars)
	if chain.IsNotFound(err) {
		return nil, common.Wrap(common.ErrNotInitialized)
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	var vars common.RollupVariables
	if err := json.Unmarshal(b, &vars); err != nil {
		return nil, common.Wrap(err)
	}
	return &vars, nil
}

func (r *Rollup) setVariables(tx *chain.Tx, vars *common.RollupVariables) error {
	b, err := json.Marshal(vars)
	if err != nil {
		return common.Wrap(err)
	}
	return tx.Put(keyVars, b)
}

func (r *Rollup) batches(tx *chain.Tx) (lastForgedBatch common.BatchNum, lastL1L2Batch int64,
	err error) {
	b, err := tx.Get(keyBatches)
	if chain.IsNotFound(err) {
		return 0, 0, nil
	} else if err != nil {
		return 0, 0, common.Wrap(err)
	}
	if len(b) != 16 { //nolint:gomnd
		return 0, 0, common.Wrap(fmt.Errorf("invalid rollup batches length %d", len(b)))
	}
	return common.BatchNum(binary.BigEndian.Uint64(b[0:8])),
		int64(binary.BigEndian.Uint64(b[8:16])), nil
}

func (r *Rollup) setBatches(tx *chain.Tx, lastForgedBatch common.BatchNum,
	lastL1L2Batch int64) error {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(lastForgedBatch))
	binary.BigEndian.PutUint64(b[8:16], uint64(lastL1L2Batch))
	return tx.Put(keyBatches, b[:])
}

// LastForgedBatch returns the number of the last forged batch
func (r *Rollup) LastForgedBatch(tx *chain.Tx) (common.BatchNum, error) {
	batchNum, _, err := r.batches(tx)
	return batchNum, err
}

// LastL1L2Batch returns the block of the last forged L1 batch
func (r *Rollup) LastL1L2Batch(tx *chain.Tx) (int64, error) {
	_, blockNum, err := r.batches(tx)
	return blockNum, err
}

func (r *Rollup) onlyGovernance(tx *chain.Tx) error {
	if tx.From != r.consts.GovernanceAddress {
		return common.Wrap(common.ErrOnlyGovernance)
	}
	return nil
}

func (r *Rollup) checkTimeout(timeout int64) error {
	if timeout <= 0 || timeout > r.consts.AbsoluteMaxL1L2BatchTimeout {
		return common.Wrap(common.ErrNotValidTimeout)
	}
	return nil
}

// Initialize sets the initial rollup variables.  It can be called once, by
// the governance.
func (r *Rollup) Initialize(tx *chain.Tx, forgeL1L2BatchTimeout int64) error {
	if err := r.onlyGovernance(tx); err != nil {
		return common.Wrap(err)
	}
	if _, err := r.Variables(tx); err == nil {
		return common.Wrap(common.ErrAlreadyInitialized)
	} else if common.Unwrap(err) != common.ErrNotInitialized {
		return common.Wrap(err)
	}
	if err := r.checkTimeout(forgeL1L2BatchTimeout); err != nil {
		return common.Wrap(err)
	}
	if err := r.setVariables(tx, &common.RollupVariables{
		EthBlockNum:           tx.BlockNum,
		ForgeL1L2BatchTimeout: forgeL1L2BatchTimeout,
	}); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventInitialize, &RollupEventInitialize{ForgeL1L2BatchTimeout: forgeL1L2BatchTimeout})
	log.Debugw("rollup initialized", "forgeL1L2BatchTimeout", forgeL1L2BatchTimeout)
	return nil
}

// UpdateForgeL1L2BatchTimeout sets the maximum number of blocks between L1
// batches.  Only the governance can call it.
func (r *Rollup) UpdateForgeL1L2BatchTimeout(tx *chain.Tx, newTimeout int64) error {
	if err := r.onlyGovernance(tx); err != nil {
		return common.Wrap(err)
	}
	vars, err := r.Variables(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := r.checkTimeout(newTimeout); err != nil {
		return common.Wrap(err)
	}
	vars.ForgeL1L2BatchTimeout = newTimeout
	vars.EthBlockNum = tx.BlockNum
	if err := r.setVariables(tx, vars); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventUpdateForgeL1L2BatchTimeout,
		&RollupEventUpdateForgeL1L2BatchTimeout{NewForgeL1L2BatchTimeout: newTimeout})
	return nil
}

// AddL1Transaction queues an L1 user tx sent by the caller.  It returns the
// queue index and the position of the tx in it.
func (r *Rollup) AddL1Transaction(tx *chain.Tx, l1Tx *common.L1Tx) (int64, int, error) {
	if _, err := r.Variables(tx); err != nil {
		return 0, 0, common.Wrap(err)
	}
	for _, amount := range []*big.Int{l1Tx.Amount, l1Tx.DepositAmount} {
		if amount != nil {
			if err := common.CheckAmount(amount); err != nil {
				return 0, 0, common.Wrap(err)
			}
		}
	}
	l1Tx.FromEthAddr = tx.From
	return r.queue.AddL1Transaction(tx, l1Tx)
}
