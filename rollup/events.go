package rollup

import (
	"math/big"

	"tokamak-forge-auction/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Names of the events emitted by the rollup
const (
	EventInitialize                  = "InitializeRollupEvent"
	EventForgeBatch                  = "ForgeBatch"
	EventUpdateForgeL1L2BatchTimeout = "UpdateForgeL1L2BatchTimeout"
)

// RollupEventInitialize is the InitializeRollupEvent event
type RollupEventInitialize struct {
	ForgeL1L2BatchTimeout int64
}

// RollupEventForgeBatch is emitted when a batch is forged.  It carries the
// forged L1 txs so that the history can be rebuilt from the events alone.
type RollupEventForgeBatch struct {
	BatchNum    common.BatchNum
	ForgerAddr  ethCommon.Address
	SlotNum     int64
	NewLastIdx  int64
	NewStRoot   *big.Int
	NewExitRoot *big.Int
	VerifierIdx uint8
	L1Batch     bool
	// ForgeL1TxsNum is the index of the consumed L1 user tx queue, only
	// set in L1 batches
	ForgeL1TxsNum    *int64
	L1UserTxs        []common.L1Tx
	L1CoordinatorTxs []common.L1Tx
}

// RollupEventUpdateForgeL1L2BatchTimeout is an event of the rollup
type RollupEventUpdateForgeL1L2BatchTimeout struct {
	NewForgeL1L2BatchTimeout int64
}
