package common

import (
	"encoding/binary"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

const batchNumBytesLen = 8

// Batch is a struct that represents a forged rollup batch
type Batch struct {
	BatchNum BatchNum `meddler:"batch_num"`
	// Ethereum block in which the batch is forged
	EthBlockNum int64             `meddler:"eth_block_num"`
	ForgerAddr  ethCommon.Address `meddler:"forger_addr"`
	StateRoot   *big.Int          `meddler:"state_root,bigint"`
	LastIdx     int64             `meddler:"last_idx"`
	ExitRoot    *big.Int          `meddler:"exit_root,bigint"`
	// ForgeL1TxsNum is optional, Only when the batch forges L1 txs. Identifier that corresponds
	// to the group of L1 txs forged in the current batch.
	ForgeL1TxsNum *int64 `meddler:"forge_l1_txs_num"`
	L1UserTxsLen  int    `meddler:"l1_user_txs_len"`
	VerifierIdx   uint8  `meddler:"verifier_idx"`
	SlotNum       int64  `meddler:"slot_num"` // Slot in which the batch is forged
}

// BatchNum identifies a batch
type BatchNum int64

// Bytes returns a byte array of length 8 representing the BatchNum
func (bn BatchNum) Bytes() []byte {
	var batchNumBytes [batchNumBytesLen]byte
	binary.BigEndian.PutUint64(batchNumBytes[:], uint64(bn))
	return batchNumBytes[:]
}

// BatchData contains the information of a Batch
type BatchData struct {
	L1Batch bool
	// L1UserTxs that were forged in the batch
	L1UserTxs        []L1Tx
	L1CoordinatorTxs []L1Tx
	Batch            Batch
}

// NewBatchData creates an empty BatchData with the slices initialized.
func NewBatchData() *BatchData {
	return &BatchData{
		L1Batch:          false,
		L1UserTxs:        make([]L1Tx, 0),
		L1CoordinatorTxs: make([]L1Tx, 0),
		Batch:            Batch{},
	}
}
