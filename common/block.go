package common

import (
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Block represents a host chain block
type Block struct {
	Num        int64          `meddler:"eth_block_num"`
	Timestamp  time.Time      `meddler:"timestamp,utctime"`
	Hash       ethCommon.Hash `meddler:"hash"`
	ParentHash ethCommon.Hash `meddler:"-" json:"-"`
}

// BlockData contains the information of a Block
type BlockData struct {
	Block   Block
	Rollup  RollupData
	Auction AuctionData
}

// RollupData contains information returned by the Rollup
type RollupData struct {
	// L1UserTxs that were submitted in the block
	L1UserTxs []L1Tx
	Batches   []BatchData
	Vars      *RollupVariables
}

// NewRollupData creates an empty RollupData with the slices initialized.
func NewRollupData() RollupData {
	return RollupData{
		L1UserTxs: make([]L1Tx, 0),
		Batches:   make([]BatchData, 0),
		Vars:      nil,
	}
}

// AuctionData contains information returned by the Auction
type AuctionData struct {
	Bids         []Bid
	Coordinators []Coordinator
	Claims       []Claim
	Allocations  []ForgeAllocation
	Vars         *AuctionVariables
}

// NewAuctionData creates an empty AuctionData with the slices initialized.
func NewAuctionData() AuctionData {
	return AuctionData{
		Bids:         make([]Bid, 0),
		Coordinators: make([]Coordinator, 0),
		Claims:       make([]Claim, 0),
		Allocations:  make([]ForgeAllocation, 0),
		Vars:         nil,
	}
}
