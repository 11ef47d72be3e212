package common

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Slot contains relevant information of a slot
type Slot struct {
	SlotNum        int64    `json:"slotNum"`
	DefaultSlotBid *big.Int `json:"defaultSlotBid"`
	StartBlock     int64    `json:"startBlock"`
	EndBlock       int64    `json:"endBlock"`
	// ForgerCommitment is true once the winner of the slot has forged
	ForgerCommitment bool     `json:"forgerCommitment"`
	BidValue         *big.Int `json:"bidValue"`
	BootCoord        bool     `json:"bootCoord"`
	// Bidder, Forger and URL correspond to the winner of the slot (which is
	// not always the highest bidder). These are the values of the
	// coordinator that is able to forge exclusively before the deadline.
	Bidder ethCommon.Address `json:"bidderAddr"`
	Forger ethCommon.Address `json:"forgerAddr"`
	URL    string            `json:"URL"`
}
