package common

import (
	"math/big"
	"reflect"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/mitchellh/copystructure"
)

const (
	// AuctionBlocksPerSlot is the number of blocks of a slot
	AuctionBlocksPerSlot = 40
	// AuctionSlotSets is the number of slot sets (epoch sets)
	AuctionSlotSets = 6
	// AuctionMaxBasisPoints is the basis points of 100%
	AuctionMaxBasisPoints = 10000
	// AuctionDefaultOutbidding is the default outbidding (10%)
	AuctionDefaultOutbidding = 1000
	// AuctionDefaultSlotDeadline is the default slot deadline in blocks
	AuctionDefaultSlotDeadline = 20
	// AuctionDefaultClosedAuctionSlots is the default distance in slots to
	// the closest slot to which you can bid
	AuctionDefaultClosedAuctionSlots = 2
	// AuctionDefaultOpenAuctionSlots is the default distance in slots to the
	// farthest slot to which you can bid (30 days)
	AuctionDefaultOpenAuctionSlots = 4320
)

// Indexes of AuctionVariables.AllocationRatio
const (
	// AllocationBurn is the index of the burnt share
	AllocationBurn = 0
	// AllocationDonation is the index of the donation share
	AllocationDonation = 1
	// AllocationGovernance is the index of the governance share
	AllocationGovernance = 2
)

var (
	// AuctionInitialMinimalBidding is the default minimum bid of every
	// slot set (10 tokens)
	AuctionInitialMinimalBidding = new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)) //nolint:gomnd
	// AuctionDefaultAllocationRatio burn 40%, donation 40%, governance 20%
	AuctionDefaultAllocationRatio = [3]uint16{4000, 4000, 2000}
	// AuctionBurnAddress is the address that accumulates the burnt share of
	// the slot bids. Nobody can claim from it.
	AuctionBurnAddress = EmptyAddr
)

func init() {
	copystructure.Copiers[reflect.TypeOf(big.Int{})] =
		func(raw interface{}) (interface{}, error) {
			in := raw.(big.Int)
			out := new(big.Int).Set(&in)
			return *out, nil
		}
}

// AuctionConstants are the constants of the Auction
type AuctionConstants struct {
	// Blocks per slot
	BlocksPerSlot uint8 `json:"blocksPerSlot"`
	// First block where the first slot begins
	GenesisBlockNum int64 `json:"genesisBlockNum"`
	// Token with which the bids will be made
	TokenAddress ethCommon.Address `json:"tokenAddress"`
	// Auction address, spender of the bidder permits
	AuctionAddress ethCommon.Address `json:"auctionAddress"`
	// Governance address who controls some parameters and collects fees
	GovernanceAddress ethCommon.Address `json:"governanceAddress"`
}

// AuctionVariables are the variables of the Auction
type AuctionVariables struct {
	EthBlockNum int64 `json:"ethereumBlockNum" meddler:"eth_block_num"`
	// Donation Address
	DonationAddress ethCommon.Address `json:"donationAddress" meddler:"donation_address" validate:"required"`
	// Boot Coordinator Address
	BootCoordinator ethCommon.Address `json:"bootCoordinator" meddler:"boot_coordinator" validate:"required"`
	// Boot Coordinator URL
	BootCoordinatorURL string `json:"bootCoordinatorUrl" meddler:"boot_coordinator_url" validate:"required"`
	// The minimum bid value in a series of 6 slots
	DefaultSlotSetBid [AuctionSlotSets]*big.Int `json:"defaultSlotSetBid" meddler:"default_slot_set_bid,json" validate:"required"`
	// SlotNum at which the new default_slot_set_bid applies
	DefaultSlotSetBidSlotNum int64 `json:"defaultSlotSetBidSlotNum" meddler:"default_slot_set_bid_slot_num"`
	// Distance (#slots) to the closest slot to which you can bid ( 2 Slots = 2 * 40 Blocks = 20 min )
	ClosedAuctionSlots uint16 `json:"closedAuctionSlots" meddler:"closed_auction_slots" validate:"required"`
	// Distance (#slots) to the farthest slot to which you can bid (30 days = 4320 slots )
	OpenAuctionSlots uint16 `json:"openAuctionSlots" meddler:"open_auction_slots" validate:"required"`
	// How the tokens deposited by the slot winner are distributed (Burn: 40% - Donation: 40% - Governance: 20%)
	AllocationRatio [3]uint16 `json:"allocationRatio" meddler:"allocation_ratio,json" validate:"required"`
	// Minimum outbid (percentage) over the previous one to consider it valid
	Outbidding uint16 `json:"outbidding" meddler:"outbidding" validate:"required"`
	// Number of blocks at the end of a slot in which any coordinator can forge if the winner has not forged one before
	SlotDeadline uint8 `json:"slotDeadline" meddler:"slot_deadline" validate:"required"`
}

// NewAuctionVariables returns the default AuctionVariables
func NewAuctionVariables(donation, bootCoordinator ethCommon.Address,
	bootCoordinatorURL string) *AuctionVariables {
	vars := &AuctionVariables{
		DonationAddress:    donation,
		BootCoordinator:    bootCoordinator,
		BootCoordinatorURL: bootCoordinatorURL,
		ClosedAuctionSlots: AuctionDefaultClosedAuctionSlots,
		OpenAuctionSlots:   AuctionDefaultOpenAuctionSlots,
		AllocationRatio:    AuctionDefaultAllocationRatio,
		Outbidding:         AuctionDefaultOutbidding,
		SlotDeadline:       AuctionDefaultSlotDeadline,
	}
	for i := range vars.DefaultSlotSetBid {
		vars.DefaultSlotSetBid[i] = new(big.Int).Set(AuctionInitialMinimalBidding)
	}
	return vars
}

// Copy returns a deep copy of the Variables
func (v *AuctionVariables) Copy() *AuctionVariables {
	vCpy, err := copystructure.Copy(v)
	if err != nil {
		panic(err)
	}
	return vCpy.(*AuctionVariables)
}

// AllocationRatioValid returns true when the ratios sum 100%
func AllocationRatioValid(ratio [3]uint16) bool {
	sum := 0
	for _, r := range ratio {
		sum += int(r)
	}
	return sum == AuctionMaxBasisPoints
}
