package auction

import (
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// Names of the events emitted by the auction
const (
	EventInitialize            = "InitializeTokamakAuctionProtocol"
	EventNewBid                = "NewBid"
	EventNewSlotDeadline       = "NewSlotDeadline"
	EventNewClosedAuctionSlots = "NewClosedAuctionSlots"
	EventNewOutbidding         = "NewOutbidding"
	EventNewDonationAddress    = "NewDonationAddress"
	EventNewBootCoordinator    = "NewBootCoordinator"
	EventNewOpenAuctionSlots   = "NewOpenAuctionSlots"
	EventNewAllocationRatio    = "NewAllocationRatio"
	EventSetCoordinator        = "SetCoordinator"
	EventNewForgeAllocated     = "NewForgeAllocated"
	EventNewDefaultSlotSetBid  = "NewDefaultSlotSetBid"
	EventNewForge              = "NewForge"
	EventHEZClaimed            = "HEZClaimed"
	EventBidRefunded           = "BidRefunded"
	EventClosedMinBidFrozen    = "ClosedMinBidFrozen"
)

// AuctionEventInitialize is the InitializeTokamakAuctionProtocol event
type AuctionEventInitialize struct {
	DonationAddress        ethCommon.Address
	BootCoordinatorAddress ethCommon.Address
	BootCoordinatorURL     string
	Outbidding             uint16
	SlotDeadline           uint8
	ClosedAuctionSlots     uint16
	OpenAuctionSlots       uint16
	AllocationRatio        [3]uint16
	DefaultSlotSetBid      [6]*big.Int
}

// AuctionEventNewBid is an event of the Auction Smart Contract
type AuctionEventNewBid struct {
	Slot      int64
	BidAmount *big.Int
	Bidder    ethCommon.Address
}

// AuctionEventNewSlotDeadline is an event of the Auction Smart Contract
type AuctionEventNewSlotDeadline struct {
	NewSlotDeadline uint8
}

// AuctionEventNewClosedAuctionSlots is an event of the Auction Smart Contract
type AuctionEventNewClosedAuctionSlots struct {
	NewClosedAuctionSlots uint16
}

// AuctionEventNewOutbidding is an event of the Auction Smart Contract
type AuctionEventNewOutbidding struct {
	NewOutbidding uint16
}

// AuctionEventNewDonationAddress is an event of the Auction Smart Contract
type AuctionEventNewDonationAddress struct {
	NewDonationAddress ethCommon.Address
}

// AuctionEventNewBootCoordinator is an event of the Auction Smart Contract
type AuctionEventNewBootCoordinator struct {
	NewBootCoordinator    ethCommon.Address
	NewBootCoordinatorURL string
}

// AuctionEventNewOpenAuctionSlots is an event of the Auction Smart Contract
type AuctionEventNewOpenAuctionSlots struct {
	NewOpenAuctionSlots uint16
}

// AuctionEventNewAllocationRatio is an event of the Auction Smart Contract
type AuctionEventNewAllocationRatio struct {
	NewAllocationRatio [3]uint16
}

// AuctionEventSetCoordinator is an event of the Auction Smart Contract
type AuctionEventSetCoordinator struct {
	BidderAddress  ethCommon.Address
	ForgerAddress  ethCommon.Address
	CoordinatorURL string
}

// AuctionEventNewForgeAllocated is an event of the Auction Smart Contract
type AuctionEventNewForgeAllocated struct {
	Bidder           ethCommon.Address
	Forger           ethCommon.Address
	SlotToForge      int64
	BurnAmount       *big.Int
	DonationAmount   *big.Int
	GovernanceAmount *big.Int
}

// AuctionEventNewDefaultSlotSetBid is an event of the Auction Smart Contract
type AuctionEventNewDefaultSlotSetBid struct {
	SlotSet int64
	// SlotNum is the first slot that uses the new minimum
	SlotNum          int64
	NewInitialMinBid *big.Int
}

// AuctionEventNewForge is an event of the Auction Smart Contract
type AuctionEventNewForge struct {
	Forger      ethCommon.Address
	SlotToForge int64
}

// AuctionEventHEZClaimed is an event of the Auction Smart Contract
type AuctionEventHEZClaimed struct {
	Owner  ethCommon.Address
	Amount *big.Int
}

// AuctionEventBidRefunded is emitted when a displaced or invalidated bid is
// credited back to its bidder
type AuctionEventBidRefunded struct {
	Slot   int64
	Bidder ethCommon.Address
	Amount *big.Int
}

// AuctionEventClosedMinBidFrozen is emitted when a default slot set bid
// change freezes the minimum bid of an already closed slot
type AuctionEventClosedMinBidFrozen struct {
	Slot   int64
	MinBid *big.Int
}
