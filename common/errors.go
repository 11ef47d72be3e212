package common

import (
	"errors"

	"github.com/hermeznetwork/tracerr"
)

// Wrap wraps the error with the stack trace of the caller
func Wrap(err error) error {
	return tracerr.Wrap(err)
}

// Unwrap returns the original error without the stack trace
func Unwrap(err error) error {
	return tracerr.Unwrap(err)
}

// ErrNotInFF is used when the *big.Int does not fit inside the Finite Field
var ErrNotInFF = errors.New("BigInt not inside the Finite Field")

// ErrNumOverflow is used when a given value overflows the maximum capacity of the parameter
var ErrNumOverflow = errors.New("Value overflows the type")

// ErrAmountOverflow is used when a token amount does not fit in 128 bits
var ErrAmountOverflow = errors.New("amount overflow, max value: 2**128 -1")

// ErrIdxOverflow is used when a given idx overflows the maximum capacity of the Idx (2**48-1)
var ErrIdxOverflow = errors.New("Idx overflow, max value: 2**48 -1")

// ErrNotFound is used when a value is not found in the store
var ErrNotFound = errors.New("not found")

// ErrDone is used when a function returns earlier due to a cancelled context
var ErrDone = errors.New("done")

// IsErrDone returns true if the error or wrapped error is ErrDone
func IsErrDone(err error) bool {
	return Unwrap(err) == ErrDone
}

// Access errors
var (
	// ErrOnlyGovernance is used when a governance operation is called by
	// another address
	ErrOnlyGovernance = errors.New("ONLY_GOVERNANCE")
	// ErrCoordinatorNotRegistered is used when an address without a
	// coordinator registration tries to bid
	ErrCoordinatorNotRegistered = errors.New("COORDINATOR_NOT_REGISTERED")
	// ErrAlreadyInitialized is used when a component is initialized twice
	ErrAlreadyInitialized = errors.New("ALREADY_INITIALIZED")
	// ErrNotInitialized is used when a component is used before its
	// initialization
	ErrNotInitialized = errors.New("NOT_INITIALIZED")
)

// Temporal window errors
var (
	// ErrAuctionClosed is used when bidding for a slot that is too close
	// to the current slot
	ErrAuctionClosed = errors.New("AUCTION_CLOSED")
	// ErrAuctionNotOpen is used when bidding for a slot that is too far
	// from the current slot
	ErrAuctionNotOpen = errors.New("AUCTION_NOT_OPEN")
	// ErrAuctionNotStarted is used when asking for forging rights before
	// the genesis block
	ErrAuctionNotStarted = errors.New("AUCTION_NOT_STARTED")
	// ErrWrongBlockNumber is used when a block number is out of range
	ErrWrongBlockNumber = errors.New("WRONG_BLOCKNUMBER")
	// ErrGenesisBelowMinimal is used when the genesis block is already in
	// the past at initialization
	ErrGenesisBelowMinimal = errors.New("GENESIS_BELOW_MINIMAL")
)

// Economic errors
var (
	// ErrBelowMinimum is used when a bid doesn't reach the minimum bid of
	// the slot
	ErrBelowMinimum = errors.New("BELOW_MINIMUM")
	// ErrBidMustBeHigher is used when a bid doesn't outbid the current bid
	ErrBidMustBeHigher = errors.New("BID_MUST_BE_HIGHER")
	// ErrNotEnoughBalance is used when the transferred amount doesn't
	// cover the placed bids
	ErrNotEnoughBalance = errors.New("NOT_ENOUGH_BALANCE")
	// ErrMaxBidLowerThanMinBid is used when a multi bid has maxBid < minBid
	ErrMaxBidLowerThanMinBid = errors.New("MAXBID_LOWER_THAN_MINBID")
	// ErrNotValidSlotRange is used when a multi bid has slotMin > slotMax
	ErrNotValidSlotRange = errors.New("NOT_VALID_SLOT_RANGE")
	// ErrNoClaimableBalance is used when claiming with zero balance
	ErrNoClaimableBalance = errors.New("NO_CLAIMABLE_BALANCE")
)

// Governance parameter errors
var (
	// ErrGreaterThanBlocksPerSlot is used when the slot deadline is
	// greater than the blocks per slot
	ErrGreaterThanBlocksPerSlot = errors.New("GREATER_THAN_BLOCKS_PER_SLOT")
	// ErrOutbiddingNotValid is used when the outbidding is not in (0, 10000]
	ErrOutbiddingNotValid = errors.New("OUTBIDDING_NOT_VALID")
	// ErrAllocationRatioNotValid is used when the allocation ratio doesn't
	// sum 10000
	ErrAllocationRatioNotValid = errors.New("ALLOCATION_RATIO_NOT_VALID")
	// ErrNotValidAddress is used when the zero address is set
	ErrNotValidAddress = errors.New("NOT_VALID_ADDRESS")
	// ErrNotValidSlotSet is used when the slot set is >= 6
	ErrNotValidSlotSet = errors.New("NOT_VALID_SLOT_SET")
	// ErrSlotDecentralized is used when changing a default slot set bid
	// that has been set to zero
	ErrSlotDecentralized = errors.New("SLOT_DECENTRALIZED")
	// ErrNotValidURL is used when the coordinator URL is empty
	ErrNotValidURL = errors.New("NOT_VALID_URL")
	// ErrNotValidTimeout is used when the forge L1L2 batch timeout is
	// above the absolute maximum
	ErrNotValidTimeout = errors.New("MAX_FORGETIMEOUT_EXCEED")
)

// Forge errors
var (
	// ErrCannotForge is used when the caller has no forging rights
	ErrCannotForge = errors.New("CANNOT_FORGE")
	// ErrL1L2BatchRequired is used when the L1L2 batch timeout has been
	// reached and a non L1 batch is forged
	ErrL1L2BatchRequired = errors.New("L1L2BATCH_REQUIRED")
	// ErrL1TxOverflow is used when the L1 capacity is exceeded
	ErrL1TxOverflow = errors.New("L1_TX_OVERFLOW")
	// ErrInvalidZKProof is used when the verifier rejects the proof
	ErrInvalidZKProof = errors.New("INVALID_ZK_PROOF")
	// ErrInvalidVerifier is used when the verifier index doesn't exist
	ErrInvalidVerifier = errors.New("INVALID_VERIFIER")
	// ErrInvalidL1CoordinatorData is used when the coordinator L1 data is
	// not a sequence of L1 coordinator records
	ErrInvalidL1CoordinatorData = errors.New("INVALID_L1_COORDINATOR_DATA")
)

// Transfer and permit errors
var (
	// ErrTokenTransferFailed is used when the token rejects a transfer
	ErrTokenTransferFailed = errors.New("TOKEN_TRANSFER_FAILED")
	// ErrPermitFailed is used when the token rejects a permit
	ErrPermitFailed = errors.New("PERMIT_FAILED")
	// ErrNotValidCall is used when the permit data doesn't match the
	// permit call layout
	ErrNotValidCall = errors.New("NOT_VALID_CALL")
	// ErrWrongAmount is used when the permit value differs from the
	// transferred amount
	ErrWrongAmount = errors.New("WRONG_AMOUNT")
	// ErrPermitOwner is used when the permit owner is not the caller
	ErrPermitOwner = errors.New("PERMIT_OWNER_MUST_BE_SENDER")
	// ErrPermitSpender is used when the permit spender is not the auction
	ErrPermitSpender = errors.New("PERMIT_SPENDER_MUST_BE_AUCTION")
)

// ErrInvalidSignature is used when a signature can't be recovered
var ErrInvalidSignature = errors.New("invalid signature")
