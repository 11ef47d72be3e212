/*
Package auction implements the continuous slot auction that decides which
coordinator can forge the batches of each slot.

Time is split in slots of BlocksPerSlot blocks starting at the genesis block.
Coordinators bid for future slots with the auction token; a slot can receive
bids while it's open, which is from closedAuctionSlots to openAuctionSlots
slots ahead of the current one.  The winner of a slot forges exclusively until
the slot deadline; after it anybody can forge.  Without a valid bid the boot
coordinator forges.

Outbid bids, bid excesses and forge allocations are credited to claimable
balances, which are withdrawn with ClaimHEZ.
*/
package auction

import (
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator"
)

// Token is the token in which the bids are paid
type Token interface {
	Transfer(tx *chain.Tx, from, to ethCommon.Address, amount *big.Int) error
	TransferFrom(tx *chain.Tx, spender, from, to ethCommon.Address, amount *big.Int) error
	Permit(tx *chain.Tx, permit *common.Permit) error
}

// Auction is the auction protocol.  All the state is kept in the chain store
// and every method receives the transaction it runs in; tx.From is the
// caller.
type Auction struct {
	consts common.AuctionConstants
	clock  *SlotClock
	ledger *Ledger
	token  Token
}

// NewAuction creates the Auction with the given constants, paid in token
func NewAuction(consts *common.AuctionConstants, token Token) (*Auction, error) {
	clock, err := NewSlotClock(consts)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return &Auction{
		consts: *consts,
		clock:  clock,
		ledger: &Ledger{},
		token:  token,
	}, nil
}

// Constants returns the auction constants
func (a *Auction) Constants() *common.AuctionConstants {
	return &a.consts
}

// Clock returns the SlotClock of the auction
func (a *Auction) Clock() *SlotClock {
	return a.clock
}

func (a *Auction) onlyGovernance(tx *chain.Tx) error {
	if tx.From != a.consts.GovernanceAddress {
		return common.Wrap(common.ErrOnlyGovernance)
	}
	return nil
}

func validateVariables(vars *common.AuctionVariables) error {
	if vars.Outbidding == 0 || vars.Outbidding > common.AuctionMaxBasisPoints {
		return common.Wrap(common.ErrOutbiddingNotValid)
	}
	if !common.AllocationRatioValid(vars.AllocationRatio) {
		return common.Wrap(common.ErrAllocationRatioNotValid)
	}
	if vars.DonationAddress == common.EmptyAddr || vars.BootCoordinator == common.EmptyAddr {
		return common.Wrap(common.ErrNotValidAddress)
	}
	for _, bid := range vars.DefaultSlotSetBid {
		if err := common.CheckAmount(bid); err != nil {
			return common.Wrap(err)
		}
	}
	if err := validator.New().Struct(vars); err != nil {
		return common.Wrap(err)
	}
	return nil
}

// Initialize sets the initial auction variables.  It can be called once, by
// the governance, before the genesis block.
func (a *Auction) Initialize(tx *chain.Tx, vars *common.AuctionVariables) error {
	if err := a.onlyGovernance(tx); err != nil {
		return common.Wrap(err)
	}
	if _, err := a.ledger.Variables(tx); err == nil {
		return common.Wrap(common.ErrAlreadyInitialized)
	} else if common.Unwrap(err) != common.ErrNotInitialized {
		return common.Wrap(err)
	}
	if a.consts.GenesisBlockNum < tx.BlockNum {
		return common.Wrap(common.ErrGenesisBelowMinimal)
	}
	if int64(vars.SlotDeadline) > a.clock.BlocksPerSlot() {
		return common.Wrap(common.ErrGreaterThanBlocksPerSlot)
	}
	if err := validateVariables(vars); err != nil {
		return common.Wrap(err)
	}
	vars = vars.Copy()
	vars.EthBlockNum = tx.BlockNum
	if err := a.ledger.SetVariables(tx, vars); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventInitialize, &AuctionEventInitialize{
		DonationAddress:        vars.DonationAddress,
		BootCoordinatorAddress: vars.BootCoordinator,
		BootCoordinatorURL:     vars.BootCoordinatorURL,
		Outbidding:             vars.Outbidding,
		SlotDeadline:           vars.SlotDeadline,
		ClosedAuctionSlots:     vars.ClosedAuctionSlots,
		OpenAuctionSlots:       vars.OpenAuctionSlots,
		AllocationRatio:        vars.AllocationRatio,
		DefaultSlotSetBid:      vars.DefaultSlotSetBid,
	})
	log.Debugw("auction initialized", "genesis", a.consts.GenesisBlockNum,
		"bootCoordinator", vars.BootCoordinator.Hex())
	return nil
}

// SetCoordinator registers the caller as a coordinator, or updates its
// registration, with the address that will forge its slots and its API url
func (a *Auction) SetCoordinator(tx *chain.Tx, forger ethCommon.Address, url string) error {
	if url == "" {
		return common.Wrap(common.ErrNotValidURL)
	}
	if forger == common.EmptyAddr {
		return common.Wrap(common.ErrNotValidAddress)
	}
	coord := &common.Coordinator{
		Bidder:      tx.From,
		Forger:      forger,
		EthBlockNum: tx.BlockNum,
		URL:         url,
	}
	if err := a.ledger.SetCoordinator(tx, coord); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventSetCoordinator, &AuctionEventSetCoordinator{
		BidderAddress:  coord.Bidder,
		ForgerAddress:  coord.Forger,
		CoordinatorURL: coord.URL,
	})
	return nil
}

// currentSlot returns the slot of the block of tx
func (a *Auction) currentSlot(tx *chain.Tx) (int64, error) {
	return a.clock.SlotNum(tx.BlockNum)
}

// checkOpen fails if the slot doesn't accept bids at the block of tx
func (a *Auction) checkOpen(tx *chain.Tx, vars *common.AuctionVariables, slot int64) error {
	current, err := a.currentSlot(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if slot < current+int64(vars.ClosedAuctionSlots) {
		return common.Wrap(common.ErrAuctionClosed)
	}
	if slot > current+int64(vars.OpenAuctionSlots) {
		return common.Wrap(common.ErrAuctionNotOpen)
	}
	return nil
}

// minBid returns the minimum bid of the slot: the minimum frozen when the slot
// was closed at a default change, or the live default of its slot set
func (a *Auction) minBid(tx *chain.Tx, vars *common.AuctionVariables, slot int64) (*big.Int, error) {
	frozen, err := a.ledger.ClosedMinBid(tx, slot)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if frozen != nil {
		return frozen, nil
	}
	return new(big.Int).Set(vars.DefaultSlotSetBid[SlotSet(slot)]), nil
}

// outbid returns the lowest amount that outbids bid: bid * (1 + outbidding),
// and always greater than bid
func outbid(bid *big.Int, outbidding uint16) *big.Int {
	v := new(big.Int).Mul(bid, big.NewInt(int64(common.AuctionMaxBasisPoints)+int64(outbidding)))
	v.Div(v, big.NewInt(common.AuctionMaxBasisPoints))
	if v.Cmp(bid) <= 0 {
		v.Add(bid, big.NewInt(1))
	}
	return v
}

// requiredBid returns the lowest amount that wins the slot now, and the live
// bid of the slot
func (a *Auction) requiredBid(tx *chain.Tx, vars *common.AuctionVariables,
	slot int64) (*big.Int, *common.Bid, error) {
	required, err := a.minBid(tx, vars, slot)
	if err != nil {
		return nil, nil, common.Wrap(err)
	}
	bid, err := a.ledger.Bid(tx, slot)
	if err != nil {
		return nil, nil, common.Wrap(err)
	}
	if bid != nil {
		if o := outbid(bid.BidValue, vars.Outbidding); o.Cmp(required) > 0 {
			required = o
		}
	}
	return required, bid, nil
}

func (a *Auction) registeredCoordinator(tx *chain.Tx) (*common.Coordinator, error) {
	coord, err := a.ledger.Coordinator(tx, tx.From)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if coord == nil {
		return nil, common.Wrap(common.ErrCoordinatorNotRegistered)
	}
	return coord, nil
}

// decodePermit decodes the permit attached to a bid and checks that it
// approves exactly amount from the caller to the auction
func (a *Auction) decodePermit(tx *chain.Tx, permitData []byte,
	amount *big.Int) (*common.Permit, error) {
	permit, err := common.DecodePermit(permitData)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if permit == nil {
		return nil, nil
	}
	if permit.Owner != tx.From {
		return nil, common.Wrap(common.ErrPermitOwner)
	}
	if permit.Spender != a.consts.AuctionAddress {
		return nil, common.Wrap(common.ErrPermitSpender)
	}
	if permit.Value.Cmp(amount) != 0 {
		return nil, common.Wrap(common.ErrWrongAmount)
	}
	return permit, nil
}

// collect pulls amount from the caller, first applying the permit if any
func (a *Auction) collect(tx *chain.Tx, permit *common.Permit, amount *big.Int) error {
	if permit != nil {
		if err := a.token.Permit(tx, permit); err != nil {
			log.Debugw("auction permit failed", "owner", permit.Owner.Hex(), "err", err)
			return common.Wrap(common.ErrPermitFailed)
		}
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := a.token.TransferFrom(tx, a.consts.AuctionAddress, tx.From,
		a.consts.AuctionAddress, amount); err != nil {
		log.Debugw("auction transferFrom failed", "from", tx.From.Hex(), "err", err)
		return common.Wrap(common.ErrTokenTransferFailed)
	}
	return nil
}

// placeBid refunds the displaced bid and records the new one
func (a *Auction) placeBid(tx *chain.Tx, coord *common.Coordinator, slot int64,
	amount *big.Int, prev *common.Bid) error {
	if prev != nil && !prev.Fulfilled {
		if err := a.ledger.Credit(tx, prev.Bidder, prev.BidValue); err != nil {
			return common.Wrap(err)
		}
		tx.Emit(EventBidRefunded, &AuctionEventBidRefunded{
			Slot:   slot,
			Bidder: prev.Bidder,
			Amount: new(big.Int).Set(prev.BidValue),
		})
	}
	bid := &common.Bid{
		SlotNum:     slot,
		BidValue:    new(big.Int).Set(amount),
		EthBlockNum: tx.BlockNum,
		Bidder:      tx.From,
		Forger:      coord.Forger,
		URL:         coord.URL,
	}
	if err := a.ledger.SetBid(tx, bid); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventNewBid, &AuctionEventNewBid{
		Slot:      slot,
		BidAmount: new(big.Int).Set(amount),
		Bidder:    tx.From,
	})
	metric.Bids.Inc()
	return nil
}

// ProcessBid places a bid of bidAmount for slot.  amountToTransfer is pulled
// from the caller, optionally approved with the permit in permitData, and
// what exceeds the bid is credited to the caller claimable balance.
func (a *Auction) ProcessBid(tx *chain.Tx, slot int64, bidAmount, amountToTransfer *big.Int,
	permitData []byte) error {
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := common.CheckAmount(bidAmount); err != nil {
		return common.Wrap(err)
	}
	if err := common.CheckAmount(amountToTransfer); err != nil {
		return common.Wrap(err)
	}
	coord, err := a.registeredCoordinator(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := a.checkOpen(tx, vars, slot); err != nil {
		return common.Wrap(err)
	}
	min, err := a.minBid(tx, vars, slot)
	if err != nil {
		return common.Wrap(err)
	}
	prev, err := a.ledger.Bid(tx, slot)
	if err != nil {
		return common.Wrap(err)
	}
	if prev != nil && bidAmount.Cmp(outbid(prev.BidValue, vars.Outbidding)) < 0 {
		return common.Wrap(common.ErrBidMustBeHigher)
	}
	if bidAmount.Cmp(min) < 0 {
		return common.Wrap(common.ErrBelowMinimum)
	}
	if amountToTransfer.Cmp(bidAmount) < 0 {
		return common.Wrap(common.ErrNotEnoughBalance)
	}
	permit, err := a.decodePermit(tx, permitData, amountToTransfer)
	if err != nil {
		return common.Wrap(err)
	}

	if err := a.placeBid(tx, coord, slot, bidAmount, prev); err != nil {
		return common.Wrap(err)
	}
	excess := new(big.Int).Sub(amountToTransfer, bidAmount)
	if excess.Sign() > 0 {
		if err := a.ledger.Credit(tx, tx.From, excess); err != nil {
			return common.Wrap(err)
		}
		tx.Emit(EventBidRefunded, &AuctionEventBidRefunded{Slot: slot, Bidder: tx.From, Amount: excess})
	}
	if err := a.collect(tx, permit, amountToTransfer); err != nil {
		return common.Wrap(err)
	}
	log.Debugw("auction bid", "slot", slot, "bidder", tx.From.Hex(), "amount", bidAmount)
	return nil
}

// ProcessMultiBid bids for every slot in [slotMin, slotMax] whose slot set is
// enabled in slotSets.  Each slot gets the greater of its required bid and
// minBid, and slots whose required bid is above maxBid are skipped.  Only the
// sum of the placed bids is pulled from the caller, which must not exceed
// amount.
func (a *Auction) ProcessMultiBid(tx *chain.Tx, amount *big.Int, slotMin, slotMax int64,
	slotSets [common.AuctionSlotSets]bool, maxBid, minBid *big.Int, permitData []byte) error {
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return common.Wrap(err)
	}
	for _, v := range []*big.Int{amount, maxBid, minBid} {
		if err := common.CheckAmount(v); err != nil {
			return common.Wrap(err)
		}
	}
	if maxBid.Cmp(minBid) < 0 {
		return common.Wrap(common.ErrMaxBidLowerThanMinBid)
	}
	if slotMin > slotMax {
		return common.Wrap(common.ErrNotValidSlotRange)
	}
	coord, err := a.registeredCoordinator(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := a.checkOpen(tx, vars, slotMin); err != nil {
		return common.Wrap(err)
	}
	if err := a.checkOpen(tx, vars, slotMax); err != nil {
		return common.Wrap(err)
	}
	// the permit approves up to amount, only the placed bids are pulled
	permit, err := a.decodePermit(tx, permitData, amount)
	if err != nil {
		return common.Wrap(err)
	}

	total := big.NewInt(0)
	for slot := slotMin; slot <= slotMax; slot++ {
		if !slotSets[SlotSet(slot)] {
			continue
		}
		required, prev, err := a.requiredBid(tx, vars, slot)
		if err != nil {
			return common.Wrap(err)
		}
		if required.Cmp(maxBid) > 0 {
			continue
		}
		bidAmount := required
		if minBid.Cmp(bidAmount) > 0 {
			bidAmount = minBid
		}
		total.Add(total, bidAmount)
		if total.Cmp(amount) > 0 {
			return common.Wrap(common.ErrNotEnoughBalance)
		}
		if err := a.placeBid(tx, coord, slot, bidAmount, prev); err != nil {
			return common.Wrap(err)
		}
	}
	if err := a.collect(tx, permit, total); err != nil {
		return common.Wrap(err)
	}
	log.Debugw("auction multibid", "slotMin", slotMin, "slotMax", slotMax,
		"bidder", tx.From.Hex(), "total", total)
	return nil
}

// ClaimHEZ transfers the claimable balance of the caller to it
func (a *Auction) ClaimHEZ(tx *chain.Tx) error {
	balance, err := a.ledger.Claimable(tx, tx.From)
	if err != nil {
		return common.Wrap(err)
	}
	if balance.Sign() == 0 {
		return common.Wrap(common.ErrNoClaimableBalance)
	}
	if err := a.ledger.SetClaimable(tx, tx.From, big.NewInt(0)); err != nil {
		return common.Wrap(err)
	}
	if err := a.token.Transfer(tx, a.consts.AuctionAddress, tx.From, balance); err != nil {
		log.Debugw("auction claim transfer failed", "owner", tx.From.Hex(), "err", err)
		return common.Wrap(common.ErrTokenTransferFailed)
	}
	tx.Emit(EventHEZClaimed, &AuctionEventHEZClaimed{Owner: tx.From, Amount: balance})
	f, _ := new(big.Float).SetInt(balance).Float64()
	metric.ClaimedHEZ.Add(f)
	return nil
}

// GetClaimableHEZ returns the claimable balance of addr
func (a *Auction) GetClaimableHEZ(tx *chain.Tx, addr ethCommon.Address) (*big.Int, error) {
	return a.ledger.Claimable(tx, addr)
}

// GetMinBidBySlot returns the lowest amount that wins the slot now.  It fails
// with ErrAuctionClosed for closed slots.
func (a *Auction) GetMinBidBySlot(tx *chain.Tx, slot int64) (*big.Int, error) {
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	current, err := a.currentSlot(tx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if slot < current+int64(vars.ClosedAuctionSlots) {
		return nil, common.Wrap(common.ErrAuctionClosed)
	}
	required, _, err := a.requiredBid(tx, vars, slot)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return required, nil
}

// GetSlotSet returns the slot set of the slot
func (a *Auction) GetSlotSet(slot int64) int {
	return SlotSet(slot)
}

// GetCurrentSlotNumber returns the slot of the block of tx
func (a *Auction) GetCurrentSlotNumber(tx *chain.Tx) (int64, error) {
	return a.currentSlot(tx)
}

// GetCoordinator returns the registration of bidder, or nil
func (a *Auction) GetCoordinator(tx *chain.Tx, bidder ethCommon.Address) (*common.Coordinator, error) {
	return a.ledger.Coordinator(tx, bidder)
}

// GetBid returns the live bid of the slot, or nil
func (a *Auction) GetBid(tx *chain.Tx, slot int64) (*common.Bid, error) {
	return a.ledger.Bid(tx, slot)
}

// GetVariables returns the auction variables
func (a *Auction) GetVariables(tx *chain.Tx) (*common.AuctionVariables, error) {
	return a.ledger.Variables(tx)
}
