package auction

import (
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// slotWinner returns the live bid of the slot, its minimum bid and whether the
// bid clears the minimum
func (a *Auction) slotWinner(tx *chain.Tx, vars *common.AuctionVariables,
	slot int64) (*common.Bid, *big.Int, bool, error) {
	min, err := a.minBid(tx, vars, slot)
	if err != nil {
		return nil, nil, false, common.Wrap(err)
	}
	bid, err := a.ledger.Bid(tx, slot)
	if err != nil {
		return nil, nil, false, common.Wrap(err)
	}
	valid := bid != nil && bid.BidValue.Cmp(min) >= 0
	return bid, min, valid, nil
}

// CanForge returns true if forger can forge a batch at blockNum:
//   - after the slot deadline anybody can forge
//   - before it, the forger of the slot bid if the bid clears the minimum
//   - otherwise the boot coordinator
func (a *Auction) CanForge(tx *chain.Tx, forger ethCommon.Address, blockNum int64) (bool, error) {
	if blockNum < 0 {
		return false, common.Wrap(common.ErrWrongBlockNumber)
	}
	if blockNum < a.clock.GenesisBlockNum() {
		return false, common.Wrap(common.ErrAuctionNotStarted)
	}
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return false, common.Wrap(err)
	}
	slot, err := a.clock.SlotNum(blockNum)
	if err != nil {
		return false, common.Wrap(err)
	}
	if a.clock.RelativeBlock(blockNum) >= int64(vars.SlotDeadline) {
		return true, nil
	}
	bid, _, valid, err := a.slotWinner(tx, vars, slot)
	if err != nil {
		return false, common.Wrap(err)
	}
	if valid {
		return forger == bid.Forger, nil
	}
	return forger == vars.BootCoordinator, nil
}

// Forge settles the current slot when a batch is forged by forger, which must
// be able to forge.  The first forge of the winner splits its bid between the
// burn, donation and governance claimable balances.  A bid that doesn't clear
// the slot minimum is refunded to its bidder at the first forge of the slot.
// It returns the allocation of the bid, or nil.
func (a *Auction) Forge(tx *chain.Tx, forger ethCommon.Address) (*common.ForgeAllocation, error) {
	canForge, err := a.CanForge(tx, forger, tx.BlockNum)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if !canForge {
		return nil, common.Wrap(common.ErrCannotForge)
	}
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	slot, err := a.currentSlot(tx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	tx.Emit(EventNewForge, &AuctionEventNewForge{Forger: forger, SlotToForge: slot})

	bid, _, valid, err := a.slotWinner(tx, vars, slot)
	if err != nil {
		return nil, common.Wrap(err)
	}
	if bid == nil || bid.Fulfilled {
		return nil, nil
	}
	if !valid {
		bid.Fulfilled = true
		if err := a.ledger.SetBid(tx, bid); err != nil {
			return nil, common.Wrap(err)
		}
		if err := a.ledger.Credit(tx, bid.Bidder, bid.BidValue); err != nil {
			return nil, common.Wrap(err)
		}
		tx.Emit(EventBidRefunded, &AuctionEventBidRefunded{
			Slot:   slot,
			Bidder: bid.Bidder,
			Amount: new(big.Int).Set(bid.BidValue),
		})
		log.Debugw("auction bid below minimum refunded", "slot", slot,
			"bidder", bid.Bidder.Hex(), "amount", bid.BidValue)
		return nil, nil
	}
	if forger != bid.Forger {
		return nil, nil
	}

	allocation := Allocate(bid.BidValue, vars.AllocationRatio)
	allocation.SlotNum = slot
	allocation.Bidder = bid.Bidder
	allocation.Forger = forger
	allocation.EthBlockNum = tx.BlockNum
	bid.Fulfilled = true
	if err := a.ledger.SetBid(tx, bid); err != nil {
		return nil, common.Wrap(err)
	}
	for _, credit := range []struct {
		addr   ethCommon.Address
		amount *big.Int
	}{
		{common.AuctionBurnAddress, allocation.BurnAmount},
		{vars.DonationAddress, allocation.DonationAmount},
		{a.consts.GovernanceAddress, allocation.GovernanceAmount},
	} {
		if err := a.ledger.Credit(tx, credit.addr, credit.amount); err != nil {
			return nil, common.Wrap(err)
		}
	}
	tx.Emit(EventNewForgeAllocated, &AuctionEventNewForgeAllocated{
		Bidder:           allocation.Bidder,
		Forger:           allocation.Forger,
		SlotToForge:      slot,
		BurnAmount:       allocation.BurnAmount,
		DonationAmount:   allocation.DonationAmount,
		GovernanceAmount: allocation.GovernanceAmount,
	})
	log.Debugw("auction forge allocated", "slot", slot, "forger", forger.Hex(),
		"amount", bid.BidValue)
	return allocation, nil
}

// Allocate splits amount by ratio.  The donation and governance shares are
// rounded down and the burn share takes the remainder.
func Allocate(amount *big.Int, ratio [3]uint16) *common.ForgeAllocation {
	share := func(r uint16) *big.Int {
		v := new(big.Int).Mul(amount, big.NewInt(int64(r)))
		return v.Div(v, big.NewInt(common.AuctionMaxBasisPoints))
	}
	donation := share(ratio[common.AllocationDonation])
	governance := share(ratio[common.AllocationGovernance])
	burn := new(big.Int).Sub(amount, donation)
	burn.Sub(burn, governance)
	return &common.ForgeAllocation{
		BurnAmount:       burn,
		DonationAmount:   donation,
		GovernanceAmount: governance,
	}
}

// GetSlot returns the state of the slot: its blocks, its minimum bid and who
// can forge it before the deadline
func (a *Auction) GetSlot(tx *chain.Tx, slot int64) (*common.Slot, error) {
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	startBlock, endBlock, err := a.clock.SlotBlocks(slot)
	if err != nil {
		return nil, common.Wrap(err)
	}
	bid, min, valid, err := a.slotWinner(tx, vars, slot)
	if err != nil {
		return nil, common.Wrap(err)
	}
	s := &common.Slot{
		SlotNum:        slot,
		DefaultSlotBid: min,
		StartBlock:     startBlock,
		EndBlock:       endBlock,
		BidValue:       big.NewInt(0),
	}
	if bid != nil {
		s.BidValue = bid.BidValue
	}
	if valid {
		s.ForgerCommitment = bid.Fulfilled
		s.Bidder = bid.Bidder
		s.Forger = bid.Forger
		s.URL = bid.URL
	} else {
		s.BootCoord = true
		s.Forger = vars.BootCoordinator
		s.URL = vars.BootCoordinatorURL
	}
	return s, nil
}
