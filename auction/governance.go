package auction

import (
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// updateVariables loads the variables, applies update and stores them.  Only
// the governance can update the variables.
func (a *Auction) updateVariables(tx *chain.Tx,
	update func(vars *common.AuctionVariables) error) error {
	if err := a.onlyGovernance(tx); err != nil {
		return common.Wrap(err)
	}
	vars, err := a.ledger.Variables(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := update(vars); err != nil {
		return common.Wrap(err)
	}
	vars.EthBlockNum = tx.BlockNum
	if err := a.ledger.SetVariables(tx, vars); err != nil {
		return common.Wrap(err)
	}
	log.Debugw("auction variables updated", "method", tx.Method, "block", tx.BlockNum)
	return nil
}

// SetSlotDeadline sets the number of blocks at the end of a slot in which any
// coordinator can forge
func (a *Auction) SetSlotDeadline(tx *chain.Tx, newDeadline uint8) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if int64(newDeadline) > a.clock.BlocksPerSlot() {
			return common.Wrap(common.ErrGreaterThanBlocksPerSlot)
		}
		vars.SlotDeadline = newDeadline
		tx.Emit(EventNewSlotDeadline, &AuctionEventNewSlotDeadline{NewSlotDeadline: newDeadline})
		return nil
	})
}

// SetOpenAuctionSlots sets the distance in slots to the farthest slot that
// accepts bids
func (a *Auction) SetOpenAuctionSlots(tx *chain.Tx, newOpenAuctionSlots uint16) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		vars.OpenAuctionSlots = newOpenAuctionSlots
		tx.Emit(EventNewOpenAuctionSlots,
			&AuctionEventNewOpenAuctionSlots{NewOpenAuctionSlots: newOpenAuctionSlots})
		return nil
	})
}

// SetClosedAuctionSlots sets the distance in slots to the closest slot that
// accepts bids
func (a *Auction) SetClosedAuctionSlots(tx *chain.Tx, newClosedAuctionSlots uint16) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		vars.ClosedAuctionSlots = newClosedAuctionSlots
		tx.Emit(EventNewClosedAuctionSlots,
			&AuctionEventNewClosedAuctionSlots{NewClosedAuctionSlots: newClosedAuctionSlots})
		return nil
	})
}

// SetOutbidding sets the minimum outbid in basis points, in (0, 10000]
func (a *Auction) SetOutbidding(tx *chain.Tx, newOutbidding uint16) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if newOutbidding == 0 || newOutbidding > common.AuctionMaxBasisPoints {
			return common.Wrap(common.ErrOutbiddingNotValid)
		}
		vars.Outbidding = newOutbidding
		tx.Emit(EventNewOutbidding, &AuctionEventNewOutbidding{NewOutbidding: newOutbidding})
		return nil
	})
}

// SetAllocationRatio sets how the winning bids are split in burn, donation
// and governance shares.  The ratios must sum 10000.
func (a *Auction) SetAllocationRatio(tx *chain.Tx, newAllocationRatio [3]uint16) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if !common.AllocationRatioValid(newAllocationRatio) {
			return common.Wrap(common.ErrAllocationRatioNotValid)
		}
		vars.AllocationRatio = newAllocationRatio
		tx.Emit(EventNewAllocationRatio,
			&AuctionEventNewAllocationRatio{NewAllocationRatio: newAllocationRatio})
		return nil
	})
}

// SetDonationAddress sets the address that receives the donation share
func (a *Auction) SetDonationAddress(tx *chain.Tx, newDonationAddress ethCommon.Address) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if newDonationAddress == common.EmptyAddr {
			return common.Wrap(common.ErrNotValidAddress)
		}
		vars.DonationAddress = newDonationAddress
		tx.Emit(EventNewDonationAddress,
			&AuctionEventNewDonationAddress{NewDonationAddress: newDonationAddress})
		return nil
	})
}

// SetBootCoordinator sets the coordinator that forges the slots without a
// valid bid
func (a *Auction) SetBootCoordinator(tx *chain.Tx, newBootCoordinator ethCommon.Address,
	newBootCoordinatorURL string) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if newBootCoordinator == common.EmptyAddr {
			return common.Wrap(common.ErrNotValidAddress)
		}
		if newBootCoordinatorURL == "" {
			return common.Wrap(common.ErrNotValidURL)
		}
		vars.BootCoordinator = newBootCoordinator
		vars.BootCoordinatorURL = newBootCoordinatorURL
		tx.Emit(EventNewBootCoordinator, &AuctionEventNewBootCoordinator{
			NewBootCoordinator:    newBootCoordinator,
			NewBootCoordinatorURL: newBootCoordinatorURL,
		})
		return nil
	})
}

// ChangeDefaultSlotSetBid sets the minimum bid of a slot set.  A slot set with
// a zero minimum can't be changed anymore.  The slots that are already closed
// keep the minimum they had before the change.
func (a *Auction) ChangeDefaultSlotSetBid(tx *chain.Tx, slotSet int64, newInitialMinBid *big.Int) error {
	return a.updateVariables(tx, func(vars *common.AuctionVariables) error {
		if slotSet < 0 || slotSet >= common.AuctionSlotSets {
			return common.Wrap(common.ErrNotValidSlotSet)
		}
		if vars.DefaultSlotSetBid[slotSet].Sign() == 0 {
			return common.Wrap(common.ErrSlotDecentralized)
		}
		if err := common.CheckAmount(newInitialMinBid); err != nil {
			return common.Wrap(err)
		}
		current, err := a.currentSlot(tx)
		if err != nil {
			return common.Wrap(err)
		}
		for slot := current; slot < current+int64(vars.ClosedAuctionSlots); slot++ {
			frozen, err := a.ledger.ClosedMinBid(tx, slot)
			if err != nil {
				return common.Wrap(err)
			}
			if frozen != nil {
				continue
			}
			min := vars.DefaultSlotSetBid[SlotSet(slot)]
			if err := a.ledger.SetClosedMinBid(tx, slot, min); err != nil {
				return common.Wrap(err)
			}
			tx.Emit(EventClosedMinBidFrozen, &AuctionEventClosedMinBidFrozen{
				Slot:   slot,
				MinBid: new(big.Int).Set(min),
			})
		}
		vars.DefaultSlotSetBid[slotSet] = new(big.Int).Set(newInitialMinBid)
		vars.DefaultSlotSetBidSlotNum = current + int64(vars.ClosedAuctionSlots)
		tx.Emit(EventNewDefaultSlotSetBid, &AuctionEventNewDefaultSlotSetBid{
			SlotSet:          slotSet,
			SlotNum:          vars.DefaultSlotSetBidSlotNum,
			NewInitialMinBid: new(big.Int).Set(newInitialMinBid),
		})
		return nil
	})
}
