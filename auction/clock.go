package auction

import (
	"fmt"
	"math"

	"tokamak-forge-auction/common"
)

// SlotClock maps block numbers to auction slots
type SlotClock struct {
	genesisBlockNum int64
	blocksPerSlot   int64
}

// NewSlotClock creates a SlotClock from the auction constants
func NewSlotClock(consts *common.AuctionConstants) (*SlotClock, error) {
	if consts.BlocksPerSlot == 0 {
		return nil, common.Wrap(fmt.Errorf("BlocksPerSlot must be greater than 0"))
	}
	if consts.GenesisBlockNum < 0 {
		return nil, common.Wrap(common.ErrWrongBlockNumber)
	}
	return &SlotClock{
		genesisBlockNum: consts.GenesisBlockNum,
		blocksPerSlot:   int64(consts.BlocksPerSlot),
	}, nil
}

// GenesisBlockNum returns the first block of slot 0
func (c *SlotClock) GenesisBlockNum() int64 {
	return c.genesisBlockNum
}

// BlocksPerSlot returns the number of blocks of a slot
func (c *SlotClock) BlocksPerSlot() int64 {
	return c.blocksPerSlot
}

// SlotNum returns the slot of a block number.  Blocks before genesis belong
// to slot 0.
func (c *SlotClock) SlotNum(blockNum int64) (int64, error) {
	if blockNum < 0 {
		return 0, common.Wrap(common.ErrWrongBlockNumber)
	}
	if blockNum < c.genesisBlockNum {
		return 0, nil
	}
	return (blockNum - c.genesisBlockNum) / c.blocksPerSlot, nil
}

// SlotBlocks returns the first and the last block numbers included in that
// slot
func (c *SlotClock) SlotBlocks(slotNum int64) (int64, int64, error) {
	if slotNum < 0 || slotNum > (math.MaxInt64-c.genesisBlockNum)/c.blocksPerSlot-1 {
		return 0, 0, common.Wrap(common.ErrNumOverflow)
	}
	startBlock := c.genesisBlockNum + slotNum*c.blocksPerSlot
	endBlock := startBlock + c.blocksPerSlot - 1
	return startBlock, endBlock, nil
}

// RelativeBlock returns the position of the block inside its slot.  Before
// genesis it returns a negative value.
func (c *SlotClock) RelativeBlock(blockNum int64) int64 {
	if blockNum < c.genesisBlockNum {
		return blockNum - c.genesisBlockNum
	}
	return (blockNum - c.genesisBlockNum) % c.blocksPerSlot
}

// SlotSet returns the slot set (epoch set) of a slot
func SlotSet(slotNum int64) int {
	return int(slotNum % common.AuctionSlotSets)
}
