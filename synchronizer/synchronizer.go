package synchronizer

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"tokamak-forge-auction/auction"
	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/historydb"
	"tokamak-forge-auction/l1queue"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"
	"tokamak-forge-auction/rollup"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

var (
	// ErrMissedBlock is the error returned by the Synchronizer when the
	// next block is already sealed but no longer available at the chain
	ErrMissedBlock = fmt.Errorf("missed block")
)

// Stats of the synchronizer
type Stats struct {
	Chain struct {
		UpdateBlockNumDiffThreshold uint16
		UpdateFrequencyDivider      uint16
		FirstBlockNum               int64
		LastBlockNum                int64
	}
	Sync struct {
		Updated   time.Time
		LastBlock common.Block
		LastBatch common.Batch
		// LastL1BatchBlock is the last block in which an l1Batch was
		// forged
		LastL1BatchBlock  int64
		LastForgeL1TxsNum int64
	}
}

// Synced returns true if the Synchronizer is up to date with the last sealed
// block
func (s *Stats) Synced() bool {
	return s.Chain.LastBlockNum == s.Sync.LastBlock.Num
}

// StatsHolder stores stats and that allows reading and writing them
// concurrently
type StatsHolder struct {
	Stats
	rw sync.RWMutex
}

// NewStatsHolder creates a new StatsHolder
func NewStatsHolder(firstBlockNum int64, updateBlockNumDiffThreshold uint16,
	updateFrequencyDivider uint16) *StatsHolder {
	stats := Stats{}
	stats.Chain.UpdateBlockNumDiffThreshold = updateBlockNumDiffThreshold
	stats.Chain.UpdateFrequencyDivider = updateFrequencyDivider
	stats.Chain.FirstBlockNum = firstBlockNum
	stats.Sync.LastForgeL1TxsNum = -1
	return &StatsHolder{Stats: stats}
}

// UpdateSync updates the synchronizer stats
func (s *StatsHolder) UpdateSync(lastBlock *common.Block, lastBatch *common.Batch,
	lastL1BatchBlock *int64, lastForgeL1TxsNum *int64) {
	now := time.Now()
	s.rw.Lock()
	s.Sync.LastBlock = *lastBlock
	if lastBatch != nil {
		s.Sync.LastBatch = *lastBatch
	}
	if lastL1BatchBlock != nil {
		s.Sync.LastL1BatchBlock = *lastL1BatchBlock
		s.Sync.LastForgeL1TxsNum = *lastForgeL1TxsNum
	}
	s.Sync.Updated = now
	s.rw.Unlock()
}

// UpdateChain updates the chain stats
func (s *StatsHolder) UpdateChain(c Chain) {
	lastBlockNum := c.LastBlockNum()
	s.rw.Lock()
	s.Chain.LastBlockNum = lastBlockNum
	s.rw.Unlock()
}

// CopyStats returns a copy of the inner Stats
func (s *StatsHolder) CopyStats() *Stats {
	s.rw.RLock()
	sCopy := s.Stats
	if s.Sync.LastBatch.StateRoot != nil {
		sCopy.Sync.LastBatch.StateRoot = common.BigIntOrZero(s.Sync.LastBatch.StateRoot)
	}
	if s.Sync.LastBatch.ExitRoot != nil {
		sCopy.Sync.LastBatch.ExitRoot = common.BigIntOrZero(s.Sync.LastBatch.ExitRoot)
	}
	s.rw.RUnlock()
	return &sCopy
}

func (s *StatsHolder) blocksPerc() float64 {
	syncLastBlockNum := s.Sync.LastBlock.Num
	if s.Sync.LastBlock.Num == 0 {
		syncLastBlockNum = s.Chain.FirstBlockNum - 1
	}
	return float64(syncLastBlockNum-(s.Chain.FirstBlockNum-1)) * 100.0 /
		float64(s.Chain.LastBlockNum-(s.Chain.FirstBlockNum-1))
}

// Chain is the source of sealed blocks
type Chain interface {
	BlockByNum(blockNum int64) (*chain.Block, error)
	LastBlockNum() int64
}

// Config is the Synchronizer configuration
type Config struct {
	StatsUpdateBlockNumDiffThreshold uint16
	StatsUpdateFrequencyDivider      uint16
	// StartBlockNum is the first block to synchronize.  Block 0 is
	// reserved in the HistoryDB for the initial variables.
	StartBlockNum int64
	// InitialRollupVars and InitialAuctionVars are stored in the
	// HistoryDB the first time the synchronizer runs
	InitialRollupVars  common.RollupVariables
	InitialAuctionVars common.AuctionVariables
}

// SCVariables are the current variables of the rollup and the auction
type SCVariables struct {
	Rollup  common.RollupVariables
	Auction common.AuctionVariables
}

// Synchronizer writes the history of the auction and the rollup from the
// events of the sealed blocks
type Synchronizer struct {
	chain            Chain
	historyDB        *historydb.HistoryDB
	cfg              Config
	vars             SCVariables
	stats            *StatsHolder
	resetStateFailed bool
}

// NewSynchronizer creates a new Synchronizer
func NewSynchronizer(c Chain, historyDB *historydb.HistoryDB, cfg Config) (*Synchronizer, error) {
	if cfg.StartBlockNum < 1 {
		return nil, common.Wrap(fmt.Errorf("StartBlockNum must be greater than 0"))
	}
	if cfg.StatsUpdateFrequencyDivider == 0 {
		cfg.StatsUpdateFrequencyDivider = 1
	}
	stats := NewStatsHolder(cfg.StartBlockNum, cfg.StatsUpdateBlockNumDiffThreshold,
		cfg.StatsUpdateFrequencyDivider)
	s := &Synchronizer{
		chain:     c,
		historyDB: historyDB,
		cfg:       cfg,
		stats:     stats,
	}
	return s, s.init()
}

// Stats returns a copy of the Synchronizer Stats.  It is safe to call Stats()
// during a Sync call
func (s *Synchronizer) Stats() *Stats {
	return s.stats.CopyStats()
}

// SCVars returns a copy of the current variables
func (s *Synchronizer) SCVars() *SCVariables {
	return &SCVariables{
		Rollup:  *s.vars.Rollup.Copy(),
		Auction: *s.vars.Auction.Copy(),
	}
}

func (s *Synchronizer) init() error {
	s.stats.UpdateChain(s.chain)
	lastBlock := &common.Block{}
	lastSavedBlock, err := s.historyDB.GetLastBlock()
	// `s.historyDB.GetLastBlock()` will never return `sql.ErrNoRows`
	// because we always have the default block 0 in the DB
	if err != nil {
		return common.Wrap(err)
	}
	if lastSavedBlock.Num > 0 {
		lastBlock = lastSavedBlock
	}
	if err := s.resetState(lastBlock); err != nil {
		s.resetStateFailed = true
		return common.Wrap(err)
	}
	s.resetStateFailed = false

	log.Infow("Sync init block",
		"syncLastBlock", s.stats.Sync.LastBlock.Num,
		"chainFirstBlockNum", s.stats.Chain.FirstBlockNum,
		"chainLastBlockNum", s.stats.Chain.LastBlockNum,
	)
	log.Infow("Sync init batch",
		"syncLastBatch", s.stats.Sync.LastBatch.BatchNum,
	)
	return nil
}

func (s *Synchronizer) resetIntermediateState() error {
	lastBlock, err := s.historyDB.GetLastBlock()
	if common.Unwrap(err) == sql.ErrNoRows {
		lastBlock = &common.Block{}
	} else if err != nil {
		return common.Wrap(fmt.Errorf("historyDB.GetLastBlock: %w", err))
	}
	if err := s.resetState(lastBlock); err != nil {
		s.resetStateFailed = true
		return common.Wrap(fmt.Errorf("resetState at block %v: %w", lastBlock.Num, err))
	}
	s.resetStateFailed = false
	return nil
}

func (s *Synchronizer) resetState(block *common.Block) error {
	rollupVars, auctionVars, err := s.historyDB.GetSCVars()
	// If SCVars are not in the HistoryDB, this is probably the first run
	// of the Synchronizer: store the initial vars taken from config
	if common.Unwrap(err) == sql.ErrNoRows {
		rollupVars = s.cfg.InitialRollupVars.Copy()
		auctionVars = s.cfg.InitialAuctionVars.Copy()
		log.Info("Setting initial SCVars in HistoryDB")
		if err = s.historyDB.SetInitialSCVars(rollupVars, auctionVars); err != nil {
			return common.Wrap(fmt.Errorf("historyDB.SetInitialSCVars: %w", err))
		}
		// Add initial boot coordinator to HistoryDB
		if err := s.historyDB.AddCoordinators([]common.Coordinator{{
			Bidder:      auctionVars.BootCoordinator,
			Forger:      auctionVars.BootCoordinator,
			URL:         auctionVars.BootCoordinatorURL,
			EthBlockNum: 0,
		}}); err != nil {
			return common.Wrap(err)
		}
	} else if err != nil {
		return common.Wrap(err)
	}
	s.vars.Rollup = *rollupVars
	s.vars.Auction = *auctionVars

	batch, err := s.historyDB.GetLastBatch()
	if err != nil && common.Unwrap(err) != sql.ErrNoRows {
		return common.Wrap(fmt.Errorf("historyDB.GetLastBatchNum: %w", err))
	}
	if common.Unwrap(err) == sql.ErrNoRows {
		batch = &common.Batch{}
	}

	lastL1BatchBlockNum, err := s.historyDB.GetLastL1BatchBlockNum()
	if err != nil && common.Unwrap(err) != sql.ErrNoRows {
		return common.Wrap(fmt.Errorf("historyDB.GetLastL1BatchBlockNum: %w", err))
	}
	if common.Unwrap(err) == sql.ErrNoRows {
		lastL1BatchBlockNum = 0
	}

	lastForgeL1TxsNum, err := s.historyDB.GetLastL1TxsNum()
	if err != nil && common.Unwrap(err) != sql.ErrNoRows {
		return common.Wrap(fmt.Errorf("historyDB.GetLastL1TxsNum: %w", err))
	}
	if common.Unwrap(err) == sql.ErrNoRows || lastForgeL1TxsNum == nil {
		n := int64(-1)
		lastForgeL1TxsNum = &n
	}

	s.stats.UpdateSync(block, batch, &lastL1BatchBlockNum, lastForgeL1TxsNum)
	return nil
}

// Sync attempts to synchronize the block following lastSavedBlock.  If
// lastSavedBlock is nil, the lastSavedBlock value is obtained from the DB.
// If a block is synced, it will be returned and also stored in the DB.  If a
// reorg is detected, the number of discarded blocks will be returned and no
// synchronization will be made.  When the next block is not sealed yet
// (nil, nil, nil) is returned.
func (s *Synchronizer) Sync(ctx context.Context,
	lastSavedBlock *common.Block) (blockData *common.BlockData, discarded *int64, err error) {
	if s.resetStateFailed {
		if err := s.resetIntermediateState(); err != nil {
			return nil, nil, common.Wrap(err)
		}
	}

	var nextBlockNum int64 // next block number to sync
	if lastSavedBlock == nil {
		// Get lastSavedBlock from History DB
		lastSavedBlock, err = s.historyDB.GetLastBlock()
		if err != nil && common.Unwrap(err) != sql.ErrNoRows {
			return nil, nil, common.Wrap(err)
		}
		// If we don't have any stored block, we must do a full sync
		// starting from the startBlockNum
		if common.Unwrap(err) == sql.ErrNoRows || lastSavedBlock.Num == 0 {
			nextBlockNum = s.cfg.StartBlockNum
			lastSavedBlock = nil
		}
	}
	if lastSavedBlock != nil {
		nextBlockNum = lastSavedBlock.Num + 1
		if lastSavedBlock.Num < s.cfg.StartBlockNum {
			return nil, nil, common.Wrap(
				fmt.Errorf("lastSavedBlock (%v) < startBlockNum (%v)",
					lastSavedBlock.Num, s.cfg.StartBlockNum))
		}
	}

	select {
	case <-ctx.Done():
		return nil, nil, common.Wrap(common.ErrDone)
	default:
	}

	// While having more blocks to sync than UpdateBlockNumDiffThreshold,
	// UpdateChain will be called once in UpdateFrequencyDivider blocks
	if nextBlockNum+int64(s.stats.Chain.UpdateBlockNumDiffThreshold) >= s.stats.Chain.LastBlockNum ||
		nextBlockNum%int64(s.stats.Chain.UpdateFrequencyDivider) == 0 {
		s.stats.UpdateChain(s.chain)
	}
	if nextBlockNum > s.chain.LastBlockNum() {
		return nil, nil, nil
	}
	chainBlock, err := s.chain.BlockByNum(nextBlockNum)
	if common.Unwrap(err) == chain.ErrBlockNotFound {
		metric.MissedBlocks.Inc()
		return nil, nil, common.Wrap(fmt.Errorf("%w: %d", ErrMissedBlock, nextBlockNum))
	} else if err != nil {
		return nil, nil, common.Wrap(fmt.Errorf("BlockByNum: %w", err))
	}
	block := &common.Block{
		Num:        chainBlock.Num,
		Timestamp:  chainBlock.Timestamp,
		Hash:       chainBlock.Hash,
		ParentHash: chainBlock.ParentHash,
	}
	log.Debugw("Syncing...",
		"block", nextBlockNum,
		"chainLastBlock", s.stats.Chain.LastBlockNum,
	)

	// Check that the obtained block.ParentHash == prevBlock.Hash; if not,
	// the chain was rolled back.  A zero parent is the first block after
	// a chain restart.
	if lastSavedBlock != nil && block.ParentHash != (ethCommon.Hash{}) &&
		lastSavedBlock.Hash != block.ParentHash {
		log.Debugw("Reorg Detected",
			"blockNum", block.Num,
			"block.parent(got)", block.ParentHash, "parent.hash(exp)", lastSavedBlock.Hash)
		lastDBBlockNum, err := s.reorg(lastSavedBlock)
		if err != nil {
			return nil, nil, common.Wrap(err)
		}
		discarded := lastSavedBlock.Num - lastDBBlockNum
		return nil, &discarded, nil
	}

	defer func() {
		// If there was an error during sync, reset to the last block
		// in the historyDB because the historyDB is written last in
		// the Sync method and is the source of consistency.
		if err != nil {
			if err2 := s.resetIntermediateState(); err2 != nil {
				log.Errorw("sync revert", "err", err2)
			}
		}
	}()

	blockData, err = s.blockData(block, chainBlock.Events())
	if err != nil {
		return nil, nil, common.Wrap(err)
	}

	err = s.historyDB.AddBlockSCData(blockData)
	if err != nil {
		return nil, nil, common.Wrap(err)
	}

	batchesLen := len(blockData.Rollup.Batches)
	if batchesLen == 0 {
		s.stats.UpdateSync(block, nil, nil, nil)
	} else {
		var lastL1BatchBlock *int64
		var lastForgeL1TxsNum *int64
		for _, batchData := range blockData.Rollup.Batches {
			if batchData.L1Batch {
				lastL1BatchBlock = &batchData.Batch.EthBlockNum
				lastForgeL1TxsNum = batchData.Batch.ForgeL1TxsNum
			}
		}
		s.stats.UpdateSync(block, &blockData.Rollup.Batches[batchesLen-1].Batch,
			lastL1BatchBlock, lastForgeL1TxsNum)
	}
	for _, batchData := range blockData.Rollup.Batches {
		metric.LastBatchNum.Set(float64(batchData.Batch.BatchNum))
		log.Debugw("Synced batch", "syncLastBatch", batchData.Batch.BatchNum)
	}
	metric.LastBlockNum.Set(float64(s.stats.Sync.LastBlock.Num))
	log.Debugw("Synced block",
		"syncLastBlockNum", s.stats.Sync.LastBlock.Num,
		"syncBlocksPerc", s.stats.blocksPerc(),
		"chainLastBlockNum", s.stats.Chain.LastBlockNum,
	)
	return blockData, nil, nil
}

// reorg discards the blocks of the HistoryDB that don't match the chain.
// Keeps checking previous blocks from the HistoryDB against the chain until
// a block hash match is found or the chain doesn't have the block anymore.
// Returns the last valid blockNum from the HistoryDB.
func (s *Synchronizer) reorg(uncleBlock *common.Block) (int64, error) {
	blockNum := uncleBlock.Num - 1
	for ; blockNum >= s.cfg.StartBlockNum; blockNum-- {
		chainBlock, err := s.chain.BlockByNum(blockNum)
		if common.Unwrap(err) == chain.ErrBlockNotFound {
			break
		} else if err != nil {
			return 0, common.Wrap(fmt.Errorf("chain.BlockByNum: %w", err))
		}
		block, err := s.historyDB.GetBlock(blockNum)
		if err != nil {
			return 0, common.Wrap(fmt.Errorf("historyDB.GetBlock: %w", err))
		}
		if block.Hash == chainBlock.Hash {
			log.Debugf("Found valid block: %v", blockNum)
			break
		}
	}
	if blockNum < s.cfg.StartBlockNum {
		blockNum = 0
	}
	log.Debugw("Discarding blocks", "total", uncleBlock.Num-blockNum,
		"from", uncleBlock.Num, "to", blockNum+1)

	if err := s.historyDB.Reorg(blockNum); err != nil {
		return 0, common.Wrap(err)
	}
	if err := s.resetIntermediateState(); err != nil {
		return 0, common.Wrap(err)
	}
	return blockNum, nil
}

// coordinator returns the coordinator of bidder at the current block
func (s *Synchronizer) coordinator(blockCoords []common.Coordinator,
	bidder ethCommon.Address) (*common.Coordinator, error) {
	for i := len(blockCoords) - 1; i >= 0; i-- {
		if blockCoords[i].Bidder == bidder {
			return &blockCoords[i], nil
		}
	}
	return s.historyDB.GetCoordinator(bidder)
}

// blockData converts the events of a block into the data stored in the
// HistoryDB
func (s *Synchronizer) blockData(block *common.Block,
	events []chain.Event) (*common.BlockData, error) {
	blockData := &common.BlockData{
		Block:   *block,
		Rollup:  common.NewRollupData(),
		Auction: common.NewAuctionData(),
	}
	rollupVars := s.vars.Rollup.Copy()
	auctionVars := s.vars.Auction.Copy()
	var rollupVarsUpdate, auctionVarsUpdate bool

	for _, evt := range events {
		switch data := evt.Data.(type) {
		// Auction
		case *auction.AuctionEventInitialize:
			auctionVars.DonationAddress = data.DonationAddress
			auctionVars.BootCoordinator = data.BootCoordinatorAddress
			auctionVars.BootCoordinatorURL = data.BootCoordinatorURL
			auctionVars.Outbidding = data.Outbidding
			auctionVars.SlotDeadline = data.SlotDeadline
			auctionVars.ClosedAuctionSlots = data.ClosedAuctionSlots
			auctionVars.OpenAuctionSlots = data.OpenAuctionSlots
			auctionVars.AllocationRatio = data.AllocationRatio
			for i := range data.DefaultSlotSetBid {
				auctionVars.DefaultSlotSetBid[i] = common.BigIntOrZero(data.DefaultSlotSetBid[i])
			}
			auctionVarsUpdate = true
		case *auction.AuctionEventSetCoordinator:
			blockData.Auction.Coordinators = append(blockData.Auction.Coordinators,
				common.Coordinator{
					Bidder:      data.BidderAddress,
					Forger:      data.ForgerAddress,
					URL:         data.CoordinatorURL,
					EthBlockNum: block.Num,
				})
		case *auction.AuctionEventNewBid:
			coord, err := s.coordinator(blockData.Auction.Coordinators, data.Bidder)
			if err != nil {
				return nil, common.Wrap(fmt.Errorf("coordinator of bidder %v: %w",
					data.Bidder.Hex(), err))
			}
			blockData.Auction.Bids = append(blockData.Auction.Bids, common.Bid{
				SlotNum:     data.Slot,
				BidValue:    common.BigIntOrZero(data.BidAmount),
				EthBlockNum: block.Num,
				Bidder:      data.Bidder,
				Forger:      coord.Forger,
				URL:         coord.URL,
			})
		case *auction.AuctionEventHEZClaimed:
			blockData.Auction.Claims = append(blockData.Auction.Claims, common.Claim{
				Owner:       data.Owner,
				Amount:      common.BigIntOrZero(data.Amount),
				EthBlockNum: block.Num,
			})
		case *auction.AuctionEventNewForgeAllocated:
			blockData.Auction.Allocations = append(blockData.Auction.Allocations,
				common.ForgeAllocation{
					SlotNum:          data.SlotToForge,
					Bidder:           data.Bidder,
					Forger:           data.Forger,
					BurnAmount:       common.BigIntOrZero(data.BurnAmount),
					DonationAmount:   common.BigIntOrZero(data.DonationAmount),
					GovernanceAmount: common.BigIntOrZero(data.GovernanceAmount),
					EthBlockNum:      block.Num,
				})
		case *auction.AuctionEventNewSlotDeadline:
			auctionVars.SlotDeadline = data.NewSlotDeadline
			auctionVarsUpdate = true
		case *auction.AuctionEventNewClosedAuctionSlots:
			auctionVars.ClosedAuctionSlots = data.NewClosedAuctionSlots
			auctionVarsUpdate = true
		case *auction.AuctionEventNewOpenAuctionSlots:
			auctionVars.OpenAuctionSlots = data.NewOpenAuctionSlots
			auctionVarsUpdate = true
		case *auction.AuctionEventNewOutbidding:
			auctionVars.Outbidding = data.NewOutbidding
			auctionVarsUpdate = true
		case *auction.AuctionEventNewAllocationRatio:
			auctionVars.AllocationRatio = data.NewAllocationRatio
			auctionVarsUpdate = true
		case *auction.AuctionEventNewDonationAddress:
			auctionVars.DonationAddress = data.NewDonationAddress
			auctionVarsUpdate = true
		case *auction.AuctionEventNewBootCoordinator:
			auctionVars.BootCoordinator = data.NewBootCoordinator
			auctionVars.BootCoordinatorURL = data.NewBootCoordinatorURL
			auctionVarsUpdate = true
		case *auction.AuctionEventNewDefaultSlotSetBid:
			auctionVars.DefaultSlotSetBid[data.SlotSet] = common.BigIntOrZero(data.NewInitialMinBid)
			auctionVars.DefaultSlotSetBidSlotNum = data.SlotNum
			auctionVarsUpdate = true

		// Rollup
		case *rollup.RollupEventInitialize:
			rollupVars.ForgeL1L2BatchTimeout = data.ForgeL1L2BatchTimeout
			rollupVarsUpdate = true
		case *rollup.RollupEventUpdateForgeL1L2BatchTimeout:
			rollupVars.ForgeL1L2BatchTimeout = data.NewForgeL1L2BatchTimeout
			rollupVarsUpdate = true
		case *l1queue.RollupEventL1UserTx:
			l1Tx := data.L1UserTx
			l1Tx.EthBlockNum = block.Num
			blockData.Rollup.L1UserTxs = append(blockData.Rollup.L1UserTxs, l1Tx)
		case *rollup.RollupEventForgeBatch:
			batchData := common.NewBatchData()
			batchData.L1Batch = data.L1Batch
			batchData.L1UserTxs = append(batchData.L1UserTxs, data.L1UserTxs...)
			for i := range data.L1CoordinatorTxs {
				l1Tx := data.L1CoordinatorTxs[i]
				l1Tx.EthBlockNum = block.Num
				batchData.L1CoordinatorTxs = append(batchData.L1CoordinatorTxs, l1Tx)
			}
			batchData.Batch = common.Batch{
				BatchNum:      data.BatchNum,
				EthBlockNum:   block.Num,
				ForgerAddr:    data.ForgerAddr,
				StateRoot:     common.BigIntOrZero(data.NewStRoot),
				LastIdx:       data.NewLastIdx,
				ExitRoot:      common.BigIntOrZero(data.NewExitRoot),
				ForgeL1TxsNum: data.ForgeL1TxsNum,
				L1UserTxsLen:  len(data.L1UserTxs),
				VerifierIdx:   data.VerifierIdx,
				SlotNum:       data.SlotNum,
			}
			blockData.Rollup.Batches = append(blockData.Rollup.Batches, *batchData)
		default:
			log.Debugw("sync event ignored", "block", block.Num, "event", evt.Name)
		}
	}

	if rollupVarsUpdate {
		rollupVars.EthBlockNum = block.Num
		blockData.Rollup.Vars = rollupVars
		s.vars.Rollup = *rollupVars.Copy()
	}
	if auctionVarsUpdate {
		auctionVars.EthBlockNum = block.Num
		blockData.Auction.Vars = auctionVars
		s.vars.Auction = *auctionVars.Copy()
	}
	return blockData, nil
}
