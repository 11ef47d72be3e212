package historydb

import (
	"database/sql"
	"math/big"
	"os"
	"testing"
	"time"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database"
	"tokamak-forge-auction/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyDB *HistoryDB

func TestMain(m *testing.M) {
	db, err := database.InitTestSQLDB()
	if err != nil {
		log.Warnw("history DB tests disabled", "err", err)
	} else {
		apiConnCon := database.NewAPIConnectionController(1, time.Second)
		historyDB = NewHistoryDB(db, db, apiConnCon)
	}
	result := m.Run()
	if db != nil {
		if err := db.Close(); err != nil {
			log.Error("Error closing the history DB", err)
		}
	}
	os.Exit(result)
}

// wipeDB redo all the migrations, recreating the original state
func wipeDB(t *testing.T) {
	if historyDB == nil {
		t.Skip("no PostgreSQL database available")
	}
	require.NoError(t, database.MigrationsDown(historyDB.DB().DB, 0))
	require.NoError(t, database.MigrationsUp(historyDB.DB().DB))
}

func genBlocks(from, to int64) []common.Block {
	var blocks []common.Block
	for i := from; i < to; i++ {
		blocks = append(blocks, common.Block{
			Num:       i,
			Timestamp: time.Now().Add(time.Second * 13).UTC().Truncate(time.Second),
			Hash:      ethCommon.BigToHash(big.NewInt(i)),
		})
	}
	return blocks
}

func TestBlocks(t *testing.T) {
	wipeDB(t)
	blocks := genBlocks(1, 6)
	require.NoError(t, historyDB.AddBlocks(blocks))

	fetched, err := historyDB.GetAllBlocks()
	require.NoError(t, err)
	// block 0 is stored by default
	require.Len(t, fetched, len(blocks)+1)
	for i, block := range blocks {
		assert.Equal(t, block.Num, fetched[i+1].Num)
		assert.Equal(t, block.Hash, fetched[i+1].Hash)
		assert.Equal(t, block.Timestamp.Unix(), fetched[i+1].Timestamp.Unix())
	}

	last, err := historyDB.GetLastBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(5), last.Num)

	_, err = historyDB.GetBlock(42)
	assert.Equal(t, sql.ErrNoRows, common.Unwrap(err))
}

func TestSCVars(t *testing.T) {
	wipeDB(t)
	rollup := &common.RollupVariables{ForgeL1L2BatchTimeout: 10}
	auction := common.NewAuctionVariables(ethCommon.HexToAddress("0xd0"),
		ethCommon.HexToAddress("0xb0"), "http://boot.coord")
	require.NoError(t, historyDB.SetInitialSCVars(rollup, auction))

	dbRollup, dbAuction, err := historyDB.GetSCVars()
	require.NoError(t, err)
	assert.Equal(t, rollup, dbRollup)
	assert.Equal(t, auction.BootCoordinatorURL, dbAuction.BootCoordinatorURL)
	assert.Equal(t, auction.AllocationRatio, dbAuction.AllocationRatio)
	for i := range auction.DefaultSlotSetBid {
		assert.Equal(t, 0, auction.DefaultSlotSetBid[i].Cmp(dbAuction.DefaultSlotSetBid[i]))
	}

	// Vars of a later block take precedence
	block := genBlocks(1, 2)[0]
	auction2 := auction.Copy()
	auction2.EthBlockNum = block.Num
	auction2.Outbidding = 500
	blockData := &common.BlockData{
		Block:   block,
		Rollup:  common.NewRollupData(),
		Auction: common.NewAuctionData(),
	}
	blockData.Auction.Vars = auction2
	require.NoError(t, historyDB.AddBlockSCData(blockData))
	_, dbAuction, err = historyDB.GetSCVars()
	require.NoError(t, err)
	assert.Equal(t, uint16(500), dbAuction.Outbidding)
}

func TestAddBlockSCData(t *testing.T) {
	wipeDB(t)
	bidder := ethCommon.HexToAddress("0x2001")
	forger := ethCommon.HexToAddress("0x3001")
	blocks := genBlocks(1, 3)

	// Block 1: coordinator, bids and an L1 user tx
	queueIdx := int64(0)
	userTx, err := common.NewL1Tx(&common.L1Tx{
		ToForgeL1TxsNum: &queueIdx,
		Position:        0,
		UserOrigin:      true,
		FromEthAddr:     ethCommon.HexToAddress("0x4001"),
		DepositAmount:   big.NewInt(100),
		Amount:          big.NewInt(0),
		EthBlockNum:     1,
	})
	require.NoError(t, err)
	block1 := &common.BlockData{
		Block:   blocks[0],
		Rollup:  common.NewRollupData(),
		Auction: common.NewAuctionData(),
	}
	block1.Auction.Coordinators = []common.Coordinator{
		{Bidder: bidder, Forger: forger, EthBlockNum: 1, URL: "http://coord"},
	}
	block1.Auction.Bids = []common.Bid{
		{SlotNum: 4, BidValue: big.NewInt(11), EthBlockNum: 1, Bidder: bidder,
			Forger: forger, URL: "http://coord"},
		{SlotNum: 4, BidValue: big.NewInt(13), EthBlockNum: 1, Bidder: bidder,
			Forger: forger, URL: "http://coord"},
	}
	block1.Rollup.L1UserTxs = []common.L1Tx{*userTx}
	require.NoError(t, historyDB.AddBlockSCData(block1))

	unforged, err := historyDB.GetUnforgedL1UserTxs()
	require.NoError(t, err)
	require.Len(t, unforged, 1)
	assert.Equal(t, userTx.TxID, unforged[0].TxID)
	assert.Nil(t, unforged[0].BatchNum)

	coordinator, err := historyDB.GetCoordinator(bidder)
	require.NoError(t, err)
	assert.Equal(t, forger, coordinator.Forger)

	bid, err := historyDB.GetBestBidBySlot(4)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(13), bid.BidValue)

	// Block 2: an L1 batch forging the queue 0, a claim and a settlement
	batchNum := common.BatchNum(1)
	block2 := &common.BlockData{
		Block:   blocks[1],
		Rollup:  common.NewRollupData(),
		Auction: common.NewAuctionData(),
	}
	block2.Rollup.Batches = []common.BatchData{{
		L1Batch: true,
		Batch: common.Batch{
			BatchNum:      batchNum,
			EthBlockNum:   2,
			ForgerAddr:    forger,
			StateRoot:     big.NewInt(7),
			LastIdx:       256,
			ExitRoot:      big.NewInt(3),
			ForgeL1TxsNum: &queueIdx,
			L1UserTxsLen:  1,
			SlotNum:       4,
		},
	}}
	block2.Auction.Claims = []common.Claim{
		{Owner: bidder, Amount: big.NewInt(11), EthBlockNum: 2},
	}
	block2.Auction.Allocations = []common.ForgeAllocation{{
		SlotNum: 4, Bidder: bidder, Forger: forger, BurnAmount: big.NewInt(6),
		DonationAmount: big.NewInt(5), GovernanceAmount: big.NewInt(2), EthBlockNum: 2,
	}}
	require.NoError(t, historyDB.AddBlockSCData(block2))

	forged, err := historyDB.GetL1UserTxs(queueIdx)
	require.NoError(t, err)
	require.Len(t, forged, 1)
	require.NotNil(t, forged[0].BatchNum)
	assert.Equal(t, batchNum, *forged[0].BatchNum)

	lastBatch, err := historyDB.GetLastBatch()
	require.NoError(t, err)
	assert.Equal(t, block2.Rollup.Batches[0].Batch, *lastBatch)
	lastL1TxsNum, err := historyDB.GetLastL1TxsNum()
	require.NoError(t, err)
	assert.Equal(t, queueIdx, *lastL1TxsNum)
	lastL1BlockNum, err := historyDB.GetLastL1BatchBlockNum()
	require.NoError(t, err)
	assert.Equal(t, int64(2), lastL1BlockNum)

	claims, err := historyDB.GetClaims(bidder)
	require.NoError(t, err)
	assert.Equal(t, block2.Auction.Claims, claims)
	allocations, err := historyDB.GetAllocations()
	require.NoError(t, err)
	assert.Equal(t, block2.Auction.Allocations, allocations)

	// API queries
	slot := int64(4)
	bids, err := historyDB.GetBidsAPI(GetBidsFilter{SlotNum: &slot, Order: OrderDesc})
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, big.NewInt(13), bids[0].BidValue)
	coordinators, err := historyDB.GetCoordinatorsAPI()
	require.NoError(t, err)
	require.Len(t, coordinators, 1)
	batches, err := historyDB.GetBatchesAPI(0, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, blocks[1].Hash, batches[0].EthBlockHash)

	// Discarding block 2 keeps the user tx, unforged
	require.NoError(t, historyDB.Reorg(1))
	unforged, err = historyDB.GetUnforgedL1UserTxs()
	require.NoError(t, err)
	require.Len(t, unforged, 1)
	_, err = historyDB.GetLastBatch()
	assert.Equal(t, sql.ErrNoRows, common.Unwrap(err))
	claims, err = historyDB.GetClaims(bidder)
	require.NoError(t, err)
	assert.Len(t, claims, 0)
}
