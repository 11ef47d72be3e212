package historydb

import (
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// HistoryDB persist the historic of the auction and the rollup
type HistoryDB struct {
	dbRead     *sqlx.DB
	dbWrite    *sqlx.DB
	apiConnCon *database.APIConnectionController
}

// NewHistoryDB initialize the DB
func NewHistoryDB(dbRead, dbWrite *sqlx.DB,
	apiConnCon *database.APIConnectionController) *HistoryDB {
	return &HistoryDB{
		dbRead:     dbRead,
		dbWrite:    dbWrite,
		apiConnCon: apiConnCon,
	}
}

// DB returns a pointer to the HistoryDB.db. This method should be used only
// for internal testing purposes.
func (hdb *HistoryDB) DB() *sqlx.DB {
	return hdb.dbWrite
}

// AddBlock insert a block into the DB
func (hdb *HistoryDB) AddBlock(block *common.Block) error { return hdb.addBlock(hdb.dbWrite, block) }
func (hdb *HistoryDB) addBlock(d meddler.DB, block *common.Block) error {
	return common.Wrap(meddler.Insert(d, "block", block))
}

// AddBlocks inserts blocks into the DB
func (hdb *HistoryDB) AddBlocks(blocks []common.Block) error {
	return common.Wrap(hdb.addBlocks(hdb.dbWrite, blocks))
}

func (hdb *HistoryDB) addBlocks(d meddler.DB, blocks []common.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		`INSERT INTO block (
			eth_block_num,
			timestamp,
			hash
		) VALUES %s;`,
		blocks,
	))
}

// GetBlock retrieve a block from the DB, given a block number
func (hdb *HistoryDB) GetBlock(blockNum int64) (*common.Block, error) {
	block := &common.Block{}
	err := meddler.QueryRow(
		hdb.dbRead, block,
		"SELECT * FROM block WHERE eth_block_num = $1;", blockNum,
	)
	return block, common.Wrap(err)
}

// GetAllBlocks retrieve all blocks from the DB
func (hdb *HistoryDB) GetAllBlocks() ([]common.Block, error) {
	var blocks []*common.Block
	err := meddler.QueryAll(
		hdb.dbRead, &blocks,
		"SELECT * FROM block ORDER BY eth_block_num;",
	)
	return database.SlicePtrsToSlice(blocks).([]common.Block), common.Wrap(err)
}

// GetLastBlock retrieve the block with the highest block number from the DB
func (hdb *HistoryDB) GetLastBlock() (*common.Block, error) {
	block := &common.Block{}
	err := meddler.QueryRow(
		hdb.dbRead, block, "SELECT * FROM block ORDER BY eth_block_num DESC LIMIT 1;",
	)
	return block, common.Wrap(err)
}

// SetInitialSCVars sets the initial state of the rollup and auction
// variables.  This initial state is stored linked to block 0, which always
// exist in the DB and is used to store initialization data.
func (hdb *HistoryDB) SetInitialSCVars(rollup *common.RollupVariables,
	auction *common.AuctionVariables) (err error) {
	txn, err := hdb.dbWrite.Beginx()
	if err != nil {
		return common.Wrap(err)
	}
	defer func() {
		if err != nil {
			database.Rollback(txn)
		}
	}()
	// Force EthBlockNum to be 0 because it's the block used to link data
	// that belongs to the creation of the auction and the rollup
	rollup.EthBlockNum = 0
	auction.EthBlockNum = 0
	if err = hdb.setRollupVars(txn, rollup); err != nil {
		return common.Wrap(err)
	}
	if err = hdb.setAuctionVars(txn, auction); err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(txn.Commit())
}

func (hdb *HistoryDB) setRollupVars(d meddler.DB, rollup *common.RollupVariables) error {
	return common.Wrap(meddler.Insert(d, "rollup_vars", rollup))
}

func (hdb *HistoryDB) setAuctionVars(d meddler.DB, auction *common.AuctionVariables) error {
	return common.Wrap(meddler.Insert(d, "auction_vars", auction))
}

// GetSCVars returns the last rollup and auction variables
func (hdb *HistoryDB) GetSCVars() (*common.RollupVariables, *common.AuctionVariables, error) {
	var rollup common.RollupVariables
	if err := meddler.QueryRow(hdb.dbRead, &rollup,
		"SELECT * FROM rollup_vars ORDER BY eth_block_num DESC LIMIT 1;"); err != nil {
		return nil, nil, common.Wrap(err)
	}
	var auction common.AuctionVariables
	if err := meddler.QueryRow(hdb.dbRead, &auction,
		"SELECT * FROM auction_vars ORDER BY eth_block_num DESC LIMIT 1;"); err != nil {
		return nil, nil, common.Wrap(err)
	}
	return &rollup, &auction, nil
}

// AddCoordinators insert Coordinators into the DB
func (hdb *HistoryDB) AddCoordinators(coordinators []common.Coordinator) error {
	return common.Wrap(hdb.addCoordinators(hdb.dbWrite, coordinators))
}
func (hdb *HistoryDB) addCoordinators(d meddler.DB, coordinators []common.Coordinator) error {
	if len(coordinators) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		"INSERT INTO coordinator (bidder_addr, forger_addr, eth_block_num, url) VALUES %s;",
		coordinators,
	))
}

// GetCoordinator returns the last registration of the bidder
func (hdb *HistoryDB) GetCoordinator(bidder ethCommon.Address) (*common.Coordinator, error) {
	coordinator := &common.Coordinator{}
	err := meddler.QueryRow(
		hdb.dbRead, coordinator,
		`SELECT bidder_addr, forger_addr, eth_block_num, url FROM coordinator
		WHERE bidder_addr = $1 ORDER BY item_id DESC LIMIT 1;`, bidder,
	)
	return coordinator, common.Wrap(err)
}

// AddBids insert Bids into the DB
func (hdb *HistoryDB) AddBids(bids []common.Bid) error { return hdb.addBids(hdb.dbWrite, bids) }
func (hdb *HistoryDB) addBids(d meddler.DB, bids []common.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		"INSERT INTO bid (slot_num, bid_value, eth_block_num, bidder_addr, forger_addr, url) VALUES %s;",
		bids,
	))
}

// GetAllBids retrieve all bids from the DB
func (hdb *HistoryDB) GetAllBids() ([]common.Bid, error) {
	var bids []*common.Bid
	err := meddler.QueryAll(
		hdb.dbRead, &bids,
		`SELECT slot_num, bid_value, eth_block_num, bidder_addr, forger_addr, url
		FROM bid ORDER BY item_id;`,
	)
	return database.SlicePtrsToSlice(bids).([]common.Bid), common.Wrap(err)
}

// GetBestBidBySlot returns the last (highest) bid of a slot
func (hdb *HistoryDB) GetBestBidBySlot(slotNum int64) (*common.Bid, error) {
	bid := &common.Bid{}
	err := meddler.QueryRow(
		hdb.dbRead, bid,
		`SELECT slot_num, bid_value, eth_block_num, bidder_addr, forger_addr, url
		FROM bid WHERE slot_num = $1 ORDER BY item_id DESC LIMIT 1;`, slotNum,
	)
	return bid, common.Wrap(err)
}

func (hdb *HistoryDB) addClaims(d meddler.DB, claims []common.Claim) error {
	if len(claims) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		"INSERT INTO claim (owner, amount, eth_block_num) VALUES %s;",
		claims,
	))
}

// GetClaims returns the claims of owner
func (hdb *HistoryDB) GetClaims(owner ethCommon.Address) ([]common.Claim, error) {
	var claims []*common.Claim
	err := meddler.QueryAll(
		hdb.dbRead, &claims,
		"SELECT owner, amount, eth_block_num FROM claim WHERE owner = $1 ORDER BY item_id;",
		owner,
	)
	return database.SlicePtrsToSlice(claims).([]common.Claim), common.Wrap(err)
}

func (hdb *HistoryDB) addAllocations(d meddler.DB, allocations []common.ForgeAllocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return common.Wrap(database.BulkInsert(
		d,
		`INSERT INTO forge_allocation (slot_num, bidder_addr, forger_addr, burn_amount,
		donation_amount, governance_amount, eth_block_num) VALUES %s;`,
		allocations,
	))
}

// GetAllocations returns all the slot settlements
func (hdb *HistoryDB) GetAllocations() ([]common.ForgeAllocation, error) {
	var allocations []*common.ForgeAllocation
	err := meddler.QueryAll(
		hdb.dbRead, &allocations,
		`SELECT slot_num, bidder_addr, forger_addr, burn_amount, donation_amount,
		governance_amount, eth_block_num FROM forge_allocation ORDER BY item_id;`,
	)
	return database.SlicePtrsToSlice(allocations).([]common.ForgeAllocation), common.Wrap(err)
}

// AddBatch insert a Batch into the DB
func (hdb *HistoryDB) AddBatch(batch *common.Batch) error { return hdb.addBatch(hdb.dbWrite, batch) }
func (hdb *HistoryDB) addBatch(d meddler.DB, batch *common.Batch) error {
	return common.Wrap(meddler.Insert(d, "batch", batch))
}

const batchColumns = `batch_num, eth_block_num, forger_addr, state_root, last_idx,
	exit_root, forge_l1_txs_num, l1_user_txs_len, verifier_idx, slot_num`

// GetBatch returns the batch with the given batchNum
func (hdb *HistoryDB) GetBatch(batchNum common.BatchNum) (*common.Batch, error) {
	var batch common.Batch
	err := meddler.QueryRow(
		hdb.dbRead, &batch,
		"SELECT "+batchColumns+" FROM batch WHERE batch_num = $1;", batchNum,
	)
	return &batch, common.Wrap(err)
}

// GetBatches retrieve batches from the DB, given a range of batch numbers
// defined by from and to
func (hdb *HistoryDB) GetBatches(from, to common.BatchNum) ([]common.Batch, error) {
	var batches []*common.Batch
	err := meddler.QueryAll(
		hdb.dbRead, &batches,
		"SELECT "+batchColumns+` FROM batch
		WHERE $1 <= batch_num AND batch_num < $2 ORDER BY batch_num;`,
		from, to,
	)
	return database.SlicePtrsToSlice(batches).([]common.Batch), common.Wrap(err)
}

// GetLastBatch returns the last forged batch
func (hdb *HistoryDB) GetLastBatch() (*common.Batch, error) {
	var batch common.Batch
	err := meddler.QueryRow(
		hdb.dbRead, &batch,
		"SELECT "+batchColumns+" FROM batch ORDER BY batch_num DESC LIMIT 1;",
	)
	return &batch, common.Wrap(err)
}

// GetLastL1BatchBlockNum returns the blockNum of the latest forged l1Batch
func (hdb *HistoryDB) GetLastL1BatchBlockNum() (int64, error) {
	row := hdb.dbRead.QueryRow(`SELECT eth_block_num FROM batch
		WHERE forge_l1_txs_num IS NOT NULL
		ORDER BY batch_num DESC LIMIT 1;`)
	var blockNum int64
	return blockNum, common.Wrap(row.Scan(&blockNum))
}

// GetLastL1TxsNum returns the greatest ForgeL1TxsNum in the DB from forged
// batches.  If there's no batch in the DB (nil, nil) is returned.
func (hdb *HistoryDB) GetLastL1TxsNum() (*int64, error) {
	row := hdb.dbRead.QueryRow("SELECT MAX(forge_l1_txs_num) FROM batch;")
	lastL1TxsNum := new(int64)
	return lastL1TxsNum, common.Wrap(row.Scan(&lastL1TxsNum))
}

// AddL1Txs inserts L1 txs into the DB
func (hdb *HistoryDB) AddL1Txs(l1txs []common.L1Tx) error {
	return common.Wrap(hdb.addL1Txs(hdb.dbWrite, l1txs))
}

func (hdb *HistoryDB) addL1Txs(d meddler.DB, l1txs []common.L1Tx) error {
	for i := range l1txs {
		tx := l1txs[i]
		tx.Amount = common.BigIntOrZero(tx.Amount)
		tx.DepositAmount = common.BigIntOrZero(tx.DepositAmount)
		if err := meddler.Insert(d, "l1_tx", &tx); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

// setL1UserTxsBatchNum marks the user txs of the queue toForgeL1TxsNum as
// forged in batchNum
func (hdb *HistoryDB) setL1UserTxsBatchNum(d sqlx.Execer, toForgeL1TxsNum int64,
	batchNum common.BatchNum) error {
	_, err := d.Exec(`UPDATE l1_tx SET batch_num = $1
		WHERE user_origin AND to_forge_l1_txs_num = $2;`, batchNum, toForgeL1TxsNum)
	return common.Wrap(err)
}

const l1TxColumns = `id, to_forge_l1_txs_num, position, user_origin, from_idx,
	from_eth_addr, from_bjj, to_idx, token_id, amount, deposit_amount, eth_block_num,
	type, batch_num`

// GetL1UserTxs returns the user L1 txs of the queue toForgeL1TxsNum
func (hdb *HistoryDB) GetL1UserTxs(toForgeL1TxsNum int64) ([]common.L1Tx, error) {
	var txs []*common.L1Tx
	err := meddler.QueryAll(
		hdb.dbRead, &txs,
		"SELECT "+l1TxColumns+` FROM l1_tx
		WHERE user_origin AND to_forge_l1_txs_num = $1 ORDER BY position;`,
		toForgeL1TxsNum,
	)
	return database.SlicePtrsToSlice(txs).([]common.L1Tx), common.Wrap(err)
}

// GetUnforgedL1UserTxs returns the user L1 txs that are not forged yet
func (hdb *HistoryDB) GetUnforgedL1UserTxs() ([]common.L1Tx, error) {
	var txs []*common.L1Tx
	err := meddler.QueryAll(
		hdb.dbRead, &txs,
		"SELECT "+l1TxColumns+` FROM l1_tx
		WHERE user_origin AND batch_num IS NULL
		ORDER BY to_forge_l1_txs_num, position;`,
	)
	return database.SlicePtrsToSlice(txs).([]common.L1Tx), common.Wrap(err)
}

// GetL1CoordinatorTxs returns the coordinator L1 txs forged in batchNum
func (hdb *HistoryDB) GetL1CoordinatorTxs(batchNum common.BatchNum) ([]common.L1Tx, error) {
	var txs []*common.L1Tx
	err := meddler.QueryAll(
		hdb.dbRead, &txs,
		"SELECT "+l1TxColumns+` FROM l1_tx
		WHERE NOT user_origin AND batch_num = $1 ORDER BY position;`,
		batchNum,
	)
	return database.SlicePtrsToSlice(txs).([]common.L1Tx), common.Wrap(err)
}

// Reorg deletes all the information that was added into the DB after the
// lastValidBlock.  If lastValidBlock is negative, all block information is
// deleted.
func (hdb *HistoryDB) Reorg(lastValidBlock int64) error {
	var err error
	if lastValidBlock < 0 {
		_, err = hdb.dbWrite.Exec("DELETE FROM block;")
	} else {
		_, err = hdb.dbWrite.Exec("DELETE FROM block WHERE eth_block_num > $1;", lastValidBlock)
	}
	return common.Wrap(err)
}

// AddBlockSCData stores all the information of a block retrieved by the
// Synchronizer.  Blocks should be inserted in order, leaving no gaps because
// the pagination system of the API depends on this.
func (hdb *HistoryDB) AddBlockSCData(blockData *common.BlockData) (err error) {
	txn, err := hdb.dbWrite.Beginx()
	if err != nil {
		return common.Wrap(err)
	}
	defer func() {
		if err != nil {
			database.Rollback(txn)
		}
	}()

	// Add block
	if err = hdb.addBlock(txn, &blockData.Block); err != nil {
		return common.Wrap(err)
	}

	// Add Coordinators
	if err = hdb.addCoordinators(txn, blockData.Auction.Coordinators); err != nil {
		return common.Wrap(err)
	}

	// Add Bids
	if err = hdb.addBids(txn, blockData.Auction.Bids); err != nil {
		return common.Wrap(err)
	}

	// Add Claims
	if err = hdb.addClaims(txn, blockData.Auction.Claims); err != nil {
		return common.Wrap(err)
	}

	// Add slot settlements
	if err = hdb.addAllocations(txn, blockData.Auction.Allocations); err != nil {
		return common.Wrap(err)
	}

	// User L1 txs must be added before the batch that forges them, which
	// can be in the same block
	if err = hdb.addL1Txs(txn, blockData.Rollup.L1UserTxs); err != nil {
		return common.Wrap(err)
	}

	for i := range blockData.Rollup.Batches {
		batch := &blockData.Rollup.Batches[i]
		if err = hdb.addBatch(txn, &batch.Batch); err != nil {
			return common.Wrap(err)
		}
		if batch.L1Batch && batch.Batch.ForgeL1TxsNum != nil {
			if err = hdb.setL1UserTxsBatchNum(txn, *batch.Batch.ForgeL1TxsNum,
				batch.Batch.BatchNum); err != nil {
				return common.Wrap(err)
			}
		}
		if err = hdb.addL1Txs(txn, batch.L1CoordinatorTxs); err != nil {
			return common.Wrap(err)
		}
	}

	if blockData.Rollup.Vars != nil {
		if err = hdb.setRollupVars(txn, blockData.Rollup.Vars); err != nil {
			return common.Wrap(err)
		}
	}
	if blockData.Auction.Vars != nil {
		if err = hdb.setAuctionVars(txn, blockData.Auction.Vars); err != nil {
			return common.Wrap(err)
		}
	}

	return common.Wrap(txn.Commit())
}
