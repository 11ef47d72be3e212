package historydb

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/russross/meddler"
)

const (
	// OrderAsc indicates ascending order when using pagination
	OrderAsc = "ASC"
	// OrderDesc indicates descending order when using pagination
	OrderDesc = "DESC"
)

// BidAPI is a representation of a bid with additional information
// required by the API
type BidAPI struct {
	ItemID      uint64            `json:"itemId" meddler:"item_id"`
	SlotNum     int64             `json:"slotNum" meddler:"slot_num"`
	BidValue    *big.Int          `json:"bidValue" meddler:"bid_value,bigint"`
	EthBlockNum int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
	Bidder      ethCommon.Address `json:"bidderAddr" meddler:"bidder_addr"`
	Forger      ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	URL         string            `json:"URL" meddler:"url"`
	Timestamp   time.Time         `json:"timestamp" meddler:"timestamp,utctime"`
}

// CoordinatorAPI is a representation of a coordinator with additional
// information required by the API
type CoordinatorAPI struct {
	ItemID      uint64            `json:"itemId" meddler:"item_id"`
	Bidder      ethCommon.Address `json:"bidderAddr" meddler:"bidder_addr"`
	Forger      ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	EthBlockNum int64             `json:"ethereumBlock" meddler:"eth_block_num"`
	URL         string            `json:"URL" meddler:"url"`
}

// BatchAPI is a representation of a batch with additional information
// required by the API
type BatchAPI struct {
	ItemID        uint64            `json:"itemId" meddler:"item_id"`
	BatchNum      common.BatchNum   `json:"batchNum" meddler:"batch_num"`
	EthBlockNum   int64             `json:"ethereumBlockNum" meddler:"eth_block_num"`
	EthBlockHash  ethCommon.Hash    `json:"ethereumBlockHash" meddler:"hash"`
	Timestamp     time.Time         `json:"timestamp" meddler:"timestamp,utctime"`
	ForgerAddr    ethCommon.Address `json:"forgerAddr" meddler:"forger_addr"`
	StateRoot     *big.Int          `json:"stateRoot" meddler:"state_root,bigint"`
	LastIdx       int64             `json:"lastAccountIndex" meddler:"last_idx"`
	ExitRoot      *big.Int          `json:"exitRoot" meddler:"exit_root,bigint"`
	ForgeL1TxsNum *int64            `json:"forgeL1TransactionsNum" meddler:"forge_l1_txs_num"`
	L1UserTxsLen  int               `json:"l1UserTransactions" meddler:"l1_user_txs_len"`
	VerifierIdx   uint8             `json:"verifierIndex" meddler:"verifier_idx"`
	SlotNum       int64             `json:"slotNum" meddler:"slot_num"`
}

// GetBidsFilter are the optional filters of GetBidsAPI
type GetBidsFilter struct {
	SlotNum *int64
	Bidder  *ethCommon.Address
	FromID  *uint
	Limit   *uint
	Order   string
}

// GetBidsAPI return the bids applying the given filters
func (hdb *HistoryDB) GetBidsAPI(request GetBidsFilter) ([]BidAPI, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()

	queryStr := `SELECT bid.item_id, bid.slot_num, bid.bid_value, bid.eth_block_num,
		bid.bidder_addr, bid.forger_addr, bid.url, block.timestamp
		FROM bid INNER JOIN block ON bid.eth_block_num = block.eth_block_num `
	var args []interface{}
	var where []string
	if request.SlotNum != nil {
		args = append(args, *request.SlotNum)
		where = append(where, fmt.Sprintf("bid.slot_num = $%d", len(args)))
	}
	if request.Bidder != nil {
		args = append(args, *request.Bidder)
		where = append(where, fmt.Sprintf("bid.bidder_addr = $%d", len(args)))
	}
	order := OrderAsc
	if request.Order == OrderDesc {
		order = OrderDesc
	}
	if request.FromID != nil {
		args = append(args, *request.FromID)
		if order == OrderAsc {
			where = append(where, fmt.Sprintf("bid.item_id >= $%d", len(args)))
		} else {
			where = append(where, fmt.Sprintf("bid.item_id <= $%d", len(args)))
		}
	}
	if len(where) > 0 {
		queryStr += "WHERE " + strings.Join(where, " AND ") + " "
	}
	queryStr += "ORDER BY bid.item_id " + order + " "
	if request.Limit != nil {
		queryStr += fmt.Sprintf("LIMIT %d;", *request.Limit)
	}
	var bids []*BidAPI
	if err := meddler.QueryAll(hdb.dbRead, &bids, queryStr, args...); err != nil {
		return nil, common.Wrap(err)
	}
	return database.SlicePtrsToSlice(bids).([]BidAPI), nil
}

// GetCoordinatorsAPI returns the current registration of every coordinator
func (hdb *HistoryDB) GetCoordinatorsAPI() ([]CoordinatorAPI, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()

	var coordinators []*CoordinatorAPI
	if err := meddler.QueryAll(
		hdb.dbRead, &coordinators,
		`SELECT item_id, bidder_addr, forger_addr, eth_block_num, url FROM coordinator
		WHERE item_id IN (SELECT MAX(item_id) FROM coordinator GROUP BY bidder_addr)
		ORDER BY item_id;`,
	); err != nil {
		return nil, common.Wrap(err)
	}
	return database.SlicePtrsToSlice(coordinators).([]CoordinatorAPI), nil
}

// GetBatchesAPI returns the batches in [from, to)
func (hdb *HistoryDB) GetBatchesAPI(from, to common.BatchNum) ([]BatchAPI, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer hdb.apiConnCon.Release()

	var batches []*BatchAPI
	if err := meddler.QueryAll(
		hdb.dbRead, &batches,
		`SELECT batch.item_id, batch.batch_num, batch.eth_block_num, block.hash,
		block.timestamp, batch.forger_addr, batch.state_root, batch.last_idx,
		batch.exit_root, batch.forge_l1_txs_num, batch.l1_user_txs_len,
		batch.verifier_idx, batch.slot_num
		FROM batch INNER JOIN block ON batch.eth_block_num = block.eth_block_num
		WHERE $1 <= batch.batch_num AND batch.batch_num < $2
		ORDER BY batch.batch_num;`, from, to,
	); err != nil {
		return nil, common.Wrap(err)
	}
	return database.SlicePtrsToSlice(batches).([]BatchAPI), nil
}
