package api

import (
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/synchronizer"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

func parseAddr(s string) (ethCommon.Address, error) {
	if !ethCommon.IsHexAddress(s) {
		return ethCommon.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return ethCommon.HexToAddress(s), nil
}

func parseInt64(name, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, s)
	}
	return v, nil
}

type canForgeFilter struct {
	Forger   string `form:"forger" validate:"required"`
	BlockNum *int64 `form:"blockNum" validate:"omitempty,min=0"`
}

func (a *API) getCanForge(c *gin.Context) {
	var filter canForgeFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	if err := a.validate.Struct(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	forger, err := parseAddr(filter.Forger)
	if err != nil {
		retBadReq(c, err)
		return
	}
	var canForge bool
	var blockNum int64
	if err := a.chain.Call(func(tx *chain.Tx) error {
		blockNum = tx.BlockNum
		if filter.BlockNum != nil {
			blockNum = *filter.BlockNum
		}
		var err error
		canForge, err = a.auction.CanForge(tx, forger, blockNum)
		return err
	}); err != nil {
		retErr(c, "Error checking the forging rights", err)
		return
	}
	successResponse(c, http.StatusOK, "Forging rights fetched successfully", gin.H{
		"forger":   forger,
		"blockNum": blockNum,
		"canForge": canForge,
	})
}

func (a *API) getClaimable(c *gin.Context) {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	var claimable *big.Int
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		claimable, err = a.auction.GetClaimableHEZ(tx, addr)
		return err
	}); err != nil {
		retErr(c, "Error fetching the claimable balance", err)
		return
	}
	successResponse(c, http.StatusOK, "Claimable balance fetched successfully", gin.H{
		"address":   addr,
		"claimable": claimable,
	})
}

func (a *API) getBalance(c *gin.Context) {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	var balance, allowance *big.Int
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		if balance, err = a.token.BalanceOf(tx, addr); err != nil {
			return err
		}
		allowance, err = a.token.Allowance(tx, addr, a.auction.Constants().AuctionAddress)
		return err
	}); err != nil {
		retErr(c, "Error fetching the balance", err)
		return
	}
	successResponse(c, http.StatusOK, "Balance fetched successfully", gin.H{
		"address":          addr,
		"balance":          balance,
		"auctionAllowance": allowance,
	})
}

func (a *API) getSlot(c *gin.Context) {
	slotNum, err := parseInt64("slot", c.Param("slot"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	var slot *common.Slot
	var minBid *big.Int
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		if slot, err = a.auction.GetSlot(tx, slotNum); err != nil {
			return err
		}
		minBid, err = a.auction.GetMinBidBySlot(tx, slotNum)
		return err
	}); err != nil {
		retErr(c, "Error fetching the slot", err)
		return
	}
	successResponse(c, http.StatusOK, "Slot fetched successfully", gin.H{
		"slot":    slot,
		"slotSet": a.auction.GetSlotSet(slotNum),
		"minBid":  minBid,
	})
}

func (a *API) getAuctionVars(c *gin.Context) {
	var vars *common.AuctionVariables
	var currentSlot int64
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		if vars, err = a.auction.GetVariables(tx); err != nil {
			return err
		}
		currentSlot, err = a.auction.GetCurrentSlotNumber(tx)
		return err
	}); err != nil {
		retErr(c, "Error fetching the auction variables", err)
		return
	}
	successResponse(c, http.StatusOK, "Auction variables fetched successfully", gin.H{
		"constants":   a.auction.Constants(),
		"variables":   vars,
		"currentSlot": currentSlot,
	})
}

func (a *API) getRollupVars(c *gin.Context) {
	var vars *common.RollupVariables
	var lastForgedBatch common.BatchNum
	var lastL1L2Batch int64
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		if vars, err = a.rollup.Variables(tx); err != nil {
			return err
		}
		if lastForgedBatch, err = a.rollup.LastForgedBatch(tx); err != nil {
			return err
		}
		lastL1L2Batch, err = a.rollup.LastL1L2Batch(tx)
		return err
	}); err != nil {
		retErr(c, "Error fetching the rollup variables", err)
		return
	}
	successResponse(c, http.StatusOK, "Rollup variables fetched successfully", gin.H{
		"constants":       a.rollup.Constants(),
		"variables":       vars,
		"lastForgedBatch": lastForgedBatch,
		"lastL1L2Batch":   lastL1L2Batch,
	})
}

type queueInfo struct {
	Idx int64 `json:"idx"`
	Len int   `json:"len"`
}

func (a *API) getL1Queue(c *gin.Context) {
	var forge, fill int64
	var queues []queueInfo
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		queue := a.rollup.Queue()
		if forge, fill, err = queue.Pointers(tx); err != nil {
			return err
		}
		for idx := forge; idx <= fill; idx++ {
			n, err := queue.QueueLen(tx, idx)
			if err != nil {
				return err
			}
			queues = append(queues, queueInfo{Idx: idx, Len: n})
		}
		return nil
	}); err != nil {
		retErr(c, "Error fetching the L1 queue", err)
		return
	}
	successResponse(c, http.StatusOK, "L1 queue fetched successfully", gin.H{
		"toForgeL1TxsNum":  forge,
		"fillingL1TxsNum":  fill,
		"maxPendingQueues": a.rollup.Queue().MaxPendingQueues(),
		"pending":          queues,
	})
}

func (a *API) getL1QueueTxs(c *gin.Context) {
	idx, err := parseInt64("queue index", c.Param("idx"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	var txs []common.L1Tx
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		txs, err = a.rollup.Queue().QueueTxs(tx, idx)
		return err
	}); err != nil {
		retErr(c, "Error fetching the L1 queue", err)
		return
	}
	successResponse(c, http.StatusOK, "L1 queue fetched successfully", gin.H{
		"toForgeL1TxsNum": idx,
		"l1UserTxs":       txs,
	})
}

// NodeState is the state of the node
type NodeState struct {
	BlockNum        int64               `json:"blockNum"`
	LastBlockNum    int64               `json:"lastBlockNum"`
	CurrentSlot     int64               `json:"currentSlot"`
	LastForgedBatch common.BatchNum     `json:"lastForgedBatch"`
	Sync            *synchronizer.Stats `json:"sync,omitempty"`
}

func (a *API) getState(c *gin.Context) {
	state := NodeState{
		BlockNum:     a.chain.BlockNum(),
		LastBlockNum: a.chain.LastBlockNum(),
	}
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		if state.CurrentSlot, err = a.auction.GetCurrentSlotNumber(tx); err != nil {
			return err
		}
		state.LastForgedBatch, err = a.rollup.LastForgedBatch(tx)
		return err
	}); err != nil {
		retErr(c, "Error fetching the state", err)
		return
	}
	if a.sync != nil {
		state.Sync = a.sync.Stats()
	}
	successResponse(c, http.StatusOK, "State fetched successfully", state)
}
