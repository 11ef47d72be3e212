package api

import (
	"fmt"
	"net/http"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/historydb"

	"github.com/gin-gonic/gin"
)

type bidsFilter struct {
	SlotNum    *int64  `form:"slotNum" validate:"omitempty,min=0"`
	BidderAddr *string `form:"bidderAddr"`
	FromItem   *uint   `form:"fromItem"`
	Order      *string `form:"order" validate:"omitempty,oneof=ASC DESC"`
	Limit      *uint   `form:"limit"`
}

func (a *API) getBids(c *gin.Context) {
	var filter bidsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	if err := a.validate.Struct(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	request := historydb.GetBidsFilter{
		SlotNum: filter.SlotNum,
		FromID:  filter.FromItem,
		Order:   historydb.OrderAsc,
	}
	if filter.BidderAddr != nil {
		bidder, err := parseAddr(*filter.BidderAddr)
		if err != nil {
			retBadReq(c, err)
			return
		}
		request.Bidder = &bidder
	}
	if filter.Order != nil {
		request.Order = *filter.Order
	}
	limit := dfltLimit
	if filter.Limit != nil {
		if *filter.Limit > maxLimit || *filter.Limit == 0 {
			retBadReq(c, fmt.Errorf("limit must be in [1, %d]", maxLimit))
			return
		}
		limit = *filter.Limit
	}
	request.Limit = &limit

	bids, err := a.historyDB.GetBidsAPI(request)
	if err != nil {
		retErr(c, "Error fetching the bids", err)
		return
	}
	successResponse(c, http.StatusOK, "Bids fetched successfully", gin.H{"bids": bids})
}

func (a *API) getCoordinators(c *gin.Context) {
	coordinators, err := a.historyDB.GetCoordinatorsAPI()
	if err != nil {
		retErr(c, "Error fetching the coordinators", err)
		return
	}
	successResponse(c, http.StatusOK, "Coordinators fetched successfully",
		gin.H{"coordinators": coordinators})
}

type batchesFilter struct {
	From *int64 `form:"fromBatchNum" validate:"omitempty,min=0"`
	To   *int64 `form:"toBatchNum" validate:"omitempty,min=0"`
}

func (a *API) getBatches(c *gin.Context) {
	var filter batchesFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	if err := a.validate.Struct(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	from := common.BatchNum(0)
	if filter.From != nil {
		from = common.BatchNum(*filter.From)
	}
	to := from + common.BatchNum(dfltLimit)
	if filter.To != nil {
		to = common.BatchNum(*filter.To)
	}
	if to < from || to-from > common.BatchNum(maxLimit) {
		retBadReq(c, fmt.Errorf("toBatchNum must be in [fromBatchNum, fromBatchNum+%d]", maxLimit))
		return
	}
	batches, err := a.historyDB.GetBatchesAPI(from, to)
	if err != nil {
		retErr(c, "Error fetching the batches", err)
		return
	}
	successResponse(c, http.StatusOK, "Batches fetched successfully", gin.H{"batches": batches})
}

type l1TxsFilter struct {
	ToForgeL1TxsNum *int64 `form:"toForgeL1TxsNum" validate:"omitempty,min=0"`
	BatchNum        *int64 `form:"batchNum" validate:"omitempty,min=0"`
}

// getL1Txs returns the L1 user txs of a queue, the L1 coordinator txs of a
// batch, or the L1 user txs not forged yet when no filter is given
func (a *API) getL1Txs(c *gin.Context) {
	var filter l1TxsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	if err := a.validate.Struct(&filter); err != nil {
		retBadReq(c, err)
		return
	}
	var txs []common.L1Tx
	var err error
	switch {
	case filter.ToForgeL1TxsNum != nil && filter.BatchNum != nil:
		retBadReq(c, fmt.Errorf("toForgeL1TxsNum and batchNum are mutually exclusive"))
		return
	case filter.ToForgeL1TxsNum != nil:
		txs, err = a.historyDB.GetL1UserTxs(*filter.ToForgeL1TxsNum)
	case filter.BatchNum != nil:
		txs, err = a.historyDB.GetL1CoordinatorTxs(common.BatchNum(*filter.BatchNum))
	default:
		txs, err = a.historyDB.GetUnforgedL1UserTxs()
	}
	if err != nil {
		retErr(c, "Error fetching the L1 txs", err)
		return
	}
	successResponse(c, http.StatusOK, "L1 txs fetched successfully", gin.H{"l1Txs": txs})
}
