package api

import (
	"encoding/json"
	"fmt"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/rollup"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

var errInvalidBJJ = fmt.Errorf("fromBJJ must be a compressed babyjubjub public key")

// call runs a method over a chain transaction and returns its result
type call func(tx *chain.Tx) (interface{}, error)

// method decodes the params of a request into the call that executes it
type method func(a *API, params json.RawMessage) (call, error)

type setCoordinatorParams struct {
	Forger ethCommon.Address `json:"forger" validate:"required"`
	URL    string            `json:"url" validate:"required,url"`
}

type processBidParams struct {
	Slot             int64         `json:"slot" validate:"min=0"`
	BidAmount        *big.Int      `json:"bidAmount" validate:"required"`
	AmountToTransfer *big.Int      `json:"amountToTransfer" validate:"required"`
	Permit           hexutil.Bytes `json:"permit"`
}

type processMultiBidParams struct {
	Amount   *big.Int                     `json:"amount" validate:"required"`
	SlotMin  int64                        `json:"slotMin" validate:"min=0"`
	SlotMax  int64                        `json:"slotMax" validate:"min=0"`
	SlotSets [common.AuctionSlotSets]bool `json:"slotSets"`
	MaxBid   *big.Int                     `json:"maxBid" validate:"required"`
	MinBid   *big.Int                     `json:"minBid" validate:"required"`
	Permit   hexutil.Bytes                `json:"permit"`
}

type forgeBatchParams struct {
	NewLastIdx        int64          `json:"newLastIdx" validate:"min=0"`
	NewStRoot         *big.Int       `json:"newStRoot" validate:"required"`
	NewExitRoot       *big.Int       `json:"newExitRoot" validate:"required"`
	L1CoordinatorTxs  hexutil.Bytes  `json:"l1CoordinatorTxs"`
	L2TxsData         hexutil.Bytes  `json:"l2TxsData"`
	FeeIdxCoordinator hexutil.Bytes  `json:"feeIdxCoordinator"`
	VerifierIdx       uint8          `json:"verifierIdx"`
	L1Batch           bool           `json:"l1Batch"`
	ProofA            [2]*big.Int    `json:"proofA" validate:"dive,required"`
	ProofB            [2][2]*big.Int `json:"proofB" validate:"dive,dive,required"`
	ProofC            [2]*big.Int    `json:"proofC" validate:"dive,required"`
}

type addL1TransactionParams struct {
	FromIdx       common.AccountIdx `json:"fromIdx"`
	FromBJJ       hexutil.Bytes     `json:"fromBJJ"`
	ToIdx         common.AccountIdx `json:"toIdx"`
	TokenID       common.TokenID    `json:"tokenId"`
	Amount        *big.Int          `json:"amount"`
	DepositAmount *big.Int          `json:"depositAmount"`
}

type forgeBatchResult struct {
	BatchNum common.BatchNum `json:"batchNum"`
}

type addL1TransactionResult struct {
	ToForgeL1TxsNum int64 `json:"toForgeL1TxsNum"`
	Position        int   `json:"position"`
}

type transferParams struct {
	To     ethCommon.Address `json:"to" validate:"required"`
	Amount *big.Int          `json:"amount" validate:"required"`
}

type approveParams struct {
	Spender ethCommon.Address `json:"spender" validate:"required"`
	Amount  *big.Int          `json:"amount" validate:"required"`
}

type slotDeadlineParams struct {
	NewSlotDeadline uint8 `json:"newSlotDeadline"`
}

type openAuctionSlotsParams struct {
	NewOpenAuctionSlots uint16 `json:"newOpenAuctionSlots"`
}

type closedAuctionSlotsParams struct {
	NewClosedAuctionSlots uint16 `json:"newClosedAuctionSlots"`
}

type outbiddingParams struct {
	NewOutbidding uint16 `json:"newOutbidding"`
}

type allocationRatioParams struct {
	NewAllocationRatio [3]uint16 `json:"newAllocationRatio"`
}

type donationAddressParams struct {
	NewDonationAddress ethCommon.Address `json:"newDonationAddress"`
}

type bootCoordinatorParams struct {
	NewBootCoordinator    ethCommon.Address `json:"newBootCoordinator"`
	NewBootCoordinatorURL string            `json:"newBootCoordinatorURL"`
}

type defaultSlotSetBidParams struct {
	SlotSet          int64    `json:"slotSet"`
	NewInitialMinBid *big.Int `json:"newInitialMinBid" validate:"required"`
}

type forgeL1L2BatchTimeoutParams struct {
	NewForgeL1L2BatchTimeout int64 `json:"newForgeL1L2BatchTimeout"`
}

// txMethods returns the methods that can be called with a TxRequest
func (a *API) txMethods() map[string]method {
	return map[string]method{
		// Auction
		"setCoordinator": func(a *API, raw json.RawMessage) (call, error) {
			var p setCoordinatorParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetCoordinator(tx, p.Forger, p.URL)
			}, nil
		},
		"processBid": func(a *API, raw json.RawMessage) (call, error) {
			var p processBidParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.ProcessBid(tx, p.Slot, p.BidAmount, p.AmountToTransfer, p.Permit)
			}, nil
		},
		"processMultiBid": func(a *API, raw json.RawMessage) (call, error) {
			var p processMultiBidParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.ProcessMultiBid(tx, p.Amount, p.SlotMin, p.SlotMax,
					p.SlotSets, p.MaxBid, p.MinBid, p.Permit)
			}, nil
		},
		"claimHEZ": func(a *API, raw json.RawMessage) (call, error) {
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.ClaimHEZ(tx)
			}, nil
		},
		// Auction governance
		"setSlotDeadline": func(a *API, raw json.RawMessage) (call, error) {
			var p slotDeadlineParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetSlotDeadline(tx, p.NewSlotDeadline)
			}, nil
		},
		"setOpenAuctionSlots": func(a *API, raw json.RawMessage) (call, error) {
			var p openAuctionSlotsParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetOpenAuctionSlots(tx, p.NewOpenAuctionSlots)
			}, nil
		},
		"setClosedAuctionSlots": func(a *API, raw json.RawMessage) (call, error) {
			var p closedAuctionSlotsParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetClosedAuctionSlots(tx, p.NewClosedAuctionSlots)
			}, nil
		},
		"setOutbidding": func(a *API, raw json.RawMessage) (call, error) {
			var p outbiddingParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetOutbidding(tx, p.NewOutbidding)
			}, nil
		},
		"setAllocationRatio": func(a *API, raw json.RawMessage) (call, error) {
			var p allocationRatioParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetAllocationRatio(tx, p.NewAllocationRatio)
			}, nil
		},
		"setDonationAddress": func(a *API, raw json.RawMessage) (call, error) {
			var p donationAddressParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetDonationAddress(tx, p.NewDonationAddress)
			}, nil
		},
		"setBootCoordinator": func(a *API, raw json.RawMessage) (call, error) {
			var p bootCoordinatorParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.SetBootCoordinator(tx, p.NewBootCoordinator,
					p.NewBootCoordinatorURL)
			}, nil
		},
		"changeDefaultSlotSetBid": func(a *API, raw json.RawMessage) (call, error) {
			var p defaultSlotSetBidParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.auction.ChangeDefaultSlotSetBid(tx, p.SlotSet, p.NewInitialMinBid)
			}, nil
		},
		// Rollup
		"forgeBatch": func(a *API, raw json.RawMessage) (call, error) {
			var p forgeBatchParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			args := &rollup.ForgeBatchArgs{
				NewLastIdx:        p.NewLastIdx,
				NewStRoot:         p.NewStRoot,
				NewExitRoot:       p.NewExitRoot,
				L1CoordinatorTxs:  p.L1CoordinatorTxs,
				L2TxsData:         p.L2TxsData,
				FeeIdxCoordinator: p.FeeIdxCoordinator,
				VerifierIdx:       p.VerifierIdx,
				L1Batch:           p.L1Batch,
				ProofA:            p.ProofA,
				ProofB:            p.ProofB,
				ProofC:            p.ProofC,
			}
			return func(tx *chain.Tx) (interface{}, error) {
				batchNum, err := a.rollup.ForgeBatch(tx, args)
				if err != nil {
					return nil, err
				}
				return &forgeBatchResult{BatchNum: batchNum}, nil
			}, nil
		},
		"addL1Transaction": func(a *API, raw json.RawMessage) (call, error) {
			var p addL1TransactionParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			l1Tx := &common.L1Tx{
				FromIdx:       p.FromIdx,
				ToIdx:         p.ToIdx,
				TokenID:       p.TokenID,
				Amount:        common.BigIntOrZero(p.Amount),
				DepositAmount: common.BigIntOrZero(p.DepositAmount),
			}
			if len(p.FromBJJ) > 0 {
				if len(p.FromBJJ) != len(babyjub.PublicKeyComp{}) {
					return nil, common.Wrap(errInvalidBJJ)
				}
				copy(l1Tx.FromBJJ[:], p.FromBJJ)
			}
			return func(tx *chain.Tx) (interface{}, error) {
				queueIdx, position, err := a.rollup.AddL1Transaction(tx, l1Tx)
				if err != nil {
					return nil, err
				}
				return &addL1TransactionResult{ToForgeL1TxsNum: queueIdx, Position: position}, nil
			}, nil
		},
		"updateForgeL1L2BatchTimeout": func(a *API, raw json.RawMessage) (call, error) {
			var p forgeL1L2BatchTimeoutParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.rollup.UpdateForgeL1L2BatchTimeout(tx, p.NewForgeL1L2BatchTimeout)
			}, nil
		},
		// Token
		"transfer": func(a *API, raw json.RawMessage) (call, error) {
			var p transferParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.token.Transfer(tx, tx.From, p.To, p.Amount)
			}, nil
		},
		"approve": func(a *API, raw json.RawMessage) (call, error) {
			var p approveParams
			if err := a.decodeParams(raw, &p); err != nil {
				return nil, err
			}
			return func(tx *chain.Tx) (interface{}, error) {
				return nil, a.token.Approve(tx, p.Spender, p.Amount)
			}, nil
		},
	}
}
