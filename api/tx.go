package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

var (
	// ErrInvalidNonce is used when the nonce of a request is not the next
	// nonce of the sender
	ErrInvalidNonce = fmt.Errorf("invalid nonce")
	// ErrUnknownMethod is used when the method of a request doesn't exist
	ErrUnknownMethod = fmt.Errorf("unknown method")
	// ErrSignerMismatch is used when the signature was not made by the
	// sender of the request
	ErrSignerMismatch = fmt.Errorf("signature doesn't match the sender")
)

var nonceKeyPrefix = []byte("api/nonce/")

// TxRequest is a call to a chain method signed by its sender
type TxRequest struct {
	From   ethCommon.Address `json:"from" validate:"required"`
	Method string            `json:"method" validate:"required"`
	// Params are the JSON encoded arguments of the method, signed as
	// they are sent
	Params    json.RawMessage `json:"params"`
	Nonce     uint64          `json:"nonce"`
	Signature hexutil.Bytes   `json:"signature" validate:"required"`
}

// TxHash returns the hash signed by the sender of a TxRequest:
//
//	keccak256(chainID [2 bytes] | from [20 bytes] | nonce [8 bytes] |
//	keccak256(method) | keccak256(params))
func TxHash(chainID uint16, from ethCommon.Address, method string,
	params []byte, nonce uint64) []byte {
	var b []byte
	var chainIDBytes [2]byte
	binary.BigEndian.PutUint16(chainIDBytes[:], chainID)
	b = append(b, chainIDBytes[:]...)
	b = append(b, from.Bytes()...)
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	b = append(b, nonceBytes[:]...)
	b = append(b, ethCrypto.Keccak256([]byte(method))...)
	b = append(b, ethCrypto.Keccak256(params)...)
	return ethCrypto.Keccak256(b)
}

// Sign sets the signature of the request, using signHash to sign TxHash
func (r *TxRequest) Sign(chainID uint16, signHash func(hash []byte) ([]byte, error)) error {
	sig, err := signHash(TxHash(chainID, r.From, r.Method, r.Params, r.Nonce))
	if err != nil {
		return common.Wrap(err)
	}
	r.Signature = sig
	return nil
}

// Receipt is the result of a TxRequest
type Receipt struct {
	BlockNum int64       `json:"blockNum"`
	TxIdx    int         `json:"txIdx"`
	Method   string      `json:"method"`
	Success  bool        `json:"success"`
	Err      string      `json:"error,omitempty"`
	Events   []Event     `json:"events"`
	Result   interface{} `json:"result,omitempty"`
}

// Event is an event emitted by a TxRequest
type Event struct {
	Name string      `json:"name"`
	Data interface{} `json:"data"`
}

func newReceipt(r *chain.Receipt, result interface{}) *Receipt {
	receipt := &Receipt{
		BlockNum: r.BlockNum,
		TxIdx:    r.TxIdx,
		Method:   r.Method,
		Success:  r.Success,
		Err:      r.Err,
		Events:   []Event{},
		Result:   result,
	}
	for _, evt := range r.Events {
		receipt.Events = append(receipt.Events, Event{Name: evt.Name, Data: evt.Data})
	}
	return receipt
}

func nonceKey(addr ethCommon.Address) []byte {
	return append(append([]byte{}, nonceKeyPrefix...), addr.Bytes()...)
}

// nonce returns the next nonce of addr
func nonce(tx *chain.Tx, addr ethCommon.Address) (uint64, error) {
	b, err := tx.Get(nonceKey(addr))
	if chain.IsNotFound(err) {
		return 0, nil
	} else if err != nil {
		return 0, common.Wrap(err)
	}
	return binary.BigEndian.Uint64(b), nil
}

// useNonce checks that n is the next nonce of addr and increments it
func useNonce(tx *chain.Tx, addr ethCommon.Address, n uint64) error {
	next, err := nonce(tx, addr)
	if err != nil {
		return common.Wrap(err)
	}
	if n != next {
		return common.Wrap(fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, next, n))
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], next+1)
	return common.Wrap(tx.Put(nonceKey(addr), b[:]))
}

// decodeParams decodes the JSON params of a request into v and validates it
func (a *API) decodeParams(params json.RawMessage, v interface{}) error {
	if len(params) == 0 {
		params = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return common.Wrap(fmt.Errorf("invalid params: %w", err))
	}
	if err := a.validate.Struct(v); err != nil {
		return common.Wrap(err)
	}
	return nil
}

func (a *API) postTx(c *gin.Context) {
	var req TxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		retBadReq(c, err)
		return
	}
	if err := a.validate.Struct(&req); err != nil {
		retBadReq(c, err)
		return
	}
	m, ok := a.methods[req.Method]
	if !ok {
		retBadReq(c, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method))
		return
	}
	signer, err := common.RecoverSigner(
		TxHash(a.chain.ChainID(), req.From, req.Method, req.Params, req.Nonce), req.Signature)
	if err != nil {
		errorResponse(c, http.StatusUnauthorized, "Invalid signature", common.Unwrap(err))
		return
	}
	if signer != req.From {
		errorResponse(c, http.StatusUnauthorized, "Invalid signature", ErrSignerMismatch)
		return
	}
	fn, err := m(a, req.Params)
	if err != nil {
		retBadReq(c, common.Unwrap(err))
		return
	}
	// Reject stale nonces without adding a reverted tx to the block
	if err := a.chain.Call(func(tx *chain.Tx) error {
		next, err := nonce(tx, req.From)
		if err != nil {
			return err
		}
		if req.Nonce != next {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidNonce, next, req.Nonce)
		}
		return nil
	}); err != nil {
		retBadReq(c, common.Unwrap(err))
		return
	}

	var result interface{}
	// The nonce is consumed even if the method reverts
	chainReceipt, err := a.chain.ExecuteNonced(req.From, req.Method,
		func(tx *chain.Tx) error {
			return useNonce(tx, req.From, req.Nonce)
		},
		func(tx *chain.Tx) error {
			var err error
			result, err = fn(tx)
			return err
		})
	if chainReceipt == nil {
		if errors.Is(common.Unwrap(err), ErrInvalidNonce) {
			retBadReq(c, common.Unwrap(err))
			return
		}
		retErr(c, "Error executing the transaction", err)
		return
	}
	receipt := newReceipt(chainReceipt, result)
	if err != nil {
		log.Debugw("API tx reverted", "from", req.From.Hex(), "method", req.Method,
			"err", err)
		receipt.Err = common.Unwrap(err).Error()
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Transaction reverted",
			"error":   receipt.Err,
			"data":    receipt,
		})
		return
	}
	successResponse(c, http.StatusOK, "Transaction executed", receipt)
}

func (a *API) getNonce(c *gin.Context) {
	addr, err := parseAddr(c.Param("addr"))
	if err != nil {
		retBadReq(c, err)
		return
	}
	var n uint64
	if err := a.chain.Call(func(tx *chain.Tx) error {
		var err error
		n, err = nonce(tx, addr)
		return err
	}); err != nil {
		retErr(c, "Error fetching the nonce", err)
		return
	}
	successResponse(c, http.StatusOK, "Nonce fetched successfully", gin.H{"nonce": n})
}
