package auction

import (
	"encoding/binary"
	"encoding/json"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

// SlotRingSize is the number of slot entries of the bid ring.  A slot entry is
// reused by the slot SlotRingSize positions ahead, which is always farther
// than the widest auction window (2 * max uint16 slots).
const SlotRingSize = 1 << 17

var (
	prefixVars         = []byte("au:v")
	prefixBid          = []byte("au:b:")
	prefixClaimable    = []byte("au:c:")
	prefixCoordinator  = []byte("au:r:")
	prefixClosedMinBid = []byte("au:m:")
)

// Ledger is the auction state in the chain store: the live bid of each slot,
// the claimable balances, the coordinators and the auction variables
type Ledger struct{}

func ringKey(prefix []byte, slotNum int64) []byte {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(slotNum%SlotRingSize))
	return append(append([]byte{}, prefix...), idx[:]...)
}

func addrKey(prefix []byte, addr ethCommon.Address) []byte {
	return append(append([]byte{}, prefix...), addr.Bytes()...)
}

// Variables returns the auction variables, failing with ErrNotInitialized
// before the auction is initialized
func (l *Ledger) Variables(tx *chain.Tx) (*common.AuctionVariables, error) {
	b, err := tx.Get(prefixVars)
	if chain.IsNotFound(err) {
		return nil, common.Wrap(common.ErrNotInitialized)
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	var vars common.AuctionVariables
	if err := json.Unmarshal(b, &vars); err != nil {
		return nil, common.Wrap(err)
	}
	return &vars, nil
}

// SetVariables stores the auction variables
func (l *Ledger) SetVariables(tx *chain.Tx, vars *common.AuctionVariables) error {
	b, err := json.Marshal(vars)
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(prefixVars, b))
}

// Bid returns the live bid of the slot, or nil if the slot has no bid
func (l *Ledger) Bid(tx *chain.Tx, slotNum int64) (*common.Bid, error) {
	b, err := tx.Get(ringKey(prefixBid, slotNum))
	if chain.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	bid, err := common.BidFromBytes(b)
	if err != nil {
		return nil, common.Wrap(err)
	}
	// the entry belongs to an evicted slot
	if bid.SlotNum != slotNum {
		return nil, nil
	}
	return bid, nil
}

// SetBid stores the bid as the live bid of its slot
func (l *Ledger) SetBid(tx *chain.Tx, bid *common.Bid) error {
	b, err := bid.Bytes()
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(ringKey(prefixBid, bid.SlotNum), b))
}

// Claimable returns the claimable balance of addr
func (l *Ledger) Claimable(tx *chain.Tx, addr ethCommon.Address) (*big.Int, error) {
	b, err := tx.Get(addrKey(prefixClaimable, addr))
	if chain.IsNotFound(err) {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return new(big.Int).SetBytes(b), nil
}

// SetClaimable sets the claimable balance of addr
func (l *Ledger) SetClaimable(tx *chain.Tx, addr ethCommon.Address, amount *big.Int) error {
	b, err := common.AmountBytes(amount)
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(addrKey(prefixClaimable, addr), b[:]))
}

// Credit adds amount to the claimable balance of addr
func (l *Ledger) Credit(tx *chain.Tx, addr ethCommon.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := l.Claimable(tx, addr)
	if err != nil {
		return common.Wrap(err)
	}
	return l.SetClaimable(tx, addr, balance.Add(balance, amount))
}

// Coordinator returns the coordinator registered by bidder, or nil
func (l *Ledger) Coordinator(tx *chain.Tx, bidder ethCommon.Address) (*common.Coordinator, error) {
	b, err := tx.Get(addrKey(prefixCoordinator, bidder))
	if chain.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return common.CoordinatorFromBytes(bidder, b)
}

// SetCoordinator stores the registration of a coordinator
func (l *Ledger) SetCoordinator(tx *chain.Tx, coord *common.Coordinator) error {
	return common.Wrap(tx.Put(addrKey(prefixCoordinator, coord.Bidder), coord.Bytes()))
}

// ClosedMinBid returns the minimum bid frozen for the slot when it was
// already closed at a default bid change, or nil
func (l *Ledger) ClosedMinBid(tx *chain.Tx, slotNum int64) (*big.Int, error) {
	b, err := tx.Get(ringKey(prefixClosedMinBid, slotNum))
	if chain.IsNotFound(err) {
		return nil, nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	if len(b) != 8+common.AmountBytesLen || int64(binary.BigEndian.Uint64(b[:8])) != slotNum {
		return nil, nil
	}
	return new(big.Int).SetBytes(b[8:]), nil
}

// SetClosedMinBid freezes the minimum bid of the slot
func (l *Ledger) SetClosedMinBid(tx *chain.Tx, slotNum int64, amount *big.Int) error {
	amountBytes, err := common.AmountBytes(amount)
	if err != nil {
		return common.Wrap(err)
	}
	var b [8 + common.AmountBytesLen]byte
	binary.BigEndian.PutUint64(b[:8], uint64(slotNum))
	copy(b[8:], amountBytes[:])
	return common.Wrap(tx.Put(ringKey(prefixClosedMinBid, slotNum), b[:]))
}
