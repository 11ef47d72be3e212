package chain

import (
	"tokamak-forge-auction/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/iden3/go-merkletree/db"
)

// Tx is the execution context of one chain transaction.  All reads and writes
// go through the same store transaction, which is committed only when the
// whole operation succeeds.
type Tx struct {
	// From is the sender of the transaction (msg.sender)
	From ethCommon.Address
	// BlockNum is the number of the block that includes the transaction
	BlockNum int64
	// Timestamp is the unix time of the transaction
	Timestamp int64
	ChainID   uint16
	Method    string

	dbTx     db.Tx
	readOnly bool
	events   []Event
}

// Get returns the value stored at key.  A missing key returns db.ErrNotFound
func (tx *Tx) Get(key []byte) ([]byte, error) {
	v, err := tx.dbTx.Get(key)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return v, nil
}

// Put stores the value at key
func (tx *Tx) Put(key, value []byte) error {
	if tx.readOnly {
		return common.Wrap(ErrReadOnly)
	}
	return common.Wrap(tx.dbTx.Put(key, value))
}

// Emit appends an event to the transaction.  Events are discarded if the
// transaction reverts.
func (tx *Tx) Emit(name string, data interface{}) {
	tx.events = append(tx.events, Event{Name: name, Data: data})
}

// Events returns the events emitted so far
func (tx *Tx) Events() []Event {
	return tx.events
}

// IsNotFound returns true if the error returned by Get is a missing key
func IsNotFound(err error) bool {
	return common.Unwrap(err) == db.ErrNotFound
}
