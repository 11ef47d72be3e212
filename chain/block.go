package chain

import (
	"encoding/binary"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// Event is a log emitted by a successful transaction.  Data holds one of the
// typed event structs defined by the package that emitted it.
type Event struct {
	Name string
	Data interface{}
}

// Receipt is the result of a transaction included in a block
type Receipt struct {
	TxIdx    int
	BlockNum int64
	From     ethCommon.Address
	Method   string
	Success  bool
	// Err is the revert reason of a failed transaction
	Err    string
	Events []Event
}

// Block is a sealed block of the chain
type Block struct {
	Num        int64
	Timestamp  time.Time
	Hash       ethCommon.Hash
	ParentHash ethCommon.Hash
	Receipts   []Receipt
}

// Events returns the events of the successful transactions of the block in
// execution order
func (b *Block) Events() []Event {
	var events []Event
	for i := range b.Receipts {
		if b.Receipts[i].Success {
			events = append(events, b.Receipts[i].Events...)
		}
	}
	return events
}

// Timer is an interface to simulate a source of time, useful to advance time
// virtually.
type Timer interface {
	Time() int64
}

type systemTimer struct{}

func (systemTimer) Time() int64 {
	return time.Now().Unix()
}

// blockHash is keccak256(parentHash | blockNum | timestamp | numTxs)
func blockHash(parent ethCommon.Hash, num, timestamp int64, numTxs int) ethCommon.Hash {
	var b [8 + 8 + 8]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(num))
	binary.BigEndian.PutUint64(b[8:16], uint64(timestamp))
	binary.BigEndian.PutUint64(b[16:24], uint64(numTxs))
	return ethCrypto.Keccak256Hash(parent[:], b[:])
}
