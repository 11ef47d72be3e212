/*
Package l1queue implements the queue of L1 user transactions pending to be
forged.

The queue is a ring of buffers of up to common.RollupConstMaxL1UserTx encoded
L1 user transactions.  Two pointers index the ring:

	forge: next buffer to be consumed by an L1 batch
	fill:  buffer that receives the new transactions

Invariant: forge <= fill.  A buffer is sealed when it reaches
RollupConstMaxL1UserTx transactions and fill moves to the next one.  An L1
batch consumes the buffer at forge, which may be the partial buffer at fill.

State keys in the chain store:

	"lq:p"            -> forge [8 bytes] | fill [8 bytes]
	"lq:q:" | ring[8] -> concatenated L1 user tx records (78 bytes each)
*/
package l1queue

import (
	"encoding/binary"
	"fmt"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"
)

// EventL1UserTx is the name of the event emitted for each queued transaction
const EventL1UserTx = "L1UserTxEvent"

var (
	keyPointers = []byte("lq:p")
	prefixQueue = []byte("lq:q:")
)

// RollupEventL1UserTx is emitted when an L1 user tx is added to the queue
type RollupEventL1UserTx struct {
	ToForgeL1TxsNum int64
	Position        int
	L1UserTx        common.L1Tx
}

// Queue is the L1 user tx queue.  All the state is kept in the chain store.
type Queue struct {
	maxPendingQueues int64
}

// NewQueue creates a Queue that holds at most maxPendingQueues buffers,
// counting the one being filled
func NewQueue(maxPendingQueues int64) (*Queue, error) {
	if maxPendingQueues < 1 {
		return nil, common.Wrap(fmt.Errorf("maxPendingQueues must be greater than 0"))
	}
	return &Queue{maxPendingQueues: maxPendingQueues}, nil
}

// MaxPendingQueues returns the capacity of the ring
func (q *Queue) MaxPendingQueues() int64 {
	return q.maxPendingQueues
}

func (q *Queue) queueKey(idx int64) []byte {
	var ring [8]byte
	binary.BigEndian.PutUint64(ring[:], uint64(idx%q.maxPendingQueues))
	return append(append([]byte{}, prefixQueue...), ring[:]...)
}

// Pointers returns the forge and fill pointers
func (q *Queue) Pointers(tx *chain.Tx) (forge int64, fill int64, err error) {
	b, err := tx.Get(keyPointers)
	if chain.IsNotFound(err) {
		return 0, 0, nil
	} else if err != nil {
		return 0, 0, common.Wrap(err)
	}
	if len(b) != 16 { //nolint:gomnd
		return 0, 0, common.Wrap(fmt.Errorf("invalid l1 queue pointers length %d", len(b)))
	}
	return int64(binary.BigEndian.Uint64(b[0:8])), int64(binary.BigEndian.Uint64(b[8:16])), nil
}

func (q *Queue) setPointers(tx *chain.Tx, forge, fill int64) error {
	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], uint64(forge))
	binary.BigEndian.PutUint64(b[8:16], uint64(fill))
	if err := tx.Put(keyPointers, b[:]); err != nil {
		return common.Wrap(err)
	}
	metric.PendingL1Queues.Set(float64(fill - forge))
	return nil
}

// queueBytes returns the records of the buffer idx, which must be in
// [forge, fill]
func (q *Queue) queueBytes(tx *chain.Tx, idx int64) ([]byte, error) {
	b, err := tx.Get(q.queueKey(idx))
	if chain.IsNotFound(err) {
		return []byte{}, nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return b, nil
}

func (q *Queue) checkPending(tx *chain.Tx, idx int64) error {
	forge, fill, err := q.Pointers(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if idx < forge || idx > fill {
		return common.Wrap(fmt.Errorf("l1 queue %d is not pending, forge: %d, fill: %d",
			idx, forge, fill))
	}
	return nil
}

// QueueLen returns the number of transactions in the pending buffer idx
func (q *Queue) QueueLen(tx *chain.Tx, idx int64) (int, error) {
	if err := q.checkPending(tx, idx); err != nil {
		return 0, common.Wrap(err)
	}
	b, err := q.queueBytes(tx, idx)
	if err != nil {
		return 0, common.Wrap(err)
	}
	return len(b) / common.RollupConstL1UserTotalBytes, nil
}

// QueueTxs returns the transactions of the pending buffer idx
func (q *Queue) QueueTxs(tx *chain.Tx, idx int64) ([]common.L1Tx, error) {
	if err := q.checkPending(tx, idx); err != nil {
		return nil, common.Wrap(err)
	}
	b, err := q.queueBytes(tx, idx)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return decodeQueue(b, idx)
}

func decodeQueue(b []byte, idx int64) ([]common.L1Tx, error) {
	txs := make([]common.L1Tx, 0, len(b)/common.RollupConstL1UserTotalBytes)
	for pos := 0; pos*common.RollupConstL1UserTotalBytes < len(b); pos++ {
		start := pos * common.RollupConstL1UserTotalBytes
		l1Tx, err := common.L1UserTxFromBytes(b[start : start+common.RollupConstL1UserTotalBytes])
		if err != nil {
			return nil, common.Wrap(err)
		}
		toForgeL1TxsNum := idx
		l1Tx.ToForgeL1TxsNum = &toForgeL1TxsNum
		l1Tx.Position = pos
		txs = append(txs, *l1Tx)
	}
	return txs, nil
}

// AddL1Transaction appends an L1 user tx to the buffer being filled, sealing
// the buffer when it's full.  It returns the buffer index and the position of
// the tx in it.
func (q *Queue) AddL1Transaction(tx *chain.Tx, l1Tx *common.L1Tx) (int64, int, error) {
	forge, fill, err := q.Pointers(tx)
	if err != nil {
		return 0, 0, common.Wrap(err)
	}
	b, err := q.queueBytes(tx, fill)
	if err != nil {
		return 0, 0, common.Wrap(err)
	}
	position := len(b) / common.RollupConstL1UserTotalBytes
	if position >= common.RollupConstMaxL1UserTx {
		return 0, 0, common.Wrap(common.ErrL1TxOverflow)
	}
	seal := position+1 == common.RollupConstMaxL1UserTx
	if seal && fill+1-forge+1 > q.maxPendingQueues {
		return 0, 0, common.Wrap(common.ErrL1TxOverflow)
	}

	l1Tx.UserOrigin = true
	l1Tx.ToForgeL1TxsNum = &fill
	l1Tx.Position = position
	l1Tx.EthBlockNum = tx.BlockNum
	if _, err := common.NewL1Tx(l1Tx); err != nil {
		return 0, 0, common.Wrap(err)
	}
	record, err := l1Tx.BytesUser()
	if err != nil {
		return 0, 0, common.Wrap(err)
	}
	if err := tx.Put(q.queueKey(fill), append(b, record...)); err != nil {
		return 0, 0, common.Wrap(err)
	}
	if seal {
		if err := tx.Put(q.queueKey(fill+1), []byte{}); err != nil {
			return 0, 0, common.Wrap(err)
		}
		if err := q.setPointers(tx, forge, fill+1); err != nil {
			return 0, 0, common.Wrap(err)
		}
	} else if err := q.setPointers(tx, forge, fill); err != nil {
		return 0, 0, common.Wrap(err)
	}
	tx.Emit(EventL1UserTx, &RollupEventL1UserTx{
		ToForgeL1TxsNum: fill,
		Position:        position,
		L1UserTx:        *l1Tx,
	})
	metric.L1UserTxs.Inc()
	log.Debugw("l1 user tx queued", "queue", fill, "position", position,
		"type", l1Tx.Type, "from", l1Tx.FromEthAddr.Hex())
	return fill, position, nil
}

// ConsumeForForge returns the encoded transactions of the buffer at forge and
// its index, and moves forge to the next buffer.  Consuming the buffer being
// filled moves fill too.
func (q *Queue) ConsumeForForge(tx *chain.Tx) ([]byte, int64, error) {
	forge, fill, err := q.Pointers(tx)
	if err != nil {
		return nil, 0, common.Wrap(err)
	}
	b, err := q.queueBytes(tx, forge)
	if err != nil {
		return nil, 0, common.Wrap(err)
	}
	if err := tx.Put(q.queueKey(forge), []byte{}); err != nil {
		return nil, 0, common.Wrap(err)
	}
	if forge == fill {
		fill++
	}
	if err := q.setPointers(tx, forge+1, fill); err != nil {
		return nil, 0, common.Wrap(err)
	}
	log.Debugw("l1 queue consumed", "queue", forge,
		"txs", len(b)/common.RollupConstL1UserTotalBytes)
	return b, forge, nil
}

// DecodeQueue decodes the records returned by ConsumeForForge for the buffer
// idx
func DecodeQueue(b []byte, idx int64) ([]common.L1Tx, error) {
	if len(b)%common.RollupConstL1UserTotalBytes != 0 {
		return nil, common.Wrap(fmt.Errorf("invalid l1 queue length %d", len(b)))
	}
	return decodeQueue(b, idx)
}
