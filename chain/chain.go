package chain

import (
	"fmt"
	"sync"
	"time"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/kvdb"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

const (
	// DefaultBlocksKeep is the default number of sealed blocks kept in
	// memory
	DefaultBlocksKeep = 1024
)

var (
	// ErrReadOnly is returned when a read-only call tries to write
	ErrReadOnly = fmt.Errorf("write in read-only call")
	// ErrBlockNotFound is returned when a block is not sealed yet or was
	// already discarded from memory
	ErrBlockNotFound = fmt.Errorf("block not found")
)

// Config of the Chain
type Config struct {
	ChainID uint16
	// CheckpointInterval is the number of blocks between state
	// checkpoints.  0 disables checkpoints.
	CheckpointInterval int64
	// BlocksKeep is the number of sealed blocks kept in memory for
	// synchronization
	BlocksKeep int
	Timer      Timer
	Log        bool
}

// Chain is the host chain: it executes transactions one at a time over the
// state store and seals them into blocks.
type Chain struct {
	rw       sync.Mutex
	cfg      Config
	kvdb     *kvdb.KVDB
	blockNum int64 // number of the block being built
	pending  []Receipt
	blocks   map[int64]*Block
	lastHash ethCommon.Hash
	lastNum  int64 // last sealed block, -1 if none
}

// NewChain creates a Chain over the given KVDB, resuming at the block number
// stored in it.
func NewChain(cfg Config, k *kvdb.KVDB) (*Chain, error) {
	if cfg.Timer == nil {
		cfg.Timer = systemTimer{}
	}
	if cfg.BlocksKeep == 0 {
		cfg.BlocksKeep = DefaultBlocksKeep
	}
	blockNum, err := k.GetCurrentBlock()
	if err != nil {
		return nil, common.Wrap(err)
	}
	metric.ChainBlockNum.Set(float64(blockNum))
	return &Chain{
		cfg:      cfg,
		kvdb:     k,
		blockNum: blockNum,
		blocks:   make(map[int64]*Block),
		lastNum:  blockNum - 1,
	}, nil
}

// Debugw calls log.Debugw if c.cfg.Log is true
func (c *Chain) Debugw(template string, kv ...interface{}) {
	if c.cfg.Log {
		log.Debugw(template, kv...)
	}
}

// ChainID returns the chain id
func (c *Chain) ChainID() uint16 {
	return c.cfg.ChainID
}

// BlockNum returns the number of the block being built, which is the
// block.number seen by transactions executed now
func (c *Chain) BlockNum() int64 {
	c.rw.Lock()
	defer c.rw.Unlock()
	return c.blockNum
}

// Execute runs fn as a transaction sent by from.  The state changes and the
// events of fn are kept only if fn returns nil.  The receipt is returned in
// both cases, and the error of fn is returned as is.
func (c *Chain) Execute(from ethCommon.Address, method string,
	fn func(tx *Tx) error) (*Receipt, error) {
	c.rw.Lock()
	defer c.rw.Unlock()
	return c.run(from, method, fn)
}

// ExecuteNonced runs pre and then fn as a transaction sent by from.  The
// writes of pre are committed before fn runs and are kept when fn reverts,
// the way the nonce of a failed transaction is consumed.  If pre fails
// nothing is committed, no receipt is recorded and the receipt is nil.
func (c *Chain) ExecuteNonced(from ethCommon.Address, method string,
	pre, fn func(tx *Tx) error) (*Receipt, error) {
	c.rw.Lock()
	defer c.rw.Unlock()
	if _, err := c.execute(from, method, pre); err != nil {
		c.Debugw("chain tx rejected", "block", c.blockNum, "from", from.Hex(),
			"method", method, "err", err)
		return nil, err
	}
	return c.run(from, method, fn)
}

func (c *Chain) run(from ethCommon.Address, method string,
	fn func(tx *Tx) error) (*Receipt, error) {
	start := time.Now()
	defer metric.MeasureDuration(metric.ChainTxDuration, start, method)

	receipt := Receipt{
		TxIdx:    len(c.pending),
		BlockNum: c.blockNum,
		From:     from,
		Method:   method,
	}
	events, err := c.execute(from, method, fn)
	if err != nil {
		receipt.Err = err.Error()
		metric.ChainTxs.WithLabelValues(method, "reverted").Inc()
		c.Debugw("chain tx reverted", "block", c.blockNum, "from", from.Hex(),
			"method", method, "err", err)
	} else {
		receipt.Success = true
		receipt.Events = events
		metric.ChainTxs.WithLabelValues(method, "ok").Inc()
		c.Debugw("chain tx", "block", c.blockNum, "from", from.Hex(),
			"method", method, "events", len(receipt.Events))
	}
	c.pending = append(c.pending, receipt)
	return &receipt, err
}

// execute runs fn over a new store transaction, committed only if fn
// succeeds.  It returns the events emitted by fn.
func (c *Chain) execute(from ethCommon.Address, method string,
	fn func(tx *Tx) error) ([]Event, error) {
	dbTx, err := c.kvdb.DB().NewTx()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer dbTx.Close()
	tx := &Tx{
		From:      from,
		BlockNum:  c.blockNum,
		Timestamp: c.cfg.Timer.Time(),
		ChainID:   c.cfg.ChainID,
		Method:    method,
		dbTx:      dbTx,
	}
	if err := fn(tx); err != nil {
		return nil, err
	}
	if err := dbTx.Commit(); err != nil {
		return nil, common.Wrap(err)
	}
	return tx.events, nil
}

// Call runs fn as a read-only call at the block being built.  Writes fail
// with ErrReadOnly and nothing is ever committed.
func (c *Chain) Call(fn func(tx *Tx) error) error {
	c.rw.Lock()
	defer c.rw.Unlock()
	dbTx, err := c.kvdb.DB().NewTx()
	if err != nil {
		return common.Wrap(err)
	}
	defer dbTx.Close()
	return fn(&Tx{
		BlockNum:  c.blockNum,
		Timestamp: c.cfg.Timer.Time(),
		ChainID:   c.cfg.ChainID,
		dbTx:      dbTx,
		readOnly:  true,
	})
}

// MineBlock seals the block being built with the pending receipts and moves
// one block forward.  It returns the sealed block.
func (c *Chain) MineBlock() (*Block, error) {
	c.rw.Lock()
	defer c.rw.Unlock()
	return c.mineBlock()
}

func (c *Chain) mineBlock() (*Block, error) {
	dbTx, err := c.kvdb.DB().NewTx()
	if err != nil {
		return nil, common.Wrap(err)
	}
	defer dbTx.Close()
	if err := dbTx.Put(kvdb.KeyCurrentBlock, kvdb.BlockNumBytes(c.blockNum+1)); err != nil {
		return nil, common.Wrap(err)
	}
	if err := dbTx.Commit(); err != nil {
		return nil, common.Wrap(err)
	}

	timestamp := c.cfg.Timer.Time()
	block := &Block{
		Num:        c.blockNum,
		Timestamp:  time.Unix(timestamp, 0),
		ParentHash: c.lastHash,
		Hash:       blockHash(c.lastHash, c.blockNum, timestamp, len(c.pending)),
		Receipts:   c.pending,
	}
	c.blocks[block.Num] = block
	delete(c.blocks, block.Num-int64(c.cfg.BlocksKeep))
	c.lastHash = block.Hash
	c.lastNum = block.Num
	c.pending = nil
	c.blockNum++
	metric.ChainBlockNum.Set(float64(c.blockNum))
	c.Debugw("chain mined block", "blockNum", block.Num, "txs", len(block.Receipts))

	if c.cfg.CheckpointInterval > 0 && block.Num%c.cfg.CheckpointInterval == 0 {
		if err := c.kvdb.MakeCheckpoint(block.Num); err != nil {
			return nil, common.Wrap(err)
		}
	}
	return block, nil
}

// MineBlocks mines n blocks
func (c *Chain) MineBlocks(n int) error {
	c.rw.Lock()
	defer c.rw.Unlock()
	for i := 0; i < n; i++ {
		if _, err := c.mineBlock(); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

// AdvanceTo mines blocks until blockNum is the block being built.  It's a
// no-op if blockNum is not in the future.
func (c *Chain) AdvanceTo(blockNum int64) error {
	c.rw.Lock()
	defer c.rw.Unlock()
	for c.blockNum < blockNum {
		if _, err := c.mineBlock(); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

// LastBlockNum returns the number of the last sealed block, or -1 if no block
// was sealed since the chain started
func (c *Chain) LastBlockNum() int64 {
	c.rw.Lock()
	defer c.rw.Unlock()
	return c.lastNum
}

// BlockByNum returns a sealed block kept in memory
func (c *Chain) BlockByNum(blockNum int64) (*Block, error) {
	c.rw.Lock()
	defer c.rw.Unlock()
	block, ok := c.blocks[blockNum]
	if !ok {
		return nil, common.Wrap(ErrBlockNotFound)
	}
	return block, nil
}

// Run mines a block every blockTime until done is closed
func (c *Chain) Run(blockTime time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(blockTime)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			log.Info("chain block producer done")
			return
		case <-ticker.C:
			if _, err := c.MineBlock(); err != nil {
				log.Errorw("chain.MineBlock", "err", err)
			}
		}
	}
}
