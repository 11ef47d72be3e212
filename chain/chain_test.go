package chain

import (
	"fmt"
	"os"
	"testing"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/kvdb"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timer struct {
	time int64
}

func (t *timer) Time() int64 {
	t.time++
	return t.time
}

func newTestChain(t *testing.T) *Chain {
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	c, err := NewChain(Config{ChainID: 5, Timer: &timer{}}, k)
	require.NoError(t, err)
	return c
}

func TestExecuteCommitAndRevert(t *testing.T) {
	c := newTestChain(t)
	alice := ethCommon.HexToAddress("0xa11ce")

	receipt, err := c.Execute(alice, "put", func(tx *Tx) error {
		assert.Equal(t, alice, tx.From)
		assert.Equal(t, uint16(5), tx.ChainID)
		tx.Emit("Put", "a")
		return tx.Put([]byte("a"), []byte("1"))
	})
	require.NoError(t, err)
	assert.True(t, receipt.Success)
	assert.Equal(t, 1, len(receipt.Events))

	errRevert := fmt.Errorf("revert")
	receipt, err = c.Execute(alice, "put", func(tx *Tx) error {
		require.NoError(t, tx.Put([]byte("a"), []byte("2")))
		// writes are visible inside the same transaction
		v, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)
		tx.Emit("Put", "b")
		return errRevert
	})
	assert.Equal(t, errRevert, err)
	assert.False(t, receipt.Success)
	assert.Equal(t, 0, len(receipt.Events))

	err = c.Call(func(tx *Tx) error {
		v, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte("1"), v)
		_, err = tx.Get([]byte("b"))
		assert.True(t, IsNotFound(err))
		assert.Equal(t, ErrReadOnly, common.Unwrap(tx.Put([]byte("b"), []byte("1"))))
		return nil
	})
	require.NoError(t, err)

	block, err := c.MineBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(0), block.Num)
	assert.Equal(t, 2, len(block.Receipts))
	assert.Equal(t, 1, len(block.Events()))
	assert.Equal(t, int64(1), c.BlockNum())
	assert.Equal(t, int64(0), c.LastBlockNum())
}

func TestExecuteNonced(t *testing.T) {
	c := newTestChain(t)
	alice := ethCommon.HexToAddress("0xa11ce")
	bump := func(tx *Tx) error {
		return tx.Put([]byte("nonce"), []byte{1})
	}

	errRevert := fmt.Errorf("revert")
	receipt, err := c.ExecuteNonced(alice, "put", bump, func(tx *Tx) error {
		require.NoError(t, tx.Put([]byte("a"), []byte("1")))
		return errRevert
	})
	assert.Equal(t, errRevert, err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.Success)
	assert.Equal(t, "revert", receipt.Err)

	// the write of pre survives the revert of fn
	require.NoError(t, c.Call(func(tx *Tx) error {
		v, err := tx.Get([]byte("nonce"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, v)
		_, err = tx.Get([]byte("a"))
		assert.True(t, IsNotFound(err))
		return nil
	}))

	errNonce := fmt.Errorf("bad nonce")
	called := false
	receipt, err = c.ExecuteNonced(alice, "put", func(tx *Tx) error {
		require.NoError(t, tx.Put([]byte("b"), []byte("1")))
		return errNonce
	}, func(tx *Tx) error {
		called = true
		return nil
	})
	assert.Equal(t, errNonce, err)
	assert.Nil(t, receipt)
	assert.False(t, called)
	require.NoError(t, c.Call(func(tx *Tx) error {
		_, err := tx.Get([]byte("b"))
		assert.True(t, IsNotFound(err))
		return nil
	}))

	block, err := c.MineBlock()
	require.NoError(t, err)
	require.Len(t, block.Receipts, 1)
	assert.False(t, block.Receipts[0].Success)
}

func TestMineBlocks(t *testing.T) {
	c := newTestChain(t)
	assert.Equal(t, int64(-1), c.LastBlockNum())
	require.NoError(t, c.MineBlocks(3))
	require.NoError(t, c.AdvanceTo(10))
	require.NoError(t, c.AdvanceTo(5))
	assert.Equal(t, int64(10), c.BlockNum())

	b8, err := c.BlockByNum(8)
	require.NoError(t, err)
	b9, err := c.BlockByNum(9)
	require.NoError(t, err)
	assert.Equal(t, b8.Hash, b9.ParentHash)
	_, err = c.BlockByNum(10)
	assert.Error(t, err)

	var blockNum int64
	require.NoError(t, c.Call(func(tx *Tx) error {
		blockNum = tx.BlockNum
		return nil
	}))
	assert.Equal(t, int64(10), blockNum)
}

func TestResumeFromCheckpoint(t *testing.T) {
	dir, err := os.MkdirTemp("", "tmpdb")
	require.NoError(t, err)
	defer func() { require.NoError(t, os.RemoveAll(dir)) }()

	k, err := kvdb.NewKVDB(kvdb.Config{Path: dir, Keep: 10})
	require.NoError(t, err)
	c, err := NewChain(Config{CheckpointInterval: 2, Timer: &timer{}}, k)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := c.Execute(ethCommon.Address{}, "put", func(tx *Tx) error {
			return tx.Put([]byte("v"), []byte{byte(i)})
		})
		require.NoError(t, err)
		_, err = c.MineBlock()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(6), c.BlockNum())

	// state at the end of block 2
	k.Close()
	k, err = kvdb.NewKVDB(kvdb.Config{Path: dir, Keep: 10})
	require.NoError(t, err)
	require.NoError(t, k.Reset(2))
	c, err = NewChain(Config{Timer: &timer{}}, k)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.BlockNum())
	require.NoError(t, c.Call(func(tx *Tx) error {
		v, err := tx.Get([]byte("v"))
		require.NoError(t, err)
		assert.Equal(t, []byte{2}, v)
		return nil
	}))
	k.Close()
}
