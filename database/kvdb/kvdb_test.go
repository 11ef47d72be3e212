package kvdb

import (
	"os"
	"testing"

	"tokamak-forge-auction/common"

	"github.com/iden3/go-merkletree/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func put(t *testing.T, k *KVDB, key, value []byte) {
	tx, err := k.DB().NewTx()
	require.NoError(t, err)
	require.NoError(t, tx.Put(key, value))
	require.NoError(t, tx.Commit())
}

func TestCheckpoints(t *testing.T) {
	dir, err := os.MkdirTemp("", "tmpdb")
	require.NoError(t, err)
	defer func() { require.NoError(t, os.RemoveAll(dir)) }()

	k, err := NewKVDB(Config{Path: dir, Keep: 3})
	require.NoError(t, err)

	put(t, k, KeyCurrentBlock, BlockNumBytes(10))
	put(t, k, []byte("a"), []byte("1"))
	require.NoError(t, k.MakeCheckpoint(10))

	put(t, k, KeyCurrentBlock, BlockNumBytes(20))
	put(t, k, []byte("a"), []byte("2"))
	require.NoError(t, k.MakeCheckpoint(20))

	exists, err := k.CheckpointExists(20)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, k.Reset(10))
	blockNum, err := k.GetCurrentBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(10), blockNum)
	v, err := k.DB().Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// Checkpoints after the reset block are gone
	exists, err = k.CheckpointExists(20)
	require.NoError(t, err)
	assert.False(t, exists)

	// Reset to 0 gives an empty state
	require.NoError(t, k.Reset(0))
	_, err = k.DB().Get([]byte("a"))
	assert.Equal(t, db.ErrNotFound, common.Unwrap(err))
	k.Close()
}

func TestDeleteOldCheckpoints(t *testing.T) {
	dir, err := os.MkdirTemp("", "tmpdb")
	require.NoError(t, err)
	defer func() { require.NoError(t, os.RemoveAll(dir)) }()

	keep := 4
	k, err := NewKVDB(Config{Path: dir, Keep: keep})
	require.NoError(t, err)
	for i := int64(1); i <= 10; i++ {
		put(t, k, KeyCurrentBlock, BlockNumBytes(i))
		require.NoError(t, k.MakeCheckpoint(i))
		require.NoError(t, k.DeleteOldCheckpoints())
		checkpoints, err := k.ListCheckpoints()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(checkpoints), keep)
	}
	k.Close()
}

func TestInMemory(t *testing.T) {
	k, err := NewKVDB(Config{InMemory: true})
	require.NoError(t, err)
	blockNum, err := k.GetCurrentBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(0), blockNum)

	put(t, k, KeyCurrentBlock, BlockNumBytes(7))
	blockNum, err = k.GetCurrentBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(7), blockNum)

	require.NoError(t, k.MakeCheckpoint(7))
	assert.Equal(t, ErrInMemory, common.Unwrap(k.Reset(7)))
	k.Close()
}
