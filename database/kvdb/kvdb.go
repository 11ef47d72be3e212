package kvdb

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"tokamak-forge-auction/common"
	"tokamak-forge-auction/log"

	"github.com/iden3/go-merkletree/db"
	"github.com/iden3/go-merkletree/db/memory"
	"github.com/iden3/go-merkletree/db/pebble"
)

const (
	// PathBlockNum defines the subpath of the Block Checkpoint in the
	// subpath of the KVDB
	PathBlockNum = "BlockNum"
	// PathCurrent defines the subpath of the current state in the subpath
	// of the KVDB
	PathCurrent = "current"
	// DefaultKeep is the default value for the Keep parameter
	DefaultKeep = 128
)

var (
	// KeyCurrentBlock is used as key in the db to store the number of the
	// block being built
	KeyCurrentBlock = []byte("k:currentblock")
	// ErrInMemory is returned when a checkpoint operation is used on an
	// in-memory KVDB
	ErrInMemory = fmt.Errorf("in-memory kvdb has no checkpoints")
)

// KVDB represents the Key-Value DB object holding the chain state
type KVDB struct {
	cfg Config
	// db is the current storage, pdb is the same storage when it's
	// backed by pebble
	db              db.Storage
	pdb             *pebble.Storage
	mutexCheckpoint sync.Mutex
	mutexDelOld     sync.Mutex
	wg              sync.WaitGroup
}

// Config of the KVDB
type Config struct {
	// Path where the current state and the checkpoints will be stored
	Path string
	// Keep is the number of old checkpoints to keep.  If 0, all
	// checkpoints are kept.
	Keep int
	// InMemory uses a volatile storage without checkpoints
	InMemory bool
}

// NewKVDB creates a new KVDB, allowing to use an in-memory or in-disk storage.
// Checkpoints older than the value defined by `keep` will be deleted.
func NewKVDB(cfg Config) (*KVDB, error) {
	if cfg.InMemory {
		return &KVDB{cfg: cfg, db: memory.NewMemoryStorage()}, nil
	}
	sto, err := pebble.NewPebbleStorage(path.Join(cfg.Path, PathCurrent), false)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return &KVDB{
		cfg: cfg,
		db:  sto,
		pdb: sto,
	}, nil
}

// DB returns the db.Storage from the KVDB
func (k *KVDB) DB() db.Storage {
	return k.db
}

// GetCurrentBlock returns the current block number stored in the KVDB
func (k *KVDB) GetCurrentBlock() (int64, error) {
	b, err := k.db.Get(KeyCurrentBlock)
	if common.Unwrap(err) == db.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, common.Wrap(err)
	}
	return BlockNumFromBytes(b)
}

// BlockNumBytes returns the representation of a block number stored under
// KeyCurrentBlock
func BlockNumBytes(blockNum int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(blockNum))
	return b[:]
}

// BlockNumFromBytes parses a block number stored under KeyCurrentBlock
func BlockNumFromBytes(b []byte) (int64, error) {
	if len(b) != 8 { //nolint:gomnd
		return 0, common.Wrap(fmt.Errorf("can not parse block num, bytes len %d", len(b)))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (k *KVDB) checkpointPath(blockNum int64) string {
	return path.Join(k.cfg.Path, fmt.Sprintf("%s%d", PathBlockNum, blockNum))
}

// Reset resets the KVDB to the checkpoint at the given blockNum. Checkpoints
// after blockNum are deleted. Reset to block 0 opens an empty state.
func (k *KVDB) Reset(blockNum int64) error {
	if k.cfg.InMemory {
		return common.Wrap(ErrInMemory)
	}
	currentPath := path.Join(k.cfg.Path, PathCurrent)

	if k.pdb != nil {
		k.pdb.Close()
		k.pdb = nil
		k.db = nil
	}
	// remove 'current'
	if err := os.RemoveAll(currentPath); err != nil {
		return common.Wrap(err)
	}
	// remove all checkpoints > blockNum
	list, err := k.ListCheckpoints()
	if err != nil {
		return common.Wrap(err)
	}
	start := 0
	for ; start < len(list); start++ {
		if int64(list[start]) > blockNum {
			break
		}
	}
	for _, bn := range list[start:] {
		if err := k.DeleteCheckpoint(int64(bn)); err != nil {
			return common.Wrap(err)
		}
	}

	if blockNum != 0 {
		// copy 'blockNum' to 'current'
		if err := k.MakeCheckpointFromTo(blockNum, currentPath); err != nil {
			return common.Wrap(err)
		}
	}
	sto, err := pebble.NewPebbleStorage(currentPath, false)
	if err != nil {
		return common.Wrap(err)
	}
	k.db = sto
	k.pdb = sto
	return nil
}

// ListCheckpoints returns the list of blockNums of the checkpoints, sorted.
func (k *KVDB) ListCheckpoints() ([]int, error) {
	if k.cfg.InMemory {
		return []int{}, nil
	}
	files, err := os.ReadDir(k.cfg.Path)
	if err != nil {
		return nil, common.Wrap(err)
	}
	checkpoints := []int{}
	var checkpoint int
	pattern := fmt.Sprintf("%s%%d", PathBlockNum)
	for _, file := range files {
		fileName := file.Name()
		if file.IsDir() && strings.HasPrefix(fileName, PathBlockNum) {
			if _, err := fmt.Sscanf(fileName, pattern, &checkpoint); err != nil {
				return nil, common.Wrap(err)
			}
			checkpoints = append(checkpoints, checkpoint)
		}
	}
	sort.Ints(checkpoints)
	return checkpoints, nil
}

// DeleteCheckpoint removes if exist the checkpoint of the given blockNum
func (k *KVDB) DeleteCheckpoint(blockNum int64) error {
	checkpointPath := k.checkpointPath(blockNum)

	if _, err := os.Stat(checkpointPath); os.IsNotExist(err) {
		return common.Wrap(fmt.Errorf("Checkpoint with blockNum %d does not exist in DB", blockNum))
	} else if err != nil {
		return common.Wrap(err)
	}

	return os.RemoveAll(checkpointPath)
}

// MakeCheckpointFromTo makes a copy of the checkpoint at fromBlockNum to the
// dest folder.  This method is locking, so it can be called from multiple
// places at the same time.
func (k *KVDB) MakeCheckpointFromTo(fromBlockNum int64, dest string) error {
	source := k.checkpointPath(fromBlockNum)
	if _, err := os.Stat(source); os.IsNotExist(err) {
		return common.Wrap(fmt.Errorf("Checkpoint \"%v\" does not exist", source))
	} else if err != nil {
		return common.Wrap(err)
	}
	k.mutexCheckpoint.Lock()
	defer k.mutexCheckpoint.Unlock()
	return PebbleMakeCheckpoint(source, dest)
}

// PebbleMakeCheckpoint is a hepler function to make a pebble checkpoint from
// source to dest.
func PebbleMakeCheckpoint(source, dest string) error {
	// Remove dest folder (if it exists) before doing the checkpoint
	if _, err := os.Stat(dest); err == nil {
		if err := os.RemoveAll(dest); err != nil {
			return common.Wrap(err)
		}
	} else if !os.IsNotExist(err) {
		return common.Wrap(err)
	}

	sto, err := pebble.NewPebbleStorage(source, false)
	if err != nil {
		return common.Wrap(err)
	}
	defer sto.Close()

	if err := sto.Pebble().Checkpoint(dest); err != nil {
		return common.Wrap(err)
	}
	return nil
}

// MakeCheckpoint stores a checkpoint of the current state labeled with
// blockNum. It's a no-op for in-memory KVDBs.
func (k *KVDB) MakeCheckpoint(blockNum int64) error {
	if k.cfg.InMemory {
		return nil
	}
	checkpointPath := k.checkpointPath(blockNum)

	// if checkpoint BlockNum already exist in disk, delete it
	if _, err := os.Stat(checkpointPath); err == nil {
		if err := os.RemoveAll(checkpointPath); err != nil {
			return common.Wrap(err)
		}
	} else if !os.IsNotExist(err) {
		return common.Wrap(err)
	}
	k.mutexCheckpoint.Lock()
	err := k.pdb.Pebble().Checkpoint(checkpointPath)
	k.mutexCheckpoint.Unlock()
	if err != nil {
		return common.Wrap(err)
	}

	k.wg.Add(1)
	go func() {
		if delErr := k.DeleteOldCheckpoints(); delErr != nil {
			log.Errorw("delete old checkpoints failed", "err", delErr)
		}
		k.wg.Done()
	}()
	return nil
}

// DeleteOldCheckpoints deletes old checkpoints when there are more than
// `cfg.Keep` checkpoints
func (k *KVDB) DeleteOldCheckpoints() error {
	k.mutexDelOld.Lock()
	defer k.mutexDelOld.Unlock()

	list, err := k.ListCheckpoints()
	if err != nil {
		return common.Wrap(err)
	}
	if k.cfg.Keep > 0 && len(list) > k.cfg.Keep {
		for _, checkpoint := range list[:len(list)-k.cfg.Keep] {
			if err := k.DeleteCheckpoint(int64(checkpoint)); err != nil {
				return common.Wrap(err)
			}
		}
	}
	return nil
}

// CheckpointExists returns true if the checkpoint exists
func (k *KVDB) CheckpointExists(blockNum int64) (bool, error) {
	if k.cfg.InMemory {
		return false, nil
	}
	if _, err := os.Stat(k.checkpointPath(blockNum)); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, common.Wrap(err)
	}
	return true, nil
}

// Close the DB
func (k *KVDB) Close() {
	// wait for deletion of old checkpoints
	k.wg.Wait()
	if k.db != nil {
		k.db.Close()
		k.db = nil
		k.pdb = nil
	}
}
