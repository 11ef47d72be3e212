package rollup

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/l1queue"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/metric"

	"github.com/iden3/go-iden3-crypto/constants"
)

// ForgeBatchArgs are the arguments of ForgeBatch
type ForgeBatchArgs struct {
	NewLastIdx  int64
	NewStRoot   *big.Int
	NewExitRoot *big.Int
	// L1CoordinatorTxs are the encoded L1 coordinator txs, of
	// RollupConstL1CoordinatorTotalBytes each.  Only forged in L1 batches.
	L1CoordinatorTxs  []byte
	L2TxsData         []byte
	FeeIdxCoordinator []byte
	// Circuit selector
	VerifierIdx uint8
	L1Batch     bool
	ProofA      [2]*big.Int
	ProofB      [2][2]*big.Int
	ProofC      [2]*big.Int
}

// InputHash is the public input of a batch proof: the sha256 of the batch
// data, reduced to the BN254 scalar field.
//
//	[6 bytes] lastIdx | [6 bytes] newLastIdx | [32 bytes] stateRoot |
//	[32 bytes] newStRoot | [32 bytes] newExitRoot |
//	[MaxL1Tx * 78 bytes] l1TxsData (zero padded) | l2TxsData |
//	feeIdxCoordinator | [2 bytes] chainID | [4 bytes] batchNum
func InputHash(oldLastIdx, newLastIdx int64, oldStRoot, newStRoot, newExitRoot *big.Int,
	l1TxsData, l2TxsData, feeIdxCoordinator []byte, chainID uint16,
	batchNum common.BatchNum) (*big.Int, error) {
	if len(l1TxsData) > common.RollupConstMaxL1Tx*common.RollupConstL1UserTotalBytes {
		return nil, common.Wrap(common.ErrL1TxOverflow)
	}
	b := make([]byte, 0, common.RollupConstInputSHAConstantBytes+len(l2TxsData)+
		len(feeIdxCoordinator))
	for _, idx := range []int64{oldLastIdx, newLastIdx} {
		if idx < 0 {
			return nil, common.Wrap(common.ErrIdxOverflow)
		}
		idxBytes, err := common.AccountIdx(idx).Bytes()
		if err != nil {
			return nil, common.Wrap(err)
		}
		b = append(b, idxBytes[:]...)
	}
	for _, root := range []*big.Int{oldStRoot, newStRoot, newExitRoot} {
		root = common.BigIntOrZero(root)
		if root.Sign() < 0 || root.BitLen() > 256 { //nolint:gomnd
			return nil, common.Wrap(fmt.Errorf("root out of range: %s", root))
		}
		var rootBytes [32]byte
		root.FillBytes(rootBytes[:])
		b = append(b, rootBytes[:]...)
	}
	var l1Data [common.RollupConstMaxL1Tx * common.RollupConstL1UserTotalBytes]byte
	copy(l1Data[:], l1TxsData)
	b = append(b, l1Data[:]...)
	b = append(b, l2TxsData...)
	b = append(b, feeIdxCoordinator...)
	var tail [6]byte
	binary.BigEndian.PutUint16(tail[0:2], chainID)
	binary.BigEndian.PutUint32(tail[2:6], uint32(batchNum))
	b = append(b, tail[:]...)

	h := sha256.Sum256(b)
	input := new(big.Int).SetBytes(h[:])
	return input.Mod(input, constants.Q), nil
}

// l1BatchData consumes the L1 user tx queue and decodes the coordinator txs.
// It returns the queue index and the L1 txs data for the input hash.
func (r *Rollup) l1BatchData(tx *chain.Tx, batchNum common.BatchNum,
	l1CoordinatorTxs []byte) (int64, []common.L1Tx, []common.L1Tx, []byte, error) {
	if len(l1CoordinatorTxs)%common.RollupConstL1CoordinatorTotalBytes != 0 {
		return 0, nil, nil, nil, common.Wrap(common.ErrInvalidL1CoordinatorData)
	}
	userData, queueIdx, err := r.queue.ConsumeForForge(tx)
	if err != nil {
		return 0, nil, nil, nil, common.Wrap(err)
	}
	numUser := len(userData) / common.RollupConstL1UserTotalBytes
	numCoord := len(l1CoordinatorTxs) / common.RollupConstL1CoordinatorTotalBytes
	if numUser+numCoord > common.RollupConstMaxL1Tx {
		return 0, nil, nil, nil, common.Wrap(common.ErrL1TxOverflow)
	}
	userTxs, err := l1queue.DecodeQueue(userData, queueIdx)
	if err != nil {
		return 0, nil, nil, nil, common.Wrap(err)
	}
	for i := range userTxs {
		userTxs[i].BatchNum = &batchNum
	}

	data := userData
	coordTxs := make([]common.L1Tx, 0, numCoord)
	for i := 0; i < numCoord; i++ {
		start := i * common.RollupConstL1CoordinatorTotalBytes
		l1Tx, err := common.L1CoordinatorTxFromBytes(
			l1CoordinatorTxs[start:start+common.RollupConstL1CoordinatorTotalBytes],
			r.consts.ChainID, r.consts.RollupAddress)
		if err != nil {
			log.Debugw("rollup invalid l1 coordinator tx", "position", i, "err", err)
			return 0, nil, nil, nil, common.Wrap(common.ErrInvalidL1CoordinatorData)
		}
		l1Tx.Position = i
		l1Tx.BatchNum = &batchNum
		if _, err := common.NewL1Tx(l1Tx); err != nil {
			return 0, nil, nil, nil, common.Wrap(err)
		}
		record, err := l1Tx.BytesGeneric()
		if err != nil {
			return 0, nil, nil, nil, common.Wrap(err)
		}
		data = append(data, record...)
		coordTxs = append(coordTxs, *l1Tx)
	}
	return queueIdx, userTxs, coordTxs, data, nil
}

// ForgeBatch forges a batch sent by the caller, which must be able to forge
// at the current block.  A batch that doesn't forge L1 txs is rejected once
// the forgeL1L2BatchTimeout blocks have passed since the last L1 batch.  The
// batch is rejected as a whole if the proof isn't valid.
func (r *Rollup) ForgeBatch(tx *chain.Tx, args *ForgeBatchArgs) (common.BatchNum, error) {
	canForge, err := r.auction.CanForge(tx, tx.From, tx.BlockNum)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if !canForge {
		return 0, common.Wrap(common.ErrCannotForge)
	}
	vars, err := r.Variables(tx)
	if err != nil {
		return 0, common.Wrap(err)
	}
	lastForgedBatch, lastL1L2Batch, err := r.batches(tx)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if !args.L1Batch && tx.BlockNum >= lastL1L2Batch+vars.ForgeL1L2BatchTimeout {
		return 0, common.Wrap(common.ErrL1L2BatchRequired)
	}
	batchNum := lastForgedBatch + 1

	event := &RollupEventForgeBatch{
		BatchNum:    batchNum,
		ForgerAddr:  tx.From,
		NewLastIdx:  args.NewLastIdx,
		NewStRoot:   common.BigIntOrZero(args.NewStRoot),
		NewExitRoot: common.BigIntOrZero(args.NewExitRoot),
		VerifierIdx: args.VerifierIdx,
		L1Batch:     args.L1Batch,
	}
	var l1TxsData []byte
	if args.L1Batch {
		queueIdx, userTxs, coordTxs, data, err := r.l1BatchData(tx, batchNum, args.L1CoordinatorTxs)
		if err != nil {
			return 0, common.Wrap(err)
		}
		event.ForgeL1TxsNum = &queueIdx
		event.L1UserTxs = userTxs
		event.L1CoordinatorTxs = coordTxs
		l1TxsData = data
		lastL1L2Batch = tx.BlockNum
	}

	if int(args.VerifierIdx) >= len(r.verifiers) {
		return 0, common.Wrap(common.ErrInvalidVerifier)
	}
	state, err := r.updater.State(tx)
	if err != nil {
		return 0, common.Wrap(err)
	}
	input, err := InputHash(state.LastIdx, args.NewLastIdx, state.StateRoot, args.NewStRoot,
		args.NewExitRoot, l1TxsData, args.L2TxsData, args.FeeIdxCoordinator,
		r.consts.ChainID, batchNum)
	if err != nil {
		return 0, common.Wrap(err)
	}
	valid, err := r.verifiers[args.VerifierIdx].VerifyProof(args.ProofA, args.ProofB,
		args.ProofC, input)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if !valid {
		return 0, common.Wrap(common.ErrInvalidZKProof)
	}
	if err := r.updater.Update(tx, batchNum, args.NewLastIdx, args.NewStRoot,
		args.NewExitRoot); err != nil {
		return 0, common.Wrap(err)
	}

	if _, err := r.auction.Forge(tx, tx.From); err != nil {
		return 0, common.Wrap(err)
	}
	event.SlotNum, err = r.auction.GetCurrentSlotNumber(tx)
	if err != nil {
		return 0, common.Wrap(err)
	}
	if err := r.setBatches(tx, batchNum, lastL1L2Batch); err != nil {
		return 0, common.Wrap(err)
	}
	tx.Emit(EventForgeBatch, event)
	metric.ForgedBatches.Inc()
	metric.LastBatchNum.Set(float64(batchNum))
	log.Debugw("rollup batch forged", "batchNum", batchNum, "forger", tx.From.Hex(),
		"l1Batch", args.L1Batch, "l1UserTxs", len(event.L1UserTxs),
		"l1CoordinatorTxs", len(event.L1CoordinatorTxs))
	return batchNum, nil
}
