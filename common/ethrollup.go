package common

import (
	"fmt"

	ethCommon "github.com/ethereum/go-ethereum/common"
)

const (
	// RollupConstL1CoordinatorTotalBytes [4 bytes] token + [32 bytes] babyjub + [65 bytes]
	// compressedSignature
	RollupConstL1CoordinatorTotalBytes = 101
	// RollupConstL1UserTotalBytes [20 bytes] fromEthAddr + [32 bytes] fromBjj-compressed + [6
	// bytes] fromIdx + [5 bytes] depositAmountFloat40 + [5 bytes] amountFloat40 + [4 bytes]
	// tokenId + [6 bytes] toIdx
	RollupConstL1UserTotalBytes = 78
	// RollupConstMaxL1UserTx Maximum L1-user transactions allowed to be queued in a batch
	RollupConstMaxL1UserTx = 128
	// RollupConstMaxL1Tx Maximum L1 transactions allowed to be queued in a batch
	RollupConstMaxL1Tx = 256
	// RollupConstNumBytesLen is the length in bytes of the lastIdx and
	// newLastIdx values in the input hash
	RollupConstNumBytesLen = 6
	// RollupConstInputSHAConstantBytes [6 bytes] lastIdx + [6 bytes] newLastIdx + [32 bytes]
	// stateRoot + [32 bytes] newStRoot + [32 bytes] newExitRoot + [_MAX_L1_TX *
	// _L1_USER_TOTALBYTES bytes] l1TxsData + [2 bytes] chainID + [4 bytes] batchNum
	RollupConstInputSHAConstantBytes = 6 + 6 + 32 + 32 + 32 +
		RollupConstMaxL1Tx*RollupConstL1UserTotalBytes + 2 + 4
	// RollupConstMaxL1L2BatchTimeout is the maximum value of the
	// forgeL1L2BatchTimeout, in blocks
	RollupConstMaxL1L2BatchTimeout = 240
	// RollupConstDefaultMaxPendingQueues is the default number of L1 user tx
	// buffers that can be pending to be forged at the same time
	RollupConstDefaultMaxPendingQueues = 1 << 16
)

var (
	// RollupConstEthAddressInternalOnly This ethereum address is used internally for rollup
	// accounts that don't have ethereum address, only Babyjubjub.
	// This non-ethereum accounts can be created by the coordinator and allow users to have a
	// rollup account without needing an ethereum address
	RollupConstEthAddressInternalOnly = ethCommon.HexToAddress(
		"0xFFfFfFffFFfffFFfFFfFFFFFffFFFffffFfFFFfF")
)

// RollupVariables are the variables of the Rollup
type RollupVariables struct {
	EthBlockNum           int64 `json:"ethereumBlockNum" meddler:"eth_block_num"`
	ForgeL1L2BatchTimeout int64 `json:"forgeL1L2BatchTimeout" meddler:"forge_l1_timeout" validate:"required"`
}

// Copy returns a deep copy of the Variables
func (v *RollupVariables) Copy() *RollupVariables {
	vCpy := *v
	return &vCpy
}

// RollupVerifierStruct is the information about verifiers of the Rollup
type RollupVerifierStruct struct {
	MaxTx   int64 `json:"maxTx"`
	NLevels int64 `json:"nlevels"`
}

// RollupConstants are the constants of the Rollup
type RollupConstants struct {
	ChainID                     uint16                 `json:"chainId"`
	RollupAddress               ethCommon.Address      `json:"rollupAddress"`
	GovernanceAddress           ethCommon.Address      `json:"governanceAddress"`
	AbsoluteMaxL1L2BatchTimeout int64                  `json:"absoluteMaxL1L2BatchTimeout"`
	MaxPendingQueues            int64                  `json:"maxPendingQueues"`
	Verifiers                   []RollupVerifierStruct `json:"verifiers"`
}

// FindVerifierIdx tries to find a matching verifier in the RollupConstants and
// returns its index
func (c *RollupConstants) FindVerifierIdx(MaxTx, NLevels int64) (int, error) {
	for i, verifier := range c.Verifiers {
		if verifier.MaxTx == MaxTx && verifier.NLevels == NLevels {
			return i, nil
		}
	}
	return 0, Wrap(fmt.Errorf("verifier not found for MaxTx: %v, NLevels: %v",
		MaxTx, NLevels))
}
