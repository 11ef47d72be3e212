package common

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

// L1Tx is a struct that represents a L1 tx
type L1Tx struct {
	// TxID (33 bytes) for L1Tx is the type prefix followed by the Keccak256
	// hash of:
	// bytes:  |        8        |    2     |
	// values: | ToForgeL1TxsNum | Position |
	// for L1UserTx, and of (BatchNum, Position) for L1CoordinatorTx
	TxID TxID `meddler:"id"`
	// ToForgeL1TxsNum indicates in which L1UserTx queue the tx was forged / will be forged
	ToForgeL1TxsNum *int64 `meddler:"to_forge_l1_txs_num"`
	Position        int    `meddler:"position"`
	// UserOrigin is set to true if the tx was originated by a user, false
	// if it was originated by a coordinator
	UserOrigin    bool                  `meddler:"user_origin"`
	FromIdx       AccountIdx            `meddler:"from_idx,zeroisnull"`
	FromEthAddr   ethCommon.Address     `meddler:"from_eth_addr,zeroisnull"`
	FromBJJ       babyjub.PublicKeyComp `meddler:"from_bjj,zeroisnull"`
	ToIdx         AccountIdx            `meddler:"to_idx"`
	TokenID       TokenID               `meddler:"token_id"`
	Amount        *big.Int              `meddler:"amount,bigint"`
	DepositAmount *big.Int              `meddler:"deposit_amount,bigint"`
	// Ethereum Block Number in which this L1Tx was added to the queue
	EthBlockNum int64     `meddler:"eth_block_num"`
	Type        TxType    `meddler:"type"`
	BatchNum    *BatchNum `meddler:"batch_num"`
}

// NewL1Tx returns the given L1Tx with the TxId & Type parameters calculated
// from the L1Tx values
func NewL1Tx(tx *L1Tx) (*L1Tx, error) {
	txTypeOld := tx.Type
	if err := tx.SetType(); err != nil {
		return nil, Wrap(err)
	}
	if txTypeOld != "" && txTypeOld != tx.Type {
		return nil, Wrap(fmt.Errorf("L1Tx.Type: %s, should be: %s",
			tx.Type, txTypeOld))
	}

	txIDOld := tx.TxID
	if err := tx.SetID(); err != nil {
		return nil, Wrap(err)
	}
	if txIDOld != (TxID{}) && txIDOld != tx.TxID {
		return tx, Wrap(fmt.Errorf("L1Tx.TxID: %s, should be: %s",
			tx.TxID.String(), txIDOld.String()))
	}
	return tx, nil
}

// SetType sets the type of the transaction
func (tx *L1Tx) SetType() error {
	if tx.FromIdx == 0 {
		if tx.ToIdx == AccountIdx(0) {
			tx.Type = TxTypeCreateAccountDeposit
		} else if tx.ToIdx >= IdxUserThreshold {
			tx.Type = TxTypeCreateAccountDepositTransfer
		} else {
			return Wrap(fmt.Errorf(
				"Can not determine type of L1Tx, invalid ToIdx value: %d", tx.ToIdx))
		}
	} else if tx.FromIdx >= IdxUserThreshold {
		if tx.ToIdx == AccountIdx(0) {
			tx.Type = TxTypeDeposit
		} else if tx.ToIdx == AccountIdx(1) {
			tx.Type = TxTypeForceExit
		} else if tx.ToIdx >= IdxUserThreshold {
			if tx.DepositAmount == nil || tx.DepositAmount.Sign() == 0 {
				tx.Type = TxTypeForceTransfer
			} else {
				tx.Type = TxTypeDepositTransfer
			}
		} else {
			return Wrap(fmt.Errorf(
				"Can not determine type of L1Tx, invalid ToIdx value: %d", tx.ToIdx))
		}
	} else {
		return Wrap(fmt.Errorf(
			"Can not determine type of L1Tx, invalid FromIdx value: %d", tx.FromIdx))
	}
	return nil
}

// SetID sets the ID of the transaction. For L1UserTx uses (ToForgeL1TxsNum,
// Position), for L1CoordinatorTx uses (BatchNum, Position).
func (tx *L1Tx) SetID() error {
	var b []byte
	if tx.UserOrigin {
		if tx.ToForgeL1TxsNum == nil {
			return Wrap(fmt.Errorf("L1Tx.UserOrigin == true && L1Tx.ToForgeL1TxsNum == nil"))
		}
		tx.TxID[0] = TxIDPrefixL1UserTx

		var toForgeL1TxsNumBytes [8]byte
		binary.BigEndian.PutUint64(toForgeL1TxsNumBytes[:], uint64(*tx.ToForgeL1TxsNum))
		b = append(b, toForgeL1TxsNumBytes[:]...)
	} else {
		if tx.BatchNum == nil {
			return Wrap(fmt.Errorf("L1Tx.UserOrigin == false && L1Tx.BatchNum == nil"))
		}
		tx.TxID[0] = TxIDPrefixL1CoordTx

		var batchNumBytes [8]byte
		binary.BigEndian.PutUint64(batchNumBytes[:], uint64(*tx.BatchNum))
		b = append(b, batchNumBytes[:]...)
	}
	var positionBytes [2]byte
	binary.BigEndian.PutUint16(positionBytes[:], uint16(tx.Position))
	b = append(b, positionBytes[:]...)

	h := ethCrypto.Keccak256Hash(b).Bytes()
	copy(tx.TxID[1:], h)
	return nil
}

// BytesGeneric returns the generic representation of a L1Tx. This method is
// used to compute the []byte representation of a L1UserTx, and also to compute
// the L1TxData for the ZKInputs (at the HashGlobalInputs), using this method
// for L1CoordinatorTxs & L1UserTxs (for the ZKInputs case).
func (tx *L1Tx) BytesGeneric() ([]byte, error) {
	var b [RollupConstL1UserTotalBytes]byte
	copy(b[0:20], tx.FromEthAddr.Bytes())
	if tx.FromBJJ != EmptyBJJComp {
		pkCompL := tx.FromBJJ
		pkCompB := SwapEndianness(pkCompL[:])
		copy(b[20:52], pkCompB[:])
	}
	fromIdxBytes, err := tx.FromIdx.Bytes()
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[52:58], fromIdxBytes[:])

	depositAmountFloat40, err := NewFloat40(BigIntOrZero(tx.DepositAmount))
	if err != nil {
		return nil, Wrap(err)
	}
	depositAmountFloat40Bytes, err := depositAmountFloat40.Bytes()
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[58:63], depositAmountFloat40Bytes)

	amountFloat40, err := NewFloat40(BigIntOrZero(tx.Amount))
	if err != nil {
		return nil, Wrap(err)
	}
	amountFloat40Bytes, err := amountFloat40.Bytes()
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[63:68], amountFloat40Bytes)
	copy(b[68:72], tx.TokenID.Bytes())
	toIdxBytes, err := tx.ToIdx.Bytes()
	if err != nil {
		return nil, Wrap(err)
	}
	copy(b[72:78], toIdxBytes[:])
	return b[:], nil
}

// BytesUser encodes a L1UserTx into []byte
func (tx *L1Tx) BytesUser() ([]byte, error) {
	if !tx.UserOrigin {
		return nil, Wrap(fmt.Errorf("Can not calculate BytesUser() for a L1CoordinatorTx"))
	}
	return tx.BytesGeneric()
}

// BytesCoordinatorTx returns the byte representation of a L1CoordinatorTx
func (tx *L1Tx) BytesCoordinatorTx(compressedSignatureBytes []byte) ([]byte, error) {
	if tx.UserOrigin {
		return nil, Wrap(fmt.Errorf("Can not calculate BytesCoordinatorTx() for a L1UserTx"))
	}
	var b [RollupConstL1CoordinatorTotalBytes]byte
	if len(compressedSignatureBytes) > 0 {
		if len(compressedSignatureBytes) != 65 { //nolint:gomnd
			return nil, Wrap(ErrInvalidSignature)
		}
		v := compressedSignatureBytes[64]
		s := compressedSignatureBytes[32:64]
		r := compressedSignatureBytes[0:32]
		b[0] = v
		copy(b[1:33], s)
		copy(b[33:65], r)
	}
	pkCompL := tx.FromBJJ
	pkCompB := SwapEndianness(pkCompL[:])
	copy(b[65:97], pkCompB[:])
	copy(b[97:101], tx.TokenID.Bytes())
	return b[:], nil
}

// L1UserTxFromBytes decodes a L1Tx from []byte
func L1UserTxFromBytes(b []byte) (*L1Tx, error) {
	if len(b) != RollupConstL1UserTotalBytes {
		return nil,
			Wrap(fmt.Errorf("Can not parse L1Tx bytes, expected length %d, current: %d",
				RollupConstL1UserTotalBytes, len(b)))
	}

	tx := &L1Tx{
		UserOrigin: true,
	}
	var err error
	tx.FromEthAddr = ethCommon.BytesToAddress(b[0:20])

	pkCompB := b[20:52]
	pkCompL := SwapEndianness(pkCompB)
	copy(tx.FromBJJ[:], pkCompL)
	fromIdx, err := AccountIdxFromBytes(b[52:58])
	if err != nil {
		return nil, Wrap(err)
	}
	tx.FromIdx = fromIdx
	tx.DepositAmount, err = Float40FromBytes(b[58:63]).BigInt()
	if err != nil {
		return nil, Wrap(err)
	}
	tx.Amount, err = Float40FromBytes(b[63:68]).BigInt()
	if err != nil {
		return nil, Wrap(err)
	}
	tx.TokenID, err = TokenIDFromBytes(b[68:72])
	if err != nil {
		return nil, Wrap(err)
	}
	tx.ToIdx, err = AccountIdxFromBytes(b[72:78])
	if err != nil {
		return nil, Wrap(err)
	}
	return tx, nil
}

// L1CoordinatorTxFromBytes decodes a L1Tx from []byte. The sender ethereum
// address is recovered from the account creation authorization signature, or
// set to RollupConstEthAddressInternalOnly when the signature is empty.
func L1CoordinatorTxFromBytes(b []byte, chainID uint16,
	rollupAddr ethCommon.Address) (*L1Tx, error) {
	if len(b) != RollupConstL1CoordinatorTotalBytes {
		return nil,
			Wrap(fmt.Errorf("Can not parse L1CoordinatorTx bytes, expected length %d, current: %d",
				RollupConstL1CoordinatorTotalBytes, len(b)))
	}

	tx := &L1Tx{
		UserOrigin:    false,
		Amount:        big.NewInt(0),
		DepositAmount: big.NewInt(0),
	}
	v := b[0]
	s := b[1:33]
	r := b[33:65]
	pkCompB := b[65:97]
	pkCompL := SwapEndianness(pkCompB)
	copy(tx.FromBJJ[:], pkCompL)
	tokenID, err := TokenIDFromBytes(b[97:101])
	if err != nil {
		return nil, Wrap(err)
	}
	tx.TokenID = tokenID
	if v == 0 {
		tx.FromEthAddr = RollupConstEthAddressInternalOnly
		return tx, nil
	}
	var signature []byte
	signature = append(signature, r...)
	signature = append(signature, s...)
	signature = append(signature, v)
	auth := AccountCreationAuth{BJJ: tx.FromBJJ, Signature: signature}
	tx.FromEthAddr, err = auth.RecoverEthAddr(chainID, rollupAddr)
	if err != nil {
		return nil, Wrap(err)
	}
	return tx, nil
}
