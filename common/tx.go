package common

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// TxIDPrefixL1UserTx is the prefix that determines that the TxID is for
	// a L1UserTx
	TxIDPrefixL1UserTx = byte(0)

	// TxIDPrefixL1CoordTx is the prefix that determines that the TxID is
	// for a L1CoordinatorTx
	TxIDPrefixL1CoordTx = byte(1)

	// TxIDLen is the length of the TxID byte array
	TxIDLen = 33
)

// TxID is the identifier of a rollup transaction
type TxID [TxIDLen]byte

// Scan implements Scanner for database/sql.
func (txid *TxID) Scan(src interface{}) error {
	srcB, ok := src.([]byte)
	if !ok {
		return Wrap(fmt.Errorf("can't scan %T into TxID", src))
	}
	if len(srcB) != TxIDLen {
		return Wrap(fmt.Errorf("can't scan []byte of len %d into TxID, need %d",
			len(srcB), TxIDLen))
	}
	copy(txid[:], srcB)
	return nil
}

// Value implements valuer for database/sql.
func (txid TxID) Value() (driver.Value, error) {
	return txid[:], nil
}

// String returns a string hexadecimal representation of the TxID
func (txid TxID) String() string {
	return "0x" + hex.EncodeToString(txid[:])
}

// NewTxIDFromString returns the TxID represented by the hexadecimal string
func NewTxIDFromString(idStr string) (TxID, error) {
	txid := TxID{}
	decoded, err := hex.DecodeString(strings.TrimPrefix(idStr, "0x"))
	if err != nil {
		return TxID{}, Wrap(err)
	}
	if len(decoded) != TxIDLen {
		return txid, Wrap(errors.New("Invalid idStr"))
	}
	copy(txid[:], decoded)
	return txid, nil
}

// MarshalText marshals a TxID
func (txid TxID) MarshalText() ([]byte, error) {
	return []byte(txid.String()), nil
}

// UnmarshalText unmarshalls a TxID
func (txid *TxID) UnmarshalText(data []byte) error {
	id, err := NewTxIDFromString(string(data))
	if err != nil {
		return Wrap(err)
	}
	*txid = id
	return nil
}

// TxType is the type of a L1 transaction
type TxType string

const (
	// TxTypeDeposit represents L1->L2 transfer
	TxTypeDeposit TxType = "Deposit"
	// TxTypeCreateAccountDeposit represents creation of a new leaf in the
	// state tree (newAcconut) + L1->L2 transfer
	TxTypeCreateAccountDeposit TxType = "CreateAccountDeposit"
	// TxTypeCreateAccountDepositTransfer represents L1->L2 transfer +
	// L2->L2 transfer
	TxTypeCreateAccountDepositTransfer TxType = "CreateAccountDepositTransfer"
	// TxTypeDepositTransfer represents a deposit into an existing account
	// followed by a transfer
	TxTypeDepositTransfer TxType = "DepositTransfer"
	// TxTypeForceTransfer represents a L2 transfer forced from L1
	TxTypeForceTransfer TxType = "ForceTransfer"
	// TxTypeForceExit represents an exit forced from L1
	TxTypeForceExit TxType = "ForceExit"
)
