package common

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
)

// PermitSignature is the signature of the EIP-2612 permit function
const PermitSignature = "permit(address,address,uint256,uint256,uint8,bytes32,bytes32)"

// PermitDataLen is the length of an abi encoded permit call:
// [4 bytes] selector + 7 * [32 bytes] arguments
const PermitDataLen = 4 + 7*32

var (
	// PermitSelector is the selector of the EIP-2612 permit function
	// (0xd505accf)
	PermitSelector = ethCrypto.Keccak256([]byte(PermitSignature))[:4]

	permitArgs abi.Arguments
)

func init() {
	newType := func(t string) abi.Type {
		typ, err := abi.NewType(t, "", nil)
		if err != nil {
			panic(err)
		}
		return typ
	}
	permitArgs = abi.Arguments{
		{Name: "owner", Type: newType("address")},
		{Name: "spender", Type: newType("address")},
		{Name: "value", Type: newType("uint256")},
		{Name: "deadline", Type: newType("uint256")},
		{Name: "v", Type: newType("uint8")},
		{Name: "r", Type: newType("bytes32")},
		{Name: "s", Type: newType("bytes32")},
	}
}

// Permit is an EIP-2612 permit call, which lets a bidder approve and transfer
// the bid tokens in the same transaction
type Permit struct {
	Owner    ethCommon.Address
	Spender  ethCommon.Address
	Value    *big.Int
	Deadline *big.Int
	V        uint8
	R        [32]byte
	S        [32]byte
}

// Bytes returns the abi encoded permit call, selector included
func (p *Permit) Bytes() ([]byte, error) {
	packed, err := permitArgs.Pack(p.Owner, p.Spender, p.Value, p.Deadline, p.V, p.R, p.S)
	if err != nil {
		return nil, Wrap(err)
	}
	return append(append([]byte{}, PermitSelector...), packed...), nil
}

// Signature returns the 65 byte [r | s | v] signature of the permit
func (p *Permit) Signature() []byte {
	sig := make([]byte, 0, 65) //nolint:gomnd
	sig = append(sig, p.R[:]...)
	sig = append(sig, p.S[:]...)
	return append(sig, p.V)
}

// DecodePermit decodes the permit data attached to a bid. Empty data means
// that no permit is used and returns nil. Any other layout than an abi encoded
// permit call fails with ErrNotValidCall.
func DecodePermit(data []byte) (*Permit, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) != PermitDataLen || !bytes.Equal(data[:4], PermitSelector) {
		return nil, Wrap(ErrNotValidCall)
	}
	values, err := permitArgs.Unpack(data[4:])
	if err != nil || len(values) != len(permitArgs) {
		return nil, Wrap(ErrNotValidCall)
	}
	p := &Permit{}
	var ok [7]bool
	p.Owner, ok[0] = values[0].(ethCommon.Address)
	p.Spender, ok[1] = values[1].(ethCommon.Address)
	p.Value, ok[2] = values[2].(*big.Int)
	p.Deadline, ok[3] = values[3].(*big.Int)
	p.V, ok[4] = values[4].(uint8)
	p.R, ok[5] = values[5].([32]byte)
	p.S, ok[6] = values[6].([32]byte)
	for _, o := range ok {
		if !o {
			return nil, Wrap(ErrNotValidCall)
		}
	}
	// Non canonical encodings (dirty padding) are rejected
	repacked, err := p.Bytes()
	if err != nil || !bytes.Equal(repacked, data) {
		return nil, Wrap(ErrNotValidCall)
	}
	return p, nil
}
