/*
Package token implements an ERC-20 token with EIP-2612 permits whose balances
live in the chain state.  It's the token bidders pay the auction with.

Storage keys, under the token address:

	"tk" | token | "b" | owner           -> balance (16 bytes)
	"tk" | token | "a" | owner | spender -> allowance (16 bytes)
	"tk" | token | "n" | owner           -> permit nonce (16 bytes)
	"tk" | token | "s"                   -> total supply (16 bytes)
*/
package token

import (
	"fmt"
	"math/big"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethMath "github.com/ethereum/go-ethereum/common/math"
	ethSigner "github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	// EventTransfer is emitted on every balance movement
	EventTransfer = "Transfer"
	// EventApproval is emitted when an allowance is set
	EventApproval = "Approval"
	// DefaultVersion is the EIP-712 domain version of the permits
	DefaultVersion = "1"
)

var (
	// ErrInsufficientBalance is returned when the sender has not enough
	// balance
	ErrInsufficientBalance = fmt.Errorf("transfer amount exceeds balance")
	// ErrInsufficientAllowance is returned when the spender is not allowed
	// to move the amount
	ErrInsufficientAllowance = fmt.Errorf("transfer amount exceeds allowance")
	// ErrPermitExpired is returned when the permit deadline has passed
	ErrPermitExpired = fmt.Errorf("permit expired")
	// ErrInvalidPermitSignature is returned when the permit is not signed
	// by its owner
	ErrInvalidPermitSignature = fmt.Errorf("invalid permit signature")
	// ErrZeroAddress is returned on transfers from or to the zero address
	ErrZeroAddress = fmt.Errorf("zero address")

	prefix = []byte("tk")
)

// Transfer is the event of a balance movement.  Mints have a zero From.
type Transfer struct {
	Token  ethCommon.Address
	From   ethCommon.Address
	To     ethCommon.Address
	Amount *big.Int
}

// Approval is the event of an allowance change
type Approval struct {
	Token   ethCommon.Address
	Owner   ethCommon.Address
	Spender ethCommon.Address
	Amount  *big.Int
}

// ERC20 is a token whose state is kept in the chain store
type ERC20 struct {
	Address ethCommon.Address
	Name    string
	Symbol  string
	Version string
}

// NewERC20 creates the ERC20 token at the given address
func NewERC20(address ethCommon.Address, name, symbol string) *ERC20 {
	return &ERC20{
		Address: address,
		Name:    name,
		Symbol:  symbol,
		Version: DefaultVersion,
	}
}

func (t *ERC20) key(kind byte, addrs ...ethCommon.Address) []byte {
	k := make([]byte, 0, len(prefix)+20+1+len(addrs)*20) //nolint:gomnd
	k = append(k, prefix...)
	k = append(k, t.Address.Bytes()...)
	k = append(k, kind)
	for _, addr := range addrs {
		k = append(k, addr.Bytes()...)
	}
	return k
}

func getAmount(tx *chain.Tx, key []byte) (*big.Int, error) {
	b, err := tx.Get(key)
	if chain.IsNotFound(err) {
		return big.NewInt(0), nil
	} else if err != nil {
		return nil, common.Wrap(err)
	}
	return new(big.Int).SetBytes(b), nil
}

func putAmount(tx *chain.Tx, key []byte, amount *big.Int) error {
	b, err := common.AmountBytes(amount)
	if err != nil {
		return common.Wrap(err)
	}
	return common.Wrap(tx.Put(key, b[:]))
}

// BalanceOf returns the balance of owner
func (t *ERC20) BalanceOf(tx *chain.Tx, owner ethCommon.Address) (*big.Int, error) {
	return getAmount(tx, t.key('b', owner))
}

// Allowance returns the amount that spender can move from owner
func (t *ERC20) Allowance(tx *chain.Tx, owner, spender ethCommon.Address) (*big.Int, error) {
	return getAmount(tx, t.key('a', owner, spender))
}

// Nonces returns the next permit nonce of owner
func (t *ERC20) Nonces(tx *chain.Tx, owner ethCommon.Address) (*big.Int, error) {
	return getAmount(tx, t.key('n', owner))
}

// TotalSupply returns the amount of minted tokens
func (t *ERC20) TotalSupply(tx *chain.Tx) (*big.Int, error) {
	return getAmount(tx, t.key('s'))
}

// Mint creates amount tokens for to.  It's used to set up the genesis
// balances of a network.
func (t *ERC20) Mint(tx *chain.Tx, to ethCommon.Address, amount *big.Int) error {
	if to == common.EmptyAddr {
		return common.Wrap(ErrZeroAddress)
	}
	supply, err := t.TotalSupply(tx)
	if err != nil {
		return common.Wrap(err)
	}
	if err := putAmount(tx, t.key('s'), new(big.Int).Add(supply, amount)); err != nil {
		return common.Wrap(err)
	}
	balance, err := t.BalanceOf(tx, to)
	if err != nil {
		return common.Wrap(err)
	}
	if err := putAmount(tx, t.key('b', to), new(big.Int).Add(balance, amount)); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventTransfer, &Transfer{Token: t.Address, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func (t *ERC20) transfer(tx *chain.Tx, from, to ethCommon.Address, amount *big.Int) error {
	if err := common.CheckAmount(amount); err != nil {
		return common.Wrap(err)
	}
	if from == common.EmptyAddr || to == common.EmptyAddr {
		return common.Wrap(ErrZeroAddress)
	}
	fromBalance, err := t.BalanceOf(tx, from)
	if err != nil {
		return common.Wrap(err)
	}
	if fromBalance.Cmp(amount) < 0 {
		return common.Wrap(ErrInsufficientBalance)
	}
	if err := putAmount(tx, t.key('b', from), new(big.Int).Sub(fromBalance, amount)); err != nil {
		return common.Wrap(err)
	}
	toBalance, err := t.BalanceOf(tx, to)
	if err != nil {
		return common.Wrap(err)
	}
	if err := putAmount(tx, t.key('b', to), new(big.Int).Add(toBalance, amount)); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventTransfer, &Transfer{Token: t.Address, From: from, To: to,
		Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from the account of from to the account of to.  from
// is the caller of the token: tx.From for user calls, or the address of the
// calling contract.
func (t *ERC20) Transfer(tx *chain.Tx, from, to ethCommon.Address, amount *big.Int) error {
	return t.transfer(tx, from, to, amount)
}

// TransferFrom moves amount from the account of from to the account of to,
// spending the allowance given by from to spender
func (t *ERC20) TransferFrom(tx *chain.Tx, spender, from, to ethCommon.Address,
	amount *big.Int) error {
	allowance, err := t.Allowance(tx, from, spender)
	if err != nil {
		return common.Wrap(err)
	}
	if allowance.Cmp(amount) < 0 {
		return common.Wrap(ErrInsufficientAllowance)
	}
	if err := putAmount(tx, t.key('a', from, spender),
		new(big.Int).Sub(allowance, amount)); err != nil {
		return common.Wrap(err)
	}
	return t.transfer(tx, from, to, amount)
}

func (t *ERC20) approve(tx *chain.Tx, owner, spender ethCommon.Address, amount *big.Int) error {
	if owner == common.EmptyAddr || spender == common.EmptyAddr {
		return common.Wrap(ErrZeroAddress)
	}
	if err := putAmount(tx, t.key('a', owner, spender), amount); err != nil {
		return common.Wrap(err)
	}
	tx.Emit(EventApproval, &Approval{Token: t.Address, Owner: owner, Spender: spender,
		Amount: new(big.Int).Set(amount)})
	return nil
}

// Approve sets the allowance of spender over the tokens of tx.From
func (t *ERC20) Approve(tx *chain.Tx, spender ethCommon.Address, amount *big.Int) error {
	return t.approve(tx, tx.From, spender, amount)
}

// typedData returns the EIP-712 typed data of an EIP-2612 permit
func (t *ERC20) typedData(chainID uint16, p *common.Permit, nonce *big.Int) ethSigner.TypedData {
	return ethSigner.TypedData{
		Types: ethSigner.Types{
			"EIP712Domain": []ethSigner.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Permit": []ethSigner.Type{
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Domain: ethSigner.TypedDataDomain{
			Name:              t.Name,
			Version:           t.Version,
			ChainId:           ethMath.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: t.Address.Hex(),
		},
		Message: ethSigner.TypedDataMessage{
			"owner":    p.Owner.Hex(),
			"spender":  p.Spender.Hex(),
			"value":    p.Value.String(),
			"nonce":    nonce.String(),
			"deadline": p.Deadline.String(),
		},
	}
}

// PermitHash returns the EIP-712 hash that the owner signs to give the permit
// with the given nonce
func (t *ERC20) PermitHash(chainID uint16, p *common.Permit, nonce *big.Int) ([]byte, error) {
	return common.HashTypedData(t.typedData(chainID, p, nonce))
}

// Permit sets the allowance of p.Spender over the tokens of p.Owner, checking
// the owner signature over the permit and its current nonce
func (t *ERC20) Permit(tx *chain.Tx, p *common.Permit) error {
	if p.Deadline == nil || p.Deadline.Cmp(big.NewInt(tx.Timestamp)) < 0 {
		return common.Wrap(ErrPermitExpired)
	}
	if err := common.CheckAmount(p.Value); err != nil {
		return common.Wrap(err)
	}
	nonce, err := t.Nonces(tx, p.Owner)
	if err != nil {
		return common.Wrap(err)
	}
	hash, err := t.PermitHash(tx.ChainID, p, nonce)
	if err != nil {
		return common.Wrap(err)
	}
	signer, err := common.RecoverSigner(hash, p.Signature())
	if err != nil || signer != p.Owner {
		return common.Wrap(ErrInvalidPermitSignature)
	}
	if err := putAmount(tx, t.key('n', p.Owner), new(big.Int).Add(nonce, big.NewInt(1))); err != nil {
		return common.Wrap(err)
	}
	return t.approve(tx, p.Owner, p.Spender, p.Value)
}

// SignPermit fills the signature of the permit using signHash, which must
// sign with the key of p.Owner.  signHash returns [r | s | v] with v in {0, 1}.
func (t *ERC20) SignPermit(signHash func(hash []byte) ([]byte, error), chainID uint16,
	p *common.Permit, nonce *big.Int) error {
	hash, err := t.PermitHash(chainID, p, nonce)
	if err != nil {
		return common.Wrap(err)
	}
	sig, err := signHash(hash)
	if err != nil {
		return common.Wrap(err)
	}
	copy(p.R[:], sig[0:32])
	copy(p.S[:], sig[32:64])
	p.V = sig[64] + 27 //nolint:gomnd
	return nil
}
