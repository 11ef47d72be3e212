package token

import (
	"math/big"
	"testing"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/kvdb"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenAddr = ethCommon.HexToAddress("0x70ce")
	spender   = ethCommon.HexToAddress("0x5e4d")
	bob       = ethCommon.HexToAddress("0xb0b")
)

func newTestChain(t *testing.T) *chain.Chain {
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	c, err := chain.NewChain(chain.Config{ChainID: 1}, k)
	require.NoError(t, err)
	return c
}

func balance(t *testing.T, c *chain.Chain, tk *ERC20, addr ethCommon.Address) *big.Int {
	var b *big.Int
	require.NoError(t, c.Call(func(tx *chain.Tx) error {
		var err error
		b, err = tk.BalanceOf(tx, addr)
		return err
	}))
	return b
}

func TestTransferAndAllowance(t *testing.T) {
	c := newTestChain(t)
	tk := NewERC20(tokenAddr, "Tokamak Network", "TON")
	alice := ethCommon.HexToAddress("0xa11ce")

	_, err := c.Execute(alice, "mint", func(tx *chain.Tx) error {
		return tk.Mint(tx, alice, big.NewInt(100))
	})
	require.NoError(t, err)

	_, err = c.Execute(alice, "transfer", func(tx *chain.Tx) error {
		return tk.Transfer(tx, tx.From, bob, big.NewInt(101))
	})
	assert.Equal(t, ErrInsufficientBalance, common.Unwrap(err))

	receipt, err := c.Execute(alice, "transfer", func(tx *chain.Tx) error {
		return tk.Transfer(tx, tx.From, bob, big.NewInt(30))
	})
	require.NoError(t, err)
	require.Equal(t, 1, len(receipt.Events))
	assert.Equal(t, EventTransfer, receipt.Events[0].Name)

	_, err = c.Execute(spender, "transferFrom", func(tx *chain.Tx) error {
		return tk.TransferFrom(tx, tx.From, alice, bob, big.NewInt(10))
	})
	assert.Equal(t, ErrInsufficientAllowance, common.Unwrap(err))

	_, err = c.Execute(alice, "approve", func(tx *chain.Tx) error {
		return tk.Approve(tx, spender, big.NewInt(50))
	})
	require.NoError(t, err)
	_, err = c.Execute(spender, "transferFrom", func(tx *chain.Tx) error {
		return tk.TransferFrom(tx, tx.From, alice, bob, big.NewInt(50))
	})
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(20), balance(t, c, tk, alice))
	assert.Equal(t, big.NewInt(80), balance(t, c, tk, bob))
	require.NoError(t, c.Call(func(tx *chain.Tx) error {
		allowance, err := tk.Allowance(tx, alice, spender)
		require.NoError(t, err)
		assert.Equal(t, int64(0), allowance.Int64())
		supply, err := tk.TotalSupply(tx)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(100), supply)
		return nil
	}))
}

func TestPermit(t *testing.T) {
	c := newTestChain(t)
	tk := NewERC20(tokenAddr, "Tokamak Network", "TON")
	sk, err := ethCrypto.HexToECDSA("fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19")
	require.NoError(t, err)
	owner := ethCrypto.PubkeyToAddress(sk.PublicKey)
	signHash := func(hash []byte) ([]byte, error) {
		return ethCrypto.Sign(hash, sk)
	}

	_, err = c.Execute(owner, "mint", func(tx *chain.Tx) error {
		return tk.Mint(tx, owner, big.NewInt(1000))
	})
	require.NoError(t, err)

	permit := &common.Permit{
		Owner:    owner,
		Spender:  spender,
		Value:    big.NewInt(500),
		Deadline: new(big.Int).SetUint64(1 << 62),
	}
	require.NoError(t, tk.SignPermit(signHash, c.ChainID(), permit, big.NewInt(0)))

	// the permit encoding survives the calldata round trip
	data, err := permit.Bytes()
	require.NoError(t, err)
	decoded, err := common.DecodePermit(data)
	require.NoError(t, err)
	assert.Equal(t, permit.Owner, decoded.Owner)
	assert.Equal(t, permit.Signature(), decoded.Signature())
	assert.Equal(t, 0, permit.Value.Cmp(decoded.Value))

	_, err = c.Execute(spender, "permitAndTransfer", func(tx *chain.Tx) error {
		if err := tk.Permit(tx, decoded); err != nil {
			return err
		}
		return tk.TransferFrom(tx, tx.From, owner, spender, big.NewInt(500))
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), balance(t, c, tk, spender))

	// replay fails, the nonce was consumed
	_, err = c.Execute(spender, "permit", func(tx *chain.Tx) error {
		return tk.Permit(tx, decoded)
	})
	assert.Equal(t, ErrInvalidPermitSignature, common.Unwrap(err))

	// tampered value
	permit2 := *permit
	require.NoError(t, tk.SignPermit(signHash, c.ChainID(), &permit2, big.NewInt(1)))
	permit2.Value = big.NewInt(501)
	_, err = c.Execute(spender, "permit", func(tx *chain.Tx) error {
		return tk.Permit(tx, &permit2)
	})
	assert.Equal(t, ErrInvalidPermitSignature, common.Unwrap(err))

	// expired
	permit3 := *permit
	permit3.Deadline = big.NewInt(1)
	require.NoError(t, tk.SignPermit(signHash, c.ChainID(), &permit3, big.NewInt(1)))
	_, err = c.Execute(spender, "permit", func(tx *chain.Tx) error {
		return tk.Permit(tx, &permit3)
	})
	assert.Equal(t, ErrPermitExpired, common.Unwrap(err))
}
