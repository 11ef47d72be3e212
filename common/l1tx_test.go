package common

import (
	"math/big"
	"testing"

	ethCommon "github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewL1UserTx(t *testing.T) {
	toForge := int64(123456)
	l1Tx := &L1Tx{
		ToForgeL1TxsNum: &toForge,
		Position:        71,
		UserOrigin:      true,
		ToIdx:           301,
		TokenID:         5,
		Amount:          big.NewInt(1),
		DepositAmount:   big.NewInt(2),
		FromIdx:         300,
	}
	l1Tx, err := NewL1Tx(l1Tx)
	require.NoError(t, err)
	assert.Equal(t, TxTypeDepositTransfer, l1Tx.Type)
	assert.Equal(t, TxIDPrefixL1UserTx, l1Tx.TxID[0])

	// Same inputs give the same ID
	l1Tx2 := *l1Tx
	require.NoError(t, l1Tx2.SetID())
	assert.Equal(t, l1Tx.TxID, l1Tx2.TxID)

	l1Tx.Type = TxTypeForceExit
	_, err = NewL1Tx(l1Tx)
	assert.Error(t, err)
}

func TestL1UserTxByteParsers(t *testing.T) {
	var pkComp babyjub.PublicKeyComp
	pkCompL := []byte("0x56ca90f80d7c374ae7485e9bcc47d4ac399460948da6aeeb899311097925a72c")
	err := pkComp.UnmarshalText(pkCompL)
	require.NoError(t, err)

	l1Tx := &L1Tx{
		UserOrigin:    true,
		ToIdx:         3,
		TokenID:       5,
		Amount:        big.NewInt(1),
		DepositAmount: big.NewInt(1000),
		FromIdx:       2,
		FromBJJ:       pkComp,
		FromEthAddr:   ethCommon.HexToAddress("0xc58d29fA6e86E4FAe04DDcEd660d45BCf3Cb2370"),
	}

	encodedData, err := l1Tx.BytesUser()
	require.NoError(t, err)
	assert.Equal(t, RollupConstL1UserTotalBytes, len(encodedData))
	decodedData, err := L1UserTxFromBytes(encodedData)
	require.NoError(t, err)
	assert.Equal(t, l1Tx, decodedData)

	_, err = L1UserTxFromBytes(encodedData[1:])
	assert.Error(t, err)

	// Amounts that can't be encoded as Float40 are rejected
	l1Tx.Amount = big.NewInt(123456789123)
	_, err = l1Tx.BytesUser()
	assert.Error(t, err)
}

func TestL1CoordinatorTxByteParsers(t *testing.T) {
	chainID := uint16(5)
	rollupAddr := ethCommon.HexToAddress("0x1234567890123456789012345678901234567890")
	privateKey, err := ethCrypto.HexToECDSA("fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19")
	require.NoError(t, err)
	fromEthAddr := ethCrypto.PubkeyToAddress(privateKey.PublicKey)

	var pkComp babyjub.PublicKeyComp
	err = pkComp.UnmarshalText([]byte("0x56ca90f80d7c374ae7485e9bcc47d4ac399460948da6aeeb899311097925a72c"))
	require.NoError(t, err)

	auth := AccountCreationAuth{EthAddr: fromEthAddr, BJJ: pkComp}
	err = auth.Sign(func(hash []byte) ([]byte, error) {
		return ethCrypto.Sign(hash, privateKey)
	}, chainID, rollupAddr)
	require.NoError(t, err)

	l1Tx := &L1Tx{TokenID: 231, FromBJJ: pkComp}
	b, err := l1Tx.BytesCoordinatorTx(auth.Signature)
	require.NoError(t, err)
	assert.Equal(t, RollupConstL1CoordinatorTotalBytes, len(b))

	decoded, err := L1CoordinatorTxFromBytes(b, chainID, rollupAddr)
	require.NoError(t, err)
	assert.Equal(t, fromEthAddr, decoded.FromEthAddr)
	assert.Equal(t, pkComp, decoded.FromBJJ)
	assert.Equal(t, TokenID(231), decoded.TokenID)

	// Without signature the account is internal only
	b, err = l1Tx.BytesCoordinatorTx(nil)
	require.NoError(t, err)
	decoded, err = L1CoordinatorTxFromBytes(b, chainID, rollupAddr)
	require.NoError(t, err)
	assert.Equal(t, RollupConstEthAddressInternalOnly, decoded.FromEthAddr)
}

func TestFloat40BigInt(t *testing.T) {
	for _, v := range []int64{0, 1, 1000, 34359738367, 1e18} {
		f40, err := NewFloat40(big.NewInt(v))
		require.NoError(t, err)
		bi, err := f40.BigInt()
		require.NoError(t, err)
		assert.Equal(t, 0, big.NewInt(v).Cmp(bi))
	}
}
