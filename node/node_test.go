package node

import (
	"math/big"
	"testing"

	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/config"
	"tokamak-forge-auction/database/kvdb"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var holder = ethCommon.HexToAddress("0x00000000000000000000000000000000000000B1")

func testConfig(t *testing.T) *config.Node {
	var cfg config.Node
	require.NoError(t, config.LoadConfig("", config.DefaultValues, &cfg))
	cfg.StateDB.InMemory = true
	cfg.Token.Mints = []config.Mint{
		{Address: holder, Amount: config.BigInt{Int: big.NewInt(1000)}},
	}
	return &cfg
}

func TestNewContractsGenesis(t *testing.T) {
	cfg := testConfig(t)
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	defer k.Close()

	contracts, err := NewContracts(cfg, k)
	require.NoError(t, err)
	assert.Equal(t, int64(1), contracts.Chain.BlockNum())
	assert.Equal(t, int64(0), contracts.Chain.LastBlockNum())

	block, err := contracts.Chain.BlockByNum(0)
	require.NoError(t, err)
	require.Len(t, block.Receipts, 1)
	assert.True(t, block.Receipts[0].Success)
	assert.Equal(t, cfg.Rollup.GovernanceAddress, block.Receipts[0].From)

	require.NoError(t, contracts.Chain.Call(func(tx *chain.Tx) error {
		balance, err := contracts.Token.BalanceOf(tx, holder)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(1000), balance)
		return nil
	}))

	rollupVars, auctionVars, err := contracts.InitialVars()
	require.NoError(t, err)
	assert.Equal(t, cfg.Rollup.ForgeL1L2BatchTimeout, rollupVars.ForgeL1L2BatchTimeout)
	assert.Equal(t, cfg.Auction.DonationAddress, auctionVars.DonationAddress)
	assert.Equal(t, cfg.Auction.BootCoordinator, auctionVars.BootCoordinator)
	assert.Equal(t, int64(0), auctionVars.EthBlockNum)

	// A restart over the same state doesn't execute the genesis again
	restarted, err := NewContracts(cfg, k)
	require.NoError(t, err)
	assert.Equal(t, int64(1), restarted.Chain.BlockNum())
	assert.Equal(t, int64(0), restarted.Chain.LastBlockNum())
	_, err = restarted.Chain.BlockByNum(0)
	assert.Equal(t, chain.ErrBlockNotFound, common.Unwrap(err))
}

func TestNewContractsNotAtGenesis(t *testing.T) {
	cfg := testConfig(t)
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	defer k.Close()

	c, err := chain.NewChain(chain.Config{ChainID: cfg.Chain.ChainID}, k)
	require.NoError(t, err)
	_, err = c.MineBlock()
	require.NoError(t, err)

	_, err = NewContracts(cfg, k)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auction not initialized at block 1")
}

func TestNewContractsMockVerifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Rollup.Verifiers = append(cfg.Rollup.Verifiers, config.Verifier{
		URL:     "http://localhost:9000",
		MaxTx:   2048,
		NLevels: 32,
	})
	k, err := kvdb.NewKVDB(kvdb.Config{InMemory: true})
	require.NoError(t, err)
	defer k.Close()

	contracts, err := NewContracts(cfg, k)
	require.NoError(t, err)
	consts := contracts.Rollup.Constants()
	require.Len(t, consts.Verifiers, 2)
	assert.Equal(t, int64(2048), consts.Verifiers[1].MaxTx)
}
