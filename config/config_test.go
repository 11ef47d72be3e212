package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tokamak-forge-auction/common"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadNodeDefaults(t *testing.T) {
	cfg, err := LoadNode("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, uint16(5), cfg.Chain.ChainID)
	assert.Equal(t, 2*time.Second, cfg.Chain.BlockTime.Duration)
	assert.Equal(t, int64(20), cfg.Auction.GenesisBlockNum)
	require.Len(t, cfg.Rollup.Verifiers, 1)
	assert.Equal(t, "", cfg.Rollup.Verifiers[0].URL)

	consts := cfg.RollupConstants()
	assert.Equal(t, cfg.Rollup.Address, consts.RollupAddress)
	assert.Equal(t, int64(512), consts.Verifiers[0].MaxTx)

	auctionConsts := cfg.AuctionConstants()
	assert.Equal(t, uint8(common.AuctionBlocksPerSlot), auctionConsts.BlocksPerSlot)
	assert.Equal(t, cfg.Rollup.GovernanceAddress, auctionConsts.GovernanceAddress)

	vars := cfg.AuctionVariables()
	assert.Equal(t, cfg.Auction.BootCoordinator, vars.BootCoordinator)
	assert.Equal(t, common.AuctionInitialMinimalBidding, vars.DefaultSlotSetBid[0])
}

func TestLoadNodeFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	file := `
[Log]
Level = "debug"

[Chain]
BlockTime = "500ms"

[[Token.Mints]]
Address = "0x0000000000000000000000000000000000002001"
Amount = "1000000000000000000000"
`
	require.NoError(t, os.WriteFile(path, []byte(file), 0600))
	t.Setenv("FORGE_API_ADDRESS", "0.0.0.0:9000")

	cfg, err := LoadNode(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 500*time.Millisecond, cfg.Chain.BlockTime.Duration)
	assert.Equal(t, "0.0.0.0:9000", cfg.API.Address)
	// Values not in the file keep their default
	assert.Equal(t, 1024, cfg.Chain.BlocksKeep)

	require.Len(t, cfg.Token.Mints, 1)
	assert.Equal(t, ethCommon.HexToAddress("0x2001"), cfg.Token.Mints[0].Address)
	expected, _ := new(big.Int).SetString("1000000000000000000000", 10)
	assert.Equal(t, 0, expected.Cmp(cfg.Token.Mints[0].Amount.Int))
}

func TestLoadNodeInvalid(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "timeout.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[Rollup]
ForgeL1L2BatchTimeout = 500
`), 0600))
	_, err := LoadNode(path)
	assert.Error(t, err)

	path = filepath.Join(dir, "amount.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[Token.Mints]]
Address = "0x0000000000000000000000000000000000002001"
Amount = "12abc"
`), 0600))
	_, err = LoadNode(path)
	assert.Error(t, err)

	_, err = LoadNode(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
