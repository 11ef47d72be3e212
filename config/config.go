package config

import (
	"encoding"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"tokamak-forge-auction/common"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env"
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator"
)

// Duration is a wrapper type that parses time duration from text.
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return common.Wrap(err)
	}
	d.Duration = duration
	return nil
}

// BigInt is a wrapper type that parses a decimal amount from text
type BigInt struct {
	*big.Int
}

// UnmarshalText unmarshalls a decimal amount from text
func (b *BigInt) UnmarshalText(data []byte) error {
	v, ok := new(big.Int).SetString(string(data), 10) //nolint:gomnd
	if !ok {
		return common.Wrap(fmt.Errorf("invalid amount %q", string(data)))
	}
	b.Int = v
	return nil
}

// Verifier is the configuration of one batch circuit verifier
type Verifier struct {
	// URL of the verifier server.  Empty means a mock verifier that
	// accepts every proof, only for devnets.
	URL     string
	Timeout Duration
	MaxTx   int64 `validate:"required"`
	NLevels int64 `validate:"required"`
}

// Mint is an initial token balance of the devnet
type Mint struct {
	Address ethCommon.Address `validate:"required"`
	Amount  BigInt            `validate:"required"`
}

// Node is the configuration of the node
type Node struct {
	Log struct {
		// Level of logging: debug, info, warn, error
		Level string   `validate:"required" env:"FORGE_LOG_LEVEL"`
		Out   []string `validate:"required"`
	}
	Chain struct {
		ChainID uint16 `validate:"required" env:"FORGE_CHAIN_ID"`
		// BlockTime is the interval at which blocks are sealed
		BlockTime Duration `validate:"required"`
		// CheckpointInterval is the number of blocks between state
		// checkpoints
		CheckpointInterval int64
		// BlocksKeep is the number of sealed blocks kept for the
		// synchronizer
		BlocksKeep int `validate:"required"`
		Log        bool
	} `validate:"required"`
	StateDB struct {
		// Path where the chain state is stored
		Path string `validate:"required" env:"FORGE_STATEDB_PATH"`
		// Keep is the number of checkpoints to keep
		Keep     int `validate:"required"`
		InMemory bool
	} `validate:"required"`
	PostgreSQL struct {
		// Port of the PostgreSQL write server
		PortWrite int `validate:"required" env:"FORGE_PG_PORT_WRITE"`
		// Host of the PostgreSQL write server
		HostWrite string `validate:"required" env:"FORGE_PG_HOST_WRITE"`
		// User of the PostgreSQL write server
		UserWrite string `validate:"required" env:"FORGE_PG_USER_WRITE"`
		// Password of the PostgreSQL write server
		PasswordWrite string `validate:"required" env:"FORGE_PG_PASSWORD_WRITE"`
		// Name of the PostgreSQL write server database
		NameWrite string `validate:"required" env:"FORGE_PG_NAME_WRITE"`
		// Port of the PostgreSQL read server, empty means the write
		// server is used for reads
		PortRead     int    `env:"FORGE_PG_PORT_READ"`
		HostRead     string `env:"FORGE_PG_HOST_READ"`
		UserRead     string `env:"FORGE_PG_USER_READ"`
		PasswordRead string `env:"FORGE_PG_PASSWORD_READ"`
		NameRead     string `env:"FORGE_PG_NAME_READ"`
	} `validate:"required"`
	Auction struct {
		GenesisBlockNum    int64             `validate:"required"`
		TokenAddress       ethCommon.Address `validate:"required"`
		AuctionAddress     ethCommon.Address `validate:"required"`
		DonationAddress    ethCommon.Address `validate:"required"`
		BootCoordinator    ethCommon.Address `validate:"required"`
		BootCoordinatorURL string            `validate:"required"`
	} `validate:"required"`
	Rollup struct {
		Address                     ethCommon.Address `validate:"required"`
		GovernanceAddress           ethCommon.Address `validate:"required"`
		ForgeL1L2BatchTimeout       int64             `validate:"required"`
		AbsoluteMaxL1L2BatchTimeout int64             `validate:"required"`
		// MaxPendingQueues is the capacity of the L1 user tx queue ring
		MaxPendingQueues int64
		Verifiers        []Verifier `validate:"required,dive"`
	} `validate:"required"`
	Token struct {
		Name   string `validate:"required"`
		Symbol string `validate:"required"`
		Mints  []Mint `validate:"dive"`
	} `validate:"required"`
	Synchronizer struct {
		// SyncLoopInterval is the time between calls to the
		// synchronizer when it's up to date
		SyncLoopInterval Duration `validate:"required"`
		// StatsUpdateBlockNumDiffThreshold and
		// StatsUpdateFrequencyDivider throttle the chain stats
		// updates while catching up
		StatsUpdateBlockNumDiffThreshold uint16 `validate:"required"`
		StatsUpdateFrequencyDivider      uint16 `validate:"required"`
	} `validate:"required"`
	API struct {
		// Address where the API will listen
		Address string `validate:"required" env:"FORGE_API_ADDRESS"`
		// Explorer enables the history endpoints
		Explorer bool
		// MaxSQLConnections is the maximum number of concurrent
		// connections the API can take from the SQL DB
		MaxSQLConnections int `validate:"required"`
		// SQLConnectionTimeout is the maximum amount of time the API
		// waits for a SQL connection
		SQLConnectionTimeout Duration `validate:"required"`
	} `validate:"required"`
	Debug struct {
		// MeddlerLogs enables meddler debug mode, where unused
		// columns and struct fields are logged
		MeddlerLogs bool
	}
}

func loadDefault(defaultValues string, cfg interface{}) error {
	if _, err := toml.Decode(defaultValues, cfg); err != nil {
		return common.Wrap(err)
	}
	return nil
}

func loadFile(path string, cfg interface{}) error {
	bs, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return common.Wrap(err)
	}
	if _, err := toml.Decode(string(bs), cfg); err != nil {
		return common.Wrap(err)
	}
	return nil
}

// loadEnv parses the env tags of cfg and of every section of cfg
func loadEnv(cfg interface{}) error {
	if err := env.Parse(cfg); err != nil {
		return common.Wrap(err)
	}
	v := reflect.Indirect(reflect.ValueOf(cfg))
	if v.Kind() != reflect.Struct {
		return nil
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if field.Kind() != reflect.Struct || !field.CanAddr() || !field.CanSet() {
			continue
		}
		if _, ok := field.Addr().Interface().(encoding.TextUnmarshaler); ok {
			continue
		}
		if err := loadEnv(field.Addr().Interface()); err != nil {
			return common.Wrap(err)
		}
	}
	return nil
}

// LoadConfig loads the configuration: first the defaultValues, then the file
// at filePath (when not empty) and finally the environment variables
func LoadConfig(filePath string, defaultValues string, cfg interface{}) error {
	if err := loadDefault(defaultValues, cfg); err != nil {
		return common.Wrap(fmt.Errorf("error loading default configuration: %w", err))
	}
	var errLoadFile error
	if filePath != "" {
		errLoadFile = loadFile(filePath, cfg)
	}
	// Overwrite file configuration with the env configuration
	errLoadEnv := loadEnv(cfg)
	if errLoadFile != nil {
		return common.Wrap(fmt.Errorf("error loading configuration file: %w", errLoadFile))
	}
	if errLoadEnv != nil {
		return common.Wrap(fmt.Errorf("error loading environment variables: %w", errLoadEnv))
	}
	return nil
}

// LoadNode loads the Node configuration from path and validates it
func LoadNode(path string) (*Node, error) {
	var cfg Node
	if err := LoadConfig(path, DefaultValues, &cfg); err != nil {
		return nil, common.Wrap(err)
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, common.Wrap(fmt.Errorf("error validating configuration file: %w", err))
	}
	if len(cfg.Rollup.Verifiers) == 0 {
		return nil, common.Wrap(fmt.Errorf("at least one verifier is required"))
	}
	if cfg.Rollup.ForgeL1L2BatchTimeout > cfg.Rollup.AbsoluteMaxL1L2BatchTimeout {
		return nil, common.Wrap(fmt.Errorf("ForgeL1L2BatchTimeout (%d) > "+
			"AbsoluteMaxL1L2BatchTimeout (%d)", cfg.Rollup.ForgeL1L2BatchTimeout,
			cfg.Rollup.AbsoluteMaxL1L2BatchTimeout))
	}
	return &cfg, nil
}

// AuctionConstants returns the auction constants of the node
func (cfg *Node) AuctionConstants() *common.AuctionConstants {
	return &common.AuctionConstants{
		BlocksPerSlot:     common.AuctionBlocksPerSlot,
		GenesisBlockNum:   cfg.Auction.GenesisBlockNum,
		TokenAddress:      cfg.Auction.TokenAddress,
		AuctionAddress:    cfg.Auction.AuctionAddress,
		GovernanceAddress: cfg.Rollup.GovernanceAddress,
	}
}

// AuctionVariables returns the initial auction variables of the node
func (cfg *Node) AuctionVariables() *common.AuctionVariables {
	return common.NewAuctionVariables(cfg.Auction.DonationAddress,
		cfg.Auction.BootCoordinator, cfg.Auction.BootCoordinatorURL)
}

// RollupConstants returns the rollup constants of the node
func (cfg *Node) RollupConstants() *common.RollupConstants {
	consts := &common.RollupConstants{
		ChainID:                     cfg.Chain.ChainID,
		RollupAddress:               cfg.Rollup.Address,
		GovernanceAddress:           cfg.Rollup.GovernanceAddress,
		AbsoluteMaxL1L2BatchTimeout: cfg.Rollup.AbsoluteMaxL1L2BatchTimeout,
		MaxPendingQueues:            cfg.Rollup.MaxPendingQueues,
	}
	for _, v := range cfg.Rollup.Verifiers {
		consts.Verifiers = append(consts.Verifiers, common.RollupVerifierStruct{
			MaxTx:   v.MaxTx,
			NLevels: v.NLevels,
		})
	}
	return consts
}
