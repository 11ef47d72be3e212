package node

import (
	"fmt"

	"tokamak-forge-auction/auction"
	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/config"
	"tokamak-forge-auction/database/kvdb"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/rollup"
	"tokamak-forge-auction/token"
	"tokamak-forge-auction/verifier"
)

// Contracts are the chain and the contracts deployed on it
type Contracts struct {
	Chain   *chain.Chain
	Token   *token.ERC20
	Auction *auction.Auction
	Rollup  *rollup.Rollup
}

// NewContracts creates the chain over k and the contracts described in cfg.
// When the auction is not initialized yet, the genesis setup is executed and
// sealed as the first block.
func NewContracts(cfg *config.Node, k *kvdb.KVDB) (*Contracts, error) {
	c, err := chain.NewChain(chain.Config{
		ChainID:            cfg.Chain.ChainID,
		CheckpointInterval: cfg.Chain.CheckpointInterval,
		BlocksKeep:         cfg.Chain.BlocksKeep,
		Log:                cfg.Chain.Log,
	}, k)
	if err != nil {
		return nil, common.Wrap(err)
	}
	tk := token.NewERC20(cfg.Auction.TokenAddress, cfg.Token.Name, cfg.Token.Symbol)
	a, err := auction.NewAuction(cfg.AuctionConstants(), tk)
	if err != nil {
		return nil, common.Wrap(err)
	}
	verifiers := make([]rollup.Verifier, len(cfg.Rollup.Verifiers))
	for i, v := range cfg.Rollup.Verifiers {
		if v.URL == "" {
			log.Warnw("Using a mock verifier that accepts every proof", "verifierIdx", i)
			verifiers[i] = &verifier.Mock{}
			continue
		}
		verifiers[i] = verifier.NewClient(v.URL, v.Timeout.Duration)
	}
	r, err := rollup.NewRollup(cfg.RollupConstants(), a, verifiers, &rollup.StoreUpdater{})
	if err != nil {
		return nil, common.Wrap(err)
	}
	contracts := &Contracts{Chain: c, Token: tk, Auction: a, Rollup: r}
	if err := contracts.genesis(cfg); err != nil {
		return nil, common.Wrap(err)
	}
	return contracts, nil
}

func (cs *Contracts) genesis(cfg *config.Node) error {
	err := cs.Chain.Call(func(tx *chain.Tx) error {
		_, err := cs.Auction.GetVariables(tx)
		return err
	})
	if err == nil {
		return nil
	} else if common.Unwrap(err) != common.ErrNotInitialized {
		return common.Wrap(err)
	}
	if blockNum := cs.Chain.BlockNum(); blockNum != 0 {
		return common.Wrap(fmt.Errorf("auction not initialized at block %d", blockNum))
	}
	log.Infow("Executing the genesis setup",
		"genesisBlockNum", cfg.Auction.GenesisBlockNum,
		"governance", cfg.Rollup.GovernanceAddress.Hex())
	if _, err := cs.Chain.Execute(cfg.Rollup.GovernanceAddress, "genesis",
		func(tx *chain.Tx) error {
			for _, mint := range cfg.Token.Mints {
				if err := cs.Token.Mint(tx, mint.Address, mint.Amount.Int); err != nil {
					return err
				}
			}
			if err := cs.Auction.Initialize(tx, cfg.AuctionVariables()); err != nil {
				return err
			}
			return cs.Rollup.Initialize(tx, cfg.Rollup.ForgeL1L2BatchTimeout)
		}); err != nil {
		return common.Wrap(fmt.Errorf("genesis: %w", err))
	}
	if _, err := cs.Chain.MineBlock(); err != nil {
		return common.Wrap(err)
	}
	return nil
}

// InitialVars returns the current variables of the rollup and the auction
func (cs *Contracts) InitialVars() (*common.RollupVariables, *common.AuctionVariables, error) {
	var rollupVars *common.RollupVariables
	var auctionVars *common.AuctionVariables
	if err := cs.Chain.Call(func(tx *chain.Tx) error {
		var err error
		if rollupVars, err = cs.Rollup.Variables(tx); err != nil {
			return err
		}
		auctionVars, err = cs.Auction.GetVariables(tx)
		return err
	}); err != nil {
		return nil, nil, common.Wrap(err)
	}
	return rollupVars, auctionVars, nil
}
