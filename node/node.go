/*
Package node does the initialization of all the required objects to run the
chain, the synchronizer and the API.

The Node contains several goroutines that run in the background.  The chain
seals a block every Chain.BlockTime.  The synchronizer loop periodically
calls `Synchronizer.Sync`, storing one sealed block at a time in the
HistoryDB.  The API serves the transactions and the views of the contracts.
*/
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tokamak-forge-auction/api"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/config"
	dbUtils "tokamak-forge-auction/database"
	"tokamak-forge-auction/database/historydb"
	"tokamak-forge-auction/database/kvdb"
	"tokamak-forge-auction/log"
	"tokamak-forge-auction/synchronizer"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
	"golang.org/x/sync/errgroup"
)

const (
	apiReadTimeout     = 30 * time.Second
	apiWriteTimeout    = 30 * time.Second
	apiShutdownTimeout = 10 * time.Second
)

// Node is the forge auction node
type Node struct {
	nodeAPI *NodeAPI
	// Chain
	kvdb      *kvdb.KVDB
	contracts *Contracts

	// Synchronizer
	sync *synchronizer.Synchronizer

	// General
	cfg          *config.Node
	sqlConnRead  *sqlx.DB
	sqlConnWrite *sqlx.DB
	historyDB    *historydb.HistoryDB
	ctx          context.Context
	group        *errgroup.Group
	cancel       context.CancelFunc
}

// NodeAPI holds the node http API
type NodeAPI struct { //nolint:golint
	api    *api.API
	engine *gin.Engine
	addr   string
}

// NewNodeAPI creates a new NodeAPI (which internally calls api.NewAPI)
func NewNodeAPI(addr string, apiConfig api.Config) (*NodeAPI, error) {
	_api, err := api.NewAPI(apiConfig)
	if err != nil {
		return nil, common.Wrap(err)
	}
	return &NodeAPI{
		addr:   addr,
		api:    _api,
		engine: apiConfig.Server,
	}, nil
}

// Run starts the http server of the NodeAPI.  To stop it, pass a context
// with cancellation.
func (a *NodeAPI) Run(ctx context.Context) error {
	server := &http.Server{
		Handler:        a.engine,
		ReadTimeout:    apiReadTimeout,
		WriteTimeout:   apiWriteTimeout,
		MaxHeaderBytes: 1 << 20, //nolint:gomnd
	}
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return common.Wrap(err)
	}
	log.Infof("NodeAPI is ready at %v", a.addr)
	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return common.Wrap(err)
	}
	log.Info("Stopping NodeAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), apiShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return common.Wrap(err)
	}
	log.Info("NodeAPI done")
	return nil
}

// NewSQLDBs opens the write and the read connections to the PostgreSQL
// servers of cfg.  The write connection is used for reads when no read
// server is configured.
func NewSQLDBs(cfg *config.Node) (dbWrite, dbRead *sqlx.DB, err error) {
	dbWrite, err = dbUtils.InitSQLDB(
		cfg.PostgreSQL.PortWrite,
		cfg.PostgreSQL.HostWrite,
		cfg.PostgreSQL.UserWrite,
		cfg.PostgreSQL.PasswordWrite,
		cfg.PostgreSQL.NameWrite,
	)
	if err != nil {
		return nil, nil, common.Wrap(fmt.Errorf("dbUtils.InitSQLDB: %w", err))
	}
	if cfg.PostgreSQL.HostRead == "" {
		return dbWrite, dbWrite, nil
	} else if cfg.PostgreSQL.HostRead == cfg.PostgreSQL.HostWrite {
		return nil, nil, common.Wrap(fmt.Errorf(
			"PostgreSQL.HostRead and PostgreSQL.HostWrite must be different",
		))
	}
	dbRead, err = dbUtils.InitSQLDB(
		cfg.PostgreSQL.PortRead,
		cfg.PostgreSQL.HostRead,
		cfg.PostgreSQL.UserRead,
		cfg.PostgreSQL.PasswordRead,
		cfg.PostgreSQL.NameRead,
	)
	if err != nil {
		return nil, nil, common.Wrap(fmt.Errorf("dbUtils.InitSQLDB: %w", err))
	}
	return dbWrite, dbRead, nil
}

// NewNode creates a Node
func NewNode(cfg *config.Node, version string) (*Node, error) {
	meddler.Debug = cfg.Debug.MeddlerLogs
	// Stablish DB connection
	dbWrite, dbRead, err := NewSQLDBs(cfg)
	if err != nil {
		return nil, common.Wrap(err)
	}
	var apiConnCon *dbUtils.APIConnectionController
	if cfg.API.Explorer {
		apiConnCon = dbUtils.NewAPIConnectionController(
			cfg.API.MaxSQLConnections,
			cfg.API.SQLConnectionTimeout.Duration,
		)
	}
	historyDB := historydb.NewHistoryDB(dbRead, dbWrite, apiConnCon)

	k, err := kvdb.NewKVDB(kvdb.Config{
		Path:     cfg.StateDB.Path,
		Keep:     cfg.StateDB.Keep,
		InMemory: cfg.StateDB.InMemory,
	})
	if err != nil {
		return nil, common.Wrap(err)
	}
	contracts, err := NewContracts(cfg, k)
	if err != nil {
		return nil, common.Wrap(err)
	}
	rollupVars, auctionVars, err := contracts.InitialVars()
	if err != nil {
		return nil, common.Wrap(err)
	}

	sync, err := synchronizer.NewSynchronizer(contracts.Chain, historyDB, synchronizer.Config{
		StatsUpdateBlockNumDiffThreshold: cfg.Synchronizer.StatsUpdateBlockNumDiffThreshold,
		StatsUpdateFrequencyDivider:      cfg.Synchronizer.StatsUpdateFrequencyDivider,
		StartBlockNum:                    1,
		InitialRollupVars:                *rollupVars,
		InitialAuctionVars:               *auctionVars,
	})
	if err != nil {
		return nil, common.Wrap(err)
	}

	var nodeAPI *NodeAPI
	if cfg.API.Address != "" {
		if cfg.Log.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
		server := gin.Default()
		nodeAPI, err = NewNodeAPI(cfg.API.Address, api.Config{
			Version:           version,
			ExplorerEndpoints: cfg.API.Explorer,
			Server:            server,
			HistoryDB:         historyDB,
			Chain:             contracts.Chain,
			Token:             contracts.Token,
			Auction:           contracts.Auction,
			Rollup:            contracts.Rollup,
			Sync:              sync,
		})
		if err != nil {
			return nil, common.Wrap(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		nodeAPI:      nodeAPI,
		kvdb:         k,
		contracts:    contracts,
		sync:         sync,
		cfg:          cfg,
		sqlConnRead:  dbRead,
		sqlConnWrite: dbWrite,
		historyDB:    historyDB,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (n *Node) syncLoopFn(ctx context.Context, lastBlock *common.Block) (*common.Block,
	time.Duration, error) {
	blockData, discarded, err := n.sync.Sync(ctx, lastBlock)
	if err != nil {
		// case: error
		return nil, n.cfg.Synchronizer.SyncLoopInterval.Duration, common.Wrap(err)
	} else if discarded != nil {
		// case: reorg
		log.Infow("Synchronizer.Sync reorg", "discarded", *discarded)
		return nil, time.Duration(0), nil
	} else if blockData != nil {
		// case: new block
		return &blockData.Block, time.Duration(0), nil
	}
	// case: no block
	return lastBlock, n.cfg.Synchronizer.SyncLoopInterval.Duration, nil
}

// StartSynchronizer starts the synchronizer loop
func (n *Node) StartSynchronizer() {
	log.Info("Starting Synchronizer...")
	n.group.Go(func() error {
		var err error
		var lastBlock *common.Block
		waitDuration := time.Duration(0)
		for {
			select {
			case <-n.ctx.Done():
				log.Info("Synchronizer done")
				return nil
			case <-time.After(waitDuration):
				if lastBlock, waitDuration, err = n.syncLoopFn(n.ctx,
					lastBlock); err != nil {
					if n.ctx.Err() != nil {
						continue
					}
					if errors.Is(err, synchronizer.ErrMissedBlock) {
						log.Warnw("Synchronizer.Sync, rollback the node to a "+
							"block kept by the chain", "err", err)
					} else {
						log.Errorw("Synchronizer.Sync", "err", err)
					}
				}
			}
		}
	})
}

// StartChain starts sealing a block every Chain.BlockTime
func (n *Node) StartChain() {
	log.Infow("Starting chain...", "blockTime", n.cfg.Chain.BlockTime.Duration,
		"blockNum", n.contracts.Chain.BlockNum())
	n.group.Go(func() error {
		n.contracts.Chain.Run(n.cfg.Chain.BlockTime.Duration, n.ctx.Done())
		return nil
	})
}

// StartNodeAPI starts the NodeAPI
func (n *Node) StartNodeAPI() {
	log.Info("Starting NodeAPI...")
	n.group.Go(func() error {
		if err := n.nodeAPI.Run(n.ctx); err != nil {
			if n.ctx.Err() != nil {
				return nil
			}
			log.Fatalw("NodeAPI.Run", "err", err)
		}
		return nil
	})
}

// Start the node
func (n *Node) Start() {
	log.Infow("Starting node...")
	n.group, n.ctx = errgroup.WithContext(n.ctx)
	n.StartChain()
	n.StartSynchronizer()
	if n.nodeAPI != nil {
		n.StartNodeAPI()
	}
}

// Stop the node
func (n *Node) Stop() {
	log.Infow("Stopping node...")
	n.cancel()
	if n.group != nil {
		if err := n.group.Wait(); err != nil {
			log.Errorw("Node.Stop", "err", err)
		}
	}
	// Close kv DB
	n.kvdb.Close()
	if err := n.sqlConnWrite.Close(); err != nil {
		log.Errorw("sqlConnWrite.Close", "err", err)
	}
	if n.sqlConnRead != n.sqlConnWrite {
		if err := n.sqlConnRead.Close(); err != nil {
			log.Errorw("sqlConnRead.Close", "err", err)
		}
	}
	log.Info("Node stopped")
}
