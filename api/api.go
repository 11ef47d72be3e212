package api

import (
	"errors"

	"tokamak-forge-auction/auction"
	"tokamak-forge-auction/chain"
	"tokamak-forge-auction/common"
	"tokamak-forge-auction/database/historydb"
	"tokamak-forge-auction/rollup"
	"tokamak-forge-auction/synchronizer"
	"tokamak-forge-auction/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncStats gives the synchronization status of the history
type SyncStats interface {
	Stats() *synchronizer.Stats
}

// API serves HTTP requests to allow external interaction with the node
type API struct {
	historyDB *historydb.HistoryDB
	chain     *chain.Chain
	token     *token.ERC20
	auction   *auction.Auction
	rollup    *rollup.Rollup
	sync      SyncStats
	validate  *validator.Validate
	methods   map[string]method
}

// Config wraps the parameters needed to start the API
type Config struct {
	Version string
	// ExplorerEndpoints enables the endpoints served from the HistoryDB
	ExplorerEndpoints bool
	Server            *gin.Engine
	HistoryDB         *historydb.HistoryDB
	Chain             *chain.Chain
	Token             *token.ERC20
	Auction           *auction.Auction
	Rollup            *rollup.Rollup
	Sync              SyncStats
}

// NewAPI sets the endpoints and the appropriate handlers, but doesn't start the server
func NewAPI(setup Config) (*API, error) {
	// Check input
	if setup.Chain == nil || setup.Token == nil || setup.Auction == nil || setup.Rollup == nil {
		return nil, common.Wrap(errors.New("cannot serve the API without the chain contracts"))
	}
	if setup.ExplorerEndpoints && setup.HistoryDB == nil {
		return nil, common.Wrap(errors.New("cannot serve Explorer endpoints without HistoryDB"))
	}

	a := &API{
		historyDB: setup.HistoryDB,
		chain:     setup.Chain,
		token:     setup.Token,
		auction:   setup.Auction,
		rollup:    setup.Rollup,
		sync:      setup.Sync,
		validate:  validator.New(),
	}
	a.methods = a.txMethods()

	setup.Server.Use(cors.Default())
	setup.Server.Use(requestsMetric())
	setup.Server.NoRoute(a.noRoute)
	setup.Server.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := setup.Server.Group("/v1")
	v1.GET("/health", a.health(setup.Version))
	// Transactions
	v1.POST("/tx", a.postTx)
	v1.GET("/nonce/:addr", a.getNonce)
	// Auction and rollup views
	v1.GET("/canforge", a.getCanForge)
	v1.GET("/claimable/:addr", a.getClaimable)
	v1.GET("/balance/:addr", a.getBalance)
	v1.GET("/slots/:slot", a.getSlot)
	v1.GET("/auction/vars", a.getAuctionVars)
	v1.GET("/rollup/vars", a.getRollupVars)
	v1.GET("/l1queue", a.getL1Queue)
	v1.GET("/l1queue/:idx", a.getL1QueueTxs)
	v1.GET("/state", a.getState)

	// Add explorer endpoints
	if setup.ExplorerEndpoints {
		v1.GET("/coordinators", a.getCoordinators)
		v1.GET("/bids", a.getBids)
		v1.GET("/batches", a.getBatches)
		v1.GET("/l1txs", a.getL1Txs)
	}

	return a, nil
}
