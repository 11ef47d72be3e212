package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespaceChain   = "chain"
	namespaceAuction = "auction"
	namespaceRollup  = "rollup"
	namespaceSync    = "synchronizer"
	namespaceAPI     = "api"
)

var (
	// ChainTxs executed chain transactions by method and status
	ChainTxs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceChain,
			Name:      "txs_total",
			Help:      "",
		}, []string{"method", "status"})

	// ChainBlockNum number of the block being built
	ChainBlockNum = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceChain,
			Name:      "block_num",
			Help:      "",
		})

	// ChainTxDuration execution time of a chain transaction
	ChainTxDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespaceChain,
			Name:      "tx_duration_ms",
			Help:      "",
		}, []string{"method"})

	// Bids placed bids count
	Bids = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceAuction,
			Name:      "bids_total",
			Help:      "",
		})

	// ClaimedHEZ claimed token amount (in token units, float)
	ClaimedHEZ = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceAuction,
			Name:      "claimed_total",
			Help:      "",
		})

	// ForgedBatches forged batches count
	ForgedBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRollup,
			Name:      "forged_batches_total",
			Help:      "",
		})

	// L1UserTxs added L1 user txs count
	L1UserTxs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceRollup,
			Name:      "l1_user_txs_total",
			Help:      "",
		})

	// PendingL1Queues sealed queues waiting to be forged
	PendingL1Queues = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceRollup,
			Name:      "pending_l1_queues",
			Help:      "",
		})

	// LastBlockNum last block synced
	LastBlockNum = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSync,
			Name:      "synced_last_block_num",
			Help:      "",
		})

	// LastBatchNum last batch synced
	LastBatchNum = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespaceSync,
			Name:      "synced_last_batch_num",
			Help:      "",
		})

	// MissedBlocks blocks no longer available at the chain when syncing
	MissedBlocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespaceSync,
			Name:      "missed_blocks_total",
			Help:      "",
		})

	// Requests API requests by path and status code
	Requests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespaceAPI,
			Name:      "requests_total",
			Help:      "",
		}, []string{"path", "code"})
)

func init() {
	prometheus.MustRegister(ChainTxs)
	prometheus.MustRegister(ChainBlockNum)
	prometheus.MustRegister(ChainTxDuration)
	prometheus.MustRegister(Bids)
	prometheus.MustRegister(ClaimedHEZ)
	prometheus.MustRegister(ForgedBatches)
	prometheus.MustRegister(L1UserTxs)
	prometheus.MustRegister(PendingL1Queues)
	prometheus.MustRegister(LastBlockNum)
	prometheus.MustRegister(LastBatchNum)
	prometheus.MustRegister(MissedBlocks)
	prometheus.MustRegister(Requests)
}

// MeasureDuration measure the method execution duration
// and save it into a histogram metric
func MeasureDuration(histogram *prometheus.HistogramVec, start time.Time, lvs ...string) {
	duration := time.Since(start)
	histogram.WithLabelValues(lvs...).Observe(float64(duration.Milliseconds()))
}
