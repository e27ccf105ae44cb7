package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed tracks total blocks processed by outcome (ok, failed, reprocessed)
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"outcome"},
	)

	// BlocksPerSecond is the processing rate over the cursor's sliding window
	BlocksPerSecond = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_blocks_per_second",
			Help: "Block processing rate over the recent window",
		},
	)

	// RPCCallsTotal tracks RPC calls per provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "method"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)

	// ChainLatestBlock tracks the latest block height of the chain
	ChainLatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_chain_latest_block",
			Help: "Latest block height of the chain",
		},
	)

	// IndexerLatestBlock tracks the latest block indexed by the watcher
	IndexerLatestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_indexer_latest_block",
			Help: "Latest block height indexed by the watcher",
		},
	)

	// DepositsStored counts deposit upserts by event type
	DepositsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_deposits_stored_total",
			Help: "Total number of deposit upserts",
		},
		[]string{"event"},
	)

	DepositsInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_deposits_invalidated_total",
			Help: "Deposits marked invalid by the reorg check",
		},
	)

	ReorgChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_reorg_checks_total",
			Help: "Total number of reorg check passes",
		},
	)

	// NotificationsSent counts delivered notifications per transport
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_notifications_sent_total",
			Help: "Total number of notifications delivered",
		},
		[]string{"transport"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_notifications_failed_total",
			Help: "Total number of notification deliveries that failed",
		},
		[]string{"transport"},
	)

	// NotificationsDropped counts events rejected by a full dispatch queue
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_notifications_dropped_total",
			Help: "Notifications dropped because the dispatch queue was full",
		},
	)

	// DBConnectionPoolUsage is the ratio of in-use to open connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_db_connection_pool_usage",
			Help: "Ratio of in-use database connections",
		},
	)

	FailedBlocksQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_failed_blocks_queued",
			Help: "Blocks waiting in the retry queue",
		},
	)
)
