package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// StoreOperationLatency records document store latency by collection and operation.
	StoreOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platefeed_store_operation_seconds",
		Help:    "Document store operation latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "operation"})

	// PostsCreated counts successfully authored posts.
	PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "platefeed_posts_created_total",
		Help: "Total number of posts created",
	})

	// MenuMerges counts dish submissions by outcome ("new" or "merged").
	MenuMerges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_menu_merges_total",
		Help: "Dish submissions folded into restaurant menus by outcome",
	}, []string{"outcome"})

	// Toggles counts toggle operations by kind (follow, like, favorite) and direction (on, off).
	Toggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_toggles_total",
		Help: "Toggle operations by kind and resulting state",
	}, []string{"kind", "direction"})

	// MediaBytesIngested counts bytes written to blob storage by folder.
	MediaBytesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_media_bytes_ingested_total",
		Help: "Bytes persisted to blob storage by folder",
	}, []string{"folder"})

	// PushDeliveries counts push notification attempts by result.
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_push_deliveries_total",
		Help: "Push notification sends by result",
	}, []string{"result"})

	// WebSocketConnections is the gauge of open activity stream connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "platefeed_websocket_connections",
		Help: "Number of open activity stream connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "platefeed_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"reason"})
)

// TrackStoreOperation returns a function that records latency when called (e.g. defer).
func TrackStoreOperation(collection, operation string) func() {
	start := time.Now()
	return func() {
		StoreOperationLatency.WithLabelValues(collection, operation).Observe(time.Since(start).Seconds())
	}
}

// RecordToggle increments the toggle counter for kind with the resulting state.
func RecordToggle(kind string, on bool) {
	direction := "off"
	if on {
		direction = "on"
	}
	Toggles.WithLabelValues(kind, direction).Inc()
}
