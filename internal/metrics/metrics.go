package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konnekt_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "konnekt_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	ChatsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "konnekt_chats_created_total",
			Help: "Total pairwise chats created",
		},
	)

	MessagesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "konnekt_messages_stored_total",
			Help: "Total messages persisted",
		},
	)

	EventsFannedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "konnekt_events_fanned_out_total",
			Help: "Total push events delivered to live connections",
		},
	)

	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "konnekt_broadcast_drops_total",
			Help: "Total connections evicted for a full send buffer",
		},
	)

	// Live gateway metrics
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "konnekt_live_connections",
			Help: "Currently open WebSocket connections",
		},
	)

	OpenRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "konnekt_open_rooms",
			Help: "Rooms with at least one live connection",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "konnekt_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "konnekt_store_latency_seconds",
			Help:    "Chat store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"op"},
	)
)
