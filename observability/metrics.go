package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gossip_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gossip_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Moderation metrics
	MessagesSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gossip_messages_submitted_total",
			Help: "Total messages accepted from the audience",
		},
	)

	ModerationTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gossip_moderation_transitions_total",
			Help: "Total moderation transitions",
		},
		[]string{"operation"},
	)

	SearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gossip_search_queries_total",
			Help: "Total room search queries",
		},
	)

	// Realtime metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gossip_events_published_total",
			Help: "Total domain events handed to the fan-out",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gossip_events_dropped_total",
			Help: "Total domain events dropped",
		},
		[]string{"reason"},
	)

	SinkLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gossip_sink_latency_seconds",
			Help:    "Time spent delivering one event to one sink",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gossip_realtime_connections",
			Help: "Open realtime connections",
		},
	)

	WatchedRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gossip_realtime_rooms",
			Help: "Rooms with at least one subscribed connection",
		},
	)

	ChannelLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gossip_channel_length",
			Help: "Items waiting in an internal channel",
		},
		[]string{"channel"},
	)

	ChannelCapacity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gossip_channel_capacity",
			Help: "Capacity of an internal channel",
		},
		[]string{"channel"},
	)

	// Process metrics
	ProcessRSS = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gossip_process_rss_bytes",
			Help: "Resident memory of the server process",
		},
	)

	ProcessCPU = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gossip_process_cpu_percent",
			Help: "CPU usage of the server process",
		},
	)

	WorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gossip_worker_restarts_total",
			Help: "Total supervised worker restarts",
		},
		[]string{"worker"},
	)
)
