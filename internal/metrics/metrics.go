package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agri_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Negotiation metrics
	NegotiationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agri_negotiations_started_total",
			Help: "Total negotiations opened by wholesalers",
		},
	)

	OffersMade = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_offers_made_total",
			Help: "Total offers and counter-offers recorded",
		},
		[]string{"role"},
	)

	NegotiationsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_negotiations_closed_total",
			Help: "Negotiations moved to a terminal status",
		},
		[]string{"status"},
	)

	VersionConflicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_negotiation_version_conflicts_total",
			Help: "Concurrent writes that lost the optimistic version check",
		},
		[]string{"operation"},
	)

	// Chat metrics
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_chat_messages_total",
			Help: "Chat messages appended",
		},
		[]string{"type"},
	)

	// Realtime metrics
	BroadcastEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agri_broadcast_events_total",
			Help: "Realtime events handed to the broadcaster",
		},
		[]string{"type", "result"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agri_realtime_connections",
			Help: "Open websocket connections",
		},
	)

	PendingOutboxEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agri_outbox_pending_events",
			Help: "Unpublished negotiation events seen by the last relay pass",
		},
	)

	// Orders
	OrdersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agri_orders_created_total",
			Help: "Orders derived from accepted negotiations",
		},
	)
)
