package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection lifecycle metrics
var (
	// ActiveConnections tracks currently live (non-terminal) handles.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Number of live connection handles",
		},
	)

	// ConnectionTransitions tracks state machine transitions by target state.
	ConnectionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connection_transitions_total",
			Help: "Connection state transitions by target state",
		},
		[]string{"state"},
	)

	// ReconnectAttempts tracks scheduled reconnection attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total reconnection attempts scheduled",
		},
	)

	// ConnectionsRejected tracks connects refused at the cap or rate limit.
	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Connection requests rejected by limit type",
		},
		[]string{"reason"},
	)
)

// Message pipeline metrics
var (
	// MessagesSent tracks outbound messages written to the transport.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_sent_total",
			Help: "Total messages written to transports",
		},
	)

	// MessagesReceived tracks inbound messages read off transports.
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_messages_received_total",
			Help: "Total messages read from transports",
		},
	)

	// ProtocolErrors tracks inbound frames dropped for a malformed envelope.
	ProtocolErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_protocol_errors_total",
			Help: "Inbound frames dropped due to malformed envelope",
		},
	)

	// QueueOverflows tracks oldest-message evictions from outbound queues.
	QueueOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_queue_overflows_total",
			Help: "Outbound queue evictions due to overflow",
		},
	)

	// ClassifierFailures tracks annotator errors and timeouts.
	ClassifierFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_classifier_failures_total",
			Help: "Annotator failures by cause (error/timeout)",
		},
		[]string{"cause"},
	)

	// HandlerErrors tracks isolated subscriber callback failures.
	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handler_errors_total",
			Help: "Subscriber handler failures by message type",
		},
		[]string{"type"},
	)

	// UnroutedMessages tracks messages dropped for lack of a handler.
	UnroutedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_unrouted_messages_total",
			Help: "Messages dropped because no handler was registered",
		},
	)

	// DispatchDuration tracks classification plus dispatch latency.
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_dispatch_duration_seconds",
			Help:    "Inbound message processing duration in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// HistoryPublishFailures tracks failed persist-history notifications.
	HistoryPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_history_publish_failures_total",
			Help: "Failed fire-and-forget history notifications",
		},
	)
)

// Tenant resolver metrics
var (
	// TenantCacheHits tracks resolver cache hits.
	TenantCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_tenant_cache_hits_total",
			Help: "Tenant config resolutions served from cache",
		},
	)

	// TenantCacheMisses tracks resolver cache misses.
	TenantCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_tenant_cache_misses_total",
			Help: "Tenant config resolutions requiring a repository read",
		},
	)

	// TenantFallbacks tracks resolutions that fell back to the default tenant.
	TenantFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_tenant_fallbacks_total",
			Help: "Resolutions that used the default tenant config",
		},
	)
)
