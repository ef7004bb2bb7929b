package domain

import "time"

// ConnectionState is the lifecycle state of one connection handle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateClosed       ConnectionState = "closed"
	StateFailed       ConnectionState = "failed"
)

// Terminal reports whether the state permits no further transitions.
func (s ConnectionState) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// ConnectionOptions are the per-call options accepted by Connect. Zero
// values mean "inherit from the tenant config"; EnableClassification is a
// pointer so an explicit false can override a tenant-wide true.
type ConnectionOptions struct {
	TenantID             string
	EnableClassification *bool
	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
	QueueCapacity        int
	SecurityToken        string
}

// EffectiveOptions is the fully resolved configuration a handle runs with,
// produced by the tenant resolver. All fields are concrete.
type EffectiveOptions struct {
	TenantID              string
	CollaborationEnabled  bool
	ClassificationEnabled bool
	MaxReconnectAttempts  int
	BaseReconnectDelay    time.Duration
	BackoffFactor         float64
	MaxReconnectDelay     time.Duration
	QueueCapacity         int
	SecurityToken         string
}

// FeatureFlags are the tenant-wide defaults merged under per-call options.
type FeatureFlags struct {
	CollaborationEnabled  bool
	ClassificationEnabled bool
	MaxReconnectAttempts  int
	BaseReconnectDelay    time.Duration
	BackoffFactor         float64
	MaxReconnectDelay     time.Duration
	QueueCapacity         int
}

// TenantConfig groups the feature flags for one tenant. Read-mostly; cached
// by the resolver until explicitly invalidated.
type TenantConfig struct {
	TenantID string
	Flags    FeatureFlags
}

// ReconnectState tracks the backoff position of one handle. Reset on a
// successful open, advanced on every unclean close.
type ReconnectState struct {
	Attempt       int
	LastAttemptAt time.Time
	NextDelay     time.Duration
}

// MetricSnapshot is a point-in-time view of the aggregate counters. Never
// persisted.
type MetricSnapshot struct {
	Sent              int64
	Received          int64
	Errors            int64
	Dropped           int64
	ErrorRate         float64
	AvgLatency        time.Duration
	ActiveConnections int
	PerConnection     map[string]ConnectionStats
}

// ConnectionStats are the rolling counters for a single connection.
type ConnectionStats struct {
	Sent     int64
	Received int64
	Errors   int64
	Dropped  int64
}
