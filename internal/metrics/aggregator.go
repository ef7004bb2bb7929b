package metrics

import (
	"sync"
	"time"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// EventType discriminates the counters kept per connection.
type EventType int

const (
	EventSent EventType = iota
	EventReceived
	EventError
	EventDropped
)

// Aggregator keeps rolling per-connection counters and exposes them as
// point-in-time snapshots. Record never blocks on anything but its own
// mutex; no I/O happens under the lock.
type Aggregator struct {
	mu      sync.Mutex
	perConn map[string]*domain.ConnectionStats
	totals  domain.ConnectionStats
	active  int

	// latency is an exponentially weighted moving average.
	latency      time.Duration
	latencySeen  bool
	latencyAlpha float64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		perConn:      make(map[string]*domain.ConnectionStats),
		latencyAlpha: 0.2,
	}
}

// Record increments the counter for one connection event.
func (a *Aggregator) Record(endpoint string, ev EventType) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats, ok := a.perConn[endpoint]
	if !ok {
		stats = &domain.ConnectionStats{}
		a.perConn[endpoint] = stats
	}

	switch ev {
	case EventSent:
		stats.Sent++
		a.totals.Sent++
		MessagesSent.Inc()
	case EventReceived:
		stats.Received++
		a.totals.Received++
		MessagesReceived.Inc()
	case EventError:
		stats.Errors++
		a.totals.Errors++
	case EventDropped:
		stats.Dropped++
		a.totals.Dropped++
	}
}

// ObserveLatency folds one processing duration into the rolling average.
func (a *Aggregator) ObserveLatency(d time.Duration) {
	DispatchDuration.Observe(d.Seconds())

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.latencySeen {
		a.latency = d
		a.latencySeen = true
		return
	}
	a.latency = time.Duration(float64(a.latency)*(1-a.latencyAlpha) + float64(d)*a.latencyAlpha)
}

// ConnectionOpened registers a new live handle.
func (a *Aggregator) ConnectionOpened(endpoint string) {
	a.mu.Lock()
	a.active++
	a.mu.Unlock()
	ActiveConnections.Inc()
}

// ConnectionClosed unregisters a handle and drops its rolling counters.
func (a *Aggregator) ConnectionClosed(endpoint string) {
	a.mu.Lock()
	if a.active > 0 {
		a.active--
	}
	delete(a.perConn, endpoint)
	a.mu.Unlock()
	ActiveConnections.Dec()
}

// Snapshot returns the current aggregate state. It copies the per-connection
// map; callers may retain the result freely.
func (a *Aggregator) Snapshot() domain.MetricSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	perConn := make(map[string]domain.ConnectionStats, len(a.perConn))
	for endpoint, stats := range a.perConn {
		perConn[endpoint] = *stats
	}

	var errorRate float64
	if total := a.totals.Sent + a.totals.Received; total > 0 {
		errorRate = float64(a.totals.Errors) / float64(total)
	}

	return domain.MetricSnapshot{
		Sent:              a.totals.Sent,
		Received:          a.totals.Received,
		Errors:            a.totals.Errors,
		Dropped:           a.totals.Dropped,
		ErrorRate:         errorRate,
		AvgLatency:        a.latency,
		ActiveConnections: a.active,
		PerConnection:     perConn,
	}
}
