// Package connection owns the per-endpoint connection lifecycle: the state
// machine, reconnection policy, outbound queueing, and the registry that
// maps endpoints to live handles.
package connection

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/classify"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/router"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/tenant"
)

// ManagerConfig wires the manager's collaborators and limits.
type ManagerConfig struct {
	Dialer         Dialer
	Clock          clockwork.Clock
	Hook           *classify.Hook
	Router         *router.Router
	Aggregator     *metrics.Aggregator
	Resolver       *tenant.Resolver
	MaxConnections int64
	ConnectRate    float64
	ConnectBurst   int
}

// Manager is the public facade of the realtime subsystem. It maps endpoints
// to handles, serializes create/teardown per endpoint, and enforces the
// process-wide connection cap.
type Manager struct {
	dialer     Dialer
	clock      clockwork.Clock
	hook       *classify.Hook
	router     *router.Router
	agg        *metrics.Aggregator
	resolver   *tenant.Resolver
	global     *GlobalLimiter
	tenantRate *TenantRateLimiter

	// mu guards the entries map only; each entry carries its own gate so
	// distinct endpoints never block each other.
	mu      sync.Mutex
	entries map[string]*endpointEntry
}

type endpointEntry struct {
	// gate serializes connect/teardown for one endpoint.
	gate   sync.Mutex
	handle *Handle
}

func NewManager(cfg ManagerConfig) *Manager {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		dialer:     cfg.Dialer,
		clock:      clock,
		hook:       cfg.Hook,
		router:     cfg.Router,
		agg:        cfg.Aggregator,
		resolver:   cfg.Resolver,
		global:     NewGlobalLimiter(cfg.MaxConnections),
		tenantRate: NewTenantRateLimiter(cfg.ConnectRate, cfg.ConnectBurst),
		entries:    make(map[string]*endpointEntry),
	}
}

// Connect creates (or replaces) the handle for an endpoint and starts its
// connection attempt. A prior non-terminal handle for the same endpoint is
// torn down first.
func (m *Manager) Connect(ctx context.Context, endpoint string, opts domain.ConnectionOptions) (*Handle, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("%w: empty endpoint", domain.ErrTransport)
	}

	effective := m.resolver.Resolve(ctx, opts.TenantID, opts)

	if !effective.CollaborationEnabled {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollaborationDisabled, effective.TenantID)
	}

	if !m.tenantRate.Allow(effective.TenantID) {
		metrics.ConnectionsRejected.WithLabelValues("rate_limit").Inc()
		return nil, fmt.Errorf("%w: connect rate for tenant %s", domain.ErrResourceExhausted, effective.TenantID)
	}

	entry := m.entry(endpoint)
	entry.gate.Lock()
	defer entry.gate.Unlock()

	m.mu.Lock()
	prior := entry.handle
	m.mu.Unlock()

	if prior != nil && !prior.Status().Terminal() {
		prior.Disconnect()
	}
	if prior != nil {
		m.cleanup(prior)
	}

	if !m.global.Acquire() {
		metrics.ConnectionsRejected.WithLabelValues("global_limit").Inc()
		return nil, fmt.Errorf("%w: connection cap %d reached", domain.ErrResourceExhausted, m.global.Max())
	}

	h := newHandle(handleConfig{
		endpoint:   endpoint,
		opts:       effective,
		dialer:     m.dialer,
		clock:      m.clock,
		hook:       m.hook,
		router:     m.router,
		agg:        m.agg,
		onTerminal: m.handleTerminated,
	})

	m.mu.Lock()
	entry.handle = h
	m.mu.Unlock()

	m.agg.ConnectionOpened(endpoint)
	h.start()
	return h, nil
}

// Send hands a message to an endpoint's handle. Fire and forget: the call
// never blocks on the transport.
func (m *Manager) Send(endpoint string, msg *domain.Message) error {
	h := m.lookup(endpoint)
	if h == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}
	return h.Send(msg)
}

// Disconnect tears down an endpoint's handle from any state.
func (m *Manager) Disconnect(endpoint string) error {
	entry := m.entry(endpoint)
	entry.gate.Lock()
	defer entry.gate.Unlock()

	m.mu.Lock()
	h := entry.handle
	m.mu.Unlock()
	if h == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}

	h.Disconnect()
	m.cleanup(h)
	return nil
}

// GetStatus returns the lifecycle state of an endpoint's handle.
func (m *Manager) GetStatus(endpoint string) (domain.ConnectionState, error) {
	h := m.lookup(endpoint)
	if h == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}
	return h.Status(), nil
}

// Subscribe registers a handler for a message type on an endpoint.
func (m *Manager) Subscribe(endpoint, msgType string, handler router.Handler) (router.SubscriptionID, error) {
	if m.lookup(endpoint) == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}
	return m.router.Subscribe(endpoint, msgType, handler), nil
}

// Unsubscribe removes a previously registered handler.
func (m *Manager) Unsubscribe(endpoint, msgType string, id router.SubscriptionID) {
	m.router.Unsubscribe(endpoint, msgType, id)
}

// OnEvent registers a lifecycle event listener for an endpoint.
func (m *Manager) OnEvent(endpoint string, l domain.EventListener) error {
	h := m.lookup(endpoint)
	if h == nil {
		return fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, endpoint)
	}
	h.AddListener(l)
	return nil
}

// Snapshot returns the current aggregate metrics.
func (m *Manager) Snapshot() domain.MetricSnapshot {
	return m.agg.Snapshot()
}

// Shutdown disconnects every live handle. Waits for teardown or ctx expiry.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.entries))
	for _, entry := range m.entries {
		if entry.handle != nil {
			handles = append(handles, entry.handle)
		}
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, h := range handles {
			wg.Add(1)
			go func(h *Handle) {
				defer wg.Done()
				if !h.Status().Terminal() {
					h.Disconnect()
				}
				m.cleanup(h)
			}(h)
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown interrupted: %w", ctx.Err())
	}
}

func (m *Manager) entry(endpoint string) *endpointEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[endpoint]
	if !ok {
		entry = &endpointEntry{}
		m.entries[endpoint] = entry
	}
	return entry
}

func (m *Manager) lookup(endpoint string) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[endpoint]
	if !ok {
		return nil
	}
	return entry.handle
}

// handleTerminated runs when a handle reaches a terminal state on its own
// (failed, peer close). Terminal handles stay registered so their status
// remains queryable until a fresh connect replaces them.
func (m *Manager) handleTerminated(h *Handle) {
	m.cleanup(h)
}

// cleanup releases the resources tied to one handle. Idempotent; the
// registry and the handle's own terminal path may both reach it.
func (m *Manager) cleanup(h *Handle) {
	h.cleanupOnce.Do(func() {
		m.global.Release()
		m.agg.ConnectionClosed(h.endpoint)
		m.router.DropEndpoint(h.endpoint)
	})
}
