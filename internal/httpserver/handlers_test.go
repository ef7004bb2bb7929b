package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/connection"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/metrics"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/router"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/tenant"
)

// stubTransport blocks reads until the handle closes it.
type stubTransport struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newStubTransport() *stubTransport {
	return &stubTransport{closed: make(chan struct{})}
}

func (t *stubTransport) ReadMessage() ([]byte, error) {
	<-t.closed
	return nil, io.EOF
}

func (t *stubTransport) WriteMessage(data []byte) error { return nil }

func (t *stubTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context, endpoint string, opts domain.EffectiveOptions) (connection.Transport, error) {
	return newStubTransport(), nil
}

type memoryTenantStore struct {
	mu      sync.Mutex
	upserts []domain.TenantConfig
	err     error
}

func (s *memoryTenantStore) Upsert(ctx context.Context, cfg domain.TenantConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.upserts = append(s.upserts, cfg)
	return nil
}

type recordingInvalidator struct {
	mu      sync.Mutex
	tenants []string
}

func (i *recordingInvalidator) InvalidateTenant(ctx context.Context, tenantID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tenants = append(i.tenants, tenantID)
}

type serverEnv struct {
	server  *Server
	manager *connection.Manager
	store   *memoryTenantStore
	inval   *recordingInvalidator
}

func newServerEnv(t *testing.T, mutate func(*connection.ManagerConfig), checks []HealthCheck) *serverEnv {
	t.Helper()

	cfg := connection.ManagerConfig{
		Dialer:         stubDialer{},
		Router:         router.New(nil),
		Aggregator:     metrics.NewAggregator(),
		Resolver:       tenant.NewResolver(nil),
		MaxConnections: 100,
		ConnectRate:    1000,
		ConnectBurst:   1000,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	manager := connection.NewManager(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	env := &serverEnv{
		manager: manager,
		store:   &memoryTenantStore{},
		inval:   &recordingInvalidator{},
	}
	env.server = NewServer(manager, env.store, env.inval, checks)
	return env
}

func (env *serverEnv) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (env *serverEnv) connect(t *testing.T, endpoint string) {
	t.Helper()
	rec := env.request(http.MethodPost, "/v1/connections",
		fmt.Sprintf(`{"endpoint":%q}`, endpoint))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestConnectEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodPost, "/v1/connections", `{"endpoint":"session/abc","tenant_id":"t1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp connectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "session/abc", resp.Endpoint)
	assert.NotEmpty(t, resp.State)
}

func TestConnectRejectsMissingEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodPost, "/v1/connections", `{"tenant_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnectMapsCapExhaustionTo429(t *testing.T) {
	env := newServerEnv(t, func(cfg *connection.ManagerConfig) {
		cfg.MaxConnections = 1
	}, nil)

	env.connect(t, "session/a")
	rec := env.request(http.MethodPost, "/v1/connections", `{"endpoint":"session/b"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestStatusEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.connect(t, "session/abc")

	require.Eventually(t, func() bool {
		rec := env.request(http.MethodGet, "/v1/connections/session/abc", "")
		if rec.Code != http.StatusOK {
			return false
		}
		var resp connectionResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return resp.State == domain.StateConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusUnknownEndpointIs404(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodGet, "/v1/connections/session/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDisconnectEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.connect(t, "session/abc")

	rec := env.request(http.MethodDelete, "/v1/connections/session/abc", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.request(http.MethodGet, "/v1/connections/session/abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp connectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.StateClosed, resp.State)
}

func TestDisconnectUnknownEndpointIs404(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodDelete, "/v1/connections/session/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSendEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.connect(t, "session/abc")

	rec := env.request(http.MethodPost, "/v1/messages",
		`{"endpoint":"session/abc","type":"chat.message","priority":"high","payload":{"text":"hi"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["id"])
}

func TestSendValidation(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.connect(t, "session/abc")

	rec := env.request(http.MethodPost, "/v1/messages", `{"endpoint":"session/abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "type is required")

	rec = env.request(http.MethodPost, "/v1/messages",
		`{"endpoint":"session/abc","type":"chat.message","priority":"urgent"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown priority")

	rec = env.request(http.MethodPost, "/v1/messages",
		`{"endpoint":"session/missing","type":"chat.message"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.connect(t, "session/abc")

	rec := env.request(http.MethodGet, "/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap domain.MetricSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.ActiveConnections)
}

func TestTenantConfigEndpoint(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodPut, "/v1/tenants/t1/config",
		`{"collaboration_enabled":true,"classification_enabled":true,"max_reconnect_attempts":4,"base_reconnect_delay_ms":250,"backoff_factor":1.5,"max_reconnect_delay_ms":30000,"queue_capacity":8}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	require.Len(t, env.store.upserts, 1)
	stored := env.store.upserts[0]
	assert.Equal(t, "t1", stored.TenantID)
	assert.True(t, stored.Flags.ClassificationEnabled)
	assert.Equal(t, 4, stored.Flags.MaxReconnectAttempts)
	assert.Equal(t, 250*time.Millisecond, stored.Flags.BaseReconnectDelay)
	assert.Equal(t, 8, stored.Flags.QueueCapacity)

	assert.Equal(t, []string{"t1"}, env.inval.tenants)
}

func TestTenantConfigRejectsDefaultTenant(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	rec := env.request(http.MethodPut, "/v1/tenants/default/config", `{"collaboration_enabled":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.store.upserts)
}

func TestTenantConfigStoreFailureIs500(t *testing.T) {
	env := newServerEnv(t, nil, nil)
	env.store.err = errors.New("database down")

	rec := env.request(http.MethodPut, "/v1/tenants/t1/config", `{"collaboration_enabled":true}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, env.inval.tenants, "no invalidation on a failed write")
}

func TestHealthEndpoint(t *testing.T) {
	healthy := []HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		{Name: "redis", Check: func(ctx context.Context) error { return nil }},
	}
	env := newServerEnv(t, nil, healthy)

	rec := env.request(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["postgres"])
	assert.Equal(t, "ok", body["redis"])
}

func TestHealthEndpointReportsFailingCheck(t *testing.T) {
	checks := []HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return nil }},
		{Name: "redis", Check: func(ctx context.Context) error { return errors.New("connection refused") }},
	}
	env := newServerEnv(t, nil, checks)

	rec := env.request(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["postgres"])
	assert.Contains(t, body["redis"], "connection refused")
}

func TestCorrelationHeaderIsEchoed(t *testing.T) {
	env := newServerEnv(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	rec := httptest.NewRecorder()
	env.server.Echo().ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", rec.Header().Get("X-Correlation-ID"))
}
