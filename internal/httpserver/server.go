// Package httpserver exposes the control-plane API of the realtime
// subsystem: connection management, message submission, tenant
// reconfiguration, health, and prometheus metrics. Requests arrive already
// authenticated from the fronting proxy.
package httpserver

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/connection"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
)

// connectionManager is the subset of the connection manager used by the
// server.
type connectionManager interface {
	Connect(ctx context.Context, endpoint string, opts domain.ConnectionOptions) (*connection.Handle, error)
	Send(endpoint string, msg *domain.Message) error
	Disconnect(endpoint string) error
	GetStatus(endpoint string) (domain.ConnectionState, error)
	Snapshot() domain.MetricSnapshot
}

// tenantStore persists tenant configs and propagates invalidations.
type tenantStore interface {
	Upsert(ctx context.Context, cfg domain.TenantConfig) error
}

// invalidator drops cached tenant resolutions locally and cross-instance.
type invalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string)
}

// HealthCheck is a named readiness probe.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo    *echo.Echo
	manager connectionManager
	tenants tenantStore
	inval   invalidator
	checks  []HealthCheck
}

func NewServer(manager connectionManager, tenants tenantStore, inval invalidator, checks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:    e,
		manager: manager,
		tenants: tenants,
		inval:   inval,
		checks:  checks,
	}
	srv.registerRoutes()
	return srv
}

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.requestLoggerMiddleware())
	s.echo.Use(middleware.Recover())

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/connections", s.handleConnect)
	v1.GET("/connections/*", s.handleStatus)
	v1.DELETE("/connections/*", s.handleDisconnect)
	v1.POST("/messages", s.handleSend)
	v1.GET("/snapshot", s.handleSnapshot)
	v1.PUT("/tenants/:tenantID/config", s.handleTenantConfig)
}

func (s *Server) requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}

// Start begins serving on the given address. Blocks until shutdown.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	result := map[string]string{}

	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[check.Name] = err.Error()
			continue
		}
		result[check.Name] = "ok"
	}

	return c.JSON(status, result)
}
