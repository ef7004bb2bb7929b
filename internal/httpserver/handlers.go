package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/domain"
	"github.com/OumaCavin/Jeseci-Smart-Learning-Platform-sub012/internal/tenant"
)

type connectRequest struct {
	Endpoint             string `json:"endpoint"`
	TenantID             string `json:"tenant_id"`
	EnableClassification *bool  `json:"enable_classification,omitempty"`
	MaxReconnectAttempts int    `json:"max_reconnect_attempts,omitempty"`
	BaseReconnectDelayMs int    `json:"base_reconnect_delay_ms,omitempty"`
	QueueCapacity        int    `json:"queue_capacity,omitempty"`
	SecurityToken        string `json:"security_token,omitempty"`
}

type connectionResponse struct {
	Endpoint string                 `json:"endpoint"`
	State    domain.ConnectionState `json:"state"`
}

func (s *Server) handleConnect(c echo.Context) error {
	var req connectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Endpoint == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint is required")
	}

	opts := domain.ConnectionOptions{
		TenantID:             req.TenantID,
		EnableClassification: req.EnableClassification,
		MaxReconnectAttempts: req.MaxReconnectAttempts,
		BaseReconnectDelay:   time.Duration(req.BaseReconnectDelayMs) * time.Millisecond,
		QueueCapacity:        req.QueueCapacity,
		SecurityToken:        req.SecurityToken,
	}

	h, err := s.manager.Connect(c.Request().Context(), req.Endpoint, opts)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, connectionResponse{
		Endpoint: h.Endpoint(),
		State:    h.Status(),
	})
}

func (s *Server) handleStatus(c echo.Context) error {
	endpoint := c.Param("*")
	state, err := s.manager.GetStatus(endpoint)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, connectionResponse{Endpoint: endpoint, State: state})
}

func (s *Server) handleDisconnect(c echo.Context) error {
	endpoint := c.Param("*")
	if err := s.manager.Disconnect(endpoint); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type sendRequest struct {
	Endpoint string          `json:"endpoint"`
	Type     string          `json:"type"`
	TenantID string          `json:"tenant_id,omitempty"`
	Priority domain.Priority `json:"priority,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

func (s *Server) handleSend(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Endpoint == "" || req.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "endpoint and type are required")
	}
	if req.Priority != "" && !req.Priority.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown priority")
	}

	msg := domain.NewMessage(req.Type, req.TenantID, req.Priority, req.Payload, time.Now())
	if err := s.manager.Send(req.Endpoint, msg); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusAccepted, map[string]string{"id": msg.ID})
}

func (s *Server) handleSnapshot(c echo.Context) error {
	return c.JSON(http.StatusOK, s.manager.Snapshot())
}

type tenantConfigRequest struct {
	CollaborationEnabled  bool    `json:"collaboration_enabled"`
	ClassificationEnabled bool    `json:"classification_enabled"`
	MaxReconnectAttempts  int     `json:"max_reconnect_attempts"`
	BaseReconnectDelayMs  int     `json:"base_reconnect_delay_ms"`
	BackoffFactor         float64 `json:"backoff_factor"`
	MaxReconnectDelayMs   int     `json:"max_reconnect_delay_ms"`
	QueueCapacity         int     `json:"queue_capacity"`
}

// handleTenantConfig is the explicit reconfigure call: it writes the tenant
// flags and invalidates cached resolutions everywhere.
func (s *Server) handleTenantConfig(c echo.Context) error {
	tenantID := c.Param("tenantID")
	if tenantID == "" || tenantID == tenant.DefaultTenantID {
		return echo.NewHTTPError(http.StatusBadRequest, "tenant id must be a non-default tenant")
	}

	var req tenantConfigRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cfg := domain.TenantConfig{
		TenantID: tenantID,
		Flags: domain.FeatureFlags{
			CollaborationEnabled:  req.CollaborationEnabled,
			ClassificationEnabled: req.ClassificationEnabled,
			MaxReconnectAttempts:  req.MaxReconnectAttempts,
			BaseReconnectDelay:    time.Duration(req.BaseReconnectDelayMs) * time.Millisecond,
			BackoffFactor:         req.BackoffFactor,
			MaxReconnectDelay:     time.Duration(req.MaxReconnectDelayMs) * time.Millisecond,
			QueueCapacity:         req.QueueCapacity,
		},
	}

	ctx := c.Request().Context()
	if err := s.tenants.Upsert(ctx, cfg); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store tenant config")
	}
	s.inval.InvalidateTenant(ctx, tenantID)

	return c.NoContent(http.StatusNoContent)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownEndpoint):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrResourceExhausted):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrCollaborationDisabled):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrHandleClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrTransport):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
