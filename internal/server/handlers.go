package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"syncgate/internal/core"
)

// GatewayAPI is the gateway surface the handlers need.
type GatewayAPI interface {
	Execute(ctx context.Context, query string, params map[string]any) (*core.Result, error)
	Stats(ctx context.Context) (core.CacheStats, error)
}

// SyncAPI triggers reconciliation passes.
type SyncAPI interface {
	Sync(ctx context.Context) error
}

// Handler holds the HTTP handlers.
type Handler struct {
	gateway GatewayAPI
	sync    SyncAPI
}

// NewHandler creates a handler over the gateway and coordinator.
func NewHandler(gw GatewayAPI, sync SyncAPI) *Handler {
	return &Handler{gateway: gw, sync: sync}
}

type queryRequest struct {
	Query  string         `json:"query"`
	Params map[string]any `json:"params,omitempty"`
}

// Query handles POST /v1/query.
func (h *Handler) Query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewValidationError("invalid request body: "+err.Error()))
	}

	result, err := h.gateway.Execute(c.Request().Context(), req.Query, req.Params)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Sync handles POST /v1/sync.
func (h *Handler) Sync(c echo.Context) error {
	if err := h.sync.Sync(c.Request().Context()); err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Stats handles GET /v1/stats.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.gateway.Stats(c.Request().Context())
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Health handles GET /healthz.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError maps gateway errors to HTTP responses.
func handleError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	kind := "internal_error"

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		kind = string(coreErr.Kind)
		switch coreErr.Kind {
		case core.KindValidation:
			status = http.StatusBadRequest
		case core.KindOfflineNoCache, core.KindNonCacheableOffline:
			status = http.StatusServiceUnavailable
		case core.KindRemote:
			status = http.StatusBadGateway
		case core.KindStorage:
			status = http.StatusInternalServerError
		}
	}

	return c.JSON(status, map[string]any{
		"error": map[string]string{
			"kind":    kind,
			"message": err.Error(),
		},
	})
}
