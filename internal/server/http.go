// Package server exposes the gateway over a small HTTP admin surface.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds server configuration options.
type Config struct {
	// MetricsEnabled exposes the Prometheus endpoint.
	MetricsEnabled bool
	// MetricsEndpoint is the HTTP path for metrics (default /metrics).
	MetricsEndpoint string
}

// Server wraps the Echo server.
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// New creates the HTTP server over the gateway and coordinator.
func New(gw GatewayAPI, sync SyncAPI, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(gw, sync)

	e.Use(middleware.Recover())

	e.GET("/healthz", handler.Health)
	if cfg != nil && cfg.MetricsEnabled {
		metricsPath := cfg.MetricsEndpoint
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	e.POST("/v1/query", handler.Query)
	e.POST("/v1/sync", handler.Sync)
	e.GET("/v1/stats", handler.Stats)

	return &Server{echo: e, handler: handler}
}

// Start begins listening on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
