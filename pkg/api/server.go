// Package api serves the gateway's single listener: WebSocket upgrades on
// the open path space and the management HTTP surface (/@connections, /health)
// on the same port. Protocol selection happens per request.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/gatemock/gatemock/pkg/config"
	"github.com/gatemock/gatemock/pkg/gateway"
)

// Server is the HTTP/WebSocket front of the gateway.
type Server struct {
	cfg       *config.Config
	manager   *gateway.Manager
	echo      *echo.Echo
	http      *http.Server
	startedAt time.Time
	logger    *slog.Logger
}

// NewServer wires routes and middleware. Start must be called to listen.
func NewServer(cfg *config.Config, manager *gateway.Manager) *Server {
	s := &Server{
		cfg:       cfg,
		manager:   manager,
		startedAt: time.Now(),
		logger:    slog.With("component", "api"),
	}

	e := echo.New()
	e.Use(securityHeaders())
	if cfg.Verbose {
		e.Use(requestLogger(s.logger))
	}

	e.GET("/health", s.healthHandler)

	e.POST("/@connections/:id", s.postToConnectionHandler)
	e.GET("/@connections/:id", s.getConnectionHandler)
	e.DELETE("/@connections/:id", s.deleteConnectionHandler)

	// Everything else is WebSocket upgrade space; plain requests of any
	// method 404 there.
	e.Any("/", s.wsHandler)
	e.Any("/*", s.wsHandler)

	s.echo = e
	return s
}

// Handler exposes the router for tests driving the server via httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr and blocks until the listener stops.
func (s *Server) Start(addr string) error {
	s.http = &http.Server{
		Addr:    addr,
		Handler: s.echo,
		// No global timeouts: WebSocket sessions are long-lived by design;
		// the gateway's own clocks bound their lifetime.
	}
	return s.http.ListenAndServe()
}

// Shutdown stops the listener. Session teardown is the Manager's job and
// must happen before this is called.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
