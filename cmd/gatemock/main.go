// gatemock — local emulator of a managed cloud WebSocket gateway. Clients
// hold WebSocket sessions against this process; every session event becomes
// an HTTP POST to a configured backend integration, and the management API on
// the same port lets the backend push frames back or close clients.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gatemock/gatemock/pkg/api"
	"github.com/gatemock/gatemock/pkg/config"
	"github.com/gatemock/gatemock/pkg/gateway"
	"github.com/gatemock/gatemock/pkg/integration"
	"github.com/gatemock/gatemock/pkg/route"
	"github.com/gatemock/gatemock/pkg/version"
)

// shutdownTimeout bounds the whole graceful stop: session reaping first,
// then the listener.
const shutdownTimeout = 10 * time.Second

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("GATEMOCK_CONFIG", ""),
		"Path to YAML configuration file (optional)")
	flag.Parse()

	// Load .env from the working directory if present.
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	// 1. Resolve configuration (file → env → defaults).
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting gatemock",
		"version", version.Full(),
		"port", cfg.Port,
		"stage", cfg.Stage,
		"integration_mode", cfg.IntegrationMode,
		"routes", len(cfg.Routes))

	// 2. Compile the route selection expression against the integration table.
	selector, err := route.NewSelector(cfg.RouteSelectionExpression, cfg.Routes)
	if err != nil {
		slog.Error("Invalid route selection expression", "error", err)
		os.Exit(1)
	}

	// 3. Wire the dispatcher and the session manager.
	dispatcher := integration.NewDispatcher(cfg)
	manager := gateway.NewManager(cfg, dispatcher, selector)

	// 4. Start the single listener (WebSocket + management API).
	server := api.NewServer(cfg, manager)
	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		slog.Info("Listener started", "addr", addr, "domain", cfg.PublicDomain())
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("Listener error", "error", err)
			errCh <- err
		}
	}()

	// 5. Wait for shutdown signal or listener failure.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Listener error triggered shutdown", "error", err)
	}

	// 6. Graceful shutdown: close and reap every session, then stop the listener.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Session shutdown incomplete", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Listener shutdown failed", "error", err)
	}

	slog.Info("gatemock stopped")
}
