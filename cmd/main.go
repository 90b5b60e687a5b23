/*
Package main is the entry point for the CrystalMed presence server.

It is responsible for loading configuration, initializing the global logging system,
wiring the presence registry, signaling relay, and connection hub together, starting
the HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) for a smooth shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cucfkpoesie/CrystalMed/internal/app/presence"
	"github.com/cucfkpoesie/CrystalMed/internal/app/session"
	"github.com/cucfkpoesie/CrystalMed/internal/configs"
	"github.com/cucfkpoesie/CrystalMed/internal/handler"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/logx"
	"github.com/cucfkpoesie/CrystalMed/internal/pkg/metrics"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("static_dir", cfg.StaticDir).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire the core: hub for fan-out, registry over the hub, relay over the registry.
	stats := metrics.NewCollector(prometheus.DefaultRegisterer)
	hub := session.NewHub(stats)
	registry := presence.NewRegistry(hub, stats)
	relay := presence.NewRelay(registry, stats)

	deps := &handler.AppDeps{
		Hub:      hub,
		Registry: registry,
		Relay:    relay,
		Config:   cfg,
	}

	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("CrystalMed Presence Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	logx.Info("Server gracefully stopped.")
}
