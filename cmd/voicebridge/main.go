package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/voicebridge/voicebridge/internal/agent"
	"github.com/voicebridge/voicebridge/internal/api"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/dispatch"
	"github.com/voicebridge/voicebridge/internal/metrics"
	"github.com/voicebridge/voicebridge/internal/provider"
	"github.com/voicebridge/voicebridge/internal/route"
	"github.com/voicebridge/voicebridge/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	slog.Info("starting voicebridge",
		"http_port", cfg.HTTPPort,
		"provider", cfg.ProviderURL,
		"bridge_uri", cfg.SIPBridgeURI,
	)

	// Lookup store is optional: without it, number-to-assistant resolution
	// falls back to explicit ids and inbound calls cannot be routed.
	var lookup *store.Store
	if cfg.DatabaseURL != "" {
		lookup, err = store.Open(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to open lookup store", "error", err)
			os.Exit(1)
		}
		defer lookup.Close()
	} else {
		slog.Warn("no database-url configured, assistant lookups disabled")
	}

	// Metrics registry with process collectors plus our own instruments.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry, time.Now())

	// Telephony provider client.
	if !cfg.ProviderConfigured() {
		slog.Error("provider url and credentials are required")
		os.Exit(1)
	}
	client := provider.NewHTTPClient(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.ProviderAPISecret)
	client.Observe = m.ProviderRequest

	// Reconciliation pipeline. The store may be nil; resolution then only
	// honors explicit assistant ids.
	var mappings agent.MappingLookup
	var directory route.Directory
	if lookup != nil {
		mappings = lookup
		directory = lookup
	}
	resolver := agent.NewResolver(mappings)
	orchestrator := dispatch.NewOrchestrator(client, resolver,
		cfg.DefaultTrunkID, cfg.DefaultTrunkName, cfg.DefaultAgentName, cfg.RoomPrefix)

	// Inbound call routing.
	callRouter := route.NewRouter(directory, cfg.SIPBridgeURI, cfg.DialTimeoutSecs, cfg.StatusCallbackURL())

	adminSecret, err := cfg.AdminTokenSecretBytes()
	if err != nil {
		slog.Error("failed to load admin token secret", "error", err)
		os.Exit(1)
	}

	handler := api.NewServer(cfg, api.Deps{
		Assigner:    orchestrator,
		Calls:       callRouter,
		Directory:   directory,
		Metrics:     m,
		Gatherer:    registry,
		AdminSecret: adminSecret,
	})
	defer handler.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown. In-flight webhook responses must complete or the
	// provider drops the call.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("voicebridge stopped")
}
