// Package main provides the entrypoint for the reachmap API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/reachmap/reachmap/internal/api"
	"github.com/reachmap/reachmap/internal/api/handler"
	"github.com/reachmap/reachmap/internal/api/middleware"
	"github.com/reachmap/reachmap/internal/config"
	"github.com/reachmap/reachmap/internal/export"
	"github.com/reachmap/reachmap/internal/isochrone"
	"github.com/reachmap/reachmap/internal/isochrone/openrouteservice"
	"github.com/reachmap/reachmap/internal/provider/resilience"
	"github.com/reachmap/reachmap/internal/telemetry"
	"github.com/reachmap/reachmap/internal/worker"
	"github.com/reachmap/reachmap/internal/workspace"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("reachmap api exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	serviceName := cfg.Telemetry.ServiceName
	log := cfg.Logger(serviceName, Version)
	log.Info().
		Str("build_time", BuildTime).
		Msg("starting reachmap API")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		return err
	}
	workbenchMetrics, err := telemetry.NewWorkbenchMetrics()
	if err != nil {
		return err
	}

	// Provider
	if cfg.ORS.APIKey == "" {
		log.Warn().Msg("ors.api_key is not set - isochrone requests will be rejected by the provider")
	}
	registry := resilience.NewRegistry()
	maxRetries := cfg.ORS.MaxRetries
	ors := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:     cfg.ORS.APIKey,
		BaseURL:    cfg.ORS.BaseURL,
		Timeout:    cfg.ORS.Timeout,
		MaxRetries: &maxRetries,
		Registry:   registry,
		Logger:     log,
	})

	// Result cache
	subsystems := map[string]handler.Pinger{}
	var cache isochrone.Cache
	if cfg.Valkey.Addr != "" {
		vc, err := isochrone.NewValkeyCache(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			return err
		}
		defer vc.Close()
		cache = vc
		subsystems["valkey"] = vc
		log.Info().Str("addr", cfg.Valkey.Addr).Msg("valkey isochrone cache connected")
	} else {
		cache = isochrone.NewMemoryCache(time.Minute)
	}

	limits := isochrone.DefaultLimits
	limits.MaxMinutes = cfg.Isochrone.MaxMinutes
	limits.MaxMeters = cfg.Isochrone.MaxMeters

	service := isochrone.NewService(isochrone.ServiceConfig{
		Provider:     ors,
		Cache:        cache,
		Logger:       log,
		CacheTTL:     cfg.Isochrone.CacheTTL,
		FetchTimeout: cfg.Isochrone.FetchTimeout,
		Limits:       &limits,
		Metrics:      providerMetrics,
	})

	// Export events
	var publisher export.Publisher
	if cfg.PubSub.Enabled() {
		pub, err := export.NewPubSubPublisher(ctx, export.PubSubConfig{
			ProjectID: cfg.PubSub.ProjectID,
			Topic:     cfg.PubSub.Topic,
			Logger:    log,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close pubsub publisher")
			}
		}()
		publisher = pub
		log.Info().Str("topic", cfg.PubSub.Topic).Msg("export events enabled")
	}

	store := workspace.NewStore(workspace.StoreConfig{
		MaxWorkspaces: cfg.Workspace.MaxWorkspaces,
		IdleTTL:       cfg.Workspace.IdleTTL,
		Template: workspace.Config{
			Service:      service.Direct(),
			Limits:       &limits,
			PreviewDelay: cfg.Workspace.PreviewDelay,
			Publisher:    publisher,
		},
		Logger: log,
	})
	defer store.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	sweeper := worker.NewSweepJob(worker.SweepConfig{
		Store:    store,
		Interval: cfg.Workspace.SweepInterval,
		Metrics:  workbenchMetrics,
		Logger:   log,
	})
	go sweeper.Start(sweepCtx)

	router := api.NewRouter(api.RouterConfig{
		Version:           Version,
		BuildTime:         BuildTime,
		Logger:            log,
		ServiceName:       serviceName,
		Metrics:           httpMetrics,
		WorkbenchMetrics:  workbenchMetrics,
		Isochrones:        service,
		Workspaces:        store,
		Registry:          registry,
		Subsystems:        subsystems,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		BuildsPerMinute:   cfg.RateLimit.BuildsPerMinute,
		RequireTLS:        cfg.Server.RequireTLS,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
