// Package api provides the HTTP API for reachmap.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/reachmap/reachmap/internal/api/handler"
	"github.com/reachmap/reachmap/internal/api/middleware"
	"github.com/reachmap/reachmap/internal/provider/resilience"
	"github.com/reachmap/reachmap/internal/workspace"
)

// Default per-minute limits when RouterConfig leaves them zero.
const (
	DefaultRequestsPerMinute = 600
	DefaultBuildsPerMinute   = 30
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string

	// Metrics records HTTP server metrics (optional).
	Metrics *middleware.Metrics
	// WorkbenchMetrics records builds, exports and workspace counts (optional).
	WorkbenchMetrics handler.WorkbenchMetrics

	Isochrones handler.IsochroneService
	Workspaces *workspace.Store
	Registry   *resilience.Registry
	// Subsystems are probed by /v1/ops/ready and /v1/ops/status.
	Subsystems map[string]handler.Pinger

	// RequestsPerMinute limits every client IP; negative disables.
	RequestsPerMinute int
	// BuildsPerMinute limits provider-bound calls per workspace (or per IP for
	// the stateless endpoint); negative disables.
	BuildsPerMinute int
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "reachmap-api"
	}
	perMinute := cfg.RequestsPerMinute
	if perMinute == 0 {
		perMinute = DefaultRequestsPerMinute
	}
	buildsPerMinute := cfg.BuildsPerMinute
	if buildsPerMinute == 0 {
		buildsPerMinute = DefaultBuildsPerMinute
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID(cfg.Logger))
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	workspaceCount := func() int { return 0 }
	if cfg.Workspaces != nil {
		workspaceCount = cfg.Workspaces.Len
	}

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Registry:   cfg.Registry,
		Subsystems: cfg.Subsystems,
		Workspaces: workspaceCount,
	})
	isochroneHandler := handler.NewIsochroneHandler(cfg.Isochrones)
	workspaceHandler := handler.NewWorkspaceHandler(cfg.Workspaces, cfg.WorkbenchMetrics)

	standardRateLimit := middleware.RateLimitByIP(middleware.PerMinute(perMinute))
	computeRateLimit := middleware.RateLimitByIP(middleware.PerMinute(buildsPerMinute))
	buildRateLimit := middleware.RateLimitByWorkspace(middleware.PerMinute(buildsPerMinute))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Get("/profiles", isochroneHandler.Profiles)
			r.With(computeRateLimit).Post("/isochrones:compute", isochroneHandler.Compute)

			r.Post("/workspaces", workspaceHandler.Create)
			r.Route("/workspaces/{workspaceId}", func(r chi.Router) {
				r.Get("/", workspaceHandler.Get)
				r.Delete("/", workspaceHandler.Delete)

				r.Route("/points", func(r chi.Router) {
					r.Post("/", workspaceHandler.AddPoint)
					r.Put("/{pointId}", workspaceHandler.SetPoint)
					r.Delete("/{pointId}", workspaceHandler.RemovePoint)
					r.Post("/{pointId}/pick", workspaceHandler.PickPoint)
				})

				r.Post("/map/click", workspaceHandler.MapClick)
				r.Put("/map/viewport", workspaceHandler.SetViewport)
				r.Post("/outside-click", workspaceHandler.OutsideClick)

				r.Route("/profile", func(r chi.Router) {
					r.Post("/toggle", workspaceHandler.ToggleProfile)
					r.Post("/search", workspaceHandler.SearchProfile)
					r.Post("/select", workspaceHandler.SelectProfile)
				})

				r.Put("/range", workspaceHandler.SetRange)
				r.Put("/options", workspaceHandler.SetOptions)

				r.With(buildRateLimit).Post("/isochrones:build", workspaceHandler.Build)
				r.Get("/isochrones/export", workspaceHandler.Export)
			})
		})
	})

	return r
}
