// Package api provides the HTTP API for AgriAI.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai/internal/api/handler"
	"github.com/agriai/agriai/internal/api/middleware"
	"github.com/agriai/agriai/internal/featureflags"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	// ExpensiveRateLimit and StandardRateLimit are requests per minute per
	// IP. Zero keeps the package defaults.
	ExpensiveRateLimit int
	StandardRateLimit  int

	Advisor            handler.Advisor
	ReportService      handler.ReportService
	FeatureFlagService *featureflags.Service
	Health             handler.HealthSource
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "agriai-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
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

	var degradations handler.DegradationSource
	if cfg.FeatureFlagService != nil {
		degradations = cfg.FeatureFlagService
	}
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Health, degradations)
	advisoryHandler := handler.NewAdvisoryHandler(cfg.Advisor)
	reportHandler := handler.NewReportHandler(cfg.ReportService)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	aiBudget := middleware.AIBudget
	if cfg.ExpensiveRateLimit > 0 {
		aiBudget = middleware.PerMinute(aiBudget.Name, cfg.ExpensiveRateLimit)
	}
	standardBudget := middleware.StandardBudget
	if cfg.StandardRateLimit > 0 {
		standardBudget = middleware.PerMinute(standardBudget.Name, cfg.StandardRateLimit)
	}
	aiThrottle := middleware.Throttle(aiBudget)
	standardThrottle := middleware.Throttle(standardBudget)
	jsonOnly := middleware.AllowContentTypes("application/json")

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardThrottle).Get("/status", opsHandler.SystemStatus)
		})

		// AI-backed endpoints
		r.Group(func(r chi.Router) {
			r.Use(aiThrottle)
			r.With(jsonOnly).Post("/recommendations", advisoryHandler.Recommend)
			r.With(middleware.AllowContentTypes("application/json", "multipart/form-data")).
				Post("/pest-analyses", advisoryHandler.AnalyzePest)
			r.With(jsonOnly).Post("/chat", advisoryHandler.Chat)
			r.With(jsonOnly).Post("/yield-predictions", advisoryHandler.PredictYield)
			r.With(jsonOnly).Post("/reports", reportHandler.GenerateReport)
		})

		r.With(standardThrottle).Get("/reports/{farmId}", reportHandler.GetLatestReport)

		r.Route("/admin", func(r chi.Router) {
			r.Use(standardThrottle)
			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.With(jsonOnly).Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
