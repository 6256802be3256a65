// Package main provides the entrypoint for the AgriAI report worker.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	"github.com/agriai/agriai/internal/api/response"
	"github.com/agriai/agriai/internal/app"
	"github.com/agriai/agriai/internal/config"
	"github.com/agriai/agriai/internal/telemetry"
	"github.com/agriai/agriai/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "agriai-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.New(), os.Getenv("AGRIAI_CONFIG_FILE"))
	level := "info"
	if cfg != nil {
		level = cfg.LogLevel
	}
	log := app.NewLogger(os.Stdout, level, serviceName, Version)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.PubSub.ProjectID == "" {
		log.Fatal().Msg("pubsub.project_id is required for the worker")
	}
	log.Info().Str("build_time", BuildTime).Msg("starting AgriAI worker")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.ShutdownTimeout)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS configuration") //nolint:gocritic // telemetry flush is best-effort
	}
	services, err := app.Build(cfg, awsCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}

	job := services.ReportJob()
	dispatcher := services.Dispatcher(job)

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		Dispatcher:       dispatcher,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}
	defer func() {
		if closeErr := handler.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("failed to close pubsub client")
		}
	}()

	// Health endpoint for the platform's liveness probe.
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		response.JSON(w, req, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"version":   Version,
			"reportJob": job.MetricsSnapshot(),
		})
	})
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if serveErr := app.Serve(ctx, server); serveErr != nil {
			log.Error().Err(serveErr).Msg("health server error")
		}
	}()

	if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("pubsub receive stopped")
		return
	}
	log.Info().Msg("worker stopped")
}
