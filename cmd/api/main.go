// Package main provides the entrypoint for the AgriAI API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/agriai/agriai/internal/app"
	"github.com/agriai/agriai/internal/config"
	"github.com/agriai/agriai/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(config.New(), os.Getenv("AGRIAI_CONFIG_FILE"))
	log := app.NewLogger(os.Stdout, logLevel(cfg), app.APIServiceName, Version)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting AgriAI API")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    app.APIServiceName,
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
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load AWS configuration") //nolint:gocritic // telemetry flush is best-effort
	}

	services, err := app.Build(cfg, awsCfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}
	log.Info().
		Str("region", cfg.AWS.Region).
		Str("bedrock_mode", cfg.Bedrock.Mode).
		Bool("demo_fallback", cfg.SageMaker.DemoFallback).
		Msg("AI providers initialized")

	server, err := services.NewHTTPServer(Version, BuildTime)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build HTTP server")
	}

	log.Info().Str("addr", server.Addr).Msg("server listening")
	if err := app.Serve(ctx, server); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		return
	}
	log.Info().Msg("server stopped")
}

func logLevel(cfg *config.Config) string {
	if cfg == nil {
		return "info"
	}
	return cfg.LogLevel
}
