// Package app assembles the AgriAI services from configuration. The API
// server, the worker and the CLI share this wiring.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/bedrock"
	"github.com/agriai/agriai/internal/config"
	"github.com/agriai/agriai/internal/featureflags"
	"github.com/agriai/agriai/internal/provider/resilience"
	"github.com/agriai/agriai/internal/reports"
	"github.com/agriai/agriai/internal/sagemaker"
	"github.com/agriai/agriai/internal/worker"
)

// Services holds the wired application services.
type Services struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Registry  *resilience.Registry
	Bedrock   *bedrock.Client
	SageMaker *sagemaker.Client
	Flags     *featureflags.Service
	Advisor   *advisor.Service
	Reports   *reports.Service
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level, service, version string) zerolog.Logger {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// LoadAWSConfig resolves credentials from the default chain for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// Build wires the adapters, advisor, flags and report store. awsCfg supplies
// credentials and region for both runtimes.
func Build(cfg *config.Config, awsCfg aws.Config, log zerolog.Logger) (*Services, error) {
	metrics, err := resilience.NewProviderMetrics()
	if err != nil {
		return nil, fmt.Errorf("creating provider metrics: %w", err)
	}

	registry := resilience.NewRegistry()

	// Bedrock calls are never retried; SageMaker keeps the default backoff.
	bedrockHTTP := resilience.NewClient(resilience.ClientConfig{
		Name:           "bedrock",
		Timeout:        cfg.Bedrock.Timeout,
		DisableRetries: true,
		Registry:       registry,
		Logger:         &log,
	})
	sagemakerHTTP := resilience.NewClient(resilience.ClientConfig{
		Name:     "sagemaker",
		Timeout:  cfg.SageMaker.Timeout,
		Registry: registry,
		Logger:   &log,
	})

	bedrockClient := bedrock.NewClient(bedrock.Config{
		Invoker:     bedrock.NewRuntime(awsCfg, bedrockHTTP),
		ChatModelID: cfg.Bedrock.ChatModelID,
		TextModelID: cfg.Bedrock.TextModelID,
		Timeout:     cfg.Bedrock.Timeout,
		Mode:        bedrock.ResponseMode(cfg.Bedrock.Mode),
		Logger:      log,
		Metrics:     metrics,
		Registry:    registry,
	})

	sagemakerClient := sagemaker.NewClient(sagemaker.Config{
		Invoker: sagemaker.NewRuntime(awsCfg, sagemakerHTTP),
		Endpoints: map[sagemaker.Target]string{
			sagemaker.TargetCropRecommendation: cfg.SageMaker.CropEndpoint,
			sagemaker.TargetPestDetection:      cfg.SageMaker.PestEndpoint,
			sagemaker.TargetYieldPrediction:    cfg.SageMaker.YieldEndpoint,
		},
		Timeout:             cfg.SageMaker.Timeout,
		DisableDemoFallback: !cfg.SageMaker.DemoFallback,
		Logger:              log,
		Metrics:             metrics,
		Registry:            registry,
	})

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     log,
		CacheTTL:   cfg.Flags.CacheTTL,
	})

	advisorService := advisor.NewService(advisor.Config{
		Conversational: bedrockClient,
		Inference:      sagemakerClient,
		Flags:          flags,
		Metrics:        metrics,
		Logger:         log,
	})

	reportService := reports.NewService(reports.Config{
		Generator: bedrockClient,
		TTL:       cfg.Reports.TTL,
		Logger:    log,
	})

	return &Services{
		Config:    cfg,
		Logger:    log,
		Registry:  registry,
		Bedrock:   bedrockClient,
		SageMaker: sagemakerClient,
		Flags:     flags,
		Advisor:   advisorService,
		Reports:   reportService,
	}, nil
}

// ReportJob returns a report job sized from the worker config.
func (s *Services) ReportJob() *worker.ReportJob {
	return worker.NewReportJob(worker.ReportJobOptions{
		Config: worker.ReportJobConfig{
			Concurrency: s.Config.Worker.Concurrency,
			Timeout:     s.Config.Worker.FarmTimeout,
		},
		Logger:   s.Logger,
		Reporter: s.Reports,
	})
}

// Dispatcher returns the Pub/Sub job dispatcher over job and the provider
// registry.
func (s *Services) Dispatcher(job *worker.ReportJob) *worker.Dispatcher {
	return worker.NewDispatcher(worker.DispatcherConfig{
		ReportJob: job,
		Health:    s.Registry,
		Logger:    s.Logger,
	})
}

// ShutdownTimeout bounds graceful shutdown of servers and telemetry.
const ShutdownTimeout = 30 * time.Second
