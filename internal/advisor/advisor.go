// Package advisor combines the conversational and inference adapters into the
// advisory operations: the recommendation merge, the pest-analysis selector,
// the chat assistant and yield prediction. Every operation degrades to static
// data instead of failing.
package advisor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/featureflags"
	"github.com/agriai/agriai/internal/provider/resilience"
	"github.com/agriai/agriai/internal/sagemaker"
)

const tracerName = "github.com/agriai/agriai/internal/advisor"

// Conversational is the conversational model adapter.
type Conversational interface {
	Converse(ctx context.Context, turns []agronomy.Turn, systemContext string) (string, error)
	GenerateRecommendations(ctx context.Context, req agronomy.RecommendationRequest) (*agronomy.GeneratedRecommendations, error)
	AnalyzeImageForPest(ctx context.Context, image []byte, cropType string) (*agronomy.PestAnalysisResult, error)
}

// Inference is the managed inference adapter.
type Inference interface {
	RecommendCrops(ctx context.Context, features sagemaker.CropFeatures) sagemaker.Outcome[sagemaker.CropRecommendationPrediction]
	DetectPests(ctx context.Context, image []byte) sagemaker.Outcome[sagemaker.PestDetectionPrediction]
	PredictYield(ctx context.Context, features agronomy.YieldFeatures) sagemaker.Outcome[agronomy.YieldPrediction]
}

// Flags are the runtime switches the advisor consults on every call.
type Flags interface {
	ForceDemoMode(ctx context.Context) bool
	DegradeToSingleSource(ctx context.Context) bool
	ChatHistoryTurns(ctx context.Context) int
}

// staticFlags is used when no flag service is configured.
type staticFlags struct{}

func (staticFlags) ForceDemoMode(context.Context) bool         { return false }
func (staticFlags) DegradeToSingleSource(context.Context) bool { return false }
func (staticFlags) ChatHistoryTurns(context.Context) int       { return featureflags.DefaultChatHistoryTurns }

// Config configures a Service.
type Config struct {
	Conversational Conversational
	Inference      Inference
	Flags          Flags
	Metrics        *resilience.ProviderMetrics
	Logger         zerolog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service runs the advisory operations.
type Service struct {
	conv      Conversational
	inference Inference
	flags     Flags
	metrics   *resilience.ProviderMetrics
	logger    zerolog.Logger
	now       func() time.Time
	tracer    trace.Tracer
}

// NewService creates an advisor service.
func NewService(cfg Config) *Service {
	flags := cfg.Flags
	if flags == nil {
		flags = staticFlags{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		conv:      cfg.Conversational,
		inference: cfg.Inference,
		flags:     flags,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With().Str("component", "advisor").Logger(),
		now:       now,
		tracer:    otel.Tracer(tracerName),
	}
}
