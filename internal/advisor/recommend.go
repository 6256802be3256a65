package advisor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/sagemaker"
)

// inferenceBenefits is the tag set attached to every inference-sourced candidate.
var inferenceBenefits = []string{"AI-optimized", "High yield potential", "Market demand"}

const reasonDemoMode = "demo mode is forced"

// MapInferenceCrop converts an inference crop into the shared candidate shape.
func MapInferenceCrop(crop sagemaker.RecommendedCrop, season agronomy.Season) agronomy.RecommendationCandidate {
	benefits := make([]string, len(inferenceBenefits))
	copy(benefits, inferenceBenefits)
	return agronomy.RecommendationCandidate{
		Name:          crop.Name,
		Suitability:   agronomy.ScoreFromProbability(crop.SuitabilityScore),
		ExpectedYield: agronomy.FormatYield(crop.ExpectedYield),
		Profit:        agronomy.FormatProfit(crop.ExpectedYield),
		Season:        string(season),
		Benefits:      benefits,
		Source:        agronomy.SourceInference,
	}
}

// Recommend runs one recommendation refresh: the conversational call, then the
// inference call, merged by position and capped. Only invalid input returns
// an error; every other failure yields a degraded, non-empty set.
func (s *Service) Recommend(ctx context.Context, req agronomy.RecommendationRequest) (*agronomy.MergedRecommendationSet, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "advisor.recommend")
	defer span.End()

	set := s.merge(ctx, req)
	set.GeneratedAt = s.now()

	span.SetAttributes(
		attribute.Int("recommendations.count", len(set.Candidates)),
		attribute.Bool("recommendations.degraded", set.Degraded),
	)
	s.logger.Debug().
		Str("soil", string(req.Soil.Type)).
		Str("season", string(req.Weather.Season)).
		Str("region", string(req.Region)).
		Int("count", len(set.Candidates)).
		Bool("degraded", set.Degraded).
		Msg("recommendation refresh complete")
	return set, nil
}

func (s *Service) merge(ctx context.Context, req agronomy.RecommendationRequest) *agronomy.MergedRecommendationSet {
	if s.flags.ForceDemoMode(ctx) {
		return fallbackSet(reasonDemoMode)
	}
	if s.conv == nil || s.inference == nil {
		return fallbackSet("ai services are not configured")
	}

	generated, err := s.conv.GenerateRecommendations(ctx, req)
	if err != nil {
		return s.mergeWithoutConversational(ctx, req, err)
	}

	out := s.inference.RecommendCrops(ctx, sagemaker.CropFeaturesFrom(req))

	candidates := make([]agronomy.RecommendationCandidate, 0, len(generated.Candidates)+len(out.Value.RecommendedCrops))
	candidates = append(candidates, generated.Candidates...)

	set := &agronomy.MergedRecommendationSet{Insights: generated.Narrative}
	switch out.Status {
	case sagemaker.StatusLive:
		candidates = appendMapped(candidates, out.Value, req.Weather.Season)
	case sagemaker.StatusDegraded:
		candidates = appendMapped(candidates, out.Value, req.Weather.Season)
		set.Degraded = true
		set.DegradedReason = "inference recommendations are demo data: " + out.ReasonText()
	default:
		set.Degraded = true
		set.DegradedReason = "inference recommendations unavailable: " + out.ReasonText()
	}

	set.Candidates = capCandidates(candidates)
	if len(set.Candidates) == 0 {
		return fallbackSet("no recommendations were produced")
	}
	if set.Insights == "" {
		set.Insights = agronomy.DefaultInsights
	}
	return set
}

// mergeWithoutConversational handles a failed conversational call. The
// default is total fallback; with single-source degradation enabled a live
// inference result is kept on its own.
func (s *Service) mergeWithoutConversational(ctx context.Context, req agronomy.RecommendationRequest, convErr error) *agronomy.MergedRecommendationSet {
	reason := fmt.Sprintf("conversational recommendations failed (%s)", agronomy.Kind(convErr))
	s.logger.Warn().Err(convErr).Str("kind", agronomy.Kind(convErr)).Msg("conversational recommendations failed")

	if !s.flags.DegradeToSingleSource(ctx) {
		s.metrics.RecordFallback("advisor", "recommend", agronomy.Kind(convErr))
		return fallbackSet(reason)
	}

	out := s.inference.RecommendCrops(ctx, sagemaker.CropFeaturesFrom(req))
	if !out.Live() {
		s.metrics.RecordFallback("advisor", "recommend", agronomy.Kind(convErr))
		return fallbackSet(reason + "; inference " + string(out.Status))
	}

	candidates := capCandidates(appendMapped(nil, out.Value, req.Weather.Season))
	if len(candidates) == 0 {
		return fallbackSet(reason)
	}
	return &agronomy.MergedRecommendationSet{
		Candidates:     candidates,
		Insights:       agronomy.DefaultInsights,
		Degraded:       true,
		DegradedReason: reason + "; showing inference recommendations only",
	}
}

func appendMapped(dst []agronomy.RecommendationCandidate, p sagemaker.CropRecommendationPrediction, season agronomy.Season) []agronomy.RecommendationCandidate {
	for _, crop := range p.RecommendedCrops {
		dst = append(dst, MapInferenceCrop(crop, season))
	}
	return dst
}

// capCandidates truncates to MaxRecommendations in insertion order and clamps
// every score.
func capCandidates(c []agronomy.RecommendationCandidate) []agronomy.RecommendationCandidate {
	if len(c) > agronomy.MaxRecommendations {
		c = c[:agronomy.MaxRecommendations]
	}
	for i := range c {
		c[i].Suitability = agronomy.ClampScore(float64(c[i].Suitability))
	}
	return c
}

func fallbackSet(reason string) *agronomy.MergedRecommendationSet {
	return &agronomy.MergedRecommendationSet{
		Candidates:     agronomy.FallbackRecommendations(),
		Insights:       agronomy.FallbackAdvisory,
		Degraded:       true,
		DegradedReason: reason,
	}
}
