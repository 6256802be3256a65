package advisor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/sagemaker"
)

var (
	defaultDetectionTreatment  = []string{"Monitor closely", "Apply appropriate treatment"}
	defaultDetectionPrevention = []string{"Regular monitoring", "Maintain plant health", "Proper sanitation"}
)

// RemapDetection converts a pest detection prediction into the shared result
// shape. Only the first detection is used.
func RemapDetection(p sagemaker.PestDetectionPrediction) *agronomy.PestAnalysisResult {
	result := &agronomy.PestAnalysisResult{
		PestIdentified: "Unknown",
		Severity:       agronomy.SeverityMedium,
		Description:    fmt.Sprintf("Detected with %d%% plant health score", agronomy.ScoreFromProbability(p.PlantHealthScore)),
		Treatment:      append([]string(nil), defaultDetectionTreatment...),
		Prevention:     append([]string(nil), defaultDetectionPrevention...),
		Service:        agronomy.ServiceSageMaker,
		Provenance:     agronomy.ProvenanceSecondary,
	}
	if len(p.DetectedPests) > 0 {
		first := p.DetectedPests[0]
		if first.PestName != "" {
			result.PestIdentified = first.PestName
		}
		result.Confidence = agronomy.ScoreFromProbability(first.Confidence)
		if sev, ok := agronomy.ParseSeverity(first.Severity); ok && sev != agronomy.SeverityUnknown {
			result.Severity = sev
		}
	}
	if len(p.TreatmentRecommendations) > 0 {
		result.Treatment = append([]string(nil), p.TreatmentRecommendations...)
	}
	return result
}

// AnalyzePest issues the conversational and inference pest calls concurrently,
// waits for both, and surfaces exactly one result: primary, secondary, demo,
// or the error result for unusable input.
func (s *Service) AnalyzePest(ctx context.Context, image []byte, cropType string) *agronomy.PestAnalysisResult {
	if len(image) == 0 || ctx.Err() != nil {
		return agronomy.PestErrorResult()
	}

	ctx, span := s.tracer.Start(ctx, "advisor.analyze_pest")
	defer span.End()

	result := s.selectPest(ctx, image, cropType)
	span.SetAttributes(attribute.String("pest.provenance", string(result.Provenance)))
	return result
}

func (s *Service) selectPest(ctx context.Context, image []byte, cropType string) *agronomy.PestAnalysisResult {
	if s.flags.ForceDemoMode(ctx) || s.conv == nil || s.inference == nil {
		return agronomy.DemoPestResult()
	}

	var (
		primary    *agronomy.PestAnalysisResult
		primaryErr error
		secondary  sagemaker.Outcome[sagemaker.PestDetectionPrediction]
	)

	// Both calls run to completion; neither failure cancels the other.
	var g errgroup.Group
	g.Go(func() error {
		primary, primaryErr = s.conv.AnalyzeImageForPest(ctx, image, cropType)
		return nil
	})
	g.Go(func() error {
		secondary = s.inference.DetectPests(ctx, image)
		return nil
	})
	_ = g.Wait()

	if ctx.Err() != nil {
		return agronomy.PestErrorResult()
	}

	if primaryErr == nil && primary != nil {
		primary.Provenance = agronomy.ProvenancePrimary
		primary.Confidence = agronomy.ClampScore(float64(primary.Confidence))
		return primary
	}
	s.logger.Warn().Err(primaryErr).Str("kind", agronomy.Kind(primaryErr)).Msg("conversational pest analysis failed")

	if secondary.Live() {
		return RemapDetection(secondary.Value)
	}

	s.logger.Warn().
		Str("inference_status", string(secondary.Status)).
		Str("inference_reason", secondary.ReasonText()).
		Msg("no pest analysis source succeeded, returning demo result")
	s.metrics.RecordFallback("advisor", "analyze_pest", agronomy.Kind(primaryErr))
	return agronomy.DemoPestResult()
}
