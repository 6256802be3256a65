package advisor_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/bedrock"
	"github.com/agriai/agriai/internal/sagemaker"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newAdvisor(conv advisor.Conversational, inf advisor.Inference, flags advisor.Flags) *advisor.Service {
	return advisor.NewService(advisor.Config{
		Conversational: conv,
		Inference:      inf,
		Flags:          flags,
		Logger:         zerolog.Nop(),
		Now:            func() time.Time { return fixedNow },
	})
}

func defaultRequest() agronomy.RecommendationRequest {
	return agronomy.NewRecommendationRequest(agronomy.SoilLoamy, agronomy.SeasonSummer, agronomy.ClimateTemperate)
}

func conversationalCandidates(names ...string) *agronomy.GeneratedRecommendations {
	gen := &agronomy.GeneratedRecommendations{Narrative: "Loamy soil suits warm-season crops."}
	for i, n := range names {
		gen.Candidates = append(gen.Candidates, agronomy.RecommendationCandidate{
			Name:          n,
			Suitability:   90 - i,
			ExpectedYield: "10 tons/ha",
			Source:        agronomy.SourceConversational,
		})
	}
	return gen
}

func names(set *agronomy.MergedRecommendationSet) []string {
	out := make([]string, 0, len(set.Candidates))
	for _, c := range set.Candidates {
		out = append(out, c.Name)
	}
	return out
}

func TestMapInferenceCrop_RoundTrip(t *testing.T) {
	got := advisor.MapInferenceCrop(sagemaker.RecommendedCrop{
		Name:             "Tomatoes",
		SuitabilityScore: 0.955,
		ExpectedYield:    55.5,
	}, agronomy.SeasonSummer)

	assert.Equal(t, "Tomatoes", got.Name)
	assert.Equal(t, 96, got.Suitability)
	assert.Equal(t, "55.5 tons/ha", got.ExpectedYield)
	assert.Equal(t, "$55,500/ha", got.Profit)
	assert.Equal(t, "summer", got.Season)
	assert.Equal(t, []string{"AI-optimized", "High yield potential", "Market demand"}, got.Benefits)
	assert.Equal(t, agronomy.SourceInference, got.Source)
}

func TestMapInferenceCrop_ClampsOutOfRangeScores(t *testing.T) {
	assert.Equal(t, 100, advisor.MapInferenceCrop(sagemaker.RecommendedCrop{SuitabilityScore: 1.7}, "").Suitability)
	assert.Equal(t, 0, advisor.MapInferenceCrop(sagemaker.RecommendedCrop{SuitabilityScore: -0.2}, "").Suitability)
}

func TestRecommend_MergesInInsertionOrderAndCaps(t *testing.T) {
	conv := &fakeConversational{generated: conversationalCandidates("Okra", "Squash")}
	inf := &fakeInference{crops: liveCrops(
		sagemaker.RecommendedCrop{Name: "Melon", SuitabilityScore: 0.99, ExpectedYield: 30},
		sagemaker.RecommendedCrop{Name: "Beans", SuitabilityScore: 0.5, ExpectedYield: 5},
		sagemaker.RecommendedCrop{Name: "Corn", SuitabilityScore: 0.7, ExpectedYield: 9},
	)}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Okra", "Squash", "Melon", "Beans"}, names(set), "A before B, no re-ranking")
	assert.Equal(t, "Loamy soil suits warm-season crops.", set.Insights)
	assert.False(t, set.Degraded)
	assert.Empty(t, set.DegradedReason)
	assert.Equal(t, fixedNow, set.GeneratedAt)
	assert.Equal(t, 1, conv.genCalls)
	assert.Equal(t, 1, inf.cropCalls)
}

func TestRecommend_EmptyNarrativeUsesDefaultInsights(t *testing.T) {
	gen := conversationalCandidates("Okra")
	gen.Narrative = ""
	conv := &fakeConversational{generated: gen}
	inf := &fakeInference{crops: liveCrops(sagemaker.RecommendedCrop{Name: "Melon", SuitabilityScore: 0.9, ExpectedYield: 3})}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)
	assert.Equal(t, agronomy.DefaultInsights, set.Insights)
}

func TestRecommend_ConversationalFailureFallsBackTotally(t *testing.T) {
	// Pinned default: a failed conversational call discards everything, even
	// when the inference endpoint would have succeeded.
	conv := &fakeConversational{genErr: fmt.Errorf("%w: boom", agronomy.ErrServiceUnavailable)}
	inf := &fakeInference{crops: liveCrops(sagemaker.RecommendedCrop{Name: "Melon", SuitabilityScore: 0.9, ExpectedYield: 3})}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, agronomy.FallbackRecommendations(), set.Candidates)
	assert.Equal(t, agronomy.FallbackAdvisory, set.Insights)
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReason, "ServiceUnavailable")
	assert.Zero(t, inf.cropCalls, "inference is not called once the sequence has failed")
}

func TestRecommend_SingleSourceDegradation(t *testing.T) {
	conv := &fakeConversational{genErr: fmt.Errorf("%w: slow", agronomy.ErrTimeout)}
	inf := &fakeInference{crops: liveCrops(
		sagemaker.RecommendedCrop{Name: "A", SuitabilityScore: 0.9, ExpectedYield: 1},
		sagemaker.RecommendedCrop{Name: "B", SuitabilityScore: 0.8, ExpectedYield: 1},
		sagemaker.RecommendedCrop{Name: "C", SuitabilityScore: 0.7, ExpectedYield: 1},
		sagemaker.RecommendedCrop{Name: "D", SuitabilityScore: 0.6, ExpectedYield: 1},
		sagemaker.RecommendedCrop{Name: "E", SuitabilityScore: 0.5, ExpectedYield: 1},
	)}

	set, err := newAdvisor(conv, inf, fakeFlags{singleSource: true}).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, names(set))
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReason, "Timeout")
	assert.Equal(t, agronomy.DefaultInsights, set.Insights)
}

func TestRecommend_SingleSourceNeedsLiveInference(t *testing.T) {
	conv := &fakeConversational{genErr: agronomy.ErrServiceUnavailable}
	inf := &fakeInference{crops: degradedCrops(agronomy.ErrServiceUnavailable)}

	set, err := newAdvisor(conv, inf, fakeFlags{singleSource: true}).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, agronomy.FallbackRecommendations(), set.Candidates, "demo inference data never stands in for a live source")
	assert.Equal(t, agronomy.FallbackAdvisory, set.Insights)
}

func TestRecommend_BothFail(t *testing.T) {
	conv := &fakeConversational{genErr: agronomy.ErrServiceUnavailable}
	inf := &fakeInference{crops: degradedCrops(agronomy.ErrServiceUnavailable)}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, set.Candidates, 2)
	assert.Equal(t, "Tomatoes", set.Candidates[0].Name)
	assert.Equal(t, 95, set.Candidates[0].Suitability)
	assert.Equal(t, "$8,500/ha", set.Candidates[0].Profit)
	assert.Equal(t, "Bell Peppers", set.Candidates[1].Name)
	assert.Equal(t, 85, set.Candidates[1].Suitability)
	assert.Equal(t, "$6,200/ha", set.Candidates[1].Profit)
	assert.Equal(t, agronomy.FallbackAdvisory, set.Insights)
}

func TestRecommend_DegradedInferenceIsMergedButFlagged(t *testing.T) {
	conv := &fakeConversational{generated: conversationalCandidates("Okra")}
	inf := &fakeInference{crops: degradedCrops(errors.New("endpoint missing"))}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Okra", "Tomatoes", "Bell Peppers", "Lettuce"}, names(set))
	assert.True(t, set.Degraded)
	assert.Contains(t, set.DegradedReason, "demo data")
	assert.Contains(t, set.DegradedReason, "endpoint missing")
}

func TestRecommend_FailedInferenceKeepsConversational(t *testing.T) {
	conv := &fakeConversational{generated: conversationalCandidates("Okra", "Squash")}
	inf := &fakeInference{crops: failedCrops(agronomy.ErrServiceUnavailable)}

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"Okra", "Squash"}, names(set))
	assert.True(t, set.Degraded)
}

func TestRecommend_ForceDemoModeMakesNoCalls(t *testing.T) {
	conv := &fakeConversational{generated: conversationalCandidates("Okra")}
	inf := &fakeInference{crops: liveCrops(sagemaker.RecommendedCrop{Name: "Melon"})}

	set, err := newAdvisor(conv, inf, fakeFlags{forceDemo: true}).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	assert.Equal(t, agronomy.FallbackRecommendations(), set.Candidates)
	assert.Zero(t, conv.genCalls)
	assert.Zero(t, inf.cropCalls)
}

func TestRecommend_InvalidInput(t *testing.T) {
	req := defaultRequest()
	req.Soil.Type = "peat"

	_, err := newAdvisor(&fakeConversational{}, &fakeInference{}, nil).Recommend(context.Background(), req)
	assert.ErrorIs(t, err, agronomy.ErrInvalidInput)
}

func TestRecommend_SetIsBoundedAndScoresClamped(t *testing.T) {
	gen := conversationalCandidates("High", "Low")
	gen.Candidates[0].Suitability = 140
	gen.Candidates[1].Suitability = -20

	outcomes := map[string]sagemaker.Outcome[sagemaker.CropRecommendationPrediction]{
		"live":     liveCrops(sagemaker.RecommendedCrop{Name: "X", SuitabilityScore: 3, ExpectedYield: 1}),
		"degraded": degradedCrops(agronomy.ErrTimeout),
		"failed":   failedCrops(agronomy.ErrTimeout),
	}

	for _, soil := range agronomy.SoilTypes {
		for _, season := range agronomy.Seasons {
			for _, zone := range agronomy.ClimateZones {
				for name, out := range outcomes {
					for _, convFails := range []bool{false, true} {
						conv := &fakeConversational{generated: gen}
						if convFails {
							conv.genErr = agronomy.ErrServiceUnavailable
						}
						svc := newAdvisor(conv, &fakeInference{crops: out}, fakeFlags{singleSource: convFails})

						set, err := svc.Recommend(context.Background(), agronomy.NewRecommendationRequest(soil, season, zone))
						require.NoError(t, err)
						require.NotEmpty(t, set.Candidates, "%s/%s/%s inference=%s", soil, season, zone, name)
						require.LessOrEqual(t, len(set.Candidates), agronomy.MaxRecommendations)
						for _, c := range set.Candidates {
							require.GreaterOrEqual(t, c.Suitability, 0)
							require.LessOrEqual(t, c.Suitability, 100)
						}
					}
				}
			}
		}
	}
}

// Adapters wired with fake SDK invokers, conversational adapter in reference mode.

type titanInvoker struct{ text string }

func (i titanInvoker) InvokeModel(context.Context, *bedrockruntime.InvokeModelInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	body, _ := json.Marshal(map[string]any{"results": []map[string]string{{"outputText": i.text}}})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

type endpointInvoker struct{ prediction any }

func (i endpointInvoker) InvokeEndpoint(context.Context, *sagemakerruntime.InvokeEndpointInput, ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error) {
	body, _ := json.Marshal(map[string]any{"predictions": []any{i.prediction}})
	return &sagemakerruntime.InvokeEndpointOutput{Body: body}, nil
}

func TestRecommend_ReferenceScenarioWithAdapters(t *testing.T) {
	conv := bedrock.NewClient(bedrock.Config{
		Invoker: titanInvoker{text: "Warm season, loamy soil: tomatoes and peppers will thrive."},
		Mode:    bedrock.ModeReference,
		Logger:  zerolog.Nop(),
	})
	inf := sagemaker.NewClient(sagemaker.Config{
		Invoker: endpointInvoker{prediction: sagemaker.DemoCropRecommendation()},
		Logger:  zerolog.Nop(),
	})

	set, err := newAdvisor(conv, inf, nil).Recommend(context.Background(), defaultRequest())
	require.NoError(t, err)

	require.Len(t, set.Candidates, 4)
	assert.Equal(t, "Tomatoes", set.Candidates[0].Name)
	assert.Equal(t, 95, set.Candidates[0].Suitability)
	assert.Equal(t, agronomy.SourceConversational, set.Candidates[0].Source)
	assert.Equal(t, "Bell Peppers", set.Candidates[1].Name)
	assert.Equal(t, 88, set.Candidates[1].Suitability)
	assert.Equal(t, agronomy.SourceInference, set.Candidates[2].Source)
	assert.Equal(t, "55.5 tons/ha", set.Candidates[2].ExpectedYield)
	assert.Equal(t, "$55,500/ha", set.Candidates[2].Profit)
	assert.Equal(t, "Bell Peppers", set.Candidates[3].Name)
	assert.False(t, set.Degraded)
	assert.Equal(t, "Warm season, loamy soil: tomatoes and peppers will thrive.", set.Insights)
}
