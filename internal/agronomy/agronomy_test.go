package agronomy_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriai/agriai/internal/agronomy"
)

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{in: 0, want: 0},
		{in: 49.4, want: 49},
		{in: 95.5, want: 96},
		{in: 100, want: 100},
		{in: 130, want: 100},
		{in: -4, want: 0},
		{in: math.NaN(), want: 0},
		{in: math.Inf(1), want: 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			assert.Equal(t, tt.want, agronomy.ClampScore(tt.in))
		})
	}
}

func TestScoreFromProbability(t *testing.T) {
	assert.Equal(t, 96, agronomy.ScoreFromProbability(0.955))
	assert.Equal(t, 88, agronomy.ScoreFromProbability(0.88))
	assert.Equal(t, 100, agronomy.ScoreFromProbability(1.7))
	assert.Equal(t, 0, agronomy.ScoreFromProbability(-0.2))
}

func TestFormatYieldAndProfit(t *testing.T) {
	assert.Equal(t, "55.5 tons/ha", agronomy.FormatYield(55.5))
	assert.Equal(t, "32.1 tons/ha", agronomy.FormatYield(32.1))
	assert.Equal(t, "40 tons/ha", agronomy.FormatYield(40))

	assert.Equal(t, "$55,500/ha", agronomy.FormatProfit(55.5))
	assert.Equal(t, "$32,100/ha", agronomy.FormatProfit(32.1))
	assert.Equal(t, "$28,700/ha", agronomy.FormatProfit(28.7))
	assert.Equal(t, "$1,234,568/ha", agronomy.FormatProfit(1234.5678))
	assert.Equal(t, "$500/ha", agronomy.FormatProfit(0.5))
}

func TestNewRecommendationRequest_Defaults(t *testing.T) {
	req := agronomy.NewRecommendationRequest("", "", "")

	assert.Equal(t, agronomy.SoilLoamy, req.Soil.Type)
	assert.Equal(t, agronomy.SeasonSummer, req.Weather.Season)
	assert.Equal(t, agronomy.ClimateTemperate, req.Region)
	assert.Equal(t, 6.8, req.Soil.PH)
	assert.Equal(t, 68.0, req.Soil.Moisture)
	assert.Equal(t, "medium", req.Soil.Nutrients.Phosphorus)
	assert.Equal(t, 150.0, req.Weather.Rainfall)
	assert.Equal(t, 40.7128, req.Location.Latitude)
	assert.Equal(t, 10.0, req.FarmSize)
	require.NoError(t, req.Validate())
}

func TestRecommendationRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *agronomy.RecommendationRequest)
	}{
		{name: "unknown soil", mutate: func(r *agronomy.RecommendationRequest) { r.Soil.Type = "peat" }},
		{name: "unknown season", mutate: func(r *agronomy.RecommendationRequest) { r.Weather.Season = "autumn" }},
		{name: "unknown zone", mutate: func(r *agronomy.RecommendationRequest) { r.Region = "polar" }},
		{name: "ph out of range", mutate: func(r *agronomy.RecommendationRequest) { r.Soil.PH = 15 }},
		{name: "moisture out of range", mutate: func(r *agronomy.RecommendationRequest) { r.Soil.Moisture = 101 }},
		{name: "bad latitude", mutate: func(r *agronomy.RecommendationRequest) { r.Location.Latitude = 91 }},
		{name: "negative farm", mutate: func(r *agronomy.RecommendationRequest) { r.FarmSize = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := agronomy.NewRecommendationRequest(agronomy.SoilClay, agronomy.SeasonWinter, agronomy.ClimateArid)
			tt.mutate(&req)
			err := req.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, agronomy.ErrInvalidInput)
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in    string
		want  agronomy.Severity
		known bool
	}{
		{in: "medium", want: agronomy.SeverityMedium, known: true},
		{in: " HIGH ", want: agronomy.SeverityHigh, known: true},
		{in: "Low", want: agronomy.SeverityLow, known: true},
		{in: "severe", want: agronomy.SeverityHigh, known: true},
		{in: "critical", want: agronomy.SeverityUnknown, known: false},
		{in: "", want: agronomy.SeverityUnknown, known: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := agronomy.ParseSeverity(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, ok)
		})
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "", agronomy.Kind(nil))
	assert.Equal(t, "Timeout", agronomy.Kind(fmt.Errorf("invoke: %w", agronomy.ErrTimeout)))
	assert.Equal(t, "MalformedResponse", agronomy.Kind(fmt.Errorf("decode: %w", agronomy.ErrMalformedResponse)))
	assert.Equal(t, "InvalidInput", agronomy.Kind(agronomy.ErrInvalidInput))
	assert.Equal(t, "ServiceUnavailable", agronomy.Kind(errors.New("connection refused")))
}

func TestFallbackRecommendations(t *testing.T) {
	set := agronomy.FallbackRecommendations()
	require.Len(t, set, 2)
	assert.Equal(t, "Tomatoes", set[0].Name)
	assert.Equal(t, 95, set[0].Suitability)
	assert.Equal(t, "$8,500/ha", set[0].Profit)
	assert.Equal(t, "Bell Peppers", set[1].Name)
	assert.Equal(t, 85, set[1].Suitability)
	assert.Equal(t, "$6,200/ha", set[1].Profit)

	// Callers may mutate their copy.
	set[0].Name = "changed"
	assert.Equal(t, "Tomatoes", agronomy.FallbackRecommendations()[0].Name)
}

func TestDemoAndErrorPestResults(t *testing.T) {
	demo := agronomy.DemoPestResult()
	assert.Equal(t, agronomy.ProvenanceDemo, demo.Provenance)
	assert.Equal(t, 94, demo.Confidence)
	assert.Len(t, demo.Treatment, 4)
	assert.Len(t, demo.Prevention, 3)

	errResult := agronomy.PestErrorResult()
	assert.Equal(t, agronomy.ProvenanceError, errResult.Provenance)
	assert.Equal(t, "Analysis Error", errResult.PestIdentified)
	assert.Equal(t, 0, errResult.Confidence)
	assert.Equal(t, agronomy.SeverityUnknown, errResult.Severity)
}
