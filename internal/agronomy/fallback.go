package agronomy

// User-facing texts for degraded paths.
const (
	FallbackAdvisory = "Using cached recommendations. Please check your AWS configuration for live AI analysis."
	DefaultInsights  = "AI analysis completed successfully."
	ChatApology      = "I apologize, but I'm having trouble connecting to the AI service right now. Please check your AWS configuration and try again."
)

// Service labels attached to pest analyses.
const (
	ServiceBedrock   = "Amazon Bedrock"
	ServiceSageMaker = "Amazon SageMaker"
	ServiceDemo      = "Demo Mode (Configure AWS credentials)"
	ServiceError     = "Error"
)

// FallbackRecommendations returns the static two-entry set used when the
// recommendation sequence fails. Each call returns a fresh slice.
func FallbackRecommendations() []RecommendationCandidate {
	return []RecommendationCandidate{
		{
			Name:          "Tomatoes",
			Suitability:   95,
			ExpectedYield: "45-60 tons/ha",
			Profit:        "$8,500/ha",
			Season:        "Summer",
			Benefits:      []string{"High market demand", "Good storage life", "Multiple harvests"},
			Source:        SourceFallback,
		},
		{
			Name:          "Bell Peppers",
			Suitability:   85,
			ExpectedYield: "25-35 tons/ha",
			Profit:        "$6,200/ha",
			Season:        "Summer",
			Benefits:      []string{"Premium pricing", "Export potential", "Greenhouse compatible"},
			Source:        SourceFallback,
		},
	}
}

// DemoPestResult is returned when neither pest source produced a usable result.
func DemoPestResult() *PestAnalysisResult {
	return &PestAnalysisResult{
		PestIdentified: "Aphids",
		Confidence:     94,
		Severity:       SeverityMedium,
		Description:    "Green peach aphids detected on leaf surface",
		Treatment: []string{
			"Apply neem oil spray in early morning or evening",
			"Introduce beneficial insects like ladybugs",
			"Monitor plant weekly for re-infestation",
			"Ensure proper plant spacing for air circulation",
		},
		Prevention: []string{
			"Maintain proper plant spacing",
			"Regular inspection of plants",
			"Use companion planting strategies",
		},
		Service:    ServiceDemo,
		Provenance: ProvenanceDemo,
	}
}

// PestErrorResult is returned when the analysis could not be attempted.
func PestErrorResult() *PestAnalysisResult {
	return &PestAnalysisResult{
		PestIdentified: "Analysis Error",
		Confidence:     0,
		Severity:       SeverityUnknown,
		Description:    "Unable to analyze image. Please check your AWS configuration.",
		Treatment:      []string{"Consult local agricultural expert"},
		Prevention:     []string{"Regular crop monitoring"},
		Service:        ServiceError,
		Provenance:     ProvenanceError,
	}
}
