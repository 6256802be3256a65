package sagemaker

import "github.com/agriai/agriai/internal/agronomy"

// Target names one of the managed inference models.
type Target string

const (
	TargetCropRecommendation Target = "crop-recommendation"
	TargetPestDetection      Target = "pest-detection"
	TargetYieldPrediction    Target = "yield-prediction"
)

// Targets lists every known target.
var Targets = []Target{TargetCropRecommendation, TargetPestDetection, TargetYieldPrediction}

// DefaultEndpoints maps each target to its default endpoint name.
func DefaultEndpoints() map[Target]string {
	return map[Target]string{
		TargetCropRecommendation: "crop-recommendation-endpoint",
		TargetPestDetection:      "pest-detection-endpoint",
		TargetYieldPrediction:    "yield-prediction-endpoint",
	}
}

// CropFeatures is the feature record of the crop recommendation target.
type CropFeatures struct {
	SoilType        agronomy.SoilType `json:"soil_type"`
	PHLevel         float64           `json:"ph_level"`
	MoistureContent float64           `json:"moisture_content"`
	TemperatureAvg  float64           `json:"temperature_avg"`
	RainfallMM      float64           `json:"rainfall_mm"`
	Season          agronomy.Season   `json:"season"`
	LocationLat     float64           `json:"location_lat"`
	LocationLng     float64           `json:"location_lng"`
	FarmSize        float64           `json:"farm_size"`
}

// CropFeaturesFrom flattens a recommendation request into endpoint features.
func CropFeaturesFrom(req agronomy.RecommendationRequest) CropFeatures {
	return CropFeatures{
		SoilType:        req.Soil.Type,
		PHLevel:         req.Soil.PH,
		MoistureContent: req.Soil.Moisture,
		TemperatureAvg:  req.Weather.Temperature,
		RainfallMM:      req.Weather.Rainfall,
		Season:          req.Weather.Season,
		LocationLat:     req.Location.Latitude,
		LocationLng:     req.Location.Longitude,
		FarmSize:        req.FarmSize,
	}
}

// RecommendedCrop is one ranked crop from the recommendation target.
type RecommendedCrop struct {
	Name             string  `json:"name"`
	SuitabilityScore float64 `json:"suitability_score"` // 0..1
	ExpectedYield    float64 `json:"expected_yield"`    // tons/ha
}

// CropRecommendationPrediction is the crop recommendation target output.
type CropRecommendationPrediction struct {
	RecommendedCrops    []RecommendedCrop `json:"recommended_crops"`
	RiskFactors         []string          `json:"risk_factors"`
	OptimalPlantingDate string            `json:"optimal_planting_date"`
}

type pestFeatures struct {
	ImageData   string `json:"image_data"`
	ImageFormat string `json:"image_format"`
}

// DetectedPest is one detection with its bounding region [x1, y1, x2, y2].
type DetectedPest struct {
	PestName    string    `json:"pest_name"`
	Confidence  float64   `json:"confidence"` // 0..1
	BoundingBox []float64 `json:"bounding_box"`
	Severity    string    `json:"severity"`
}

// PestDetectionPrediction is the pest detection target output.
type PestDetectionPrediction struct {
	DetectedPests            []DetectedPest `json:"detected_pests"`
	PlantHealthScore         float64        `json:"plant_health_score"` // 0..1
	TreatmentRecommendations []string       `json:"treatment_recommendations"`
}

type yieldPrediction struct {
	PredictedYield      float64  `json:"predicted_yield"`
	Confidence          float64  `json:"confidence"`
	ContributingFactors []string `json:"contributing_factors"`
	Recommendations     []string `json:"recommendations"`
}

func (p yieldPrediction) toDomain() agronomy.YieldPrediction {
	return agronomy.YieldPrediction{
		PredictedYield:  p.PredictedYield,
		Confidence:      p.Confidence,
		Factors:         nonNil(p.ContributingFactors),
		Recommendations: nonNil(p.Recommendations),
	}
}

// DemoCropRecommendation is substituted when the recommendation target fails.
func DemoCropRecommendation() CropRecommendationPrediction {
	return CropRecommendationPrediction{
		RecommendedCrops: []RecommendedCrop{
			{Name: "Tomatoes", SuitabilityScore: 0.95, ExpectedYield: 55.5},
			{Name: "Bell Peppers", SuitabilityScore: 0.88, ExpectedYield: 32.1},
			{Name: "Lettuce", SuitabilityScore: 0.82, ExpectedYield: 28.7},
		},
		RiskFactors:         []string{"pest_pressure", "weather_variability"},
		OptimalPlantingDate: "2024-03-15",
	}
}

// DemoPestDetection is substituted when the pest detection target fails.
func DemoPestDetection() PestDetectionPrediction {
	return PestDetectionPrediction{
		DetectedPests: []DetectedPest{{
			PestName:    "Aphids",
			Confidence:  0.94,
			BoundingBox: []float64{120, 80, 200, 160},
			Severity:    "medium",
		}},
		PlantHealthScore: 0.72,
		TreatmentRecommendations: []string{
			"Apply neem oil spray",
			"Introduce beneficial insects",
			"Monitor weekly",
		},
	}
}

// DemoYieldPrediction is substituted when the yield target fails.
func DemoYieldPrediction() agronomy.YieldPrediction {
	return agronomy.YieldPrediction{
		PredictedYield:  45.2,
		Confidence:      0.87,
		Factors:         []string{"soil_moisture", "temperature", "fertilizer_usage"},
		Recommendations: []string{"Increase irrigation frequency", "Monitor soil nutrients"},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
