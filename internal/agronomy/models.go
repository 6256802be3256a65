// Package agronomy holds the domain types shared by the AI adapters, the advisor
// services and the API: recommendation requests and candidates, pest analyses,
// yield predictions and chat turns.
package agronomy

import (
	"fmt"
	"strings"
	"time"
)

// SoilType identifies the soil class selected for a recommendation.
type SoilType string

const (
	SoilLoamy SoilType = "loamy"
	SoilClay  SoilType = "clay"
	SoilSandy SoilType = "sandy"
	SoilSilt  SoilType = "silt"
)

// SoilTypes lists the supported soil classes in display order.
var SoilTypes = []SoilType{SoilLoamy, SoilClay, SoilSandy, SoilSilt}

// Season is the growing season a recommendation is made for.
type Season string

const (
	SeasonSpring  Season = "spring"
	SeasonSummer  Season = "summer"
	SeasonMonsoon Season = "monsoon"
	SeasonWinter  Season = "winter"
)

// Seasons lists the supported seasons in display order.
var Seasons = []Season{SeasonSpring, SeasonSummer, SeasonMonsoon, SeasonWinter}

// ClimateZone is the region tag sent with a recommendation request.
type ClimateZone string

const (
	ClimateTropical      ClimateZone = "tropical"
	ClimateTemperate     ClimateZone = "temperate"
	ClimateArid          ClimateZone = "arid"
	ClimateMediterranean ClimateZone = "mediterranean"
)

// ClimateZones lists the supported climate zones in display order.
var ClimateZones = []ClimateZone{ClimateTropical, ClimateTemperate, ClimateArid, ClimateMediterranean}

// Nutrients describes macro-nutrient levels as free-text grades ("low", "medium", "high").
type Nutrients struct {
	Nitrogen   string `json:"nitrogen"`
	Phosphorus string `json:"phosphorus"`
	Potassium  string `json:"potassium"`
}

// Soil describes the field the recommendation is for.
type Soil struct {
	Type      SoilType  `json:"type"`
	PH        float64   `json:"ph"`
	Moisture  float64   `json:"moisture"` // percent
	Nutrients Nutrients `json:"nutrients"`
}

// Weather describes recent growing conditions.
type Weather struct {
	Temperature float64 `json:"temperature"` // °C
	Humidity    float64 `json:"humidity"`    // percent
	Rainfall    float64 `json:"rainfall"`    // mm
	Season      Season  `json:"season"`
}

// Location is a farm coordinate.
type Location struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// RecommendationRequest is the input to one recommendation refresh. It is a
// value type and is rebuilt for every refresh.
type RecommendationRequest struct {
	Soil     Soil        `json:"soil"`
	Weather  Weather     `json:"weather"`
	Region   ClimateZone `json:"region"`
	Location Location    `json:"location"`
	FarmSize float64     `json:"farmSize"` // hectares
}

// Reference field conditions used when the caller only picks the selectors.
const (
	DefaultSoilPH      = 6.8
	DefaultMoisture    = 68.0
	DefaultTemperature = 24.0
	DefaultHumidity    = 72.0
	DefaultRainfall    = 150.0
	DefaultLatitude    = 40.7128
	DefaultLongitude   = -74.0060
	DefaultFarmSize    = 10.0
)

// NewRecommendationRequest builds a request for the three selectors using the
// reference field conditions. Empty selectors fall back to loamy, summer and temperate.
func NewRecommendationRequest(soil SoilType, season Season, zone ClimateZone) RecommendationRequest {
	if soil == "" {
		soil = SoilLoamy
	}
	if season == "" {
		season = SeasonSummer
	}
	if zone == "" {
		zone = ClimateTemperate
	}
	return RecommendationRequest{
		Soil: Soil{
			Type:     soil,
			PH:       DefaultSoilPH,
			Moisture: DefaultMoisture,
			Nutrients: Nutrients{
				Nitrogen:   "high",
				Phosphorus: "medium",
				Potassium:  "high",
			},
		},
		Weather: Weather{
			Temperature: DefaultTemperature,
			Humidity:    DefaultHumidity,
			Rainfall:    DefaultRainfall,
			Season:      season,
		},
		Region:   zone,
		Location: Location{Latitude: DefaultLatitude, Longitude: DefaultLongitude},
		FarmSize: DefaultFarmSize,
	}
}

// Validate checks the selectors and numeric ranges of the request.
func (r RecommendationRequest) Validate() error {
	if !oneOf(r.Soil.Type, SoilTypes) {
		return fmt.Errorf("%w: unknown soil type %q", ErrInvalidInput, r.Soil.Type)
	}
	if !oneOf(r.Weather.Season, Seasons) {
		return fmt.Errorf("%w: unknown season %q", ErrInvalidInput, r.Weather.Season)
	}
	if !oneOf(r.Region, ClimateZones) {
		return fmt.Errorf("%w: unknown climate zone %q", ErrInvalidInput, r.Region)
	}
	if r.Soil.PH < 0 || r.Soil.PH > 14 {
		return fmt.Errorf("%w: soil pH %.2f out of range", ErrInvalidInput, r.Soil.PH)
	}
	if r.Soil.Moisture < 0 || r.Soil.Moisture > 100 {
		return fmt.Errorf("%w: soil moisture %.1f out of range", ErrInvalidInput, r.Soil.Moisture)
	}
	if r.Location.Latitude < -90 || r.Location.Latitude > 90 || r.Location.Longitude < -180 || r.Location.Longitude > 180 {
		return fmt.Errorf("%w: invalid coordinates", ErrInvalidInput)
	}
	if r.FarmSize < 0 {
		return fmt.Errorf("%w: negative farm size", ErrInvalidInput)
	}
	return nil
}

func oneOf[T ~string](v T, allowed []T) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Source records which path produced a recommendation candidate.
type Source string

const (
	SourceConversational Source = "conversational"
	SourceInference      Source = "inference"
	SourceFallback       Source = "fallback"
)

// RecommendationCandidate is one crop suggestion. It has no identity beyond
// its position in a result list.
type RecommendationCandidate struct {
	Name             string   `json:"name"`
	Suitability      int      `json:"suitability"`
	ExpectedYield    string   `json:"expectedYield"`
	Profit           string   `json:"profit,omitempty"`
	Season           string   `json:"season,omitempty"`
	PlantingTime     string   `json:"plantingTime,omitempty"`
	HarvestTime      string   `json:"harvestTime,omitempty"`
	MarketPrice      string   `json:"marketPrice,omitempty"`
	CareInstructions string   `json:"careInstructions,omitempty"`
	Benefits         []string `json:"benefits,omitempty"`
	Source           Source   `json:"source"`
}

// GeneratedRecommendations is the conversational adapter's recommendation output.
type GeneratedRecommendations struct {
	Candidates []RecommendationCandidate
	Narrative  string
}

// MaxRecommendations caps the merged recommendation list.
const MaxRecommendations = 4

// MergedRecommendationSet is the outcome of one recommendation refresh. It is
// never empty.
type MergedRecommendationSet struct {
	Candidates     []RecommendationCandidate `json:"candidates"`
	Insights       string                    `json:"insights"`
	Degraded       bool                      `json:"degraded"`
	DegradedReason string                    `json:"degradedReason,omitempty"`
	Sequence       uint64                    `json:"sequence,omitempty"`
	GeneratedAt    time.Time                 `json:"generatedAt"`
}

// Severity grades a pest finding.
type Severity string

const (
	SeverityLow     Severity = "Low"
	SeverityMedium  Severity = "Medium"
	SeverityHigh    Severity = "High"
	SeverityUnknown Severity = "Unknown"
)

// ParseSeverity maps a free-text severity onto the enum, ignoring case.
// The second return value is false when s is not a known grade.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return SeverityLow, true
	case "medium", "moderate":
		return SeverityMedium, true
	case "high", "severe":
		return SeverityHigh, true
	case "unknown":
		return SeverityUnknown, true
	default:
		return SeverityUnknown, false
	}
}

// Provenance identifies which path produced a pest analysis.
type Provenance string

const (
	ProvenancePrimary   Provenance = "primary"
	ProvenanceSecondary Provenance = "secondary"
	ProvenanceDemo      Provenance = "demo"
	ProvenanceError     Provenance = "error"
)

// PestAnalysisResult is a single best-guess pest finding for one image.
type PestAnalysisResult struct {
	PestIdentified string     `json:"pestIdentified"`
	Confidence     int        `json:"confidence"`
	Severity       Severity   `json:"severity"`
	Description    string     `json:"description"`
	Treatment      []string   `json:"treatment"`
	Prevention     []string   `json:"prevention"`
	Analysis       string     `json:"aiAnalysis,omitempty"`
	Service        string     `json:"aiService,omitempty"`
	Provenance     Provenance `json:"provenance"`
}

// YieldFeatures is the feature record for a yield prediction.
type YieldFeatures struct {
	CropType        string  `json:"crop_type"`
	SoilPH          float64 `json:"soil_ph"`
	SoilMoisture    float64 `json:"soil_moisture"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	Rainfall        float64 `json:"rainfall"`
	FertilizerUsage float64 `json:"fertilizer_usage"`
	AreaHectares    float64 `json:"area_hectares"`
	PlantingDate    string  `json:"planting_date"`
	GrowthStage     string  `json:"growth_stage"`
}

// YieldPrediction is a point yield estimate for one crop.
type YieldPrediction struct {
	PredictedYield  float64  `json:"predictedYield"` // tons/ha
	Confidence      float64  `json:"confidence"`     // 0..1
	Factors         []string `json:"factors"`
	Recommendations []string `json:"recommendations"`
}

// Role tags the author of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchange in a chat transcript. Pending turns are placeholders
// shown while a reply is outstanding and are never sent to the model.
type Turn struct {
	Role    Role   `json:"role"`
	Text    string `json:"text"`
	Pending bool   `json:"pending,omitempty"`
}

// CropArea is a planted area on a farm.
type CropArea struct {
	Crop     string  `json:"crop"`
	Hectares float64 `json:"hectares"`
}

// FarmMetrics is the weekly input to report generation.
type FarmMetrics struct {
	TotalYield     string             `json:"totalYield"`
	Revenue        string             `json:"revenue"`
	Expenses       string             `json:"expenses"`
	CropHealth     map[string]float64 `json:"cropHealth,omitempty"`
	Weather        map[string]any     `json:"weather,omitempty"`
	PestDetections int                `json:"pestDetections"`
	Irrigation     map[string]any     `json:"irrigation,omitempty"`
	Crops          []CropArea         `json:"crops,omitempty"`
}
