package models

import (
	"github.com/agriai/agriai/internal/agronomy"
)

// RecommendationRequest selects the field conditions for a recommendation.
// Omitted numeric overrides keep the reference conditions.
type RecommendationRequest struct {
	SoilType    agronomy.SoilType    `json:"soilType"`
	Season      agronomy.Season      `json:"season"`
	ClimateZone agronomy.ClimateZone `json:"climateZone"`
	SoilPH      *float64             `json:"soilPh,omitempty"`
	Moisture    *float64             `json:"moisture,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	Humidity    *float64             `json:"humidity,omitempty"`
	Rainfall    *float64             `json:"rainfall,omitempty"`
	Latitude    *float64             `json:"lat,omitempty"`
	Longitude   *float64             `json:"lng,omitempty"`
	FarmSize    *float64             `json:"farmSize,omitempty"`
}

// ToDomain builds the domain request from the selectors and overrides.
func (r RecommendationRequest) ToDomain() agronomy.RecommendationRequest {
	req := agronomy.NewRecommendationRequest(r.SoilType, r.Season, r.ClimateZone)
	override := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	override(&req.Soil.PH, r.SoilPH)
	override(&req.Soil.Moisture, r.Moisture)
	override(&req.Weather.Temperature, r.Temperature)
	override(&req.Weather.Humidity, r.Humidity)
	override(&req.Weather.Rainfall, r.Rainfall)
	override(&req.Location.Latitude, r.Latitude)
	override(&req.Location.Longitude, r.Longitude)
	override(&req.FarmSize, r.FarmSize)
	return req
}

// PestAnalysisRequest is the JSON form of a pest analysis upload. ImageBase64
// may be a bare base64 string or a data URL.
type PestAnalysisRequest struct {
	ImageBase64 string `json:"imageBase64"`
	CropType    string `json:"cropType,omitempty"`
}

// PestAnalysisResponse wraps a pest finding with an analysis id.
type PestAnalysisResponse struct {
	ID string `json:"id"`
	agronomy.PestAnalysisResult
	CreatedAt Timestamp `json:"createdAt"`
}

// ChatRequest is one user message with the prior transcript.
type ChatRequest struct {
	Message string          `json:"message"`
	History []agronomy.Turn `json:"history,omitempty"`
}

// ReportRequest asks for a weekly report for one farm.
type ReportRequest struct {
	FarmID  string               `json:"farmId"`
	Metrics agronomy.FarmMetrics `json:"metrics"`
}
