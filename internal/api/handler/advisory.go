package handler

import (
	"context"
	"net/http"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
	"github.com/agriai/agriai/internal/sagemaker"
)

// Advisor is the advisory service behind the AI endpoints.
type Advisor interface {
	Recommend(ctx context.Context, req agronomy.RecommendationRequest) (*agronomy.MergedRecommendationSet, error)
	AnalyzePest(ctx context.Context, image []byte, cropType string) *agronomy.PestAnalysisResult
	Chat(ctx context.Context, history []agronomy.Turn, message string) (*advisor.ChatReply, error)
	PredictYield(ctx context.Context, features agronomy.YieldFeatures) (*advisor.YieldResult, error)
}

// AdvisoryHandler handles recommendation, chat and yield endpoints.
type AdvisoryHandler struct {
	advisor Advisor
}

// NewAdvisoryHandler creates a new AdvisoryHandler.
func NewAdvisoryHandler(a Advisor) *AdvisoryHandler {
	return &AdvisoryHandler{advisor: a}
}

// Recommend handles POST /v1/recommendations.
func (h *AdvisoryHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var input models.RecommendationRequest
	if !decodeJSON(w, r, maxJSONBody, &input) {
		return
	}

	set, err := h.advisor.Recommend(r.Context(), input.ToDomain())
	if err != nil {
		response.Problem(w, r, err)
		return
	}
	response.MarkDegraded(w, set.Degraded)
	response.JSON(w, r, http.StatusOK, set)
}

// Chat handles POST /v1/chat.
func (h *AdvisoryHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var input models.ChatRequest
	if !decodeJSON(w, r, maxJSONBody, &input) {
		return
	}

	reply, err := h.advisor.Chat(r.Context(), input.History, input.Message)
	if err != nil {
		response.Problem(w, r, err)
		return
	}
	response.MarkDegraded(w, reply.Degraded)
	response.JSON(w, r, http.StatusOK, reply)
}

// PredictYield handles POST /v1/yield-predictions.
func (h *AdvisoryHandler) PredictYield(w http.ResponseWriter, r *http.Request) {
	var input agronomy.YieldFeatures
	if !decodeJSON(w, r, maxJSONBody, &input) {
		return
	}

	result, err := h.advisor.PredictYield(r.Context(), input)
	if err != nil {
		response.Problem(w, r, err)
		return
	}
	if result.Status == sagemaker.StatusFailed {
		response.ServiceUnavailable(w, r, result.Reason)
		return
	}
	response.MarkDegraded(w, result.Status != sagemaker.StatusLive)
	response.JSON(w, r, http.StatusOK, result)
}
