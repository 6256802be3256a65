package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/api/middleware"
	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
	"github.com/agriai/agriai/internal/reports"
)

// ReportService generates and stores weekly farm reports.
type ReportService interface {
	Generate(ctx context.Context, farmID string, metrics agronomy.FarmMetrics) (*reports.Report, error)
	Latest(farmID string) (*reports.Report, error)
}

// ReportHandler handles weekly report endpoints.
type ReportHandler struct {
	service ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(service ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// GenerateReport handles POST /v1/reports. Generation failures are 503s.
func (h *ReportHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var input models.ReportRequest
	if !decodeJSON(w, r, maxJSONBody, &input) {
		return
	}

	report, err := h.service.Generate(r.Context(), input.FarmID, input.Metrics)
	if err != nil {
		if errors.Is(err, agronomy.ErrInvalidInput) {
			response.Problem(w, r, err)
			return
		}
		problem := models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), "report generation failed")
		problem.Kind = agronomy.Kind(err)
		response.Error(w, r, problem)
		return
	}
	response.Created(w, r, "/v1/reports/"+report.FarmID, report)
}

// GetLatestReport handles GET /v1/reports/{farmId}.
func (h *ReportHandler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	farmID := chi.URLParam(r, "farmId")
	report, err := h.service.Latest(farmID)
	if errors.Is(err, reports.ErrNotFound) {
		response.NotFound(w, r, "no report for farm "+farmID)
		return
	}
	if err != nil {
		response.InternalError(w, r, "an unexpected error occurred")
		return
	}
	response.JSON(w, r, http.StatusOK, report)
}
