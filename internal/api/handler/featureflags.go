package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
	"github.com/agriai/agriai/internal/featureflags"
)

// FlagService manages runtime feature flags.
type FlagService interface {
	List(ctx context.Context) featureflags.FlagList
	Apply(ctx context.Context, req featureflags.FlagUpdateRequest) error
	InvalidateCache()
}

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service FlagService
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service FlagService) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.service.List(r.Context()))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. The batch is
// rejected whole when any update is invalid.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var input featureflags.FlagUpdateRequest
	if !decodeJSON(w, r, maxJSONBody, &input) {
		return
	}

	err := h.service.Apply(r.Context(), input)
	switch {
	case errors.Is(err, featureflags.ErrUnknownFlag), errors.Is(err, featureflags.ErrInvalidValue):
		response.BadRequest(w, r, "invalid feature flag update", []models.FieldError{
			{Field: "updates", Message: err.Error()},
		})
	case err != nil:
		response.InternalError(w, r, "failed to store feature flags")
	default:
		response.JSON(w, r, http.StatusOK, h.service.List(r.Context()))
	}
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}
