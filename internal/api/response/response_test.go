package response_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/api/middleware"
	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
)

// serve runs write behind the RequestID middleware, forwarding requestID
// as the inbound X-Request-Id when it is set.
func serve(t *testing.T, method, path, requestID string, write func(w http.ResponseWriter, r *http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	rec := httptest.NewRecorder()
	middleware.RequestID(http.HandlerFunc(write)).ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&problem))
	return problem
}

func TestJSON(t *testing.T) {
	rec := serve(t, http.MethodGet, "/v1/ops/status", "req-status-1", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "OK"})
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req-status-1", rec.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"status":"OK"}`, rec.Body.String())
}

func TestJSON_OutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	assert.Empty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len(), "nil data writes no body")
}

func TestCreated(t *testing.T) {
	rec := serve(t, http.MethodPost, "/v1/reports", "", func(w http.ResponseWriter, r *http.Request) {
		response.Created(w, r, "/v1/reports/farm-7", map[string]string{"farmId": "farm-7"})
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "/v1/reports/farm-7", rec.Header().Get("Location"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestNoContent(t *testing.T) {
	rec := serve(t, http.MethodPost, "/v1/admin/feature-flags/invalidate", "", func(w http.ResponseWriter, r *http.Request) {
		response.NoContent(w, r)
	})

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Zero(t, rec.Body.Len())
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
		typ    string
	}{
		{
			name: "bad request",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.BadRequest(w, r, "invalid recommendation request", []models.FieldError{{Field: "soilType", Message: "is required"}})
			},
			status: http.StatusBadRequest,
			typ:    models.ProblemTypeValidation,
		},
		{
			name: "not found",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NotFound(w, r, "no report for farm")
			},
			status: http.StatusNotFound,
			typ:    models.ProblemTypeNotFound,
		},
		{
			name: "internal",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.InternalError(w, r, "encoding failed")
			},
			status: http.StatusInternalServerError,
			typ:    models.ProblemTypeInternal,
		},
		{
			name: "unavailable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.ServiceUnavailable(w, r, "report generation failed")
			},
			status: http.StatusServiceUnavailable,
			typ:    models.ProblemTypeUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/v1/reports", "req-42", tt.write)

			assert.Equal(t, tt.status, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.status, problem.Status)
			assert.Equal(t, tt.typ, problem.Type)
			assert.Equal(t, "req-42", problem.TraceID)
			assert.Equal(t, "/v1/reports", problem.Instance)
		})
	}
}

func TestProblem_MapsAdvisoryErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{agronomy.ErrTimeout, http.StatusGatewayTimeout, "Timeout"},
		{fmt.Errorf("bedrock: %w", agronomy.ErrMalformedResponse), http.StatusBadGateway, "MalformedResponse"},
		{agronomy.ErrInvalidInput, http.StatusBadRequest, "InvalidInput"},
		{agronomy.ErrServiceUnavailable, http.StatusServiceUnavailable, "ServiceUnavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			rec := serve(t, http.MethodPost, "/v1/recommendations", "", func(w http.ResponseWriter, r *http.Request) {
				response.Problem(w, r, tt.err)
			})

			assert.Equal(t, tt.status, rec.Code)
			problem := decodeProblem(t, rec)
			assert.Equal(t, tt.kind, problem.Kind)
			assert.Equal(t, "/v1/recommendations", problem.Instance)
		})
	}
}

func TestMarkDegraded(t *testing.T) {
	rec := serve(t, http.MethodPost, "/v1/yield-predictions", "", func(w http.ResponseWriter, r *http.Request) {
		response.MarkDegraded(w, true)
		response.JSON(w, r, http.StatusOK, map[string]string{"provenance": "demo"})
	})
	assert.Equal(t, "true", rec.Header().Get(middleware.DegradedHeader))

	rec = serve(t, http.MethodPost, "/v1/yield-predictions", "", func(w http.ResponseWriter, r *http.Request) {
		response.MarkDegraded(w, false)
		response.JSON(w, r, http.StatusOK, map[string]string{"provenance": "live"})
	})
	assert.Empty(t, rec.Header().Get(middleware.DegradedHeader))
}
