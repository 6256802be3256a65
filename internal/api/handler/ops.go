// Package handler provides HTTP handlers for the AgriAI API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/agriai/agriai/internal/api/models"
	"github.com/agriai/agriai/internal/api/response"
	"github.com/agriai/agriai/internal/provider/resilience"
)

// HealthSource reports the health of registered AI providers.
type HealthSource interface {
	GetAllHealth() []*resilience.ProviderHealth
}

// DegradationSource lists the runtime flags that change degraded-mode behaviour.
type DegradationSource interface {
	ActiveDegradations(ctx context.Context) []string
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	health    HealthSource
	flags     DegradationSource
	now       func() time.Time
}

// NewOpsHandler creates a new OpsHandler. health and flags may be nil.
func NewOpsHandler(version, buildTime string, health HealthSource, flags DegradationSource) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		health:    health,
		flags:     flags,
		now:       time.Now,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(h.now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is not ready when
// every registered provider has an open circuit.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := overallStatus(providers)
	health := models.Health{Status: status, Time: models.Timestamp(h.now())}
	if status == models.HealthStatusFail {
		response.JSON(w, r, http.StatusServiceUnavailable, health)
		return
	}
	response.JSON(w, r, http.StatusOK, health)
}

// SystemStatus handles GET /v1/ops/status - provider circuits and active
// degradation flags.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	providers := h.providerStatuses()
	status := models.SystemStatus{
		Status:    overallStatus(providers),
		Time:      models.Timestamp(h.now()),
		Providers: providers,
	}
	if h.flags != nil {
		status.ActiveDegradationFlags = h.flags.ActiveDegradations(r.Context())
		if len(status.ActiveDegradationFlags) > 0 && status.Status == models.HealthStatusOK {
			status.Status = models.HealthStatusDegraded
		}
	}
	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.health == nil {
		return []models.ProviderStatus{}
	}
	all := h.health.GetAllHealth()
	out := make([]models.ProviderStatus, 0, len(all))
	for _, p := range all {
		ps := models.ProviderStatus{
			Provider:      p.Name,
			Status:        models.HealthStatusOK,
			CircuitState:  p.CircuitState.String(),
			Requests:      p.Counts.Requests,
			Failures:      p.Counts.ConsecutiveFailures,
			LastSuccessAt: models.TimestampPtr(p.LastSuccessAt),
			LastFailureAt: models.TimestampPtr(p.LastFailureAt),
			Trips:         p.Trips,
			OpenedAt:      models.TimestampPtr(p.OpenedAt),
		}
		switch {
		case p.IsUnhealthy():
			ps.Status = models.HealthStatusFail
		case p.IsDegraded() || p.LastCallFailed():
			ps.Status = models.HealthStatusDegraded
		}
		if p.LastError != "" {
			msg := p.LastError
			ps.Message = &msg
		}
		out = append(out, ps)
	}
	return out
}

// overallStatus is FAIL when every provider is failing, DEGRADED when any is
// not OK, and OK otherwise.
func overallStatus(providers []models.ProviderStatus) models.HealthStatus {
	if len(providers) == 0 {
		return models.HealthStatusOK
	}
	failing, degraded := 0, 0
	for _, p := range providers {
		switch p.Status {
		case models.HealthStatusFail:
			failing++
		case models.HealthStatusDegraded:
			degraded++
		}
	}
	switch {
	case failing == len(providers):
		return models.HealthStatusFail
	case failing+degraded > 0:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
