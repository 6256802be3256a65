// Package reports generates weekly farm reports and keeps the latest one per
// farm in an expiring in-memory store.
package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/agriai/agriai/internal/agronomy"
)

// DefaultTTL is how long a generated report stays retrievable.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when a farm has no unexpired report.
var ErrNotFound = errors.New("report not found")

// Generator produces report text from weekly metrics.
type Generator interface {
	GenerateWeeklyReport(ctx context.Context, metrics agronomy.FarmMetrics) (string, error)
}

// Report is one generated weekly report.
type Report struct {
	ID          string    `json:"id"`
	FarmID      string    `json:"farmId"`
	Text        string    `json:"report"`
	GeneratedAt time.Time `json:"generatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Config configures a Service.
type Config struct {
	Generator Generator
	TTL       time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Service generates and stores weekly reports.
type Service struct {
	generator Generator
	store     *cache.Cache
	ttl       time.Duration
	logger    zerolog.Logger
	now       func() time.Time
}

// NewService creates a report service.
func NewService(cfg Config) *Service {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		generator: cfg.Generator,
		store:     cache.New(ttl, time.Hour),
		ttl:       ttl,
		logger:    cfg.Logger.With().Str("component", "reports").Logger(),
		now:       now,
	}
}

// Generate produces a report for farmID and stores it as the farm's latest.
// Generation errors are returned unchanged.
func (s *Service) Generate(ctx context.Context, farmID string, metrics agronomy.FarmMetrics) (*Report, error) {
	farmID = strings.TrimSpace(farmID)
	if farmID == "" {
		return nil, fmt.Errorf("%w: farm id is required", agronomy.ErrInvalidInput)
	}
	if s.generator == nil {
		return nil, fmt.Errorf("%w: report generator is not configured", agronomy.ErrServiceUnavailable)
	}

	text, err := s.generator.GenerateWeeklyReport(ctx, metrics)
	if err != nil {
		s.logger.Error().Err(err).Str("farm_id", farmID).Str("kind", agronomy.Kind(err)).Msg("report generation failed")
		return nil, err
	}

	now := s.now()
	report := &Report{
		ID:          uuid.NewString(),
		FarmID:      farmID,
		Text:        text,
		GeneratedAt: now,
		ExpiresAt:   now.Add(s.ttl),
	}
	s.store.Set(farmID, report, s.ttl)

	s.logger.Info().Str("farm_id", farmID).Str("report_id", report.ID).Int("length", len(text)).Msg("weekly report generated")
	return report, nil
}

// Latest returns the farm's most recent unexpired report.
func (s *Service) Latest(farmID string) (*Report, error) {
	v, ok := s.store.Get(strings.TrimSpace(farmID))
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Report), nil
}

// Count returns the number of stored reports, expired ones included until
// the next cleanup.
func (s *Service) Count() int {
	return s.store.ItemCount()
}
