package advisor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/agriai/agriai/internal/agronomy"
)

// ErrStale is returned when a refresh finished after a newer one was issued.
// The stale result is returned alongside but is not stored.
var ErrStale = errors.New("recommendation result superseded by a newer refresh")

// Sequencer issues monotonically increasing request tokens.
type Sequencer struct {
	latest atomic.Uint64
}

// Next issues a new token. Tokens start at 1.
func (s *Sequencer) Next() uint64 { return s.latest.Add(1) }

// Latest returns the most recently issued token.
func (s *Sequencer) Latest() uint64 { return s.latest.Load() }

// IsLatest reports whether token is the most recently issued one.
func (s *Sequencer) IsLatest(token uint64) bool { return token == s.latest.Load() }

// Recommender runs one recommendation refresh.
type Recommender interface {
	Recommend(ctx context.Context, req agronomy.RecommendationRequest) (*agronomy.MergedRecommendationSet, error)
}

// Selectors are the three inputs a recommendation session refreshes on.
type Selectors struct {
	Soil   agronomy.SoilType    `json:"soilType"`
	Season agronomy.Season      `json:"season"`
	Zone   agronomy.ClimateZone `json:"climateZone"`
}

// Session holds the selector state and the latest recommendation set for a
// long-lived caller. Every selector change runs a full refresh; results that
// lose the race to a newer refresh are dropped.
type Session struct {
	recommender Recommender
	seq         Sequencer

	mu         sync.Mutex
	selectors  Selectors
	current    *agronomy.MergedRecommendationSet
	// currentFor holds the selectors current was computed for.
	currentFor Selectors
}

// NewSession creates a session with the initial selectors. Nothing runs until
// the first Refresh or selector change.
func NewSession(r Recommender, initial Selectors) *Session {
	return &Session{recommender: r, selectors: initial}
}

// Selectors returns the current selectors.
func (s *Session) Selectors() Selectors {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectors
}

// Current returns the latest stored set, or nil before the first refresh.
func (s *Session) Current() *agronomy.MergedRecommendationSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetSoilType changes the soil selector and refreshes when it differs.
func (s *Session) SetSoilType(ctx context.Context, soil agronomy.SoilType) (*agronomy.MergedRecommendationSet, error) {
	return s.update(ctx, func(sel *Selectors) { sel.Soil = soil })
}

// SetSeason changes the season selector and refreshes when it differs.
func (s *Session) SetSeason(ctx context.Context, season agronomy.Season) (*agronomy.MergedRecommendationSet, error) {
	return s.update(ctx, func(sel *Selectors) { sel.Season = season })
}

// SetClimateZone changes the climate zone selector and refreshes when it differs.
func (s *Session) SetClimateZone(ctx context.Context, zone agronomy.ClimateZone) (*agronomy.MergedRecommendationSet, error) {
	return s.update(ctx, func(sel *Selectors) { sel.Zone = zone })
}

// Refresh runs the recommendation sequence for the current selectors.
func (s *Session) Refresh(ctx context.Context) (*agronomy.MergedRecommendationSet, error) {
	return s.update(ctx, nil)
}

func (s *Session) update(ctx context.Context, change func(*Selectors)) (*agronomy.MergedRecommendationSet, error) {
	s.mu.Lock()
	next := s.selectors
	if change != nil {
		change(&next)
		if s.settled() && next == s.currentFor {
			current := s.current
			s.mu.Unlock()
			return current, nil
		}
	}
	req := agronomy.NewRecommendationRequest(next.Soil, next.Season, next.Zone)
	if err := req.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.selectors = Selectors{Soil: req.Soil.Type, Season: req.Weather.Season, Zone: req.Region}
	requested := s.selectors
	token := s.seq.Next()
	s.mu.Unlock()

	set, err := s.recommender.Recommend(ctx, req)
	if err != nil {
		return nil, err
	}
	set.Sequence = token

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seq.IsLatest(token) {
		return set, ErrStale
	}
	s.current = set
	s.currentFor = requested
	return set, nil
}

// settled reports whether the stored set answers the most recent refresh.
// Callers hold mu.
func (s *Session) settled() bool {
	return s.current != nil && s.current.Sequence == s.seq.Latest()
}
