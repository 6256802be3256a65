package featureflags

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag
}

// Service provides feature flag evaluation with caching and fallback to defaults.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	defaultFlags map[string]*Flag
	cache        *cache.Cache
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 1 * time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}

	return &Service{
		repo:         repo,
		logger:       cfg.Logger,
		defaultFlags: defaultFlags,
		cache:        cache.New(cacheTTL, 2*cacheTTL),
	}
}

// GetFlag retrieves a feature flag by key, preferring the cache, then the
// repository, then the defaults. Returns nil for unknown keys.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Flag)
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.cache.SetDefault(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	if defaultFlag, ok := s.defaultFlags[key]; ok {
		return defaultFlag
	}
	return nil
}

// GetAllFlags returns repository flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
		s.cache.SetDefault(k, v)
	}
	return result
}

// List returns all flags sorted by key.
func (s *Service) List(ctx context.Context) FlagList {
	flags := s.GetAllFlags(ctx)
	items := make([]Flag, 0, len(flags))
	for _, f := range flags {
		items = append(items, *f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
	return FlagList{Items: items}
}

// Apply validates and stores a batch of updates. Nothing is written when any
// update is invalid.
func (s *Service) Apply(ctx context.Context, req FlagUpdateRequest) error {
	if len(req.Updates) == 0 {
		return fmt.Errorf("%w: no updates", ErrInvalidValue)
	}

	now := time.Now()
	flags := make([]*Flag, 0, len(req.Updates))
	for _, u := range req.Updates {
		if err := ValidateUpdate(u); err != nil {
			return err
		}
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value, UpdatedAt: now})
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return fmt.Errorf("storing feature flags: %w", err)
	}
	for _, f := range flags {
		s.cache.SetDefault(f.Key, f)
		s.logger.Info().
			Str("flag", f.Key).
			Interface("value", f.Value).
			Str("reason", req.Reason).
			Msg("feature flag updated")
	}
	return nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.cache.Flush()
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

// ForceDemoMode reports whether AI calls are bypassed in favour of static data.
func (s *Service) ForceDemoMode(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagForceDemoMode)
}

// DegradeToSingleSource reports whether the merge may keep inference entries alone.
func (s *Service) DegradeToSingleSource(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDegradeToSingleSource)
}

// ChatHistoryTurns returns the number of prior turns sent with a chat message.
func (s *Service) ChatHistoryTurns(ctx context.Context) int {
	n := s.GetFlag(ctx, FlagChatHistoryTurns).IntValue(DefaultChatHistoryTurns)
	if n < 0 {
		return DefaultChatHistoryTurns
	}
	return n
}

// ActiveDegradations lists the enabled flags that change degraded-mode behaviour.
func (s *Service) ActiveDegradations(ctx context.Context) []string {
	active := []string{}
	for _, key := range []string{FlagDegradeToSingleSource, FlagForceDemoMode} {
		if s.IsEnabled(ctx, key) {
			active = append(active, key)
		}
	}
	return active
}
