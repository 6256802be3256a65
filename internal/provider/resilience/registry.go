package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ProviderHealth is a point-in-time view of one provider.
type ProviderHealth struct {
	Name         string
	CircuitState gobreaker.State
	Counts       gobreaker.Counts

	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	// LastError survives later successes for diagnostics.
	LastError     string

	// Trips counts how often the breaker has opened since startup.
	Trips    int
	// OpenedAt is when the breaker last opened, if ever.
	OpenedAt *time.Time
}

// IsHealthy reports a closed breaker.
func (h *ProviderHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports a breaker that is probing the provider.
func (h *ProviderHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open breaker.
func (h *ProviderHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// LastCallFailed reports whether the most recent recorded call failed.
func (h *ProviderHealth) LastCallFailed() bool {
	if h.LastFailureAt == nil {
		return false
	}
	return h.LastSuccessAt == nil || h.LastFailureAt.After(*h.LastSuccessAt)
}

// Registry keeps the call history of each provider next to its client.
// Adapters record outcomes by provider name; clients record breaker
// transitions.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*providerRecord
}

type providerRecord struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
	trips         int
	openedAt      *time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*providerRecord)}
}

// Register adds client under name, replacing any earlier client and its history.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = &providerRecord{client: client}
}

// RecordSuccess stamps a successful call. Unknown names are ignored.
func (r *Registry) RecordSuccess(name string) {
	r.update(name, func(p *providerRecord, now time.Time) {
		p.lastSuccessAt = &now
	})
}

// RecordFailure stamps a failed call and keeps its message.
func (r *Registry) RecordFailure(name string, err error) {
	r.update(name, func(p *providerRecord, now time.Time) {
		p.lastFailureAt = &now
		if err != nil {
			p.lastError = err.Error()
		}
	})
}

// Record stamps the outcome of a call. A nil error counts as success.
func (r *Registry) Record(name string, err error) {
	if err != nil {
		r.RecordFailure(name, err)
		return
	}
	r.RecordSuccess(name)
}

// recordTransition runs inside the breaker's lock, so it must never call
// back into a client.
func (r *Registry) recordTransition(name string, to gobreaker.State) {
	if to != gobreaker.StateOpen {
		return
	}
	r.update(name, func(p *providerRecord, now time.Time) {
		p.trips++
		p.openedAt = &now
	})
}

func (r *Registry) update(name string, fn func(p *providerRecord, now time.Time)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.providers[name]; ok {
		fn(p, time.Now())
	}
}

// GetHealth returns the health of one provider, or nil if it is unknown.
func (r *Registry) GetHealth(name string) *ProviderHealth {
	r.mu.RLock()
	p, ok := r.providers[name]
	var rec providerRecord
	if ok {
		rec = *p
	}
	r.mu.RUnlock()

	if !ok {
		return nil
	}
	return rec.health(name)
}

// GetAllHealth returns every provider's health, sorted by name.
func (r *Registry) GetAllHealth() []*ProviderHealth {
	r.mu.RLock()
	records := make(map[string]providerRecord, len(r.providers))
	for name, p := range r.providers {
		records[name] = *p
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(records))
	for name := range records {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*ProviderHealth, 0, len(names))
	for _, name := range names {
		rec := records[name]
		out = append(out, rec.health(name))
	}
	return out
}

// GetProviderNames returns the registered names, sorted.
func (r *Registry) GetProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderCount returns the number of registered providers.
func (r *Registry) ProviderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// health reads breaker state outside the registry lock; transitions take
// the registry lock while holding the breaker's.
func (p providerRecord) health(name string) *ProviderHealth {
	return &ProviderHealth{
		Name:          name,
		CircuitState:  p.client.CircuitBreakerState(),
		Counts:        p.client.CircuitBreakerCounts(),
		LastSuccessAt: p.lastSuccessAt,
		LastFailureAt: p.lastFailureAt,
		LastError:     p.lastError,
		Trips:         p.trips,
		OpenedAt:      p.openedAt,
	}
}
