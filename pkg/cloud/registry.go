package cloud

import (
	"fmt"
	"sort"
	"sync"

	"cluster-drift-monitor/pkg/models"
	"cluster-drift-monitor/pkg/monitor"
)

// Registry maps providers to their VM fetch strategy. It is populated once at
// startup and read on every reconciliation cycle. Regions whose provider has
// no strategy are skipped by the reconciler.
type Registry struct {
	mu         sync.RWMutex
	strategies map[models.Provider]monitor.FetchStrategy
}

func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[models.Provider]monitor.FetchStrategy),
	}
}

// Register binds a strategy to a provider. Registering the same provider twice is an error.
func (r *Registry) Register(provider models.Provider, strategy monitor.FetchStrategy) error {
	if provider == "" {
		return fmt.Errorf("cannot register strategy for empty provider")
	}
	if strategy == nil {
		return fmt.Errorf("nil strategy for provider %s", provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strategies[provider]; exists {
		return fmt.Errorf("strategy for provider %s already registered", provider)
	}
	r.strategies[provider] = strategy
	return nil
}

func (r *Registry) Lookup(provider models.Provider) (monitor.FetchStrategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[provider]
	return s, ok
}

// Providers returns the registered providers in sorted order
func (r *Registry) Providers() []models.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Provider, 0, len(r.strategies))
	for p := range r.strategies {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
