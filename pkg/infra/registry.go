package infra

import (
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/octomend/pkg/domain/interfaces"
	"github.com/m-mizutani/octomend/pkg/domain/types"
)

// Registry maps a provider tag to the adapter serving it. Adding a provider
// means registering one more adapter; the orchestrator core never changes.
type Registry struct {
	mu       sync.RWMutex
	adapters map[types.ProviderTag]interfaces.Adapter
}

func NewRegistry(adapters ...interfaces.Adapter) *Registry {
	r := &Registry{adapters: make(map[types.ProviderTag]interfaces.Adapter)}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Register adds adapter. A second adapter for the same provider is a
// configuration error.
func (x *Registry) Register(adapter interfaces.Adapter) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	provider := adapter.Provider()
	if provider == "" {
		return goerr.Wrap(types.ErrConfig, "adapter has no provider tag")
	}
	if _, ok := x.adapters[provider]; ok {
		return goerr.Wrap(types.ErrConfig, "adapter already registered", goerr.V("provider", provider))
	}
	x.adapters[provider] = adapter
	return nil
}

// Get returns the adapter of provider. A missing adapter is ErrConfig.
func (x *Registry) Get(provider types.ProviderTag) (interfaces.Adapter, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	adapter, ok := x.adapters[provider]
	if !ok {
		return nil, goerr.Wrap(types.ErrConfig, "no adapter registered for provider", goerr.V("provider", provider))
	}
	return adapter, nil
}

// Providers returns registered provider tags in sorted order.
func (x *Registry) Providers() []types.ProviderTag {
	x.mu.RLock()
	defer x.mu.RUnlock()

	providers := make([]types.ProviderTag, 0, len(x.adapters))
	for p := range x.adapters {
		providers = append(providers, p)
	}
	slices.Sort(providers)
	return providers
}

func (x *Registry) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.adapters)
}
