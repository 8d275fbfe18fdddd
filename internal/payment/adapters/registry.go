package adapters

import (
	"strings"

	"github.com/smallbiznis/kilekitabu/internal/payment/domain"
)

// Registry resolves webhook adapters by provider name.
type Registry struct {
	factories map[string]domain.AdapterFactory
	configs   map[string]map[string]any
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	registry := &Registry{
		factories: map[string]domain.AdapterFactory{},
		configs:   map[string]map[string]any{},
	}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := normalize(factory.Provider())
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

// Configure stores the credentials used when building the provider's adapter.
func (r *Registry) Configure(provider string, cfg map[string]any) *Registry {
	provider = normalize(provider)
	if provider != "" {
		r.configs[provider] = cfg
	}
	return r
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.PaymentAdapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	provider = normalize(provider)
	factory, ok := r.factories[provider]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	if cfg.Config == nil {
		cfg.Config = r.configs[provider]
	}
	cfg.Provider = provider
	return factory.NewAdapter(cfg)
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}
