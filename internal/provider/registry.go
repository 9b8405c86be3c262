package provider

import (
	"errors"
	"fmt"
)

// Provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
	ProviderFlux   = "flux"
	ProviderMock   = "mock"
)

// ErrUnconfiguredProvider is returned when a model points at a provider
// with no registered adapter.
var ErrUnconfiguredProvider = errors.New("provider is not configured")

// Registry maps provider identifiers to adapters. Built once at startup;
// business logic resolves through it instead of branching on provider names.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

// Register adds or replaces an adapter.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Resolve returns the adapter for the given provider identifier.
func (r *Registry) Resolve(provider string) (Adapter, error) {
	a, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnconfiguredProvider, provider)
	}
	return a, nil
}

// Providers returns the identifiers with a registered adapter.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	return out
}

// BuildRegistry constructs adapters for every provider the key store has an
// active key for. A deployment with no keys gets an empty registry; model
// resolution will then fail for those providers, not the whole process.
func BuildRegistry(keys KeyStore) *Registry {
	r := NewRegistry()
	if key, ok := keys.Key(ProviderOpenAI); ok {
		r.Register(NewOpenAIAdapter(key))
	}
	if key, ok := keys.Key(ProviderGoogle); ok {
		r.Register(NewGoogleAdapter(key))
	}
	if key, ok := keys.Key(ProviderFlux); ok {
		r.Register(NewFluxAdapter(key))
	}
	return r
}
