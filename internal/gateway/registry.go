package gateway

import (
	"context"
	"strings"
	"sync"
)

// Factory builds an adapter for one provider from tenant credentials.
type Factory func(creds Credentials, opts Options) (Gateway, error)

// Registry resolves the configured provider per tenant and caches one adapter
// instance per tenant. Construction is guarded: concurrent first access for
// the same tenant yields exactly one adapter. Entries are immutable once
// built; configuration changes require Invalidate.
type Registry struct {
	source    ConfigSource
	factories map[string]Factory
	options   Options

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	once sync.Once
	gw   Gateway
	err  error
}

// NewRegistry wires the default provider factories. Additional factories can
// be registered before first use via Register.
func NewRegistry(source ConfigSource, opts Options) *Registry {
	return &Registry{
		source: source,
		factories: map[string]Factory{
			stripeProvider: func(creds Credentials, o Options) (Gateway, error) { return NewStripe(creds, o) },
			mollieProvider: func(creds Credentials, o Options) (Gateway, error) { return NewMollie(creds, o) },
		},
		options: opts,
		entries: map[string]*registryEntry{},
	}
}

// Register adds or replaces a provider factory. Not safe to call concurrently
// with Resolve.
func (r *Registry) Register(provider string, factory Factory) {
	r.factories[strings.ToLower(strings.TrimSpace(provider))] = factory
}

// Resolve returns the adapter for the tenant, constructing it on first use.
func (r *Registry) Resolve(ctx context.Context, tenantID string) (Gateway, error) {
	r.mu.Lock()
	entry, ok := r.entries[tenantID]
	if !ok {
		entry = &registryEntry{}
		r.entries[tenantID] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.gw, entry.err = r.build(ctx, tenantID)
		if entry.err != nil {
			// failed construction must not poison the cache for retries
			r.mu.Lock()
			if r.entries[tenantID] == entry {
				delete(r.entries, tenantID)
			}
			r.mu.Unlock()
		}
	})
	return entry.gw, entry.err
}

func (r *Registry) build(ctx context.Context, tenantID string) (Gateway, error) {
	cfg, err := r.source.TenantConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(strings.TrimSpace(cfg.Provider))
	factory, ok := r.factories[key]
	if !ok {
		return nil, &Error{
			Code:     CodeUnsupportedProvider,
			Provider: key,
			Message:  "no adapter registered for provider",
		}
	}
	return factory(cfg.Credentials, r.options)
}

// Invalidate drops the cached adapter for a tenant so the next Resolve
// rebuilds it from fresh configuration.
func (r *Registry) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.entries, tenantID)
	r.mu.Unlock()
}
