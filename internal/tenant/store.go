package tenant

import (
	"context"
	"sync"

	"github.com/noah-isme/paygate/internal/gateway"
)

// StaticStore serves per-tenant gateway configuration from memory. It is the
// sole source of provider credentials for the gateway layer; adapters only
// ever read them.
type StaticStore struct {
	mu      sync.RWMutex
	configs map[string]gateway.TenantConfig
}

// NewStaticStore copies the provided configuration map.
func NewStaticStore(configs map[string]gateway.TenantConfig) *StaticStore {
	copied := make(map[string]gateway.TenantConfig, len(configs))
	for id, cfg := range configs {
		copied[id] = cfg
	}
	return &StaticStore{configs: copied}
}

// TenantConfig implements gateway.ConfigSource. Tenants without a configured
// provider resolve to an unsupported-provider failure.
func (s *StaticStore) TenantConfig(_ context.Context, tenantID string) (gateway.TenantConfig, error) {
	s.mu.RLock()
	cfg, ok := s.configs[tenantID]
	s.mu.RUnlock()
	if !ok || cfg.Provider == "" {
		return gateway.TenantConfig{}, &gateway.Error{
			Code:    gateway.CodeUnsupportedProvider,
			Message: "no payment provider configured for tenant " + tenantID,
		}
	}
	return cfg, nil
}

// Set replaces a tenant's configuration. Callers must invalidate the
// registry entry afterwards; cached adapters never observe the change.
func (s *StaticStore) Set(tenantID string, cfg gateway.TenantConfig) {
	s.mu.Lock()
	s.configs[tenantID] = cfg
	s.mu.Unlock()
}
