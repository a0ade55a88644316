package tenant_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paygate/internal/gateway"
	"github.com/noah-isme/paygate/internal/tenant"
)

func TestStaticStoreResolvesConfiguredTenant(t *testing.T) {
	store := tenant.NewStaticStore(map[string]gateway.TenantConfig{
		"acme": {Provider: "mollie", Credentials: gateway.Credentials{APIKey: "key"}},
	})

	cfg, err := store.TenantConfig(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "mollie", cfg.Provider)
	require.Equal(t, "key", cfg.Credentials.APIKey)
}

func TestStaticStoreUnknownTenant(t *testing.T) {
	store := tenant.NewStaticStore(nil)

	_, err := store.TenantConfig(context.Background(), "ghost")
	require.True(t, gateway.HasCode(err, gateway.CodeUnsupportedProvider))
}

func TestStaticStoreSetTakesEffectAfterInvalidate(t *testing.T) {
	store := tenant.NewStaticStore(map[string]gateway.TenantConfig{
		"acme": {Provider: "mollie", Credentials: gateway.Credentials{APIKey: "old"}},
	})
	registry := gateway.NewRegistry(store, gateway.Options{})

	first, err := registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)

	store.Set("acme", gateway.TenantConfig{
		Provider:    "stripe",
		Credentials: gateway.Credentials{APIKey: "sk", WebhookSecret: "whsec"},
	})

	cached, err := registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, first.Name(), cached.Name(), "cached adapter survives until invalidation")

	registry.Invalidate("acme")
	rebuilt, err := registry.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	require.Equal(t, "stripe", rebuilt.Name())
}

func TestMiddlewareResolvesHeaderAndDefault(t *testing.T) {
	ctx := gateway.WithTenant(context.Background(), "acme")
	id, ok := tenant.FromContext(ctx)
	require.True(t, ok)
	require.Equal(t, "acme", id)

	_, ok = tenant.FromContext(context.Background())
	require.False(t, ok)
}
