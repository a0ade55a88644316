package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/paygate/internal/config"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("PAYMENT_PROVIDER", "mollie")
	t.Setenv("MOLLIE_API_KEY", "test_key")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, "default", cfg.DefaultTenant)
	require.Equal(t, 10*time.Second, cfg.ProviderCallTimeout)
	require.Equal(t, 24*time.Hour, cfg.WebhookReplayTTL)
	require.Equal(t, int64(65536), cfg.WebhookMaxBodyBytes)
}

func TestLoadRequiresRedisURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("REDIS_URL", "")

	_, err := config.Load()
	require.Error(t, err)
}

func TestLoadRequiresProviderCredentials(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PAYMENT_PROVIDER", "stripe")

	_, err := config.Load()
	require.Error(t, err, "stripe needs both api key and webhook secret")

	t.Setenv("STRIPE_API_KEY", "sk_test")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "stripe", cfg.PaymentProvider)
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PROVIDER_CALL_TIMEOUT", "3s")
	t.Setenv("WEBHOOK_RATE_MAX", "10")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 3*time.Second, cfg.ProviderCallTimeout)
	require.Equal(t, 10, cfg.WebhookRateMax)
}
