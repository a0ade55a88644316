package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	DefaultTenant   string
	PaymentProvider string

	StripeAPIKey        string
	StripeWebhookSecret string
	StripeBaseURL       string
	MollieAPIKey        string
	MollieBaseURL       string

	ProviderCallTimeout time.Duration
	WebhookReplayTTL    time.Duration
	WebhookMaxBodyBytes int64
	WebhookRateWindow   time.Duration
	WebhookRateMax      int
	IdempotencyTTL      time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DefaultTenant:   valueOrDefault(k.String("DEFAULT_TENANT"), "default"),
		PaymentProvider: strings.ToLower(strings.TrimSpace(k.String("PAYMENT_PROVIDER"))),

		StripeAPIKey:        k.String("STRIPE_API_KEY"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		StripeBaseURL:       strings.TrimSpace(k.String("STRIPE_BASE_URL")),
		MollieAPIKey:        k.String("MOLLIE_API_KEY"),
		MollieBaseURL:       strings.TrimSpace(k.String("MOLLIE_BASE_URL")),

		ProviderCallTimeout: parseDuration(k.String("PROVIDER_CALL_TIMEOUT"), "10s"),
		WebhookReplayTTL:    parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		WebhookMaxBodyBytes: parseInt64(k.String("WEBHOOK_MAX_BODY_BYTES"), 65536),
		WebhookRateWindow:   parseDuration(k.String("WEBHOOK_RATE_WINDOW"), "1m"),
		WebhookRateMax:      int(parseInt64(k.String("WEBHOOK_RATE_MAX"), 120)),
		IdempotencyTTL:      parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.PaymentProvider == "" {
		return nil, errors.New("PAYMENT_PROVIDER is required")
	}
	switch cfg.PaymentProvider {
	case "stripe":
		if cfg.StripeAPIKey == "" || cfg.StripeWebhookSecret == "" {
			return nil, errors.New("STRIPE_API_KEY and STRIPE_WEBHOOK_SECRET are required for the stripe provider")
		}
	case "mollie":
		if cfg.MollieAPIKey == "" {
			return nil, errors.New("MOLLIE_API_KEY is required for the mollie provider")
		}
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt64(value string, fallback int64) int64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	var parsed int64
	if _, err := fmt.Sscanf(trimmed, "%d", &parsed); err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
