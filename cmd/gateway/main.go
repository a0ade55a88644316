package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/paygate/internal/common"
	"github.com/noah-isme/paygate/internal/config"
	"github.com/noah-isme/paygate/internal/events"
	"github.com/noah-isme/paygate/internal/gateway"
	"github.com/noah-isme/paygate/internal/health"
	"github.com/noah-isme/paygate/internal/obs"
	"github.com/noah-isme/paygate/internal/ratelimit"
	"github.com/noah-isme/paygate/internal/resilience"
	"github.com/noah-isme/paygate/internal/security"
	"github.com/noah-isme/paygate/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "paygate")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "paygate",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	configs := map[string]gateway.TenantConfig{
		cfg.DefaultTenant: {
			Provider: cfg.PaymentProvider,
			Credentials: gateway.Credentials{
				APIKey:        providerAPIKey(cfg),
				WebhookSecret: cfg.StripeWebhookSecret,
			},
		},
	}
	tenantStore := tenant.NewStaticStore(configs)

	providerClient := resilience.HTTPClient{
		Client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.ProviderCallTimeout + time.Second,
		},
		Breaker: resilience.NewBreaker(10, 0.5, 30*time.Second).WithTarget(cfg.PaymentProvider).WithLogger(logger),
	}
	registry := gateway.NewRegistry(tenantStore, gateway.Options{
		BaseURL:    providerBaseURL(cfg),
		HTTPClient: providerClient,
		Timeout:    cfg.ProviderCallTimeout,
		Logger:     logger,
	})

	bus := &events.Bus{}
	bus.Subscribe(events.LogNotifier{Logger: logger})

	processor := &gateway.Processor{
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
		Events:    bus,
		Logger:    logger,
	}
	paymentHandler := &gateway.Handler{
		Registry:  registry,
		Processor: processor,
		Validate:  validator.New(),
		Logger:    logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger, TenantFrom: tenant.FromContext}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", tenant.HeaderName},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{redis: redisClient},
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	tenantMW := tenant.Middleware{Default: cfg.DefaultTenant}
	idem := common.Idempotency{R: redisClient, TTL: cfg.IdempotencyTTL}
	webhookLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "paygate:rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.KeyByProviderIP,
			Window: cfg.WebhookRateWindow,
			Max:    cfg.WebhookRateMax,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("webhook rate limiter")
		},
	}
	webhookBody := security.BodyLimit{Max: cfg.WebhookMaxBodyBytes}

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/payments", func(p chi.Router) {
			p.Use(tenantMW.Resolve)
			p.With(idem.Middleware).Post("/", paymentHandler.Create)
			p.Get("/{id}", paymentHandler.Get)
			p.Post("/{id}/confirm", paymentHandler.Confirm)
			p.Post("/{id}/cancel", paymentHandler.Cancel)
			p.With(idem.Middleware).Post("/{id}/refunds", paymentHandler.Refund)
		})
		v.Route("/webhooks/payment/{provider}", func(wh chi.Router) {
			wh.Use(tenantMW.Resolve)
			wh.Use(webhookBody.Middleware)
			wh.Use(webhookLimit.Middleware)
			wh.Post("/", paymentHandler.Webhook)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Str("provider", cfg.PaymentProvider).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func providerAPIKey(cfg *config.Config) string {
	if cfg.PaymentProvider == "mollie" {
		return cfg.MollieAPIKey
	}
	return cfg.StripeAPIKey
}

func providerBaseURL(cfg *config.Config) string {
	if cfg.PaymentProvider == "mollie" {
		return cfg.MollieBaseURL
	}
	return cfg.StripeBaseURL
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	redis *redis.Client
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
