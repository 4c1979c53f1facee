// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"bigdaytimer-premium/internal/config"
	"bigdaytimer-premium/internal/domain/ports/adapter"
	"bigdaytimer-premium/internal/domain/ports/repository"
	payAdapters "bigdaytimer-premium/internal/infra/adapters/payment"
	"bigdaytimer-premium/internal/infra/db/memory"
	pg "bigdaytimer-premium/internal/infra/db/postgres"
	httpapi "bigdaytimer-premium/internal/infra/http"
	"bigdaytimer-premium/internal/infra/logging"
	"bigdaytimer-premium/internal/infra/metrics"
	red "bigdaytimer-premium/internal/infra/redis"
	"bigdaytimer-premium/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "", "path to YAML config file (optional)")
	devMode := flag.Bool("dev", false, "force ENVIRONMENT=development (mock checkout, memory store allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] mock checkout provider enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(cfg.Service.Version, string(cfg.Environment))

	// ---- Entitlement store ----
	repo, limiter, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("entitlement store")
	}
	defer closeStore()

	// ---- Payment provider ----
	provider, err := newCheckoutProvider(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("checkout provider")
	}
	verifier, err := payAdapters.NewPaddleSignatureVerifier(cfg.Paddle.WebhookSecret, cfg.Paddle.SignatureAlgo)
	if err != nil {
		logger.Fatal().Err(err).Msg("webhook verifier")
	}
	if cfg.Paddle.WebhookSecret == "" {
		logger.Warn().Msg("paddle.webhook_secret is empty: every webhook will be rejected")
	}

	// ---- Use cases ----
	checkoutUC, err := usecase.NewCheckoutUseCase(provider, cfg.Environment, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("checkout use case")
	}
	webhookUC := usecase.NewWebhookUseCase(verifier, repo, logger, usecase.WithDevLogging(cfg.Runtime.Dev))
	statusUC := usecase.NewStatusUseCase(repo, logger)

	// ---- HTTP ----
	srv := httpapi.NewServer(cfg, checkoutUC, webhookUC, statusUC, limiter, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()
	logger.Info().
		Str("environment", string(cfg.Environment)).
		Str("store", cfg.Store.Driver).
		Str("provider", provider.Name()).
		Msg("premium service started")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 15*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

// openStore returns the entitlement repository for cfg.Store.Driver, the
// checkout rate limiter when redis is available, and a close func.
func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (repository.EntitlementRepository, httpapi.RateLimiter, func(), error) {
	switch cfg.Store.Driver {
	case "redis":
		client, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("redis: %w", err)
		}
		repo := red.NewEntitlementRepo(client, cfg.Redis.KeyPrefix, cfg.Redis.MaxRetries)
		return repo, red.NewRateLimiter(client), func() { _ = client.Close() }, nil

	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		go pg.ReportPoolStats(ctx, pool, 15*time.Second)
		if cfg.HTTP.CheckoutRateLimit > 0 {
			logger.Warn().Msg("checkout rate limit needs redis; disabled for postgres store")
		}
		return pg.NewPostgresEntitlementRepo(pool), nil, pool.Close, nil

	case "memory":
		logger.Warn().Msg("memory entitlement store: records are lost on restart")
		return memory.NewEntitlementRepo(), nil, func() {}, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newCheckoutProvider picks the provider from the configured environment.
func newCheckoutProvider(cfg *config.Config) (adapter.CheckoutProvider, error) {
	if cfg.Environment.IsProduction() {
		return payAdapters.NewPaddleGateway(cfg.Paddle)
	}
	return payAdapters.NewMockGateway(cfg.Paddle), nil
}
