package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jobhunt-billing/internal/catalog"
	"jobhunt-billing/internal/config"
	"jobhunt-billing/internal/domain/ports/adapter"
	pg "jobhunt-billing/internal/infra/db/postgres"
	"jobhunt-billing/internal/infra/logging"
	"jobhunt-billing/internal/infra/metrics"
	"jobhunt-billing/internal/infra/payment"
	red "jobhunt-billing/internal/infra/redis"
	"jobhunt-billing/internal/infra/sched"
	"jobhunt-billing/internal/infra/web"
	"jobhunt-billing/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (noop payment gateway, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Catalog ----
	cat, err := catalog.New(catalog.Options{
		Plans:     cfg.Billing.Plans,
		Packs:     cfg.Billing.Packs,
		Costs:     cfg.Billing.Costs,
		DrawOrder: cfg.Billing.DrawOrder,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("catalog")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	limiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepo(pool)
	usageRepo := pg.NewUsageEventRepo(pool)
	webhookRepo := pg.NewWebhookEventRepo(pool)
	refundRepo := pg.NewRefundRepo(pool)
	txm := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	var gateway adapter.CheckoutGateway
	if cfg.Runtime.Dev || cfg.Payment.Stripe.SecretKey == "" {
		gateway = payment.NewNoopGateway(cfg.Payment.Stripe.WebhookSecret)
		logger.Warn().Msg("payment gateway: noop (no charges will be made)")
	} else {
		gateway, err = payment.NewStripeGateway(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)
		if err != nil {
			logger.Fatal().Err(err).Msg("stripe gateway")
		}
		logger.Info().Msg("payment gateway: stripe")
	}

	// ---- Use cases ----
	ledger := usecase.NewCreditLedger(accountRepo, refundRepo, cat, txm, logger)
	guard := usecase.NewUsageGuard(ledger, accountRepo, usageRepo, cat, logger)
	lifecycle := usecase.NewSubscriptionLifecycle(accountRepo, webhookRepo, cat, txm, logger)
	billing := usecase.NewBillingService(
		accountRepo, ledger, cat, gateway, txm,
		cfg.Payment.Stripe.SuccessURL, cfg.Payment.Stripe.CancelURL, logger,
	)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TTL)
	webhookHandler := web.NewWebhookHandler(gateway, lifecycle, logger)
	server := web.NewServer(
		billing, guard, webhookHandler, auth, limiter,
		cfg.Server.InternalAPIKey, cfg.RateLimit.CheckoutPerMinute, logger,
	)
	httpSrv := server.NewHTTPServer(fmt.Sprintf(":%d", cfg.Server.Port))

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Rollover worker ----
	worker := sched.NewRolloverWorker(cfg.Scheduler.SweepInterval, cfg.Scheduler.LeaderLockTTL, lifecycle, locker, logger)
	go func() {
		if err := worker.Run(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("rollover worker stopped")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
