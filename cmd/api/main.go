package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payee-ledger/config"
	httpDto "payee-ledger/internal/adapter/http/dto"
	httpHandler "payee-ledger/internal/adapter/http/handler"
	"payee-ledger/internal/adapter/notify"
	"payee-ledger/internal/adapter/rates"
	pgStorage "payee-ledger/internal/adapter/storage/postgres"
	redisStorage "payee-ledger/internal/adapter/storage/redis"
	"payee-ledger/internal/core/ports"
	"payee-ledger/internal/metrics"
	"payee-ledger/internal/service"
	"payee-ledger/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Payee Ledger")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	walletRepo := pgStorage.NewWalletRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateCache := redisStorage.NewRateCache(rdb, cfg.Rates.CacheTTL)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.Custody.AESKey)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	intentCodec := service.NewJWTIntentCodec(cfg.Intent.Secret, cfg.Intent.Window)
	keyGen := service.NewEd25519KeyGenerator(encSvc)

	// Rate feed: HTTP upstream behind a Redis quote cache
	rateProvider := rates.NewCachedProvider(rates.NewHTTPProvider(cfg.Rates, log), rateCache, log)

	// Notification fan-out: signed webhooks plus Redis pub/sub
	sinks := notify.Multi{
		notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret, sigSvc,
			&http.Client{Timeout: 10 * time.Second}, nil, log),
		notify.NewRedisPublisher(rdb, log),
	}

	// Metrics registry
	m := metrics.New()

	// Initialize business services
	walletSvc := service.NewWalletService(walletRepo, txRepo, keyGen, log)
	transferSvc := service.NewTransferService(
		txRepo,
		walletRepo,
		idempotencyRepo,
		idempotencyCache,
		walletSvc,
		rateProvider,
		transactor,
		sinks,
		m,
		cfg.Rates.Timeout,
		log,
	)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthChecker(rdb)

	// Register request validators before the router binds anything
	if err := httpDto.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register validators")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		TransferSvc:    transferSvc,
		WalletSvc:      walletSvc,
		IntentCodec:    intentCodec,
		TokenSvc:       tokenSvc,
		IntentWindow:   cfg.Intent.Window,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Metrics:        m,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
