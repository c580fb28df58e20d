package handler

import (
	"time"

	"payee-ledger/internal/adapter/http/middleware"
	redisStore "payee-ledger/internal/adapter/storage/redis"
	"payee-ledger/internal/core/ports"
	"payee-ledger/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	TransferSvc    ports.TransferService
	WalletSvc      ports.WalletService
	IntentCodec    ports.IntentCodec
	TokenSvc       ports.TokenService
	IntentWindow   time.Duration
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics // nil = metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Prometheus scrape endpoint
	if deps.Metrics != nil {
		r.GET("/metrics", deps.Metrics.Handler())
	}

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	transferHandler := NewTransferHandler(deps.TransferSvc)
	intentHandler := NewIntentHandler(deps.IntentCodec, deps.TransferSvc, deps.IntentWindow)

	// API v1 routes (all JWT-authenticated)
	v1 := r.Group("/api/v1")

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl("wallets"), walletHandler.Resolve)
		wallets.GET("", rl("wallets"), walletHandler.List)
		wallets.GET("/:id/balance", rl("wallets"), walletHandler.GetBalance)
		wallets.GET("/:id/transactions", rl("wallets"), walletHandler.GetHistory)
		wallets.POST("/:id/deactivate", rl("wallets"), walletHandler.Deactivate)
	}

	transfers := v1.Group("/transfers", jwtAuth)
	{
		transfers.POST("", rl("transfers"), transferHandler.Transfer)
		transfers.POST("/:id/cancel", rl("transfers"), transferHandler.Cancel)
	}

	v1.POST("/deposits", jwtAuth, rl("external"), transferHandler.Deposit)
	v1.POST("/withdrawals", jwtAuth, rl("external"), transferHandler.Withdraw)

	intents := v1.Group("/intents", jwtAuth)
	{
		intents.POST("", rl("intents"), intentHandler.Create)
		intents.POST("/decode", rl("intents"), intentHandler.Decode)
		intents.POST("/pay", rl("transfers"), intentHandler.Pay)
	}

	return r
}
