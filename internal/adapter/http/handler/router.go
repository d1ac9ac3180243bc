package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 16

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Ledger         ports.LedgerService
	RateLimitStore ports.RateLimitStore                // nil = rate limiting disabled
	RateLimits     map[string]middleware.RateLimitRule // by middleware.GroupRead / GroupWrite
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Metrics // nil = /metrics not served
	OpenAPISpec    []byte
	MaxBodyBytes   int64
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))
	if deps.Metrics != nil {
		r.Use(middleware.Metrics(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	// Health check pings every configured dependency
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec(deps.OpenAPISpec))
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := deps.RateLimits[group]
		if !ok || rule.Limit <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}
	read, write := rl(middleware.GroupRead), rl(middleware.GroupWrite)

	walletHandler := NewWalletHandler(deps.Ledger)

	v1 := r.Group("/api/v1")
	wallets := v1.Group("/wallets")
	{
		wallets.GET("", read, walletHandler.List)
		wallets.POST("/:name", write, walletHandler.Create)
		wallets.GET("/:name/balance", read, walletHandler.Balance)
		wallets.GET("/:name/history", read, walletHandler.History)
		wallets.GET("/:name/history/page/:page", read, walletHandler.HistoryPage)
		wallets.POST("/:name/deposit", write, walletHandler.Deposit)
		wallets.PUT("/:name/deposit", write, walletHandler.Deposit)
		wallets.POST("/:name/pay", write, walletHandler.Pay)
		wallets.PUT("/:name/pay", write, walletHandler.Pay)
	}

	return r
}
