package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wallet-ledger/config"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/http/middleware"
	memStorage "wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/registry"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"
	"wallet-ledger/pkg/metrics"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("WLT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Database.Driver).
		Msg("Starting Wallet Ledger")

	if cfg.Ledger.AdminToken == "" {
		log.Warn().Msg("ledger.admin_token is empty, deposits and wallet listing are disabled")
	}

	ctx := context.Background()

	var (
		walletRepo ports.WalletRepository
		opRepo     ports.OperationRepository
		transactor ports.DBTransactor
		checkers   []ports.HealthChecker
	)

	// Initialize storage
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		log.Info().Msg("PostgreSQL connected")

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool); err != nil {
				log.Fatal().Err(err).Msg("Failed to apply schema")
			}
			log.Info().Msg("Schema applied")
		}

		walletRepo = pgStorage.NewWalletRepo(pool)
		opRepo = pgStorage.NewOperationRepo(pool)
		transactor = pgStorage.NewTransactor(pool)
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	case config.DriverMemory:
		store := memStorage.NewStore(cfg.Database.LockTimeout)
		walletRepo = store.Wallets()
		opRepo = store.Operations()
		transactor = store
		log.Warn().Msg("Using in-memory storage, state is lost on exit")
	}

	// Initialize Redis client
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	// Operation id register
	var register ports.OperationIDRegister
	switch cfg.Ledger.DedupBackend {
	case config.DedupMemory:
		register = registry.New(cfg.Ledger.DedupLimit)
	case config.DedupRedis:
		register = redisStorage.NewOperationRegister(rdb, cfg.Ledger.DedupTTL)
	}

	// Rate limiting
	var rateLimitStore ports.RateLimitStore
	if cfg.RateLimit.Enabled {
		if rdb != nil {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		} else {
			rateLimitStore = memStorage.NewRateLimitStore()
		}
	}
	rateLimits := map[string]middleware.RateLimitRule{
		middleware.GroupRead:  {Limit: cfg.RateLimit.ReadLimit, Window: cfg.RateLimit.Window},
		middleware.GroupWrite: {Limit: cfg.RateLimit.WriteLimit, Window: cfg.RateLimit.Window},
	}

	// Initialize services
	m := metrics.New()
	hasher := service.NewArgon2Hasher(service.Argon2Params{
		Time:      cfg.Credential.Time,
		MemoryKiB: cfg.Credential.MemoryKiB,
		Threads:   cfg.Credential.Threads,
	})
	ledgerSvc := service.NewLedgerService(
		walletRepo,
		opRepo,
		transactor,
		hasher,
		register,
		service.LedgerConfig{
			AdminToken:      cfg.Ledger.AdminToken,
			MaxAttempts:     cfg.Ledger.MaxAttempts,
			RetryBackoff:    cfg.Ledger.RetryBackoff,
			HistoryPageSize: cfg.Ledger.HistoryPageSize,
		},
		m,
		log,
	)

	// Load OpenAPI spec for Swagger UI
	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Ledger:         ledgerSvc,
		RateLimitStore: rateLimitStore,
		RateLimits:     rateLimits,
		HealthCheckers: checkers,
		Metrics:        m,
		OpenAPISpec:    specBytes,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
