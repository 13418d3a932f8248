/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the session engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from environment (optional .env file)
  2. Build the zap logger for the configured environment
  3. Open the SQLite store (WAL mode, auto-migration)
  4. Wire the availability cache (Redis when configured, in-memory otherwise)
  5. Construct the registry, scheduler, ledger and payout workflow
  6. Start the HTTP server with graceful shutdown

CONFIGURATION (environment variables):
  ENV                             development | production
  SERVER_PORT                     HTTP port (default 8080)
  DB_PATH                         SQLite path, ":memory:" for in-memory
  REDIS_URL                       Optional; enables the shared cache
  MIN_PAYOUT_MINOR                Minimum payout in minor units
  MAX_PAYOUT_MINOR                Maximum payout in minor units
  BOOKING_HORIZON_DAYS            Availability publishing horizon
  AVAILABILITY_CACHE_TTL_SECONDS  Cached slot-list lifetime

TRANSFER COLLABORATOR:
  The real money-movement system is external. The binary wires a
  placeholder transfer that fabricates a reference and logs the call;
  deployments replace it with the collaborator client.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solace/session-engine/api"
	"github.com/solace/session-engine/availability"
	"github.com/solace/session-engine/config"
	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/payout"
	"github.com/solace/session-engine/scheduling"
	"github.com/solace/session-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.Env)
	defer logger.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	// Availability cache: Redis when configured, process-local otherwise.
	var cache availability.Cache = availability.NewMemoryCache()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		cache = availability.NewRedisCache(client, "solace")
		logger.Info("availability cache backed by redis")
	}

	// Domain wiring
	registry := availability.NewRegistry(store, cache, cfg.CacheTTL())
	registry.HorizonDays = cfg.BookingHorizonDays

	led := ledger.New(store)
	scheduler := scheduling.NewScheduler(store, store, logger)

	limits := payout.Limits{
		Min: ledger.NewAmount(cfg.MinPayoutMinor),
		Max: ledger.NewAmount(cfg.MaxPayoutMinor),
	}
	workflow := payout.NewWorkflow(store, led, placeholderTransfer(logger), store, limits, logger)

	handler := api.NewHandler(registry, scheduler, workflow, led, store)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("port", cfg.ServerPort),
			zap.String("env", cfg.Env),
			zap.String("db", cfg.DBPath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newLogger(env string) *zap.Logger {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.OutputPaths = []string{"stdout"}

	logger, err := cfg.Build()
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return logger
}

// placeholderTransfer stands in for the external money-movement
// collaborator. It always succeeds with a fabricated reference.
func placeholderTransfer(logger *zap.Logger) payout.Transfer {
	return payout.TransferFunc(func(_ context.Context, destination string, amount ledger.Amount) (string, error) {
		ref := "tx_" + uuid.NewString()
		logger.Info("placeholder transfer executed",
			zap.String("destination", destination),
			zap.String("amount", amount.String()),
			zap.String("external_ref", ref))
		return ref, nil
	})
}
