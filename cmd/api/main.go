// Package main is the entry point for the CaptionFlow ledger API server.
//
// It loads configuration, connects the durable (PostgreSQL) and cache (Redis)
// stores, composes them behind the fallback decorator, wires the ledger
// service and payment gateway, and serves the HTTP API with graceful shutdown
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"captionflow/internal/api/handlers"
	"captionflow/internal/config"
	"captionflow/internal/core"
	"captionflow/internal/external"
	"captionflow/internal/ledger"
	"captionflow/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so main() can cleanly exit on error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("captionflow ledger API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store: PostgreSQL.
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("parsing database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Cache store: Redis. Connection failures at startup are not fatal -- the
	// fallback decorator degrades per operation, and the durable store may
	// well be healthy.
	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.Cache.RedisAddr,
		Password:    cfg.Cache.RedisPassword,
		DB:          cfg.Cache.RedisDB,
		DialTimeout: cfg.Cache.DialTimeout,
	})
	defer redisClient.Close()

	durable := store.NewPostgresStore(pool)
	cache := store.NewRedisStore(redisClient)
	composed := store.NewFallbackStore(durable, cache, logger)

	// Ledger wiring.
	plans := ledger.NewStaticPlanRegistry()
	repo := ledger.NewSubscriptionRepository(composed, plans, logger)
	usage := ledger.NewUsageTracker(composed, plans)
	txlog := ledger.NewTransactionLog(composed, plans)
	gateway := newGateway(cfg, logger)
	svc := ledger.NewService(repo, usage, txlog, gateway, plans, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	ledgerHandler := handlers.NewLedgerHandler(svc, srv.Validator, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, ledgerHandler.RegisterRoutes)
	srv.MountRoutes()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newGateway selects the payment gateway: Stripe when a secret key is
// configured, the always-approving static gateway otherwise (local mode).
func newGateway(cfg *config.Config, logger *slog.Logger) ledger.PaymentGateway {
	if cfg.Billing.StripeSecretKey == "" {
		logger.Warn("no payment gateway configured; using static approval gateway")
		return &external.StaticGateway{}
	}
	httpClient := &http.Client{Timeout: cfg.Billing.Timeout}
	return external.NewStripeGateway(httpClient, external.StripeGatewayConfig{
		SecretKey: cfg.Billing.StripeSecretKey,
		Logger:    logger,
	})
}

// newLogger builds the process-wide structured logger.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
	return logger
}
