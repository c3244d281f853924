package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"budgetbuddy/internal/backend"
	"budgetbuddy/internal/config"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Component: log.ComponentWorker,
	})
	log.SetDefault(logger)

	logger.Info("Starting budget-worker")

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Create the configured store backend
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", "error", err)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer func() {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup failed", "error", err)
			}
		}()
	}

	ledger := services.NewLedgerService(result.Store, result.AMQP)
	engine := services.NewEngine(result.Store)

	sweep := func(ctx context.Context, asOf time.Time) {
		if _, err := ledger.EnsureDefaultBudget(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to ensure default budget", "error", err)
			return
		}

		budgets, err := result.Store.FetchBudgets(ctx)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to fetch budgets", "error", err)
			return
		}

		for _, budget := range budgets {
			count, err := engine.MaterializeForCurrentMonth(ctx, budget.ID, asOf)
			if err != nil {
				// Per-rule failures are already isolated inside the engine.
				// Log and keep sweeping the remaining budgets.
				logger.ErrorContext(ctx, "Materialization finished with errors",
					log.FieldBudgetID, budget.ID,
					log.FieldCount, count,
					"error", err)
				continue
			}
			logger.InfoContext(ctx, "Materialization complete",
				log.FieldBudgetID, budget.ID,
				log.FieldCount, count)
		}
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run an initial sweep on startup so a freshly booted worker catches up
	// without waiting for the first scheduled run.
	logger.Info("Running initial materialization sweep")
	sweep(ctx, time.Now())

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.MaterializeSchedule, func() {
		sweep(ctx, time.Now())
	}); err != nil {
		logger.Error("Failed to register materialization schedule", "error", err, "schedule", cfg.MaterializeSchedule)
		os.Exit(1)
	}

	logger.Info("Materialization scheduler configured", "schedule", cfg.MaterializeSchedule)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()

		stopCtx := scheduler.Stop()
		select {
		case <-stopCtx.Done():
			logger.Info("Scheduler drained")
		case <-time.After(cfg.ShutdownTimeout):
			logger.Warn("Scheduler shutdown timeout reached")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("Budget-worker shutdown complete")
}
