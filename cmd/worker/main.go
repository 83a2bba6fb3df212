// Package main is the entry point for the Facturio background worker.
// It runs the scheduled sweeps and the e-invoice reconciliation through
// asynq; deployments using an external cron hit the /cron HTTP routes
// instead and skip this binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"facturio/internal/domain/document"
	domeinvoice "facturio/internal/domain/einvoice"
	"facturio/internal/infrastructure/einvoice"
	"facturio/internal/infrastructure/sequence"
	"facturio/internal/infrastructure/storage/postgres"
	"facturio/internal/infrastructure/storage/postgres/cursor_repo"
	"facturio/internal/infrastructure/storage/postgres/document_repo"
	"facturio/internal/jobs"
	"facturio/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting facturio worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)

	documentRepo := document_repo.NewRepo(txManager)
	cursorRepo := cursor_repo.NewRepo(txManager)
	allocator := sequence.New(pool)

	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	documentService := document.NewService(documentRepo, allocator, txManager, auditService)

	provider := einvoice.NewClient(einvoice.Config{
		BaseURL: getEnv("EINVOICE_BASE_URL", "https://api.einvoice.example.com"),
		APIKey:  getEnv("EINVOICE_API_KEY", ""),
	})
	syncEngine := domeinvoice.NewEngine(provider, cursorRepo, documentRepo)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: getEnv("REDIS_ADDR", "localhost:6379")},
		Handlers: jobs.Handlers{
			Documents: documentService,
			EInvoice:  syncEngine,
		},
		Schedule: jobs.DefaultSchedule(),
		Logger:   log,
	})
	if err != nil {
		log.Fatalw("failed to initialize worker", "error", err)
	}

	log.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalw("worker failed", "error", err)
	}

	log.Info("worker stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}
