// Package main is the entry point for the Facturio API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"facturio/internal/domain/auth"
	"facturio/internal/domain/clients"
	"facturio/internal/domain/document"
	domeinvoice "facturio/internal/domain/einvoice"
	"facturio/internal/domain/publiclink"
	"facturio/internal/infrastructure/einvoice"
	v1 "facturio/internal/infrastructure/http/v1"
	"facturio/internal/infrastructure/sequence"
	"facturio/internal/infrastructure/storage/postgres"
	"facturio/internal/infrastructure/storage/postgres/auth_repo"
	"facturio/internal/infrastructure/storage/postgres/client_repo"
	"facturio/internal/infrastructure/storage/postgres/cursor_repo"
	"facturio/internal/infrastructure/storage/postgres/document_repo"
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

	ctx := context.Background()
	log.Info("starting facturio server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	// --- Repositories ---
	documentRepo := document_repo.NewRepo(txManager)
	clientRepo := client_repo.NewRepo(txManager)
	userRepo := auth_repo.NewRepo(txManager)
	cursorRepo := cursor_repo.NewRepo(txManager)

	// --- Audit ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// --- Number allocation ---
	allocator := sequence.New(pool)

	// --- JWT ---
	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig(jwtSecret))

	// --- Services ---
	authService := auth.NewService(userRepo, jwtService)
	documentService := document.NewService(documentRepo, allocator, txManager, auditService)
	clientService := clients.NewService(clientRepo)
	publicLinkService := publiclink.NewService(documentRepo)

	// --- E-invoice sync engine ---
	provider := einvoice.NewClient(einvoice.Config{
		BaseURL:   getEnv("EINVOICE_BASE_URL", "https://api.einvoice.example.com"),
		APIKey:    getEnv("EINVOICE_API_KEY", ""),
		PageLimit: getEnvInt("EINVOICE_PAGE_LIMIT", 100),
	})
	syncEngine := domeinvoice.NewEngine(provider, cursorRepo, documentRepo)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:              pool,
		Logger:            log,
		JWTValidator:      jwtService,
		AuthService:       authService,
		DocumentService:   documentService,
		ClientService:     clientService,
		PublicLinkService: publicLinkService,
		EInvoiceEngine:    syncEngine,
		AuditService:      auditService,
		Allocator:         allocator,
		CronSecret:        mustEnv("CRON_SECRET"),
		FrontendBaseURL:   getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
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

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}
