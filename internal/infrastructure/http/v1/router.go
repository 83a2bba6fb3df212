// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"facturio/internal/core/sequence"
	"facturio/internal/domain/auth"
	"facturio/internal/domain/clients"
	"facturio/internal/domain/document"
	"facturio/internal/domain/einvoice"
	"facturio/internal/domain/publiclink"
	"facturio/internal/infrastructure/http/v1/handlers"
	"facturio/internal/infrastructure/http/v1/middleware"
	"facturio/internal/infrastructure/storage/postgres"
	"facturio/pkg/logger"
)

// RouterConfig holds everything the router needs. Services are built
// once at startup and shared across requests.
type RouterConfig struct {
	// Pool is the database connection pool (for health checks)
	Pool *postgres.Pool

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// AuthService for authentication endpoints
	AuthService *auth.Service

	// DocumentService for document CRUD and lifecycle endpoints
	DocumentService *document.Service

	// ClientService for client directory endpoints
	ClientService *clients.Service

	// PublicLinkService for the unauthenticated quote response gateway
	PublicLinkService *publiclink.Service

	// EInvoiceEngine for the scheduled e-invoice reconciliation
	EInvoiceEngine *einvoice.Engine

	// AuditService backs the document history endpoint
	AuditService *postgres.AuditService

	// Allocator for the non-consuming number preview
	Allocator sequence.Allocator

	// CronSecret protects the /cron endpoints
	CronSecret string

	// FrontendBaseURL is where public link visitors are redirected
	FrontendBaseURL string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// Public quote response gateway (token is the only credential)
	publicHandler := handlers.NewPublicLinkHandler(cfg.PublicLinkService, cfg.FrontendBaseURL)
	public := router.Group("/public")
	{
		public.GET("/quotes/accept/:token", publicHandler.Accept)
		public.GET("/quotes/refuse/:token", publicHandler.Refuse)
	}

	// Scheduled maintenance, guarded by a shared secret
	baseHandler := handlers.NewBaseHandler()
	cronHandler := handlers.NewCronHandler(baseHandler, cfg.DocumentService, cfg.EInvoiceEngine)
	cron := router.Group("/cron")
	cron.Use(middleware.CronSecret(cfg.CronSecret))
	{
		cron.GET("/quotes/expire", cronHandler.ExpireQuotes)
		cron.GET("/invoices/overdue", cronHandler.MarkInvoicesOverdue)
		cron.GET("/einvoice/sync", cronHandler.SyncEInvoices)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		authHandler := handlers.NewAuthHandler(baseHandler, cfg.AuthService)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerDocumentRoutes(protected, baseHandler, cfg)
		registerClientRoutes(protected, baseHandler, cfg)

		sequenceHandler := handlers.NewSequenceHandler(baseHandler, cfg.Allocator)
		protected.GET("/sequences/peek", sequenceHandler.Peek)

		totalsHandler := handlers.NewTotalsHandler(baseHandler)
		protected.POST("/totals/preview", totalsHandler.Preview)
	}

	return router
}

// registerDocumentRoutes registers document CRUD and lifecycle endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewDocumentHandler(base, cfg.DocumentService, cfg.AuditService)

	docs := rg.Group("/documents")
	{
		docs.POST("", handler.Create)
		docs.GET("", handler.List)
		docs.GET("/:id", handler.Get)
		docs.PUT("/:id", handler.Update)
		docs.DELETE("/:id", handler.Delete)
		docs.GET("/:id/history", handler.History)

		docs.POST("/:id/send", handler.Send)
		docs.POST("/:id/mark-viewed", handler.MarkViewed)
		docs.POST("/:id/accept", handler.Accept)
		docs.POST("/:id/refuse", handler.Refuse)
		docs.POST("/:id/cancel", handler.Cancel)
		docs.POST("/:id/mark-paid", handler.MarkPaid)
		docs.POST("/:id/convert", handler.Convert)
	}
}

// registerClientRoutes registers the client directory endpoints.
func registerClientRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewClientHandler(base, cfg.ClientService)

	group := rg.Group("/clients")
	{
		group.POST("", handler.Create)
		group.GET("", handler.List)
		group.GET("/:id", handler.Get)
		group.PUT("/:id", handler.Update)
		group.DELETE("/:id", handler.Delete)
	}
}
