package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"facturio/internal/domain/document"
	"facturio/internal/domain/einvoice"
	"facturio/pkg/logger"
)

// CronHandler exposes the scheduled maintenance endpoints. They are
// idempotent: a scheduler retry after a timeout re-runs the same sweep
// and finds nothing left to touch.
type CronHandler struct {
	*BaseHandler
	documents *document.Service
	einvoice  *einvoice.Engine
}

// NewCronHandler creates a new cron handler.
func NewCronHandler(base *BaseHandler, documents *document.Service, engine *einvoice.Engine) *CronHandler {
	return &CronHandler{
		BaseHandler: base,
		documents:   documents,
		einvoice:    engine,
	}
}

// ExpireQuotes handles GET /cron/quotes/expire
func (h *CronHandler) ExpireQuotes(c *gin.Context) {
	ctx := c.Request.Context()

	updated, err := h.documents.ExpireQuotes(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	logger.Info(ctx, "quote expiry sweep completed", "updated", updated)
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

// MarkInvoicesOverdue handles GET /cron/invoices/overdue
func (h *CronHandler) MarkInvoicesOverdue(c *gin.Context) {
	ctx := c.Request.Context()

	updated, err := h.documents.MarkInvoicesOverdue(ctx)
	if err != nil {
		h.Error(c, err)
		return
	}

	logger.Info(ctx, "invoice overdue sweep completed", "updated", updated)
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

// SyncEInvoices handles GET /cron/einvoice/sync
func (h *CronHandler) SyncEInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	result, err := h.einvoice.Sync(ctx)
	if err != nil {
		logger.Error(ctx, "e-invoice sync failed",
			"error", err,
			"processed", result.Processed,
			"applied", result.Applied,
		)
		h.Error(c, err)
		return
	}

	logger.Info(ctx, "e-invoice sync completed",
		"processed", result.Processed,
		"applied", result.Applied,
		"last_event_id", result.LastEventID,
	)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"processed":   result.Processed,
		"applied":     result.Applied,
		"lastEventId": result.LastEventID,
	})
}
