// Package jobs runs the scheduled maintenance sweeps through asynq.
// The same operations are reachable over HTTP under /cron; deployments
// pick one scheduler or the other.
package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	"facturio/internal/domain/document"
	"facturio/internal/domain/einvoice"
	"facturio/pkg/logger"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskQuoteExpiry cancels sent quotes whose validity date passed.
	TaskQuoteExpiry = "quotes:expire"
	// TaskInvoiceOverdue flags unpaid invoices past their due date.
	TaskInvoiceOverdue = "invoices:overdue"
	// TaskEInvoiceSync pulls status events from the e-invoicing platform.
	TaskEInvoiceSync = "einvoice:sync"
)

// NewQuoteExpiryTask constructs the quote expiry task. The sweeps carry
// no payload: each run recomputes its target set from the database.
func NewQuoteExpiryTask() *asynq.Task {
	return asynq.NewTask(TaskQuoteExpiry, nil)
}

// NewInvoiceOverdueTask constructs the invoice overdue task.
func NewInvoiceOverdueTask() *asynq.Task {
	return asynq.NewTask(TaskInvoiceOverdue, nil)
}

// NewEInvoiceSyncTask constructs the e-invoice sync task.
func NewEInvoiceSyncTask() *asynq.Task {
	return asynq.NewTask(TaskEInvoiceSync, nil)
}

// Handlers bundles the services the task handlers work against.
type Handlers struct {
	Documents *document.Service
	EInvoice  *einvoice.Engine
}

// HandleQuoteExpiry processes TaskQuoteExpiry tasks.
func (h Handlers) HandleQuoteExpiry(ctx context.Context, _ *asynq.Task) error {
	updated, err := h.Documents.ExpireQuotes(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "quote expiry sweep completed", "job", TaskQuoteExpiry, "updated", updated)
	return nil
}

// HandleInvoiceOverdue processes TaskInvoiceOverdue tasks.
func (h Handlers) HandleInvoiceOverdue(ctx context.Context, _ *asynq.Task) error {
	updated, err := h.Documents.MarkInvoicesOverdue(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "invoice overdue sweep completed", "job", TaskInvoiceOverdue, "updated", updated)
	return nil
}

// HandleEInvoiceSync processes TaskEInvoiceSync tasks. A failed run is
// safe to retry: the cursor only advances after a clean pass, so the
// retry resumes where the stream was last durably consumed.
func (h Handlers) HandleEInvoiceSync(ctx context.Context, _ *asynq.Task) error {
	result, err := h.EInvoice.Sync(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "e-invoice sync completed",
		"job", TaskEInvoiceSync,
		"processed", result.Processed,
		"applied", result.Applied,
		"last_event_id", result.LastEventID,
	)
	return nil
}
