// Package einvoice reconciles local invoice status with the electronic
// invoicing network's authoritative event log.
//
// The provider exposes a paginated, strictly-increasing-id event stream
// scoped by a startingAfterId cursor. The engine applies events
// idempotently (last-event-id-wins) and only persists the cursor after a
// complete run, trading possible reprocessing on retry for guaranteed
// forward progress and no event loss.
package einvoice

import (
	"context"
	"fmt"

	"facturio/pkg/logger"
)

// Event is one entry of the provider's event log.
type Event struct {
	// ID is the provider-assigned, strictly increasing event identifier.
	ID int64 `json:"id"`
	// SubjectID identifies the invoice inside the network (matches the
	// local invoice's external_ref).
	SubjectID string `json:"subjectId"`
	// Status is the network's status code for the invoice.
	Status string `json:"status"`
}

// Page is one fetch of the event stream.
type Page struct {
	Events  []Event `json:"events"`
	HasMore bool    `json:"hasMore"`
}

// Provider fetches event pages from the e-invoicing network.
type Provider interface {
	// FetchEvents returns events with id > startingAfterID, oldest first.
	FetchEvents(ctx context.Context, startingAfterID int64) (Page, error)
}

// CursorStore persists the single global cursor: the highest event id
// successfully applied. Load lazily creates the row at zero. Save must
// never move the stored value backwards: overlapping runs can offer
// values out of order, and the store keeps the maximum.
type CursorStore interface {
	Load(ctx context.Context) (int64, error)
	Save(ctx context.Context, lastEventID int64) error
}

// InvoiceStore applies one event to the matching local invoice.
type InvoiceStore interface {
	// ApplyExternalStatus overwrites the invoice's external status when
	// eventID is not older than the one already recorded. Returns false
	// when no invoice matched or the event was stale; both are fine.
	ApplyExternalStatus(ctx context.Context, subjectRef string, status string, eventID int64) (bool, error)
}

// DefaultMaxPages bounds one sync run. The provider's hasMore flag is the
// normal termination signal; the cap protects against a provider that
// claims more pages forever. Anything cut off is picked up by the next run.
const DefaultMaxPages = 100

// Engine drives the sync protocol.
type Engine struct {
	provider Provider
	cursor   CursorStore
	invoices InvoiceStore
	maxPages int
}

// NewEngine creates a sync engine with the default page bound.
func NewEngine(provider Provider, cursor CursorStore, invoices InvoiceStore) *Engine {
	return &Engine{
		provider: provider,
		cursor:   cursor,
		invoices: invoices,
		maxPages: DefaultMaxPages,
	}
}

// WithMaxPages overrides the per-run page bound (for tests and tuning).
func (e *Engine) WithMaxPages(n int) *Engine {
	if n > 0 {
		e.maxPages = n
	}
	return e
}

// Result summarizes one sync run.
type Result struct {
	// Processed counts events read from the stream.
	Processed int `json:"processed"`
	// Applied counts events that actually updated an invoice. Events for
	// unknown subjects and stale events are processed but not applied.
	Applied int `json:"applied"`
	// LastEventID is the cursor value after the run.
	LastEventID int64 `json:"lastEventId"`
}

// Sync runs one full reconciliation pass.
//
// Failure semantics: if fetching or applying fails partway through, the
// per-invoice updates already applied remain committed but the cursor is
// not persisted, so the next run resumes from the previous cursor and
// reprocesses the tail. Reapplying the same status is a no-op by
// construction (idempotent overwrite, never an increment).
func (e *Engine) Sync(ctx context.Context) (Result, error) {
	start, err := e.cursor.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load cursor: %w", err)
	}

	candidate := start
	result := Result{LastEventID: start}

	for pages := 0; ; pages++ {
		if pages >= e.maxPages {
			logger.Warn(ctx, "einvoice sync hit page bound, stopping run",
				"pages", pages, "cursor", candidate)
			break
		}

		page, err := e.provider.FetchEvents(ctx, candidate)
		if err != nil {
			return result, fmt.Errorf("fetch events after %d: %w", candidate, err)
		}
		if len(page.Events) == 0 {
			break
		}

		for _, event := range page.Events {
			applied, err := e.invoices.ApplyExternalStatus(ctx, event.SubjectID, event.Status, event.ID)
			if err != nil {
				return result, fmt.Errorf("apply event %d: %w", event.ID, err)
			}
			result.Processed++
			if applied {
				result.Applied++
			}
			// The candidate only ever moves forward, even if the
			// provider delivers ids out of order within a page.
			if event.ID > candidate {
				candidate = event.ID
			}
		}

		if !page.HasMore {
			break
		}
	}

	if candidate > start {
		if err := e.cursor.Save(ctx, candidate); err != nil {
			return result, fmt.Errorf("persist cursor: %w", err)
		}
	}
	result.LastEventID = candidate

	logger.Info(ctx, "einvoice sync completed",
		"processed", result.Processed, "applied", result.Applied, "last_event_id", candidate)
	return result, nil
}
