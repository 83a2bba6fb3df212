package document

import (
	"context"
	"time"

	"facturio/internal/core/id"
	"facturio/internal/domain"
)

// Repository defines storage operations for documents.
//
// Every status mutation is a single conditional write scoped by a
// current-status predicate: whichever of two racing writers reaches the
// store first wins and the loser's predicate fails harmlessly. No
// multi-step read-then-write mutation is exposed.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, docID id.ID) (*Document, error)
	GetByNumber(ctx context.Context, userID id.ID, number string) (*Document, error)
	Update(ctx context.Context, doc *Document) error
	// Delete removes a document and its lines for good. The service layer
	// restricts it to draft states.
	Delete(ctx context.Context, docID id.ID) error

	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error)

	// UpdateStatus applies one conditional transition: the row is updated
	// only if its current status is one of from. Returns false when the
	// predicate did not match (raced or already moved on).
	UpdateStatus(ctx context.Context, docID id.ID, from []Status, to Status) (bool, error)

	// ExpireQuotes bulk-cancels sent/viewed quotes whose validity date is
	// before now. One conditional UPDATE; returns rows updated.
	ExpireQuotes(ctx context.Context, now time.Time) (int64, error)

	// MarkInvoicesOverdue bulk-marks sent/viewed invoices with a due date
	// before now. One conditional UPDATE; returns rows updated.
	MarkInvoicesOverdue(ctx context.Context, now time.Time) (int64, error)

	// GetByResponseToken finds the quote carrying the given accept or
	// refuse token (the token is the sole credential).
	GetByAcceptToken(ctx context.Context, token string) (*Document, error)
	GetByRefuseToken(ctx context.Context, token string) (*Document, error)

	// RespondToQuote atomically sets the response status, timestamp and
	// optional client note, guarded by the pre-response status predicate.
	// Returns false when the quote already left SENT/VIEWED.
	RespondToQuote(ctx context.Context, docID id.ID, to Status, note string, respondedAt time.Time) (bool, error)

	// ApplyExternalStatus overwrites the e-invoicing status of the invoice
	// whose external_ref matches subjectRef, only when eventID is not
	// older than the one already recorded (last-event-id-wins, idempotent).
	// Returns false when no invoice matched or the event was stale.
	ApplyExternalStatus(ctx context.Context, subjectRef string, status string, eventID int64) (bool, error)

	// HasReceiptFor reports whether a receipt references the invoice.
	HasReceiptFor(ctx context.Context, invoiceID id.ID) (bool, error)
}

// ListFilter for filtering documents.
type ListFilter struct {
	domain.ListFilter

	UserID   *id.ID
	ClientID *id.ID
	Kind     *Kind
	Status   *Status
	DateFrom *time.Time
	DateTo   *time.Time
}
