// Package document provides the Document aggregate: quotes, invoices,
// deposit requests and payment receipts, with their lifecycle rules.
package document

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"facturio/internal/core/apperror"
	"facturio/internal/core/entity"
	"facturio/internal/core/id"
	"facturio/internal/core/sequence"
	"facturio/internal/core/types"
	"facturio/internal/domain/totals"
)

// Kind is the document family. Each family has its own status graph and
// its own numbering prefix.
type Kind string

const (
	KindQuote   Kind = "QUOTE"
	KindInvoice Kind = "INVOICE"
	KindDeposit Kind = "DEPOSIT"
	KindReceipt Kind = "RECEIPT"
)

// Kinds lists all document families.
func Kinds() []Kind {
	return []Kind{KindQuote, KindInvoice, KindDeposit, KindReceipt}
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindQuote, KindInvoice, KindDeposit, KindReceipt:
		return Kind(s), nil
	}
	return "", apperror.NewValidation("unknown document kind").
		WithDetail("field", "kind").
		WithDetail("value", s)
}

// NumberingConfig returns the sequence configuration for a kind.
// Prefixes follow the French document families: DEV devis, FAC facture,
// ACO acompte, REC reçu.
func NumberingConfig(kind Kind) sequence.Config {
	switch kind {
	case KindQuote:
		return sequence.DefaultConfig("DEV")
	case KindInvoice:
		return sequence.DefaultConfig("FAC")
	case KindDeposit:
		return sequence.DefaultConfig("ACO")
	case KindReceipt:
		return sequence.DefaultConfig("REC")
	default:
		return sequence.DefaultConfig(string(kind))
	}
}

// Document is the central entity: one issued (or draft) business document.
type Document struct {
	entity.BaseDocument

	// UserID is the owning account. Numbering counters are scoped by it.
	UserID id.ID `db:"user_id" json:"userId"`

	// ClientID references the client the document is issued to.
	ClientID id.ID `db:"client_id" json:"clientId"`

	Kind Kind `db:"kind" json:"kind"`

	// Number is the human-readable document number (e.g. FAC-2026-0001).
	// Immutable once assigned, unique within (user, kind, year).
	Number string `db:"number" json:"number"`

	Status Status `db:"status" json:"status"`

	// IssueDate is the business date of the document.
	IssueDate time.Time `db:"issue_date" json:"issueDate"`

	// DueDate is the payment due date for invoices and deposits, and the
	// validity date for quotes.
	DueDate *time.Time `db:"due_date" json:"dueDate,omitempty"`

	// Monetary breakdown, every field rounded to 2 decimals.
	Subtotal       types.Money `db:"subtotal" json:"subtotal"`
	DiscountAmount types.Money `db:"discount_amount" json:"discountAmount"`
	NetHT          types.Money `db:"net_ht" json:"netHT"`
	TaxTotal       types.Money `db:"tax_total" json:"taxTotal"`
	TotalTTC       types.Money `db:"total_ttc" json:"totalTTC"`
	DepositApplied types.Money `db:"deposit_applied" json:"depositApplied"`
	NetToPay       types.Money `db:"net_to_pay" json:"netToPay"`

	// Discount descriptor (nil when no discount configured).
	DiscountType  *totals.DiscountType `db:"discount_type" json:"discountType,omitempty"`
	DiscountValue *types.Money         `db:"discount_value" json:"discountValue,omitempty"`

	// TaxRate nil means VAT-exempt issuer; zero is a real configured rate.
	TaxRate *types.Money `db:"tax_rate" json:"taxRate,omitempty"`

	Notes string `db:"notes" json:"notes,omitempty"`

	QuoteMeta
	InvoiceMeta

	// ReceiptForInvoiceID links a receipt to the invoice it settles.
	// An invoice with a receipt can no longer be deleted.
	ReceiptForInvoiceID *id.ID `db:"receipt_for_invoice_id" json:"receiptForInvoiceId,omitempty"`

	// Lines is the table part (loaded separately, owned exclusively).
	Lines []Line `db:"-" json:"lines"`
}

// QuoteMeta holds the quote-only fields. Explicit typed columns, not an
// opaque metadata bag.
type QuoteMeta struct {
	// AcceptToken and RefuseToken are the sole credentials of the public
	// response links. Unguessable, scoped to one document and one
	// transition direction. They are never deleted: availability of the
	// "already responded" message depends on the status guard, not on
	// token removal.
	AcceptToken *string `db:"accept_token" json:"-"`
	RefuseToken *string `db:"refuse_token" json:"-"`

	// RespondedAt records when the client accepted or refused.
	RespondedAt *time.Time `db:"responded_at" json:"respondedAt,omitempty"`

	// ClientNote is the optional free text attached to a refusal.
	ClientNote string `db:"client_note" json:"clientNote,omitempty"`

	// ConvertedToInvoiceID is set once an accepted quote spawned an invoice.
	ConvertedToInvoiceID *id.ID `db:"converted_to_invoice_id" json:"convertedToInvoiceId,omitempty"`
}

// InvoiceMeta holds the invoice-only e-invoicing fields.
type InvoiceMeta struct {
	// ExternalRef is the identifier of this invoice inside the
	// e-invoicing network, assigned on submission.
	ExternalRef *string `db:"external_ref" json:"externalRef,omitempty"`

	// ExternalStatus is the last status code reported by the network.
	ExternalStatus *string `db:"external_status" json:"externalStatus,omitempty"`

	// ExternalEventID is the id of the event that produced ExternalStatus.
	// Updates only apply when the incoming event id is not older.
	ExternalEventID *int64 `db:"external_event_id" json:"externalEventId,omitempty"`
}

// Line is one billable position of a document. Lines never outlive and are
// never shared by another document.
type Line struct {
	LineID      id.ID        `db:"line_id" json:"lineId"`
	LineNo      int          `db:"line_no" json:"lineNo"`
	Description string       `db:"description" json:"description"`
	Quantity    types.Money  `db:"quantity" json:"quantity"`
	UnitPrice   types.Money  `db:"unit_price" json:"unitPrice"`
	TaxRate     *types.Money `db:"tax_rate" json:"taxRate,omitempty"`
}

// New creates a new document of the given kind in its initial status.
func New(userID, clientID id.ID, kind Kind) *Document {
	return &Document{
		BaseDocument: entity.NewBaseDocument(),
		UserID:       userID,
		ClientID:     clientID,
		Kind:         kind,
		Status:       InitialStatus(kind),
		IssueDate:    time.Now().UTC(),
		Lines:        make([]Line, 0),
	}
}

// AddLine appends a line and renumbers the table part.
func (d *Document) AddLine(description string, quantity, unitPrice types.Money, taxRate *types.Money) {
	d.Lines = append(d.Lines, Line{
		LineID:      id.New(),
		LineNo:      len(d.Lines) + 1,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		TaxRate:     taxRate,
	})
}

// Recalculate recomputes the monetary breakdown from the current lines.
func (d *Document) Recalculate() error {
	in := totals.Input{
		Lines:   make([]totals.Line, 0, len(d.Lines)),
		TaxRate: d.TaxRate,
	}
	for _, line := range d.Lines {
		in.Lines = append(in.Lines, totals.Line{
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if d.DiscountType != nil && d.DiscountValue != nil {
		in.Discount = &totals.Discount{Type: *d.DiscountType, Value: *d.DiscountValue}
	}
	if !d.DepositApplied.IsZero() {
		deposit := d.DepositApplied
		in.Deposit = &deposit
	}

	b, err := totals.Compute(in)
	if err != nil {
		return err
	}

	d.Subtotal = b.Subtotal
	d.DiscountAmount = b.DiscountAmount
	d.NetHT = b.NetHT
	d.TaxTotal = b.TaxTotal
	d.TotalTTC = b.TotalTTC
	d.DepositApplied = b.DepositApplied
	d.NetToPay = b.NetToPay
	return nil
}

// Validate implements entity.Validatable.
func (d *Document) Validate(ctx context.Context) error {
	if id.IsNil(d.UserID) {
		return apperror.NewValidation("user is required").
			WithDetail("field", "userId")
	}
	if id.IsNil(d.ClientID) {
		return apperror.NewValidation("client is required").
			WithDetail("field", "clientId")
	}
	if _, err := ParseKind(string(d.Kind)); err != nil {
		return err
	}
	if d.IssueDate.IsZero() {
		return apperror.NewValidation("issue date is required").
			WithDetail("field", "issueDate")
	}
	if !IsKnownStatus(d.Kind, d.Status) {
		return apperror.NewValidation("status is not legal for this kind").
			WithDetail("kind", string(d.Kind)).
			WithDetail("status", string(d.Status))
	}
	for i, line := range d.Lines {
		if line.Description == "" {
			return apperror.NewValidation("line description is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if line.Quantity.IsNegative() || line.UnitPrice.IsNegative() {
			return apperror.NewValidation("line amounts must not be negative").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// CanModify checks if the document is still in a mutable (draft-like)
// state. Issued documents are edited through transitions only.
func (d *Document) CanModify() error {
	if !IsMutable(d.Kind, d.Status) {
		return apperror.NewDocumentLocked(d.ID.String(), string(d.Status))
	}
	return nil
}

// IsExpired reports whether a quote's validity date has passed.
func (d *Document) IsExpired(now time.Time) bool {
	return d.Kind == KindQuote && d.DueDate != nil && d.DueDate.Before(now)
}

// EnsureResponseTokens generates the accept/refuse tokens if absent.
// Called when a quote is sent; the tokens are the only credential of the
// public response links.
func (d *Document) EnsureResponseTokens() error {
	if d.Kind != KindQuote {
		return nil
	}
	if d.AcceptToken == nil {
		token, err := newResponseToken()
		if err != nil {
			return err
		}
		d.AcceptToken = &token
	}
	if d.RefuseToken == nil {
		token, err := newResponseToken()
		if err != nil {
			return err
		}
		d.RefuseToken = &token
	}
	return nil
}

// newResponseToken returns 32 random bytes hex-encoded.
func newResponseToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", apperror.NewInternal(err)
	}
	return hex.EncodeToString(buf), nil
}
