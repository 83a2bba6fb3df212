package document

import (
	"context"
	"fmt"
	"time"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/core/sequence"
	"facturio/internal/core/tx"
	"facturio/internal/domain"
	"facturio/pkg/logger"
)

// Auditor records document mutations for the audit trail.
// Implementations must not fail the business operation: recording is
// best-effort and errors are logged, not propagated.
type Auditor interface {
	Record(ctx context.Context, entityType string, entityID id.ID, action string, changes any) error
}

// Service provides business operations for documents.
type Service struct {
	repo      Repository
	allocator sequence.Allocator
	txManager tx.Manager
	auditor   Auditor
}

// NewService creates a new document service.
func NewService(repo Repository, allocator sequence.Allocator, txManager tx.Manager, auditor Auditor) *Service {
	return &Service{
		repo:      repo,
		allocator: allocator,
		txManager: txManager,
		auditor:   auditor,
	}
}

// Create creates a new document in its initial status. The allocator
// stamps the number, the calculator fills the monetary breakdown.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := doc.Recalculate(); err != nil {
		return err
	}

	if doc.Number == "" {
		// The consumed number is not reclaimed if the insert below
		// fails; a rare gap is accepted over a numbering race.
		number, err := s.allocator.NextNumber(ctx, doc.UserID, NumberingConfig(doc.Kind), sequence.DefaultOptions(), doc.IssueDate)
		if err != nil {
			return fmt.Errorf("allocate number: %w", err)
		}
		doc.Number = number
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, doc.ID, "create", map[string]any{"kind": doc.Kind, "number": doc.Number})
	logger.Info(ctx, "document created", "id", doc.ID, "kind", doc.Kind, "number", doc.Number)
	return nil
}

// GetByID retrieves a document with its lines.
func (s *Service) GetByID(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// List retrieves documents with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the content of a still-mutable document and recomputes
// its totals. The number and status are never touched here.
func (s *Service) Update(ctx context.Context, doc *Document) error {
	if err := doc.CanModify(); err != nil {
		return err
	}
	if err := doc.Validate(ctx); err != nil {
		return err
	}
	if err := doc.Recalculate(); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, doc); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, doc.ID, "update", map[string]any{"number": doc.Number})
	return nil
}

// Delete removes a draft document. Documents that have left their draft
// state are never physically deleted, and an invoice referenced by a
// receipt is blocked even in draft.
func (s *Service) Delete(ctx context.Context, docID id.ID) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}
	if err := doc.CanModify(); err != nil {
		return err
	}

	if doc.Kind == KindInvoice {
		referenced, err := s.repo.HasReceiptFor(ctx, docID)
		if err != nil {
			return err
		}
		if referenced {
			return apperror.NewReferenced("invoice", docID.String())
		}
	}

	if err := s.repo.Delete(ctx, docID); err != nil {
		return err
	}
	s.audit(ctx, docID, "delete", map[string]any{"number": doc.Number})
	return nil
}

// Transition moves a document to target if the edge exists in its kind's
// legal graph. The write itself is one conditional update scoped to the
// observed status, so a concurrent sweep or manual action on the same row
// loses harmlessly instead of double-applying.
func (s *Service) Transition(ctx context.Context, docID id.ID, target Status) error {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return err
	}

	if err := CheckTransition(doc.Kind, doc.Status, target); err != nil {
		return err
	}

	applied, err := s.repo.UpdateStatus(ctx, docID, []Status{doc.Status}, target)
	if err != nil {
		return err
	}
	if !applied {
		return apperror.NewConcurrentModification("document", docID.String())
	}

	s.audit(ctx, docID, "transition", map[string]any{"from": doc.Status, "to": target})
	logger.Info(ctx, "document transitioned", "id", docID, "from", doc.Status, "to", target)
	return nil
}

// Send issues a draft document. For quotes the public response tokens are
// generated before the status flips, so the links in the outgoing email
// are live the moment the client receives them.
func (s *Service) Send(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(doc.Kind, doc.Status, StatusSent); err != nil {
		return nil, err
	}

	if doc.Kind == KindQuote {
		if err := doc.EnsureResponseTokens(); err != nil {
			return nil, err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return nil, err
		}
	}

	applied, err := s.repo.UpdateStatus(ctx, docID, []Status{doc.Status}, StatusSent)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperror.NewConcurrentModification("document", docID.String())
	}
	doc.Status = StatusSent

	s.audit(ctx, docID, "transition", map[string]any{"from": StatusDraft, "to": StatusSent})
	logger.Info(ctx, "document sent", "id", docID, "number", doc.Number)
	return doc, nil
}

// MarkPaid settles an invoice or deposit. For invoices a PAID receipt
// referencing the invoice is issued in the same operation.
func (s *Service) MarkPaid(ctx context.Context, docID id.ID) (*Document, error) {
	doc, err := s.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if err := CheckTransition(doc.Kind, doc.Status, StatusPaid); err != nil {
		return nil, err
	}

	// The status flip and the receipt ride one transaction: a receipt
	// failure rolls the invoice back, so retrying MarkPaid starts from
	// the pre-payment status instead of a paid invoice with no receipt.
	var receipt *Document
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		applied, err := s.repo.UpdateStatus(ctx, docID, []Status{doc.Status}, StatusPaid)
		if err != nil {
			return err
		}
		if !applied {
			return apperror.NewConcurrentModification("document", docID.String())
		}

		if doc.Kind == KindInvoice {
			receipt, err = s.issueReceipt(ctx, doc)
			if err != nil {
				return fmt.Errorf("issue receipt: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	from := doc.Status
	doc.Status = StatusPaid
	s.audit(ctx, docID, "transition", map[string]any{"from": from, "to": StatusPaid})

	logger.Info(ctx, "document paid", "id", docID, "number", doc.Number, "receipt_issued", receipt != nil)
	return receipt, nil
}

// issueReceipt creates the payment receipt for a settled invoice.
// Receipts are born in their terminal PAID state and carry a copy of the
// invoice amounts.
func (s *Service) issueReceipt(ctx context.Context, invoice *Document) (*Document, error) {
	receipt := New(invoice.UserID, invoice.ClientID, KindReceipt)
	receipt.ReceiptForInvoiceID = &invoice.ID
	receipt.TaxRate = invoice.TaxRate
	receipt.Notes = fmt.Sprintf("Payment received for %s", invoice.Number)
	for _, line := range invoice.Lines {
		receipt.AddLine(line.Description, line.Quantity, line.UnitPrice, line.TaxRate)
	}

	if err := s.Create(ctx, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// ConvertToInvoice spawns a draft invoice from an accepted quote, copying
// client, lines and tax configuration. The quote records the new invoice
// id and cannot be converted twice.
func (s *Service) ConvertToInvoice(ctx context.Context, quoteID id.ID) (*Document, error) {
	quote, err := s.GetByID(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if quote.Kind != KindQuote {
		return nil, apperror.NewValidation("only quotes can be converted").
			WithDetail("kind", string(quote.Kind))
	}
	if quote.Status != StatusAccepted {
		return nil, apperror.NewInvalidTransition(string(quote.Kind), string(quote.Status), "converted")
	}
	if quote.ConvertedToInvoiceID != nil {
		return nil, apperror.NewConflict("quote has already been converted").
			WithDetail("invoiceId", quote.ConvertedToInvoiceID.String())
	}

	invoice := New(quote.UserID, quote.ClientID, KindInvoice)
	invoice.TaxRate = quote.TaxRate
	invoice.DiscountType = quote.DiscountType
	invoice.DiscountValue = quote.DiscountValue
	invoice.DepositApplied = quote.DepositApplied
	invoice.Notes = quote.Notes
	for _, line := range quote.Lines {
		invoice.AddLine(line.Description, line.Quantity, line.UnitPrice, line.TaxRate)
	}

	if err := s.Create(ctx, invoice); err != nil {
		return nil, err
	}

	quote.ConvertedToInvoiceID = &invoice.ID
	if err := s.repo.Update(ctx, quote); err != nil {
		return nil, fmt.Errorf("record conversion: %w", err)
	}

	s.audit(ctx, quoteID, "convert", map[string]any{"invoiceId": invoice.ID})
	logger.Info(ctx, "quote converted", "quote_id", quoteID, "invoice_id", invoice.ID)
	return invoice, nil
}

// ExpireQuotes bulk-cancels sent/viewed quotes past their validity date.
// Idempotent: re-running on an unchanged dataset updates zero rows.
func (s *Service) ExpireQuotes(ctx context.Context) (int64, error) {
	updated, err := s.repo.ExpireQuotes(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		logger.Info(ctx, "expired quotes", "updated", updated)
	}
	return updated, nil
}

// MarkInvoicesOverdue bulk-marks sent/viewed invoices past their due date.
// Idempotent for the same reason as ExpireQuotes.
func (s *Service) MarkInvoicesOverdue(ctx context.Context) (int64, error) {
	updated, err := s.repo.MarkInvoicesOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		logger.Info(ctx, "marked invoices overdue", "updated", updated)
	}
	return updated, nil
}

func (s *Service) audit(ctx context.Context, docID id.ID, action string, changes any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, "document", docID, action, changes); err != nil {
		logger.Warn(ctx, "audit record failed", "document_id", docID, "action", action, "error", err)
	}
}
