package document

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/core/sequence"
	"facturio/internal/core/types"
	"facturio/internal/domain"
)

// mockRepo is an in-memory Repository with the same conditional-write
// semantics as the PostgreSQL implementation.
type mockRepo struct {
	docs  map[id.ID]*Document
	lines map[id.ID][]Line
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		docs:  make(map[id.ID]*Document),
		lines: make(map[id.ID][]Line),
	}
}

func (m *mockRepo) Create(ctx context.Context, doc *Document) error {
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, docID id.ID) (*Document, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return nil, apperror.NewNotFound("documents", docID.String())
	}
	cp := *doc
	return &cp, nil
}

func (m *mockRepo) GetByNumber(ctx context.Context, userID id.ID, number string) (*Document, error) {
	for _, doc := range m.docs {
		if doc.UserID == userID && doc.Number == number {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("documents", number)
}

func (m *mockRepo) Update(ctx context.Context, doc *Document) error {
	if _, ok := m.docs[doc.ID]; !ok {
		return apperror.NewNotFound("documents", doc.ID.String())
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(ctx context.Context, docID id.ID) error {
	if _, ok := m.docs[docID]; !ok {
		return apperror.NewNotFound("documents", docID.String())
	}
	delete(m.docs, docID)
	delete(m.lines, docID)
	return nil
}

func (m *mockRepo) GetLines(ctx context.Context, docID id.ID) ([]Line, error) {
	return m.lines[docID], nil
}

func (m *mockRepo) SaveLines(ctx context.Context, docID id.ID, lines []Line) error {
	m.lines[docID] = append([]Line(nil), lines...)
	return nil
}

func (m *mockRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Document], error) {
	var result domain.ListResult[*Document]
	for _, doc := range m.docs {
		if filter.Kind != nil && doc.Kind != *filter.Kind {
			continue
		}
		if filter.Status != nil && doc.Status != *filter.Status {
			continue
		}
		cp := *doc
		result.Items = append(result.Items, &cp)
	}
	result.TotalCount = int64(len(result.Items))
	return result, nil
}

func (m *mockRepo) UpdateStatus(ctx context.Context, docID id.ID, from []Status, to Status) (bool, error) {
	doc, ok := m.docs[docID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if doc.Status == f {
			doc.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ExpireQuotes(ctx context.Context, now time.Time) (int64, error) {
	return m.sweep(KindQuote, StatusCancelled, now), nil
}

func (m *mockRepo) MarkInvoicesOverdue(ctx context.Context, now time.Time) (int64, error) {
	return m.sweep(KindInvoice, StatusOverdue, now), nil
}

func (m *mockRepo) sweep(kind Kind, to Status, now time.Time) int64 {
	var updated int64
	for _, doc := range m.docs {
		if doc.Kind != kind || doc.DueDate == nil || !doc.DueDate.Before(now) {
			continue
		}
		for _, s := range SweepableStatuses() {
			if doc.Status == s {
				doc.Status = to
				updated++
				break
			}
		}
	}
	return updated
}

func (m *mockRepo) GetByAcceptToken(ctx context.Context, token string) (*Document, error) {
	return m.byToken(func(d *Document) *string { return d.AcceptToken }, token)
}

func (m *mockRepo) GetByRefuseToken(ctx context.Context, token string) (*Document, error) {
	return m.byToken(func(d *Document) *string { return d.RefuseToken }, token)
}

func (m *mockRepo) byToken(get func(*Document) *string, token string) (*Document, error) {
	for _, doc := range m.docs {
		if t := get(doc); t != nil && *t == token {
			cp := *doc
			return &cp, nil
		}
	}
	return nil, apperror.NewNotFound("documents", "token")
}

func (m *mockRepo) RespondToQuote(ctx context.Context, docID id.ID, to Status, note string, respondedAt time.Time) (bool, error) {
	doc, ok := m.docs[docID]
	if !ok || doc.Kind != KindQuote {
		return false, nil
	}
	for _, s := range PreResponseStatuses() {
		if doc.Status == s {
			doc.Status = to
			doc.RespondedAt = &respondedAt
			doc.ClientNote = note
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) ApplyExternalStatus(ctx context.Context, subjectRef string, status string, eventID int64) (bool, error) {
	for _, doc := range m.docs {
		if doc.Kind != KindInvoice || doc.ExternalRef == nil || *doc.ExternalRef != subjectRef {
			continue
		}
		if doc.ExternalEventID != nil && *doc.ExternalEventID > eventID {
			return false, nil
		}
		doc.ExternalStatus = &status
		doc.ExternalEventID = &eventID
		return true, nil
	}
	return false, nil
}

func (m *mockRepo) HasReceiptFor(ctx context.Context, invoiceID id.ID) (bool, error) {
	for _, doc := range m.docs {
		if doc.Kind == KindReceipt && doc.ReceiptForInvoiceID != nil && *doc.ReceiptForInvoiceID == invoiceID {
			return true, nil
		}
	}
	return false, nil
}

// mockAllocator hands out sequential numbers per (user, prefix).
type mockAllocator struct {
	counters map[string]int64
	// failPrefix makes allocation fail for one prefix, simulating a
	// sequence outage for a single document family.
	failPrefix string
}

func newMockAllocator() *mockAllocator {
	return &mockAllocator{counters: make(map[string]int64)}
}

func (a *mockAllocator) NextNumber(ctx context.Context, userID id.ID, cfg sequence.Config, opts *sequence.Options, period time.Time) (string, error) {
	if a.failPrefix != "" && cfg.Prefix == a.failPrefix {
		return "", errors.New("sequence unavailable")
	}
	key := userID.String() + ":" + cfg.Prefix
	a.counters[key]++
	return fmt.Sprintf("%s-%s-%04d", cfg.Prefix, period.Format("2006"), a.counters[key]), nil
}

func (a *mockAllocator) Peek(ctx context.Context, userID id.ID, cfg sequence.Config, period time.Time) (string, error) {
	key := userID.String() + ":" + cfg.Prefix
	return fmt.Sprintf("%s-%s-%04d", cfg.Prefix, period.Format("2006"), a.counters[key]+1), nil
}

func (a *mockAllocator) SetNextValue(ctx context.Context, userID id.ID, cfg sequence.Config, value int64) error {
	a.counters[userID.String()+":"+cfg.Prefix] = value - 1
	return nil
}

// passthroughTx runs the function without a real transaction.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// rollbackTx mimics transactional semantics over the in-memory repo: it
// snapshots the repo before the outermost function and restores the
// snapshot when the function fails. Nested calls join the outer scope,
// like the savepoint handling in the real manager.
type rollbackTx struct {
	repo  *mockRepo
	depth int
}

func (m *rollbackTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.depth > 0 {
		m.depth++
		defer func() { m.depth-- }()
		return fn(ctx)
	}

	snapDocs := make(map[id.ID]*Document, len(m.repo.docs))
	for k, v := range m.repo.docs {
		cp := *v
		snapDocs[k] = &cp
	}
	snapLines := make(map[id.ID][]Line, len(m.repo.lines))
	for k, v := range m.repo.lines {
		snapLines[k] = append([]Line(nil), v...)
	}

	m.depth++
	err := fn(ctx)
	m.depth--
	if err != nil {
		m.repo.docs = snapDocs
		m.repo.lines = snapLines
	}
	return err
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, newMockAllocator(), passthroughTx{}, nil), repo
}

func draftQuote(t *testing.T, s *Service) *Document {
	t.Helper()
	doc := New(id.New(), id.New(), KindQuote)
	doc.AddLine("Site design", types.MustMoney("2"), types.MustMoney("100"), nil)
	require.NoError(t, s.Create(context.Background(), doc))
	return doc
}

func TestCreate_AllocatesNumberAndTotals(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()

	userID := id.New()
	doc := New(userID, id.New(), KindInvoice)
	rate := types.MustMoney("20")
	doc.TaxRate = &rate
	doc.IssueDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	doc.AddLine("Consulting", types.MustMoney("2"), types.MustMoney("100"), nil)

	require.NoError(t, s.Create(ctx, doc))

	assert.Equal(t, "FAC-2026-0001", doc.Number)
	assert.Equal(t, StatusDraft, doc.Status)
	assert.True(t, doc.TotalTTC.Equal(types.MustMoney("240")))

	// A second document continues the sequence.
	doc2 := New(userID, id.New(), KindInvoice)
	doc2.IssueDate = doc.IssueDate
	doc2.AddLine("More consulting", types.MustMoney("1"), types.MustMoney("50"), nil)
	require.NoError(t, s.Create(ctx, doc2))
	assert.Equal(t, "FAC-2026-0002", doc2.Number)
}

func TestCreate_KindsHaveSeparateSequences(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	userID := id.New()
	issue := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	quote := New(userID, id.New(), KindQuote)
	quote.IssueDate = issue
	quote.AddLine("x", types.MustMoney("1"), types.MustMoney("10"), nil)
	require.NoError(t, s.Create(ctx, quote))

	invoice := New(userID, id.New(), KindInvoice)
	invoice.IssueDate = issue
	invoice.AddLine("x", types.MustMoney("1"), types.MustMoney("10"), nil)
	require.NoError(t, s.Create(ctx, invoice))

	assert.Equal(t, "DEV-2026-0001", quote.Number)
	assert.Equal(t, "FAC-2026-0001", invoice.Number)
}

func TestUpdate_RejectedOnceSent(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)

	_, err := s.Send(ctx, doc.ID)
	require.NoError(t, err)

	sent, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	err = s.Update(ctx, sent)
	assert.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeDocumentLocked, appErr.Code)
}

func TestSend_QuoteGetsResponseTokens(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)

	sent, err := s.Send(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, sent.Status)

	stored, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AcceptToken)
	require.NotNil(t, stored.RefuseToken)
	assert.Len(t, *stored.AcceptToken, 64)
	assert.NotEqual(t, *stored.AcceptToken, *stored.RefuseToken)
}

func TestTransition_IllegalEdgeRejected(t *testing.T) {
	s, _ := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)

	err := s.Transition(ctx, doc.ID, StatusAccepted)
	assert.True(t, apperror.IsInvalidTransition(err))
}

func TestTransition_RaceLosesHarmlessly(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)
	_, err := s.Send(ctx, doc.ID)
	require.NoError(t, err)

	// Another writer settles the quote between our read and our write.
	_, err = repo.UpdateStatus(ctx, doc.ID, []Status{StatusSent}, StatusAccepted)
	require.NoError(t, err)

	// Both VIEWED and CANCELLED are legal from SENT, but the row has
	// moved on; the conditional write must not fire.
	err = s.Transition(ctx, doc.ID, StatusCancelled)
	assert.True(t, apperror.IsConcurrentModification(err))

	stored, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, stored.Status)
}

func TestMarkPaid_InvoiceIssuesReceipt(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()

	invoice := New(id.New(), id.New(), KindInvoice)
	invoice.IssueDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	invoice.AddLine("Consulting", types.MustMoney("1"), types.MustMoney("500"), nil)
	require.NoError(t, s.Create(ctx, invoice))
	_, err := s.Send(ctx, invoice.ID)
	require.NoError(t, err)

	receipt, err := s.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	assert.Equal(t, KindReceipt, receipt.Kind)
	assert.Equal(t, StatusPaid, receipt.Status)
	assert.Contains(t, receipt.Number, "REC-")
	require.NotNil(t, receipt.ReceiptForInvoiceID)
	assert.Equal(t, invoice.ID, *receipt.ReceiptForInvoiceID)

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestMarkPaid_ReceiptFailureRollsBackPayment(t *testing.T) {
	repo := newMockRepo()
	alloc := newMockAllocator()
	s := NewService(repo, alloc, &rollbackTx{repo: repo}, nil)
	ctx := context.Background()

	invoice := New(id.New(), id.New(), KindInvoice)
	invoice.AddLine("Consulting", types.MustMoney("1"), types.MustMoney("500"), nil)
	require.NoError(t, s.Create(ctx, invoice))
	_, err := s.Send(ctx, invoice.ID)
	require.NoError(t, err)

	// Receipt numbering is down; the payment must not stick without its
	// receipt, or the invoice would be PAID forever with no way to
	// re-trigger issuance.
	alloc.failPrefix = "REC"
	_, err = s.MarkPaid(ctx, invoice.ID)
	require.Error(t, err)

	stored, err := repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, stored.Status, "failed receipt leaves the invoice payable")

	// Retrying the whole operation succeeds once numbering is back.
	alloc.failPrefix = ""
	receipt, err := s.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Contains(t, receipt.Number, "REC-")

	stored, err = repo.GetByID(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, stored.Status)
}

func TestDelete_InvoiceWithReceiptIsBlocked(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()

	invoice := New(id.New(), id.New(), KindInvoice)
	invoice.AddLine("Consulting", types.MustMoney("1"), types.MustMoney("500"), nil)
	require.NoError(t, s.Create(ctx, invoice))

	// Fabricate a receipt referencing the still-draft invoice.
	receipt := New(invoice.UserID, invoice.ClientID, KindReceipt)
	receipt.ReceiptForInvoiceID = &invoice.ID
	require.NoError(t, s.Create(ctx, receipt))

	err := s.Delete(ctx, invoice.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeReferenced, appErr.Code)

	_, err = repo.GetByID(ctx, invoice.ID)
	assert.NoError(t, err)
}

func TestDelete_DraftSucceeds(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)

	require.NoError(t, s.Delete(ctx, doc.ID))
	_, err := repo.GetByID(ctx, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestConvertToInvoice(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	doc := draftQuote(t, s)
	_, err := s.Send(ctx, doc.ID)
	require.NoError(t, err)

	// Not accepted yet: conversion rejected.
	_, err = s.ConvertToInvoice(ctx, doc.ID)
	assert.True(t, apperror.IsInvalidTransition(err))

	_, err = repo.UpdateStatus(ctx, doc.ID, []Status{StatusSent}, StatusAccepted)
	require.NoError(t, err)

	invoice, err := s.ConvertToInvoice(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, KindInvoice, invoice.Kind)
	assert.Equal(t, StatusDraft, invoice.Status)
	assert.Contains(t, invoice.Number, "FAC-")
	assert.Len(t, invoice.Lines, 1)

	// Converting twice is a conflict.
	_, err = s.ConvertToInvoice(ctx, doc.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestExpireQuotes_SweepIsIdempotent(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	past := time.Now().UTC().Add(-48 * time.Hour)
	future := time.Now().UTC().Add(48 * time.Hour)

	expired := draftQuote(t, s)
	_, err := s.Send(ctx, expired.ID)
	require.NoError(t, err)
	stored, _ := repo.GetByID(ctx, expired.ID)
	stored.DueDate = &past
	require.NoError(t, repo.Update(ctx, stored))

	valid := draftQuote(t, s)
	_, err = s.Send(ctx, valid.ID)
	require.NoError(t, err)
	storedValid, _ := repo.GetByID(ctx, valid.ID)
	storedValid.DueDate = &future
	require.NoError(t, repo.Update(ctx, storedValid))

	updated, err := s.ExpireQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	got, _ := repo.GetByID(ctx, expired.ID)
	assert.Equal(t, StatusCancelled, got.Status)
	got, _ = repo.GetByID(ctx, valid.ID)
	assert.Equal(t, StatusSent, got.Status)

	// Re-run: nothing left to do.
	updated, err = s.ExpireQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated)
}

func TestMarkInvoicesOverdue_Sweep(t *testing.T) {
	s, repo := newTestService()
	ctx := context.Background()
	past := time.Now().UTC().Add(-48 * time.Hour)

	invoice := New(id.New(), id.New(), KindInvoice)
	invoice.AddLine("x", types.MustMoney("1"), types.MustMoney("10"), nil)
	require.NoError(t, s.Create(ctx, invoice))
	_, err := s.Send(ctx, invoice.ID)
	require.NoError(t, err)
	stored, _ := repo.GetByID(ctx, invoice.ID)
	stored.DueDate = &past
	require.NoError(t, repo.Update(ctx, stored))

	// A draft invoice past its due date is untouched: sweeps only act
	// on sent-or-viewed documents.
	draft := New(id.New(), id.New(), KindInvoice)
	draft.DueDate = &past
	draft.AddLine("x", types.MustMoney("1"), types.MustMoney("10"), nil)
	require.NoError(t, s.Create(ctx, draft))

	updated, err := s.MarkInvoicesOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)

	got, _ := repo.GetByID(ctx, invoice.ID)
	assert.Equal(t, StatusOverdue, got.Status)
	got, _ = repo.GetByID(ctx, draft.ID)
	assert.Equal(t, StatusDraft, got.Status)

	// The overdue invoice can still be settled.
	_, err = s.MarkPaid(ctx, invoice.ID)
	require.NoError(t, err)
}
