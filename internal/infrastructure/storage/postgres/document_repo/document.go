// Package document_repo provides the PostgreSQL implementation of the
// document repository. Status mutations are single conditional UPDATEs so
// concurrent writers race on the database predicate, never on application
// state.
package document_repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/domain"
	"facturio/internal/domain/document"
	"facturio/internal/infrastructure/storage/postgres"
)

const (
	tableDocuments = "documents"
	tableLines     = "document_lines"
)

// Compile-time check that Repo implements the domain interface.
var _ document.Repository = (*Repo)(nil)

// Repo is the PostgreSQL document repository.
type Repo struct {
	txManager  *postgres.TxManager
	selectCols []string
	lineCols   []string
}

// NewRepo creates a document repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[document.Document](),
		lineCols:   postgres.ExtractDBColumns[document.Line](),
	}
}

// Builder returns a new squirrel builder.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new document.
func (r *Repo) Create(ctx context.Context, doc *document.Document) error {
	data := postgres.StructToMap(doc)
	if len(data) == 0 {
		return fmt.Errorf("no db tags found in entity")
	}

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(tableDocuments).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	_, err = r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.NewDuplicate(tableDocuments, "number", doc.Number)
		}
		return fmt.Errorf("insert %s: %w", tableDocuments, err)
	}

	return nil
}

// Update updates an existing document with optimistic locking.
// Identity columns (id, user_id, kind, number) are never rewritten.
func (r *Repo) Update(ctx context.Context, doc *document.Document) error {
	data := postgres.StructToMap(doc)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "user_id", "kind", "number", "created_at", "created_by":
			continue // immutable
		case "version", "updated_at":
			continue // managed by repo
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(tableDocuments).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		Where(squirrel.Eq{"version": doc.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableDocuments, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(tableDocuments, doc.ID)
	}

	return nil
}

// Delete removes a document and its lines permanently. The service layer
// only calls this for drafts.
func (r *Repo) Delete(ctx context.Context, docID id.ID) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+tableLines+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("delete lines: %w", err)
	}

	result, err := querier.Exec(ctx, "DELETE FROM "+tableDocuments+" WHERE id = $1", docID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", tableDocuments, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(tableDocuments, docID.String())
	}

	return nil
}

// baseSelect creates a SELECT builder over the documents table.
func (r *Repo) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(tableDocuments)
}

// GetByID retrieves a document by ID. Lines are loaded separately.
func (r *Repo) GetByID(ctx context.Context, docID id.ID) (*document.Document, error) {
	return r.getOne(ctx, r.baseSelect().Where(squirrel.Eq{"id": docID}), docID.String())
}

// GetByNumber retrieves a document by its number within one account.
func (r *Repo) GetByNumber(ctx context.Context, userID id.ID, number string) (*document.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"number": number})
	return r.getOne(ctx, q, number)
}

// GetByAcceptToken finds the quote carrying the given accept token.
func (r *Repo) GetByAcceptToken(ctx context.Context, token string) (*document.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"kind": document.KindQuote}).
		Where(squirrel.Eq{"accept_token": token})
	return r.getOne(ctx, q, "accept_token")
}

// GetByRefuseToken finds the quote carrying the given refuse token.
func (r *Repo) GetByRefuseToken(ctx context.Context, token string) (*document.Document, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"kind": document.KindQuote}).
		Where(squirrel.Eq{"refuse_token": token})
	return r.getOne(ctx, q, "refuse_token")
}

func (r *Repo) getOne(ctx context.Context, q squirrel.SelectBuilder, ref string) (*document.Document, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	doc := &document.Document{}
	if err := pgxscan.Get(ctx, r.querier(ctx), doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableDocuments, ref)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return doc, nil
}

// GetLines loads the table part of a document ordered by line number.
func (r *Repo) GetLines(ctx context.Context, docID id.ID) ([]document.Line, error) {
	q := r.Builder().
		Select(r.lineCols...).
		From(tableLines).
		Where(squirrel.Eq{"document_id": docID}).
		OrderBy("line_no ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	lines := make([]document.Line, 0)
	if err := pgxscan.Select(ctx, r.querier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}

	return lines, nil
}

// SaveLines replaces the table part of a document. Lines belong to exactly
// one document, so a full rewrite is the simplest correct strategy.
func (r *Repo) SaveLines(ctx context.Context, docID id.ID, lines []document.Line) error {
	querier := r.querier(ctx)

	if _, err := querier.Exec(ctx, "DELETE FROM "+tableLines+" WHERE document_id = $1", docID); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}

	if len(lines) == 0 {
		return nil
	}

	q := r.Builder().
		Insert(tableLines).
		Columns("document_id", "line_id", "line_no", "description", "quantity", "unit_price", "tax_rate")
	for _, line := range lines {
		q = q.Values(docID, line.LineID, line.LineNo, line.Description, line.Quantity, line.UnitPrice, line.TaxRate)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lines: %w", err)
	}

	return nil
}

// List retrieves documents with filtering and pagination.
func (r *Repo) List(ctx context.Context, filter document.ListFilter) (domain.ListResult[*document.Document], error) {
	result := domain.ListResult[*document.Document]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.UserID != nil {
		q = q.Where(squirrel.Eq{"user_id": *filter.UserID})
	}
	if filter.ClientID != nil {
		q = q.Where(squirrel.Eq{"client_id": *filter.ClientID})
	}
	if filter.Kind != nil {
		q = q.Where(squirrel.Eq{"kind": *filter.Kind})
	}
	if filter.Status != nil {
		q = q.Where(squirrel.Eq{"status": *filter.Status})
	}
	if filter.DateFrom != nil {
		q = q.Where(squirrel.GtOrEq{"issue_date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		q = q.Where(squirrel.LtOrEq{"issue_date": *filter.DateTo})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"number": "%" + filter.Search + "%"},
			squirrel.ILike{"notes": "%" + filter.Search + "%"},
		})
	}

	querier := r.querier(ctx)

	// Count
	countQ := r.Builder().Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	// Order
	orderBy, err := r.parseOrderBy(filter.OrderBy)
	if err != nil {
		return result, err
	}
	q = q.OrderBy(orderBy)

	// Page
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}

	return result, nil
}

// UpdateStatus applies one conditional transition. Returns false when the
// row's current status no longer matches the from set.
func (r *Repo) UpdateStatus(ctx context.Context, docID id.ID, from []document.Status, to document.Status) (bool, error) {
	q := r.Builder().
		Update(tableDocuments).
		Set("status", to).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"status": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("update status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ExpireQuotes bulk-cancels sent/viewed quotes whose validity date passed.
// A single conditional UPDATE, so re-running after a partial failure only
// touches rows still in a sweepable state.
func (r *Repo) ExpireQuotes(ctx context.Context, now time.Time) (int64, error) {
	return r.sweep(ctx, document.KindQuote, document.StatusCancelled, now)
}

// MarkInvoicesOverdue bulk-marks sent/viewed invoices past their due date.
func (r *Repo) MarkInvoicesOverdue(ctx context.Context, now time.Time) (int64, error) {
	return r.sweep(ctx, document.KindInvoice, document.StatusOverdue, now)
}

func (r *Repo) sweep(ctx context.Context, kind document.Kind, to document.Status, now time.Time) (int64, error) {
	q := r.Builder().
		Update(tableDocuments).
		Set("status", to).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"kind": kind}).
		Where(squirrel.Eq{"status": document.SweepableStatuses()}).
		Where(squirrel.Eq{"deletion_mark": false}).
		Where(squirrel.NotEq{"due_date": nil}).
		Where(squirrel.Lt{"due_date": now})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sweep: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", kind, err)
	}

	return result.RowsAffected(), nil
}

// RespondToQuote atomically records a public accept/refuse response. The
// pre-response status predicate makes the first responder win; a losing
// racer gets false and no row change.
func (r *Repo) RespondToQuote(ctx context.Context, docID id.ID, to document.Status, note string, respondedAt time.Time) (bool, error) {
	q := r.Builder().
		Update(tableDocuments).
		Set("status", to).
		Set("responded_at", respondedAt).
		Set("client_note", note).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": docID}).
		Where(squirrel.Eq{"kind": document.KindQuote}).
		Where(squirrel.Eq{"status": document.PreResponseStatuses()})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("respond to quote: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ApplyExternalStatus overwrites the e-invoicing status of the invoice whose
// external_ref matches, guarded by last-event-id-wins: a stale or replayed
// event matches no row and the write degrades to a no-op.
func (r *Repo) ApplyExternalStatus(ctx context.Context, subjectRef string, status string, eventID int64) (bool, error) {
	q := r.Builder().
		Update(tableDocuments).
		Set("external_status", status).
		Set("external_event_id", eventID).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"kind": document.KindInvoice}).
		Where(squirrel.Eq{"external_ref": subjectRef}).
		Where(squirrel.Or{
			squirrel.Eq{"external_event_id": nil},
			squirrel.LtOrEq{"external_event_id": eventID},
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("apply external status: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// HasReceiptFor reports whether a receipt references the invoice.
func (r *Repo) HasReceiptFor(ctx context.Context, invoiceID id.ID) (bool, error) {
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE kind = $1 AND receipt_for_invoice_id = $2 AND deletion_mark = false
		)
	`

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, document.KindReceipt, invoiceID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has receipt: %w", err)
	}

	return exists, nil
}

func (r *Repo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "issue_date DESC, number DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy).WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
