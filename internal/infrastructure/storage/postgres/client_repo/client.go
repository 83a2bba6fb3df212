// Package client_repo provides the PostgreSQL client repository.
package client_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/domain"
	"facturio/internal/domain/clients"
	"facturio/internal/infrastructure/storage/postgres"
)

const tableClients = "clients"

// Compile-time check that Repo implements the domain interface.
var _ clients.Repository = (*Repo)(nil)

// Repo is the PostgreSQL client repository.
type Repo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewRepo creates a client repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[clients.Client](),
	}
}

// Builder returns a new squirrel builder.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new client.
func (r *Repo) Create(ctx context.Context, client *clients.Client) error {
	data := postgres.StructToMap(client)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(tableClients).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tableClients, err)
	}

	return nil
}

// GetByID retrieves a client by ID.
func (r *Repo) GetByID(ctx context.Context, clientID id.ID) (*clients.Client, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(tableClients).
		Where(squirrel.Eq{"id": clientID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	client := &clients.Client{}
	if err := pgxscan.Get(ctx, r.querier(ctx), client, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableClients, clientID.String())
		}
		return nil, fmt.Errorf("get client: %w", err)
	}

	return client, nil
}

// Update updates an existing client with optimistic locking.
func (r *Repo) Update(ctx context.Context, client *clients.Client) error {
	data := postgres.StructToMap(client)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "user_id", "version":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(tableClients).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": client.ID}).
		Where(squirrel.Eq{"version": client.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableClients, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(tableClients, client.ID)
	}

	return nil
}

// Delete soft-deletes a client. Documents keep their client reference.
func (r *Repo) Delete(ctx context.Context, clientID id.ID) error {
	q := r.Builder().
		Update(tableClients).
		Set("deletion_mark", true).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": clientID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", tableClients, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(tableClients, clientID.String())
	}

	return nil
}

// Exists reports whether a client exists and is not soft-deleted.
func (r *Repo) Exists(ctx context.Context, clientID id.ID) (bool, error) {
	sql := "SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND deletion_mark = false)"

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}

	return exists, nil
}

// List retrieves clients with filtering and pagination.
func (r *Repo) List(ctx context.Context, filter clients.ListFilter) (domain.ListResult[*clients.Client], error) {
	result := domain.ListResult[*clients.Client]{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.Builder().
		Select(r.selectCols...).
		From(tableClients)

	if !filter.IncludeDeleted {
		q = q.Where(squirrel.Eq{"deletion_mark": false})
	}
	if filter.UserID != nil {
		q = q.Where(squirrel.Eq{"user_id": *filter.UserID})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": "%" + filter.Search + "%"},
			squirrel.ILike{"email": "%" + filter.Search + "%"},
			squirrel.ILike{"siret": "%" + filter.Search + "%"},
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

func (r *Repo) parseOrderBy(orderBy string) (string, error) {
	allowed := make(map[string]struct{}, len(r.selectCols))
	for _, col := range r.selectCols {
		allowed[col] = struct{}{}
	}

	if strings.TrimSpace(orderBy) == "" {
		return "name ASC", nil
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
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	return field + " " + direction, nil
}
