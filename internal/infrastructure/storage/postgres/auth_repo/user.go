// Package auth_repo provides the PostgreSQL user repository.
package auth_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/domain/auth"
	"facturio/internal/infrastructure/storage/postgres"
)

const tableUsers = "users"

// Compile-time check that Repo implements the domain interface.
var _ auth.UserRepository = (*Repo)(nil)

// Repo is the PostgreSQL user repository.
type Repo struct {
	txManager  *postgres.TxManager
	selectCols []string
}

// NewRepo creates a user repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{
		txManager:  txManager,
		selectCols: postgres.ExtractDBColumns[auth.User](),
	}
}

// Builder returns a new squirrel builder.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return r.txManager.GetQuerier(ctx)
}

// Create inserts a new user. Email uniqueness is enforced by the database.
func (r *Repo) Create(ctx context.Context, user *auth.User) error {
	data := postgres.StructToMap(user)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Insert(tableUsers).
		SetMap(filteredData)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		if strings.Contains(err.Error(), "23505") {
			return apperror.NewDuplicate(tableUsers, "email", user.Email)
		}
		return fmt.Errorf("insert %s: %w", tableUsers, err)
	}

	return nil
}

// GetByID retrieves a user by ID.
func (r *Repo) GetByID(ctx context.Context, userID id.ID) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": userID}, userID.String())
}

// GetByEmail retrieves a user by email (case-insensitive).
func (r *Repo) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	return r.getOne(ctx, squirrel.Expr("LOWER(email) = LOWER(?)", email), email)
}

func (r *Repo) getOne(ctx context.Context, pred any, ref string) (*auth.User, error) {
	q := r.Builder().
		Select(r.selectCols...).
		From(tableUsers).
		Where(pred)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	user := &auth.User{}
	if err := pgxscan.Get(ctx, r.querier(ctx), user, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(tableUsers, ref)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

// Update updates an existing user with optimistic locking.
func (r *Repo) Update(ctx context.Context, user *auth.User) error {
	data := postgres.StructToMap(user)

	filteredData := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		switch col {
		case "id", "created_at", "version", "updated_at":
			continue
		}
		if val, ok := data[col]; ok {
			filteredData[col] = val
		}
	}

	q := r.Builder().
		Update(tableUsers).
		SetMap(filteredData).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": user.ID}).
		Where(squirrel.Eq{"version": user.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableUsers, err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(tableUsers, user.ID)
	}

	return nil
}

// ExistsByEmail reports whether a user with the email exists.
func (r *Repo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	sql := "SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))"

	var exists bool
	if err := r.querier(ctx).QueryRow(ctx, sql, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}

	return exists, nil
}
