// Package cursor_repo persists the e-invoicing sync cursor: a single row
// holding the highest event id whose effects are durably applied.
package cursor_repo

import (
	"context"
	"fmt"

	"facturio/internal/domain/einvoice"
	"facturio/internal/infrastructure/storage/postgres"
)

// The cursor is global, so the table holds exactly one row.
const cursorRowID = 1

// Compile-time check that Repo implements the engine's store interface.
var _ einvoice.CursorStore = (*Repo)(nil)

// Repo is the PostgreSQL cursor store.
type Repo struct {
	txManager *postgres.TxManager
}

// NewRepo creates a cursor repository.
func NewRepo(txManager *postgres.TxManager) *Repo {
	return &Repo{txManager: txManager}
}

// Load returns the persisted cursor, lazily creating the row at zero on
// first use.
func (r *Repo) Load(ctx context.Context) (int64, error) {
	querier := r.txManager.GetQuerier(ctx)

	_, err := querier.Exec(ctx, `
		INSERT INTO einvoice_cursor (id, last_event_id)
		VALUES ($1, 0)
		ON CONFLICT (id) DO NOTHING
	`, cursorRowID)
	if err != nil {
		return 0, fmt.Errorf("init cursor: %w", err)
	}

	var lastEventID int64
	err = querier.QueryRow(ctx,
		"SELECT last_event_id FROM einvoice_cursor WHERE id = $1", cursorRowID,
	).Scan(&lastEventID)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	return lastEventID, nil
}

// Save persists the cursor. Written only after every event at or below
// lastEventID has been applied, never mid-batch. GREATEST keeps the row
// monotone when two runs overlap (scheduled worker plus manual trigger):
// a slow run that started at an older cursor cannot rewind a newer value
// already persisted by a faster run.
func (r *Repo) Save(ctx context.Context, lastEventID int64) error {
	querier := r.txManager.GetQuerier(ctx)

	_, err := querier.Exec(ctx, `
		UPDATE einvoice_cursor
		SET last_event_id = GREATEST(last_event_id, $2), updated_at = NOW()
		WHERE id = $1
	`, cursorRowID, lastEventID)
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}

	return nil
}
