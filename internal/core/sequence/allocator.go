// Package sequence provides domain contracts for document auto-numbering.
// Implementations live in infrastructure layer.
package sequence

import (
	"context"
	"time"

	"facturio/internal/core/id"
)

// Allocator assigns sequential document numbers per user and per document
// family. No two concurrent calls for the same (user, kind) may ever
// return the same integer.
type Allocator interface {
	// NextNumber consumes and returns the next document number.
	// Pattern: PREFIX-YEAR-XXXX (e.g. FAC-2026-0001).
	//
	// The underlying increment must be a single atomic
	// increment-and-return against the counter row. Read-then-write is
	// not an acceptable implementation: two browser tabs autosaving the
	// same draft would race it.
	NextNumber(ctx context.Context, userID id.ID, cfg Config, opts *Options, period time.Time) (string, error)

	// Peek returns the number the next NextNumber call would produce
	// without consuming it. Used for UI preview before submission.
	Peek(ctx context.Context, userID id.ID, cfg Config, period time.Time) (string, error)

	// SetNextValue sets the counter value (for migration purposes).
	SetNextValue(ctx context.Context, userID id.ID, cfg Config, value int64) error
}
