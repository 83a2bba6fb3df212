// Package sequence provides the PostgreSQL implementation of document
// auto-numbering. This is the infrastructure layer - it implements the
// core/sequence.Allocator interface.
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	coresequence "facturio/internal/core/sequence"
	"facturio/internal/core/id"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering using PostgreSQL. One counter row
// per (user, prefix); the counter never resets, the year in the label is
// cosmetic only.
type Service struct {
	querier Querier

	// cacheMu protects ranges map
	cacheMu sync.Mutex
	// ranges stores active in-memory ranges for each (user, prefix) key
	ranges map[string]*cachedRange
}

// Ensure compile-time interface compliance.
var _ coresequence.Allocator = (*Service)(nil)

// New creates a new sequence service.
func New(querier Querier) *Service {
	return &Service{
		querier: querier,
		ranges:  make(map[string]*cachedRange),
	}
}

// NextNumber consumes and returns the next document number.
// Pattern: PREFIX-YEAR-XXXX (e.g. FAC-2026-0001).
//
// Supports Strict (DB-level) and Cached (memory-level) strategies.
func (s *Service) NextNumber(ctx context.Context, userID id.ID, cfg coresequence.Config, opts *coresequence.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("sequence service is not initialized")
	}

	if opts == nil {
		opts = coresequence.DefaultOptions()
	}

	var num int64
	var err error

	switch opts.Strategy {
	case coresequence.StrategyCached:
		num, err = s.getNextCached(ctx, userID, cfg.Prefix, opts)
	case coresequence.StrategyStrict:
		fallthrough
	default:
		num, err = s.getNextStrict(ctx, userID, cfg.Prefix)
	}

	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// getNextStrict fetches the next number directly from DB using UPSERT + RETURNING.
// The increment-and-return is a single statement: concurrent callers for the
// same (user, prefix) serialize on the row and can never observe the same value.
func (s *Service) getNextStrict(ctx context.Context, userID id.ID, prefix string) (int64, error) {
	var num int64

	err := s.querier.QueryRow(ctx, `
        INSERT INTO doc_sequences (user_id, prefix, current_val)
        VALUES ($1, $2, 1)
        ON CONFLICT (user_id, prefix) DO UPDATE SET current_val = doc_sequences.current_val + 1
        RETURNING current_val
	`, userID, prefix).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}

	return num, nil
}

// getNextCached fetches next number from memory, refilling from DB if needed.
func (s *Service) getNextCached(ctx context.Context, userID id.ID, prefix string, opts *coresequence.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := cacheKey(userID, prefix)
	rng, exists := s.ranges[cacheKey]
	if !exists {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	// allocate new range if needed
	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50 // default
		}

		var newMax int64
		err := s.querier.QueryRow(ctx, `
            INSERT INTO doc_sequences (user_id, prefix, current_val)
            VALUES ($1, $2, $3)
            ON CONFLICT (user_id, prefix) DO UPDATE SET current_val = doc_sequences.current_val + $3
            RETURNING current_val
		`, userID, prefix, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		// newMax is the end of our range, the start is newMax - size + 1.
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// Peek returns the number the next NextNumber call would produce without
// consuming it. Racy by nature (another writer may take it first), which is
// exactly why it is only used for UI preview.
func (s *Service) Peek(ctx context.Context, userID id.ID, cfg coresequence.Config, period time.Time) (string, error) {
	var current int64
	err := s.querier.QueryRow(ctx, `
		SELECT COALESCE(
			(SELECT current_val FROM doc_sequences WHERE user_id = $1 AND prefix = $2),
			0
		)
	`, userID, cfg.Prefix).Scan(&current)
	if err != nil {
		return "", fmt.Errorf("peek: %w", err)
	}

	return formatNumber(cfg, period, current+1), nil
}

// SetNextValue sets the counter value (for migration purposes).
func (s *Service) SetNextValue(ctx context.Context, userID id.ID, cfg coresequence.Config, value int64) error {
	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO doc_sequences (user_id, prefix, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, prefix) DO UPDATE SET current_val = $3
		RETURNING current_val
	`, userID, cfg.Prefix, value).Scan(&result)

	// Invalidate cached range for this key if exists
	s.cacheMu.Lock()
	delete(s.ranges, cacheKey(userID, cfg.Prefix))
	s.cacheMu.Unlock()

	return err
}

func cacheKey(userID id.ID, prefix string) string {
	return userID.String() + ":" + prefix
}

// formatNumber creates the final number string.
func formatNumber(cfg coresequence.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 4
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	patterns := []string{
		"%*[^-]-%*d-%d",
		"%*[^-]-%d",
	}

	for _, pattern := range patterns {
		if _, err := fmt.Sscanf(formatted, pattern, &num); err == nil {
			return num
		}
	}

	return -1
}
