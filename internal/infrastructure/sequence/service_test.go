package sequence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	coresequence "facturio/internal/core/sequence"
	"facturio/internal/core/id"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the counter row: every call adds the increment and
// returns the new value, like the UPSERT ... RETURNING does.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	// Strict passes (user_id, prefix), increment 1.
	// Cached passes (user_id, prefix, size int64).
	var increment int64 = 1
	if len(args) == 3 {
		if val, ok := args[2].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

var testPeriod = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := coresequence.DefaultConfig("FAC")
	userID := id.New()

	num, err := svc.NextNumber(ctx, userID, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "FAC-2026-0001" {
		t.Errorf("expected FAC-2026-0001, got %s", num)
	}

	num, err = svc.NextNumber(ctx, userID, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "FAC-2026-0002" {
		t.Errorf("expected FAC-2026-0002, got %s", num)
	}
}

func TestNextNumber_YearIsCosmetic(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := coresequence.DefaultConfig("DEV")
	userID := id.New()

	num, err := svc.NextNumber(ctx, userID, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "DEV-2026-0001" {
		t.Errorf("expected DEV-2026-0001, got %s", num)
	}

	// Crossing a year boundary changes the label year but the counter
	// keeps incrementing: no reset, no reuse.
	nextYear := testPeriod.AddDate(1, 0, 0)
	num, err = svc.NextNumber(ctx, userID, cfg, nil, nextYear)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "DEV-2027-0002" {
		t.Errorf("expected DEV-2027-0002, got %s", num)
	}
}

func TestNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := coresequence.DefaultConfig("ORD")
	userID := id.New()

	opts := &coresequence.Options{
		Strategy:  coresequence.StrategyCached,
		RangeSize: 10,
	}

	// First call allocates 1..10 from DB and returns 1.
	num, err := svc.NextNumber(ctx, userID, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-0001" {
		t.Errorf("expected ORD-2026-0001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to be 10, got %d", q.currentValue)
	}

	// Second call is served from memory, DB untouched.
	num, err = svc.NextNumber(ctx, userID, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-0002" {
		t.Errorf("expected ORD-2026-0002, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhaust the range; the next call reserves 11..20.
	for i := 0; i < 8; i++ {
		_, _ = svc.NextNumber(ctx, userID, cfg, opts, testPeriod)
	}

	num, err = svc.NextNumber(ctx, userID, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-0011" {
		t.Errorf("expected ORD-2026-0011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value to be 20, got %d", q.currentValue)
	}
}

func TestNextNumber_CachedRangesAreScopedPerUser(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := coresequence.DefaultConfig("ORD")
	opts := &coresequence.Options{Strategy: coresequence.StrategyCached, RangeSize: 10}

	// Two different users each hit the DB for their own range.
	if _, err := svc.NextNumber(ctx, id.New(), cfg, opts, testPeriod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.NextNumber(ctx, id.New(), cfg, opts, testPeriod); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if q.calls != 2 {
		t.Errorf("expected 2 DB calls (one range per user), got %d", q.calls)
	}
}

func TestParseNumber(t *testing.T) {
	cases := map[string]int64{
		"FAC-2026-0042": 42,
		"DEV-0007":      7,
		"garbage":       -1,
	}
	for input, want := range cases {
		if got := ParseNumber(input); got != want {
			t.Errorf("ParseNumber(%q) = %d, want %d", input, got, want)
		}
	}
}
