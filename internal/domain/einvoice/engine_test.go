package einvoice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves a fixed event log in fixed-size pages.
type fakeProvider struct {
	events   []Event
	pageSize int
	fetches  int
	failAt   int    // fail on the n-th fetch (1-based), 0 disables
	onFetch  func() // runs before each fetch, for interleaving scenarios
}

func (p *fakeProvider) FetchEvents(ctx context.Context, startingAfterID int64) (Page, error) {
	p.fetches++
	if p.onFetch != nil {
		p.onFetch()
	}
	if p.failAt > 0 && p.fetches == p.failAt {
		return Page{}, errors.New("provider unavailable")
	}

	var remaining []Event
	for _, e := range p.events {
		if e.ID > startingAfterID {
			remaining = append(remaining, e)
		}
	}

	if len(remaining) > p.pageSize {
		return Page{Events: remaining[:p.pageSize], HasMore: true}, nil
	}
	return Page{Events: remaining, HasMore: false}, nil
}

// fakeCursor is an in-memory cursor store.
type fakeCursor struct {
	value int64
	saves int
}

func (c *fakeCursor) Load(ctx context.Context) (int64, error) { return c.value, nil }
func (c *fakeCursor) Save(ctx context.Context, lastEventID int64) error {
	c.value = lastEventID
	c.saves++
	return nil
}

// monotoneCursor mirrors the store's clamped write: Save keeps the
// maximum of the stored and offered values, so an overlapping run
// persisting a smaller value cannot rewind the row.
type monotoneCursor struct {
	value    int64
	attempts []int64
}

func (c *monotoneCursor) Load(ctx context.Context) (int64, error) { return c.value, nil }
func (c *monotoneCursor) Save(ctx context.Context, lastEventID int64) error {
	c.attempts = append(c.attempts, lastEventID)
	if lastEventID > c.value {
		c.value = lastEventID
	}
	return nil
}

// fakeInvoices records applied events; unknown subjects are not applied.
type fakeInvoices struct {
	known   map[string]string // external_ref -> last status
	applied []int64
	failOn  int64 // event id that triggers an error, 0 disables
}

func (s *fakeInvoices) ApplyExternalStatus(ctx context.Context, subjectRef string, status string, eventID int64) (bool, error) {
	if s.failOn != 0 && eventID == s.failOn {
		return false, errors.New("database down")
	}
	if _, ok := s.known[subjectRef]; !ok {
		return false, nil
	}
	s.known[subjectRef] = status
	s.applied = append(s.applied, eventID)
	return true, nil
}

func testEvents() []Event {
	return []Event{
		{ID: 1, SubjectID: "ext-1", Status: "submitted"},
		{ID: 2, SubjectID: "ext-2", Status: "submitted"},
		{ID: 3, SubjectID: "ext-1", Status: "delivered"},
		{ID: 4, SubjectID: "ext-3", Status: "submitted"},
		{ID: 5, SubjectID: "ext-2", Status: "rejected"},
	}
}

func TestSync_FromZeroAcrossPages(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 3}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}

	engine := NewEngine(provider, cursor, invoices)
	result, err := engine.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 5, result.Applied)
	assert.Equal(t, int64(5), result.LastEventID)
	assert.Equal(t, int64(5), cursor.value)
	assert.Equal(t, 1, cursor.saves, "cursor is persisted once, after the run")
	assert.Equal(t, "delivered", invoices.known["ext-1"])
	assert.Equal(t, "rejected", invoices.known["ext-2"])
}

func TestSync_SecondRunIsNoOp(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 3}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}
	engine := NewEngine(provider, cursor, invoices)

	_, err := engine.Sync(context.Background())
	require.NoError(t, err)

	result, err := engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, int64(5), result.LastEventID)
	assert.Equal(t, 1, cursor.saves, "unchanged cursor is not rewritten")
}

func TestSync_UnknownSubjectIsProcessedNotApplied(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 10}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": ""}} // ext-3 unknown

	engine := NewEngine(provider, cursor, invoices)
	result, err := engine.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 4, result.Applied)
	// The cursor still advances past the unknown subject's event.
	assert.Equal(t, int64(5), cursor.value)
}

func TestSync_MidRunFailureKeepsOldCursor(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 10}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{
		known:  map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""},
		failOn: 4,
	}

	engine := NewEngine(provider, cursor, invoices)
	result, err := engine.Sync(context.Background())

	require.Error(t, err)
	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, int64(0), cursor.value, "cursor must not advance on failure")
	assert.Equal(t, 0, cursor.saves)

	// Retry resumes from the old cursor and reprocesses the tail.
	invoices.failOn = 0
	result, err = engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, int64(5), cursor.value)
}

func TestSync_FetchFailureKeepsOldCursor(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 2, failAt: 2}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}

	engine := NewEngine(provider, cursor, invoices)
	_, err := engine.Sync(context.Background())

	require.Error(t, err)
	assert.Equal(t, int64(0), cursor.value)
}

func TestSync_PageBoundStopsRun(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 1}
	cursor := &fakeCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}

	engine := NewEngine(provider, cursor, invoices).WithMaxPages(2)
	result, err := engine.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	// Partial progress is still persisted; the next run picks up the rest.
	assert.Equal(t, int64(2), cursor.value)

	result, err = engine.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), cursor.value)
}

func TestSync_OverlappingRunCannotRewindCursor(t *testing.T) {
	cursor := &monotoneCursor{}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}
	provider := &fakeProvider{events: testEvents(), pageSize: 1}

	// While this run is still paging, a faster concurrent run (worker
	// schedule and manual trigger overlap) persists the full stream.
	provider.onFetch = func() {
		cursor.value = 5
	}

	engine := NewEngine(provider, cursor, invoices).WithMaxPages(2)
	result, err := engine.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.LastEventID, "slow run reports its own progress")
	assert.Equal(t, []int64{2}, cursor.attempts)
	assert.Equal(t, int64(5), cursor.value, "durable cursor never moves backwards")
}

func TestSync_ResumesFromStoredCursor(t *testing.T) {
	provider := &fakeProvider{events: testEvents(), pageSize: 10}
	cursor := &fakeCursor{value: 3}
	invoices := &fakeInvoices{known: map[string]string{"ext-1": "", "ext-2": "", "ext-3": ""}}

	engine := NewEngine(provider, cursor, invoices)
	result, err := engine.Sync(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, []int64{4, 5}, invoices.applied)
}
