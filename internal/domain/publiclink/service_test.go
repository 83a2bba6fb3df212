package publiclink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/domain/document"
)

// fakeRepo implements only what the gateway touches; anything else
// panics via the embedded nil interface.
type fakeRepo struct {
	document.Repository
	quote *document.Document
}

func newFakeRepo(status document.Status) *fakeRepo {
	quote := document.New(id.New(), id.New(), document.KindQuote)
	quote.Status = status
	if err := quote.EnsureResponseTokens(); err != nil {
		panic(err)
	}
	return &fakeRepo{quote: quote}
}

func (r *fakeRepo) GetByAcceptToken(ctx context.Context, token string) (*document.Document, error) {
	if r.quote.AcceptToken != nil && *r.quote.AcceptToken == token {
		cp := *r.quote
		return &cp, nil
	}
	return nil, apperror.NewNotFound("documents", "token")
}

func (r *fakeRepo) GetByRefuseToken(ctx context.Context, token string) (*document.Document, error) {
	if r.quote.RefuseToken != nil && *r.quote.RefuseToken == token {
		cp := *r.quote
		return &cp, nil
	}
	return nil, apperror.NewNotFound("documents", "token")
}

func (r *fakeRepo) GetByID(ctx context.Context, docID id.ID) (*document.Document, error) {
	if r.quote.ID == docID {
		cp := *r.quote
		return &cp, nil
	}
	return nil, apperror.NewNotFound("documents", docID.String())
}

func (r *fakeRepo) RespondToQuote(ctx context.Context, docID id.ID, to document.Status, note string, respondedAt time.Time) (bool, error) {
	if r.quote.ID != docID {
		return false, nil
	}
	for _, s := range document.PreResponseStatuses() {
		if r.quote.Status == s {
			r.quote.Status = to
			r.quote.ClientNote = note
			r.quote.RespondedAt = &respondedAt
			return true, nil
		}
	}
	return false, nil
}

func TestAccept_SentQuote(t *testing.T) {
	repo := newFakeRepo(document.StatusSent)
	s := NewService(repo)

	result, err := s.Accept(context.Background(), *repo.quote.AcceptToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, document.StatusAccepted, result.Quote.Status)
	assert.Equal(t, document.StatusAccepted, repo.quote.Status)
	assert.NotNil(t, repo.quote.RespondedAt)
}

func TestRefuse_ViewedQuoteWithNote(t *testing.T) {
	repo := newFakeRepo(document.StatusViewed)
	s := NewService(repo)

	result, err := s.Refuse(context.Background(), *repo.quote.RefuseToken, "trop cher")
	require.NoError(t, err)
	assert.Equal(t, OutcomeOK, result.Outcome)
	assert.Equal(t, document.StatusRejected, repo.quote.Status)
	assert.Equal(t, "trop cher", repo.quote.ClientNote)
}

func TestUnknownTokenIsIndistinguishableFromMissing(t *testing.T) {
	repo := newFakeRepo(document.StatusSent)
	s := NewService(repo)

	result, err := s.Accept(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidToken, result.Outcome)
	assert.Nil(t, result.Quote)

	result, err = s.Accept(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidToken, result.Outcome)
}

func TestSecondVisitReportsSettledState(t *testing.T) {
	repo := newFakeRepo(document.StatusSent)
	s := NewService(repo)
	ctx := context.Background()

	_, err := s.Accept(ctx, *repo.quote.AcceptToken)
	require.NoError(t, err)

	// Accept link again: the token still resolves, the guard refuses.
	result, err := s.Accept(ctx, *repo.quote.AcceptToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAccepted, result.Outcome)
	require.NotNil(t, result.Quote)
	assert.Equal(t, document.StatusAccepted, result.Quote.Status)

	// The opposite link can no longer flip the decision.
	result, err = s.Refuse(ctx, *repo.quote.RefuseToken, "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyAccepted, result.Outcome)
	assert.Equal(t, document.StatusAccepted, repo.quote.Status)
}

func TestRefusedQuoteReportsAlreadyRefused(t *testing.T) {
	repo := newFakeRepo(document.StatusSent)
	s := NewService(repo)
	ctx := context.Background()

	_, err := s.Refuse(ctx, *repo.quote.RefuseToken, "")
	require.NoError(t, err)

	result, err := s.Accept(ctx, *repo.quote.AcceptToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyRefused, result.Outcome)
}

func TestCancelledQuoteReportsInvalidStatus(t *testing.T) {
	repo := newFakeRepo(document.StatusCancelled)
	s := NewService(repo)

	result, err := s.Accept(context.Background(), *repo.quote.AcceptToken)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidStatus, result.Outcome)
	assert.Equal(t, document.StatusCancelled, repo.quote.Status)
}
