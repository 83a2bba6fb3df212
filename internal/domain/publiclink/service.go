// Package publiclink maps unguessable per-quote tokens to their single
// allowed status transition: accepting or refusing a quote without an
// authenticated session.
package publiclink

import (
	"context"
	"time"

	"facturio/internal/core/apperror"
	"facturio/internal/domain/document"
	"facturio/pkg/logger"
)

// Outcome tells the HTTP boundary which page to redirect to. The reason
// is always specific: a consumed link reports what actually happened to
// the quote, not a generic failure.
type Outcome string

const (
	OutcomeOK              Outcome = "ok"
	OutcomeInvalidToken    Outcome = "invalid_token"
	OutcomeAlreadyAccepted Outcome = "already_accepted"
	OutcomeAlreadyRefused  Outcome = "already_refused"
	OutcomeInvalidStatus   Outcome = "invalid_status"
)

// Result is the gateway's answer to one link visit.
type Result struct {
	Outcome Outcome
	Quote   *document.Document // nil for OutcomeInvalidToken
}

// Service resolves response tokens and applies their one transition.
type Service struct {
	repo document.Repository
}

// NewService creates a new public link service.
func NewService(repo document.Repository) *Service {
	return &Service{repo: repo}
}

// Accept handles a visit of the accept link.
func (s *Service) Accept(ctx context.Context, token string) (Result, error) {
	return s.respond(ctx, token, document.StatusAccepted, "")
}

// Refuse handles a visit of the refuse link. The optional note is free
// text from the client and is stored with the refusal.
func (s *Service) Refuse(ctx context.Context, token string, note string) (Result, error) {
	return s.respond(ctx, token, document.StatusRejected, note)
}

func (s *Service) respond(ctx context.Context, token string, target document.Status, note string) (Result, error) {
	if token == "" {
		return Result{Outcome: OutcomeInvalidToken}, nil
	}

	var quote *document.Document
	var err error
	if target == document.StatusAccepted {
		quote, err = s.repo.GetByAcceptToken(ctx, token)
	} else {
		quote, err = s.repo.GetByRefuseToken(ctx, token)
	}
	if err != nil {
		if apperror.IsNotFound(err) {
			return Result{Outcome: OutcomeInvalidToken}, nil
		}
		return Result{}, err
	}

	// The conditional write is the guard: it only fires while the quote
	// is still awaiting a response. Visiting a consumed link can never
	// re-trigger the transition.
	applied, err := s.repo.RespondToQuote(ctx, quote.ID, target, note, time.Now().UTC())
	if err != nil {
		return Result{}, err
	}
	if applied {
		quote.Status = target
		logger.Info(ctx, "quote answered via public link",
			"quote_id", quote.ID, "status", target, "has_note", note != "")
		return Result{Outcome: OutcomeOK, Quote: quote}, nil
	}

	// Predicate failed: re-read to report the precise condition.
	current, err := s.repo.GetByID(ctx, quote.ID)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: consumedOutcome(current.Status), Quote: current}, nil
}

// consumedOutcome maps the quote's settled status to the message the
// visitor should see.
func consumedOutcome(status document.Status) Outcome {
	switch status {
	case document.StatusAccepted:
		return OutcomeAlreadyAccepted
	case document.StatusRejected:
		return OutcomeAlreadyRefused
	default:
		return OutcomeInvalidStatus
	}
}
