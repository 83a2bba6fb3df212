package document

import (
	"facturio/internal/core/apperror"
)

// Status is a document lifecycle state. Which statuses are legal, and
// which edges between them, depends on the document kind.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusViewed    Status = "VIEWED"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCancelled Status = "CANCELLED"
	StatusPaid      Status = "PAID"
	StatusOverdue   Status = "OVERDUE"
)

// transitions is the legal edge set per kind. Anything absent here is
// rejected, never silently coerced.
var transitions = map[Kind]map[Status][]Status{
	KindQuote: {
		StatusDraft:  {StatusSent},
		StatusSent:   {StatusViewed, StatusAccepted, StatusRejected, StatusCancelled},
		StatusViewed: {StatusAccepted, StatusRejected, StatusCancelled},
	},
	KindInvoice: {
		StatusDraft:   {StatusSent},
		StatusSent:    {StatusViewed, StatusPaid, StatusOverdue},
		StatusViewed:  {StatusPaid, StatusOverdue},
		StatusOverdue: {StatusPaid},
	},
	KindDeposit: {
		StatusDraft: {StatusSent},
		StatusSent:  {StatusPaid},
	},
	// Receipts are born terminal.
	KindReceipt: {},
}

// InitialStatus returns the state a freshly created document starts in.
// Receipts are created directly in their terminal PAID state.
func InitialStatus(kind Kind) Status {
	if kind == KindReceipt {
		return StatusPaid
	}
	return StatusDraft
}

// CanTransition reports whether the edge from -> to exists in the kind's
// legal graph.
func CanTransition(kind Kind, from, to Status) bool {
	for _, next := range transitions[kind][from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns a typed rejection for an illegal edge.
func CheckTransition(kind Kind, from, to Status) error {
	if !CanTransition(kind, from, to) {
		return apperror.NewInvalidTransition(string(kind), string(from), string(to))
	}
	return nil
}

// IsKnownStatus reports whether the status exists at all for the kind
// (as a source, a target, or the initial state).
func IsKnownStatus(kind Kind, status Status) bool {
	if status == InitialStatus(kind) {
		return true
	}
	for from, targets := range transitions[kind] {
		if from == status {
			return true
		}
		for _, to := range targets {
			if to == status {
				return true
			}
		}
	}
	return false
}

// IsMutable reports whether the document content can still be edited.
// Only the draft-like initial state is mutable; receipts never are.
func IsMutable(kind Kind, status Status) bool {
	return kind != KindReceipt && status == StatusDraft
}

// IsTerminal reports whether no edge leaves the status for this kind.
func IsTerminal(kind Kind, status Status) bool {
	return len(transitions[kind][status]) == 0
}

// PreResponseStatuses are the quote states in which a public response
// link is still live. Once the status has left these, the tokens are
// permanently inert.
func PreResponseStatuses() []Status {
	return []Status{StatusSent, StatusViewed}
}

// SweepableStatuses are the states the scheduled sweeps operate on:
// sent-or-viewed documents whose date-based deadline has passed.
func SweepableStatuses() []Status {
	return []Status{StatusSent, StatusViewed}
}
