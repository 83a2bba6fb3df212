package dto

import (
	"encoding/json"
	"time"

	"facturio/internal/infrastructure/storage/postgres"
)

// AuditEntryResponse is one entry of a document's mutation history.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	UserID    string          `json:"userId,omitempty"`
	Changes   json.RawMessage `json:"changes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// FromAuditEntry converts a stored audit entry. Compressed payloads are
// already restored by the audit service before they reach this layer.
func FromAuditEntry(e postgres.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID.String(),
		Action:    e.Action,
		UserID:    e.UserID,
		Changes:   e.Changes,
		CreatedAt: e.CreatedAt,
	}
}
