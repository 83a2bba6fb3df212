package clients

import (
	"context"

	"facturio/internal/core/id"
	"facturio/internal/domain"
)

// Repository defines the interface for Client persistence.
type Repository interface {
	Create(ctx context.Context, client *Client) error
	GetByID(ctx context.Context, clientID id.ID) (*Client, error)
	Update(ctx context.Context, client *Client) error
	// Delete soft-deletes (sets deletion_mark); documents keep their
	// client reference.
	Delete(ctx context.Context, clientID id.ID) error
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Client], error)
	Exists(ctx context.Context, clientID id.ID) (bool, error)
}

// ListFilter for filtering clients.
type ListFilter struct {
	domain.ListFilter

	UserID *id.ID
}
