package clients

import (
	"context"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/domain"
	"facturio/pkg/logger"
)

// Service provides business logic for the Client catalog.
type Service struct {
	repo Repository
}

// NewService creates a new Client service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and stores a new client.
func (s *Service) Create(ctx context.Context, client *Client) error {
	if err := client.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return err
	}
	logger.Info(ctx, "client created", "id", client.ID, "name", client.Name)
	return nil
}

// GetByID retrieves a client.
func (s *Service) GetByID(ctx context.Context, clientID id.ID) (*Client, error) {
	return s.repo.GetByID(ctx, clientID)
}

// Update modifies an existing client.
func (s *Service) Update(ctx context.Context, client *Client) error {
	if err := client.Validate(ctx); err != nil {
		return err
	}
	return s.repo.Update(ctx, client)
}

// Delete soft-deletes a client. The client must belong to the caller.
func (s *Service) Delete(ctx context.Context, userID, clientID id.ID) error {
	client, err := s.repo.GetByID(ctx, clientID)
	if err != nil {
		return err
	}
	if client.UserID != userID {
		return apperror.NewForbidden("client belongs to another account")
	}
	return s.repo.Delete(ctx, clientID)
}

// List retrieves clients with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Client], error) {
	return s.repo.List(ctx, filter)
}
