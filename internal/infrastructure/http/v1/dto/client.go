package dto

import (
	"facturio/internal/core/id"
	"facturio/internal/domain/clients"
)

// CreateClientRequest for creating clients.
type CreateClientRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	SIRET   *string `json:"siret,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Comment *string `json:"comment,omitempty"`
}

// ToClient builds a client owned by userID.
func (r *CreateClientRequest) ToClient(userID id.ID) *clients.Client {
	client := clients.New(userID, r.Name)
	client.Email = r.Email
	client.Address = r.Address
	client.SIRET = r.SIRET
	client.Phone = r.Phone
	client.Comment = r.Comment
	return client
}

// UpdateClientRequest for updating clients.
type UpdateClientRequest struct {
	Name    string  `json:"name" binding:"required"`
	Email   *string `json:"email,omitempty"`
	Address *string `json:"address,omitempty"`
	SIRET   *string `json:"siret,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Comment *string `json:"comment,omitempty"`
	Version int     `json:"version" binding:"required,min=1"`
}

// Apply merges the request into an existing client.
func (r *UpdateClientRequest) Apply(client *clients.Client) {
	client.Name = r.Name
	client.Email = r.Email
	client.Address = r.Address
	client.SIRET = r.SIRET
	client.Phone = r.Phone
	client.Comment = r.Comment
	client.Version = r.Version
}

// ClientResponse contains client fields.
type ClientResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	Address      *string `json:"address,omitempty"`
	SIRET        *string `json:"siret,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	Comment      *string `json:"comment,omitempty"`
	DeletionMark bool    `json:"deletionMark"`
	Version      int     `json:"version"`
}

// FromClient creates ClientResponse from a domain client.
func FromClient(c *clients.Client) ClientResponse {
	return ClientResponse{
		ID:           c.ID.String(),
		Name:         c.Name,
		Email:        c.Email,
		Address:      c.Address,
		SIRET:        c.SIRET,
		Phone:        c.Phone,
		Comment:      c.Comment,
		DeletionMark: c.DeletionMark,
		Version:      c.Version,
	}
}

// ClientFilterRequest contains list filter parameters.
type ClientFilterRequest struct {
	PaginationRequest
	Search  string `form:"search"`
	OrderBy string `form:"orderBy"`
}
