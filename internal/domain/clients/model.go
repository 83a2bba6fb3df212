// Package clients provides the Client catalog: the businesses and people
// documents are issued to.
package clients

import (
	"context"
	"regexp"

	"facturio/internal/core/apperror"
	"facturio/internal/core/entity"
	"facturio/internal/core/id"
)

var (
	emailRE  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	digitsRE = regexp.MustCompile(`^\d+$`)
)

// Client represents a billing recipient.
type Client struct {
	entity.BaseCatalog

	// UserID is the owning account.
	UserID id.ID `db:"user_id" json:"userId"`

	Name string `db:"name" json:"name"`

	Email *string `db:"email" json:"email,omitempty"`

	Address *string `db:"address" json:"address,omitempty"`

	// SIRET is the French establishment identifier (14 digits).
	// Directory lookup is handled elsewhere; only the format is checked.
	SIRET *string `db:"siret" json:"siret,omitempty"`

	Phone *string `db:"phone" json:"phone,omitempty"`

	Comment *string `db:"comment" json:"comment,omitempty"`
}

// New creates a new Client.
func New(userID id.ID, name string) *Client {
	return &Client{
		BaseCatalog: entity.NewBaseCatalog(),
		UserID:      userID,
		Name:        name,
	}
}

// Validate implements entity.Validatable.
func (c *Client) Validate(ctx context.Context) error {
	if id.IsNil(c.UserID) {
		return apperror.NewValidation("user is required").
			WithDetail("field", "userId")
	}
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	if c.Email != nil && *c.Email != "" && !emailRE.MatchString(*c.Email) {
		return apperror.NewValidation("invalid email format").
			WithDetail("field", "email")
	}
	if c.SIRET != nil && *c.SIRET != "" {
		if len(*c.SIRET) != 14 || !digitsRE.MatchString(*c.SIRET) {
			return apperror.NewValidation("SIRET must be 14 digits").
				WithDetail("field", "siret")
		}
	}
	return nil
}
