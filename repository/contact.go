package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

// ContactFilter selects campaign target contacts. Zero values are ignored.
type ContactFilter struct {
	Tags       []string
	CompanyIDs []string
	ContactIDs []string
	Limit      int
}

// ContactRepository is the read-only collaborator surface over CRM contacts.
// Contact CRUD belongs to the excluded web layer.
type ContactRepository interface {
	GetByID(ctx context.Context, id, organizationID string) (*domain.Contact, error)
	List(ctx context.Context, organizationID string, filter ContactFilter) ([]domain.Contact, error)
}
