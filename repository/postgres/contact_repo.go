package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type contactRepository struct {
	pool *pgxpool.Pool
}

// NewContactRepository returns the read-only Postgres view over CRM contacts.
func NewContactRepository(pool *pgxpool.Pool) repository.ContactRepository {
	return &contactRepository{pool: pool}
}

func (r *contactRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Contact, error) {
	const query = `
	SELECT c.id, c.organization_id, c.first_name, c.last_name, c.email, c.phone, c.role,
	       c.telegram_chat_id, c.tags, c.company_id, c.created_at,
	       co.id, co.name, co.industry
	FROM contacts c
	LEFT JOIN companies co ON co.id = c.company_id
	WHERE c.id = $1 AND c.organization_id = $2
	`
	var (
		contact         domain.Contact
		companyID       *string
		companyRowID    *string
		companyName     *string
		companyIndustry *string
	)
	if err := r.pool.QueryRow(ctx, query, id, organizationID).Scan(
		&contact.ID,
		&contact.OrganizationID,
		&contact.FirstName,
		&contact.LastName,
		&contact.Email,
		&contact.Phone,
		&contact.Role,
		&contact.TelegramChatID,
		&contact.Tags,
		&companyID,
		&contact.CreatedAt,
		&companyRowID,
		&companyName,
		&companyIndustry,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContactNotFound
		}
		return nil, err
	}
	if companyID != nil {
		contact.CompanyID = *companyID
	}
	if companyRowID != nil {
		contact.Company = &domain.Company{ID: *companyRowID}
		if companyName != nil {
			contact.Company.Name = *companyName
		}
		if companyIndustry != nil {
			contact.Company.Industry = *companyIndustry
		}
	}
	return &contact, nil
}

func (r *contactRepository) List(ctx context.Context, organizationID string, filter repository.ContactFilter) ([]domain.Contact, error) {
	const query = `
	SELECT id, organization_id, first_name, last_name, email, phone, role, telegram_chat_id, tags, company_id, created_at
	FROM contacts
	WHERE organization_id = $1
	  AND (cardinality($2::text[]) = 0 OR tags && $2::text[])
	  AND (cardinality($3::text[]) = 0 OR company_id = ANY($3::text[]))
	  AND (cardinality($4::text[]) = 0 OR id = ANY($4::text[]))
	ORDER BY created_at ASC
	LIMIT $5
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.pool.Query(ctx, query,
		organizationID,
		emptyIfNil(filter.Tags),
		emptyIfNil(filter.CompanyIDs),
		emptyIfNil(filter.ContactIDs),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []domain.Contact
	for rows.Next() {
		var (
			c         domain.Contact
			companyID *string
		)
		if err := rows.Scan(
			&c.ID,
			&c.OrganizationID,
			&c.FirstName,
			&c.LastName,
			&c.Email,
			&c.Phone,
			&c.Role,
			&c.TelegramChatID,
			&c.Tags,
			&companyID,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}
		if companyID != nil {
			c.CompanyID = *companyID
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
