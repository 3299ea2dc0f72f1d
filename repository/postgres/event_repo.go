package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type eventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository returns a Postgres-backed implementation of EventRepository.
func NewEventRepository(pool *pgxpool.Pool) repository.EventRepository {
	return &eventRepository{pool: pool}
}

func (r *eventRepository) Append(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	if event == nil || event.OrganizationID == "" || event.Type == "" {
		return nil, domain.ErrInvalidPayload
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO events (id, organization_id, event_type, entity_type, entity_id, user_id, agent_id, payload)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
	`

	if err := r.pool.QueryRow(ctx, query,
		event.ID,
		event.OrganizationID,
		string(event.Type),
		event.EntityType,
		event.EntityID,
		event.UserID,
		event.AgentID,
		[]byte(event.Payload),
	).Scan(&event.CreatedAt); err != nil {
		return nil, err
	}

	return event, nil
}

func (r *eventRepository) List(ctx context.Context, organizationID string, filter repository.EventFilter) ([]domain.Event, error) {
	const query = `
	SELECT id, organization_id, event_type, entity_type, entity_id, user_id, agent_id, payload, created_at
	FROM events
	WHERE organization_id = $1
	  AND ($2 = '' OR event_type = $2)
	  AND ($3 = '' OR entity_type = $3)
	ORDER BY created_at DESC
	LIMIT $4
	`
	rows, err := r.pool.Query(ctx, query,
		organizationID, filter.EventType, filter.EntityType, clampLimit(filter.Limit, 100))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			e       domain.Event
			evType  string
			payload []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.OrganizationID,
			&evType,
			&e.EntityType,
			&e.EntityID,
			&e.UserID,
			&e.AgentID,
			&payload,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.Type = domain.EventType(evType)
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}
