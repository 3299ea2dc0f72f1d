package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

// EventFilter narrows event-log queries. Zero values are ignored.
type EventFilter struct {
	EventType  string
	EntityType string
	Limit      int
}

// EventRepository is the append-only event log.
type EventRepository interface {
	Append(ctx context.Context, event *domain.Event) (*domain.Event, error)
	List(ctx context.Context, organizationID string, filter EventFilter) ([]domain.Event, error)
}
