package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

type TriggerRepository interface {
	Create(ctx context.Context, trigger *domain.Trigger) (*domain.Trigger, error)
	GetByID(ctx context.Context, id, organizationID string) (*domain.Trigger, error)
	// List returns every trigger for the organization ordered by priority
	// descending, then creation time.
	List(ctx context.Context, organizationID string) ([]domain.Trigger, error)
	// ListActive returns active triggers for (organization, eventType) in
	// execution order: priority descending, ties broken by creation time.
	ListActive(ctx context.Context, organizationID string, eventType domain.EventType) ([]domain.Trigger, error)
	Update(ctx context.Context, trigger *domain.Trigger) error
	Delete(ctx context.Context, id, organizationID string) error
}

type ExecutionRepository interface {
	Create(ctx context.Context, execution *domain.TriggerExecution) error
	ListByTrigger(ctx context.Context, triggerID, organizationID string, limit int) ([]domain.TriggerExecution, error)
}
