package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

type PolicyRepository interface {
	Create(ctx context.Context, policy *domain.PipelinePolicy) (*domain.PipelinePolicy, error)
	GetByID(ctx context.Context, id, organizationID string) (*domain.PipelinePolicy, error)
	List(ctx context.Context, organizationID string) ([]domain.PipelinePolicy, error)
	// ListActive returns active auto_transition policies for
	// (organization, triggerEvent).
	ListActive(ctx context.Context, organizationID string, triggerEvent domain.EventType) ([]domain.PipelinePolicy, error)
	Update(ctx context.Context, policy *domain.PipelinePolicy) error
	Delete(ctx context.Context, id, organizationID string) error
}
