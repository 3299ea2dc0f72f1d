// Package trigger implements condition→action automation rules: CRUD over
// trigger definitions and the engine that evaluates them against
// published events.
package trigger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type UseCase struct {
	triggers   repository.TriggerRepository
	executions repository.ExecutionRepository
	logger     *zap.Logger
}

func New(triggers repository.TriggerRepository, executions repository.ExecutionRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		triggers:   triggers,
		executions: executions,
		logger:     logger,
	}
}

func (uc *UseCase) CreateTrigger(ctx context.Context, trigger *domain.Trigger) (*domain.Trigger, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	return uc.triggers.Create(ctx, trigger)
}

func (uc *UseCase) GetTrigger(ctx context.Context, id, organizationID string) (*domain.Trigger, error) {
	return uc.triggers.GetByID(ctx, id, organizationID)
}

func (uc *UseCase) ListTriggers(ctx context.Context, organizationID string) ([]domain.Trigger, error) {
	return uc.triggers.List(ctx, organizationID)
}

func (uc *UseCase) UpdateTrigger(ctx context.Context, trigger *domain.Trigger) (*domain.Trigger, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.triggers.GetByID(ctx, trigger.ID, trigger.OrganizationID); err != nil {
		return nil, err
	}
	if err := uc.triggers.Update(ctx, trigger); err != nil {
		return nil, err
	}
	return trigger, nil
}

func (uc *UseCase) DeleteTrigger(ctx context.Context, id, organizationID string) error {
	return uc.triggers.Delete(ctx, id, organizationID)
}

// ListExecutions returns the audit trail for one trigger, newest first.
func (uc *UseCase) ListExecutions(ctx context.Context, triggerID, organizationID string, limit int) ([]domain.TriggerExecution, error) {
	if _, err := uc.triggers.GetByID(ctx, triggerID, organizationID); err != nil {
		return nil, err
	}
	return uc.executions.ListByTrigger(ctx, triggerID, organizationID, limit)
}
