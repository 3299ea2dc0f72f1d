// Package policy implements pipeline auto-transition rules: CRUD over
// policy definitions and the engine that moves deals between stages in
// response to contact activity.
package policy

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type UseCase struct {
	policies repository.PolicyRepository
	logger   *zap.Logger
}

func New(policies repository.PolicyRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{policies: policies, logger: logger}
}

func (uc *UseCase) CreatePolicy(ctx context.Context, policy *domain.PipelinePolicy) (*domain.PipelinePolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.PolicyType == "" {
		policy.PolicyType = domain.PolicyTypeAutoTransition
	}
	return uc.policies.Create(ctx, policy)
}

func (uc *UseCase) GetPolicy(ctx context.Context, id, organizationID string) (*domain.PipelinePolicy, error) {
	return uc.policies.GetByID(ctx, id, organizationID)
}

func (uc *UseCase) ListPolicies(ctx context.Context, organizationID string) ([]domain.PipelinePolicy, error) {
	return uc.policies.List(ctx, organizationID)
}

func (uc *UseCase) UpdatePolicy(ctx context.Context, policy *domain.PipelinePolicy) (*domain.PipelinePolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if _, err := uc.policies.GetByID(ctx, policy.ID, policy.OrganizationID); err != nil {
		return nil, err
	}
	if err := uc.policies.Update(ctx, policy); err != nil {
		return nil, err
	}
	return policy, nil
}

func (uc *UseCase) DeletePolicy(ctx context.Context, id, organizationID string) error {
	return uc.policies.Delete(ctx, id, organizationID)
}
