// Package deal covers the slice of deal behavior the automation core
// owns: creating deals from trigger actions and moving them between
// stages. Every stage move publishes deal.stage.changed, which is what
// lets pipeline policies chain.
package deal

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
	"github.com/relaycrm/automation/usecase"
)

type UseCase struct {
	deals     repository.DealRepository
	pipelines repository.PipelineRepository
	publisher usecase.Publisher
	logger    *zap.Logger
}

func New(
	deals repository.DealRepository,
	pipelines repository.PipelineRepository,
	publisher usecase.Publisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		deals:     deals,
		pipelines: pipelines,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *UseCase) GetDeal(ctx context.Context, id, organizationID string) (*domain.Deal, error) {
	return uc.deals.GetByID(ctx, id, organizationID)
}

// CreateDeal persists the deal and publishes deal.created.
func (uc *UseCase) CreateDeal(ctx context.Context, deal *domain.Deal) (*domain.Deal, error) {
	if deal.Title == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "deal title is required", nil)
	}
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}

	created, err := uc.deals.Create(ctx, deal)
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, domain.EventDealCreated, created.OrganizationID, created.ID, map[string]any{
		"dealId":     created.ID,
		"contactId":  created.ContactID,
		"pipelineId": created.PipelineID,
		"stageId":    created.StageID,
		"title":      created.Title,
	})
	return created, nil
}

// MoveStage updates the deal's stage and publishes deal.stage.changed
// with both the previous and the new stage. Moving a deal to the stage
// it is already in is a no-op and publishes nothing.
func (uc *UseCase) MoveStage(ctx context.Context, id, organizationID, stageID string) error {
	deal, err := uc.deals.GetByID(ctx, id, organizationID)
	if err != nil {
		return err
	}
	if deal.StageID == stageID {
		return nil
	}

	if err := uc.deals.UpdateStage(ctx, id, organizationID, stageID); err != nil {
		return err
	}

	fromStage, _ := uc.pipelines.StageNameByID(ctx, deal.StageID)
	toStage, _ := uc.pipelines.StageNameByID(ctx, stageID)

	uc.publish(ctx, domain.EventDealStageChanged, organizationID, id, map[string]any{
		"dealId":        id,
		"contactId":     deal.ContactID,
		"pipelineId":    deal.PipelineID,
		"fromStageId":   deal.StageID,
		"toStageId":     stageID,
		"fromStageName": fromStage,
		"toStageName":   toStage,
	})
	return nil
}

// MergeFields shallow-merges custom fields into the deal.
func (uc *UseCase) MergeFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return uc.deals.MergeFields(ctx, id, fields)
}

func (uc *UseCase) publish(ctx context.Context, eventType domain.EventType, organizationID, dealID string, data map[string]any) {
	if uc.publisher == nil {
		return
	}
	_, err := uc.publisher.Publish(ctx, eventType, domain.EventInput{
		OrganizationID: organizationID,
		EntityType:     "deal",
		EntityID:       dealID,
		Data:           data,
	})
	if err != nil {
		uc.logger.Warn("deal event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("deal_id", dealID),
			zap.Error(err))
	}
}
