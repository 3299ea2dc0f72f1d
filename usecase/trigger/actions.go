package trigger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/usecase"
	"github.com/relaycrm/automation/usecase/deal"
)

// ActionExecutor runs a trigger's action list in order. Execution is not
// transactional: a failing action aborts the remaining ones without
// rolling back the ones already applied.
type ActionExecutor struct {
	deals     *deal.UseCase
	publisher usecase.Publisher
	logger    *zap.Logger
}

func NewActionExecutor(deals *deal.UseCase, publisher usecase.Publisher, logger *zap.Logger) *ActionExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionExecutor{
		deals:     deals,
		publisher: publisher,
		logger:    logger,
	}
}

// Execute applies each action against the event data. The returned error
// identifies the failing action by position.
func (ae *ActionExecutor) Execute(ctx context.Context, trigger *domain.Trigger, event *domain.Event, data map[string]any) error {
	for i, action := range trigger.Actions {
		if err := ae.execute(ctx, trigger, event, data, action); err != nil {
			return fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}
	}
	return nil
}

func (ae *ActionExecutor) execute(ctx context.Context, trigger *domain.Trigger, event *domain.Event, data map[string]any, action domain.Action) error {
	switch action.Type {
	case domain.ActionMoveDeal:
		return ae.moveDeal(ctx, trigger, data, action)
	case domain.ActionCreateDeal:
		return ae.createDeal(ctx, trigger, data, action)
	case domain.ActionPublishEvent:
		return ae.publishEvent(ctx, trigger, event, data, action)
	case domain.ActionSendMessage, domain.ActionUpdateContact:
		ae.logger.Warn("action type not implemented, skipping",
			zap.String("trigger_id", trigger.ID),
			zap.String("action_type", string(action.Type)))
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

func (ae *ActionExecutor) moveDeal(ctx context.Context, trigger *domain.Trigger, data map[string]any, action domain.Action) error {
	dealID, _ := data["dealId"].(string)
	if dealID == "" {
		return fmt.Errorf("event data has no dealId")
	}
	stageID := action.StringParam("stageId")
	if stageID == "" {
		return fmt.Errorf("move_deal requires a stageId param")
	}
	return ae.deals.MoveStage(ctx, dealID, trigger.OrganizationID, stageID)
}

func (ae *ActionExecutor) createDeal(ctx context.Context, trigger *domain.Trigger, data map[string]any, action domain.Action) error {
	contactID, _ := data["contactId"].(string)
	if contactID == "" {
		return fmt.Errorf("event data has no contactId")
	}

	newDeal := &domain.Deal{
		OrganizationID: trigger.OrganizationID,
		ContactID:      contactID,
		PipelineID:     action.StringParam("pipelineId"),
		StageID:        action.StringParam("stageId"),
		Title:          action.StringParam("title"),
	}
	if newDeal.Title == "" {
		newDeal.Title = fmt.Sprintf("Deal for contact %s", contactID)
	}
	if v, ok := action.Params["value"].(float64); ok {
		newDeal.Value = v
	}

	_, err := ae.deals.CreateDeal(ctx, newDeal)
	return err
}

// publishEvent re-publishes the event data under a new type, which is how
// triggers chain into each other.
func (ae *ActionExecutor) publishEvent(ctx context.Context, trigger *domain.Trigger, event *domain.Event, data map[string]any, action domain.Action) error {
	eventType := action.StringParam("eventType")
	if eventType == "" {
		return fmt.Errorf("publish_event requires an eventType param")
	}
	_, err := ae.publisher.Publish(ctx, domain.EventType(eventType), domain.EventInput{
		OrganizationID: trigger.OrganizationID,
		EntityType:     event.EntityType,
		EntityID:       event.EntityID,
		Data:           data,
	})
	return err
}
