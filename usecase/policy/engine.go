package policy

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
	"github.com/relaycrm/automation/usecase/deal"
)

// policyEvents is the closed set of event types policies may react to.
var policyEvents = map[domain.EventType]bool{
	domain.EventMessageReceived: true,
	domain.EventCampaignReply:   true,
	domain.EventMeetingBooked:   true,
}

// Engine evaluates auto-transition policies. It listens process-wide and
// filters per event; every lookup it performs is still scoped by the
// event's organization.
type Engine struct {
	policies  repository.PolicyRepository
	contacts  repository.ContactRepository
	deals     repository.DealRepository
	pipelines repository.PipelineRepository
	mover     *deal.UseCase
	logger    *zap.Logger
}

func NewEngine(
	policies repository.PolicyRepository,
	contacts repository.ContactRepository,
	deals repository.DealRepository,
	pipelines repository.PipelineRepository,
	mover *deal.UseCase,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		policies:  policies,
		contacts:  contacts,
		deals:     deals,
		pipelines: pipelines,
		mover:     mover,
		logger:    logger,
	}
}

// HandleEvent is the bus consumer entry point. Policy failures are
// isolated per rule and logged; nothing propagates to the publisher.
func (e *Engine) HandleEvent(ctx context.Context, event *domain.Event) {
	if !policyEvents[event.Type] {
		return
	}

	contactID, _ := event.Data()["contactId"].(string)
	if contactID == "" {
		return
	}

	policies, err := e.policies.ListActive(ctx, event.OrganizationID, event.Type)
	if err != nil {
		e.logger.Error("policy lookup failed",
			zap.String("event_type", string(event.Type)),
			zap.String("organization_id", event.OrganizationID),
			zap.Error(err))
		return
	}

	for i := range policies {
		if err := e.apply(ctx, &policies[i], contactID); err != nil {
			e.logger.Warn("policy application failed",
				zap.String("policy_id", policies[i].ID),
				zap.String("contact_id", contactID),
				zap.Error(err))
		}
	}
}

func (e *Engine) apply(ctx context.Context, policy *domain.PipelinePolicy, contactID string) error {
	// First deal in the policy's pipeline wins; multiple deals per
	// contact per pipeline are not disambiguated.
	dealRow, err := e.deals.FirstByContact(ctx, contactID, policy.PipelineID, policy.OrganizationID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	matched, err := e.conditionsMet(ctx, policy, contactID, dealRow)
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	target, err := e.pipelines.StageByName(ctx, policy.PipelineID, policy.Actions.TargetStage)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			e.logger.Warn("policy target stage not found",
				zap.String("policy_id", policy.ID),
				zap.String("target_stage", policy.Actions.TargetStage))
			return nil
		}
		return err
	}

	// Already at the target: no move, no event, no re-entry.
	if dealRow.StageID == target.ID {
		return nil
	}

	if err := e.mover.MoveStage(ctx, dealRow.ID, policy.OrganizationID, target.ID); err != nil {
		return err
	}

	e.logger.Info("policy moved deal",
		zap.String("policy_id", policy.ID),
		zap.String("deal_id", dealRow.ID),
		zap.String("target_stage", policy.Actions.TargetStage))

	return e.runEntryActions(ctx, policy, dealRow)
}

func (e *Engine) conditionsMet(ctx context.Context, policy *domain.PipelinePolicy, contactID string, dealRow *domain.Deal) (bool, error) {
	cond := policy.Conditions
	if cond.IsEmpty() {
		return true, nil
	}

	if len(cond.ContactTags) > 0 {
		contact, err := e.contacts.GetByID(ctx, contactID, policy.OrganizationID)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				return false, nil
			}
			return false, err
		}
		if !contact.HasAnyTag(cond.ContactTags) {
			return false, nil
		}
	}

	if cond.CurrentStage != "" {
		current, err := e.pipelines.StageByName(ctx, policy.PipelineID, cond.CurrentStage)
		if err != nil {
			if domain.IsDomainError(err, domain.ErrCodeNotFound) {
				return false, nil
			}
			return false, err
		}
		if dealRow.StageID != current.ID {
			return false, nil
		}
	}

	return true, nil
}

// runEntryActions applies on-entry actions after a successful move. Only
// the field merge is implemented; notify and create_task are recorded as
// configuration and logged.
func (e *Engine) runEntryActions(ctx context.Context, policy *domain.PipelinePolicy, dealRow *domain.Deal) error {
	entry := policy.Actions.OnEntry
	if entry == nil {
		return nil
	}
	if entry.Notify {
		e.logger.Info("on-entry notify configured but not implemented",
			zap.String("policy_id", policy.ID))
	}
	if entry.CreateTask {
		e.logger.Info("on-entry create_task configured but not implemented",
			zap.String("policy_id", policy.ID))
	}
	if len(entry.UpdateFields) > 0 {
		if err := e.mover.MergeFields(ctx, dealRow.ID, entry.UpdateFields); err != nil {
			return err
		}
	}
	return nil
}
