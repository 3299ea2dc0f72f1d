// Package campaign implements multi-step outreach: campaign lifecycle,
// the delayed sequencer that walks contacts through steps, and reply
// detection that exits contacts from a sequence.
package campaign

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/logger"
	"github.com/relaycrm/automation/repository"
	"github.com/relaycrm/automation/usecase"
)

type UseCase struct {
	campaigns repository.CampaignRepository
	sequences repository.SequenceRepository
	messages  repository.MessageRepository
	contacts  repository.ContactRepository
	sequencer *Sequencer
	publisher usecase.Publisher
	logger    *zap.Logger
}

func New(
	campaigns repository.CampaignRepository,
	sequences repository.SequenceRepository,
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	sequencer *Sequencer,
	publisher usecase.Publisher,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		campaigns: campaigns,
		sequences: sequences,
		messages:  messages,
		contacts:  contacts,
		sequencer: sequencer,
		publisher: publisher,
		logger:    logger,
	}
}

func (uc *UseCase) CreateCampaign(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	if campaign.Name == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "campaign name is required", nil)
	}
	if campaign.ID == "" {
		campaign.ID = uuid.NewString()
	}
	if campaign.Status == "" {
		campaign.Status = domain.CampaignDraft
	}
	return uc.campaigns.Create(ctx, campaign)
}

func (uc *UseCase) GetCampaign(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	return uc.campaigns.GetByID(ctx, id, organizationID)
}

func (uc *UseCase) ListCampaigns(ctx context.Context, organizationID string) ([]domain.Campaign, error) {
	return uc.campaigns.List(ctx, organizationID)
}

func (uc *UseCase) DeleteCampaign(ctx context.Context, id, organizationID string) error {
	return uc.campaigns.Delete(ctx, id, organizationID)
}

// AddSequenceStep appends a step to the campaign's plan.
func (uc *UseCase) AddSequenceStep(ctx context.Context, organizationID string, step *domain.CampaignSequence) (*domain.CampaignSequence, error) {
	if _, err := uc.campaigns.GetByID(ctx, step.CampaignID, organizationID); err != nil {
		return nil, err
	}
	if step.StepNumber <= 0 {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "sequence step number must be positive", nil)
	}
	if step.Template == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "sequence template is required", nil)
	}
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	return uc.sequences.Create(ctx, step)
}

func (uc *UseCase) ListSequenceSteps(ctx context.Context, campaignID, organizationID string) ([]domain.CampaignSequence, error) {
	if _, err := uc.campaigns.GetByID(ctx, campaignID, organizationID); err != nil {
		return nil, err
	}
	return uc.sequences.ListByCampaign(ctx, campaignID)
}

// StartCampaign activates the campaign and enrolls every target contact
// at step zero. Enrollment failures for individual contacts are logged
// and do not abort the start.
func (uc *UseCase) StartCampaign(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	campaign, err := uc.campaigns.GetByID(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if !campaign.CanStart() {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "campaign cannot start from status "+string(campaign.Status), nil)
	}

	campaign.Status = domain.CampaignActive
	if campaign.StartDate == nil {
		now := time.Now().UTC()
		campaign.StartDate = &now
	}
	if err := uc.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}

	targets, err := uc.targetContacts(ctx, campaign)
	if err != nil {
		return nil, err
	}

	enrolled := 0
	for i := range targets {
		if err := uc.sequencer.ScheduleNextStep(ctx, campaign.ID, targets[i].ID, organizationID, 0); err != nil {
			uc.logger.Warn("contact enrollment failed",
				zap.String("campaign_id", campaign.ID),
				zap.String("contact_id", targets[i].ID),
				zap.Error(err))
			continue
		}
		enrolled++
	}

	uc.publish(ctx, domain.EventCampaignStarted, campaign, map[string]any{
		"campaignId": campaign.ID,
		"enrolled":   enrolled,
	})
	logger.FromContext(ctx, uc.logger).Info("campaign started",
		zap.String("campaign_id", campaign.ID),
		zap.Int("targets", len(targets)),
		zap.Int("enrolled", enrolled))
	return campaign, nil
}

// PauseCampaign suspends scheduling. Jobs already queued still fire but
// find the campaign inactive.
func (uc *UseCase) PauseCampaign(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	campaign, err := uc.campaigns.GetByID(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != domain.CampaignActive {
		return nil, domain.ErrInvalidStatus
	}
	campaign.Status = domain.CampaignPaused
	if err := uc.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.EventCampaignPaused, campaign, map[string]any{"campaignId": campaign.ID})
	return campaign, nil
}

// StopCampaign ends the campaign permanently.
func (uc *UseCase) StopCampaign(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	campaign, err := uc.campaigns.GetByID(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if campaign.Status == domain.CampaignCompleted {
		return campaign, nil
	}
	campaign.Status = domain.CampaignCompleted
	now := time.Now().UTC()
	campaign.EndDate = &now
	if err := uc.campaigns.Update(ctx, campaign); err != nil {
		return nil, err
	}
	uc.publish(ctx, domain.EventCampaignStopped, campaign, map[string]any{"campaignId": campaign.ID})
	return campaign, nil
}

// ListMessages returns the campaign's message rows, optionally narrowed
// to one contact.
func (uc *UseCase) ListMessages(ctx context.Context, campaignID, organizationID, contactID string) ([]domain.CampaignMessage, error) {
	if _, err := uc.campaigns.GetByID(ctx, campaignID, organizationID); err != nil {
		return nil, err
	}
	return uc.messages.List(ctx, repository.MessageFilter{
		CampaignID: campaignID,
		ContactID:  contactID,
	})
}

// targetContacts resolves the campaign's audience filter. Stage-based
// targeting is configuration-only for now and is ignored with a warning.
func (uc *UseCase) targetContacts(ctx context.Context, campaign *domain.Campaign) ([]domain.Contact, error) {
	filter := repository.ContactFilter{}
	if audience := campaign.TargetAudience; audience != nil {
		filter.Tags = audience.Tags
		filter.CompanyIDs = audience.CompanyIDs
		filter.Limit = audience.Limit
		if len(audience.Stages) > 0 {
			uc.logger.Warn("stage-based audience targeting not implemented, ignoring",
				zap.String("campaign_id", campaign.ID))
		}
	}
	return uc.contacts.List(ctx, campaign.OrganizationID, filter)
}

func (uc *UseCase) publish(ctx context.Context, eventType domain.EventType, campaign *domain.Campaign, data map[string]any) {
	if uc.publisher == nil {
		return
	}
	_, err := uc.publisher.Publish(ctx, eventType, domain.EventInput{
		OrganizationID: campaign.OrganizationID,
		EntityType:     "campaign",
		EntityID:       campaign.ID,
		Data:           data,
	})
	if err != nil {
		uc.logger.Warn("campaign event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("campaign_id", campaign.ID),
			zap.Error(err))
	}
}
