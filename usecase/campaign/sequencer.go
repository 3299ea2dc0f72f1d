package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/channel"
	"github.com/relaycrm/automation/pkg/template"
	"github.com/relaycrm/automation/repository"
	"github.com/relaycrm/automation/usecase"
)

// Sequencer walks contacts through a campaign's steps on a delay
// schedule. Scheduling is idempotent per (campaign, contact, step): the
// deterministic job id makes re-submission a no-op.
type Sequencer struct {
	campaigns repository.CampaignRepository
	sequences repository.SequenceRepository
	messages  repository.MessageRepository
	contacts  repository.ContactRepository
	scheduler usecase.JobScheduler
	sender    channel.Sender
	publisher usecase.Publisher
	logger    *zap.Logger
}

func NewSequencer(
	campaigns repository.CampaignRepository,
	sequences repository.SequenceRepository,
	messages repository.MessageRepository,
	contacts repository.ContactRepository,
	scheduler usecase.JobScheduler,
	sender channel.Sender,
	publisher usecase.Publisher,
	logger *zap.Logger,
) *Sequencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		campaigns: campaigns,
		sequences: sequences,
		messages:  messages,
		contacts:  contacts,
		scheduler: scheduler,
		sender:    sender,
		publisher: publisher,
		logger:    logger,
	}
}

// StepJobID builds the deterministic job identity for one step of one
// contact's run through a campaign.
func StepJobID(campaignID, contactID string, stepNumber int) string {
	return fmt.Sprintf("campaign-%s-contact-%s-step-%d", campaignID, contactID, stepNumber)
}

// ScheduleNextStep finds the lowest-numbered active step after
// currentStep and schedules it for the contact. When the step's
// conditions are unmet the whole remaining sequence stops for this
// contact; nothing later is attempted. A completed plan is a no-op.
func (s *Sequencer) ScheduleNextStep(ctx context.Context, campaignID, contactID, organizationID string, currentStep int) error {
	step, err := s.sequences.NextActive(ctx, campaignID, currentStep)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			s.logger.Debug("sequence complete",
				zap.String("campaign_id", campaignID),
				zap.String("contact_id", contactID))
			return nil
		}
		return err
	}

	met, err := s.conditionsMet(ctx, step, campaignID, contactID, organizationID)
	if err != nil {
		return err
	}
	if !met {
		s.logger.Debug("step conditions unmet, stopping sequence",
			zap.String("campaign_id", campaignID),
			zap.String("contact_id", contactID),
			zap.Int("step", step.StepNumber))
		return nil
	}

	payload, err := json.Marshal(domain.SequenceStepPayload{
		CampaignID:     campaignID,
		ContactID:      contactID,
		OrganizationID: organizationID,
		SequenceID:     step.ID,
		StepNumber:     step.StepNumber,
		Template:       step.Template,
	})
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "step payload not serializable", err)
	}

	job := &domain.DelayedJob{
		ID:             StepJobID(campaignID, contactID, step.StepNumber),
		QueueName:      domain.QueueCampaigns,
		Type:           domain.JobTypeSequenceStep,
		OrganizationID: organizationID,
		Payload:        payload,
		RunAt:          time.Now().UTC().Add(step.Delay()),
		MaxAttempts:    3,
		BackoffBase:    2 * time.Second,
	}

	scheduled, err := s.scheduler.Schedule(ctx, job)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "step scheduling failed", err)
	}
	if scheduled {
		s.logger.Info("sequence step scheduled",
			zap.String("job_id", job.ID),
			zap.Int("step", step.StepNumber),
			zap.Duration("delay", step.Delay()))
	}
	return nil
}

// ProcessStep is the job handler. The reply re-check here is the actual
// cancellation mechanism: scheduled jobs are never removed, they just
// find the contact has already exited.
func (s *Sequencer) ProcessStep(ctx context.Context, job *domain.DelayedJob) error {
	var payload domain.SequenceStepPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "malformed step payload", err)
	}

	replied, err := s.messages.HasReplied(ctx, payload.CampaignID, payload.ContactID)
	if err != nil {
		return err
	}
	if replied {
		s.logger.Debug("contact replied, dropping step",
			zap.String("campaign_id", payload.CampaignID),
			zap.String("contact_id", payload.ContactID),
			zap.Int("step", payload.StepNumber))
		return nil
	}

	campaign, err := s.campaigns.GetByID(ctx, payload.CampaignID, payload.OrganizationID)
	if err != nil {
		return err
	}
	if campaign.Status != domain.CampaignActive {
		s.logger.Debug("campaign not active, dropping step",
			zap.String("campaign_id", campaign.ID),
			zap.String("status", string(campaign.Status)))
		return nil
	}

	contact, err := s.contacts.GetByID(ctx, payload.ContactID, payload.OrganizationID)
	if err != nil {
		return err
	}

	body := template.Render(payload.Template, template.ContactVars(contact))

	message, err := s.messages.Create(ctx, &domain.CampaignMessage{
		ID:           uuid.NewString(),
		CampaignID:   payload.CampaignID,
		ContactID:    payload.ContactID,
		SequenceStep: payload.StepNumber,
		Status:       domain.MessagePending,
	})
	if err != nil {
		return err
	}

	ch := contact.PreferredChannel()
	to := contact.Email
	if ch == domain.ChannelTelegram {
		to = contact.TelegramChatID
	}

	sendErr := s.sender.Send(ctx, channel.Message{
		OrganizationID: payload.OrganizationID,
		ContactID:      contact.ID,
		Channel:        ch,
		To:             to,
		Body:           body,
	})
	if sendErr != nil {
		// Delivery failure is terminal for this row and stops the contact's
		// progression; the job itself is not retried.
		if err := s.messages.MarkFailed(ctx, message.ID, sendErr.Error()); err != nil {
			s.logger.Error("mark failed failed", zap.String("message_id", message.ID), zap.Error(err))
		}
		s.logger.Warn("step delivery failed",
			zap.String("campaign_id", payload.CampaignID),
			zap.String("contact_id", payload.ContactID),
			zap.Int("step", payload.StepNumber),
			zap.Error(sendErr))
		return nil
	}

	if err := s.messages.MarkSent(ctx, message.ID); err != nil {
		return err
	}

	if s.publisher != nil {
		_, err := s.publisher.Publish(ctx, domain.EventMessageSent, domain.EventInput{
			OrganizationID: payload.OrganizationID,
			EntityType:     "campaign_message",
			EntityID:       message.ID,
			Data: map[string]any{
				"campaignId": payload.CampaignID,
				"contactId":  payload.ContactID,
				"messageId":  message.ID,
				"channel":    string(ch),
				"step":       payload.StepNumber,
			},
		})
		if err != nil {
			s.logger.Warn("message.sent publish failed", zap.Error(err))
		}
	}

	return s.ScheduleNextStep(ctx, payload.CampaignID, payload.ContactID, payload.OrganizationID, payload.StepNumber)
}

func (s *Sequencer) conditionsMet(ctx context.Context, step *domain.CampaignSequence, campaignID, contactID, organizationID string) (bool, error) {
	cond := step.Conditions
	if cond.IsEmpty() {
		return true, nil
	}

	if cond.RequireReply {
		replied, err := s.messages.HasReplied(ctx, campaignID, contactID)
		if err != nil {
			return false, err
		}
		if !replied {
			return false, nil
		}
	}

	if cond.RequireOpen {
		// Open tracking has no data source yet; the condition is recorded
		// but not enforced.
		s.logger.Warn("require_open condition not enforced",
			zap.String("sequence_id", step.ID))
	}

	if len(cond.Tags) > 0 {
		contact, err := s.contacts.GetByID(ctx, contactID, organizationID)
		if err != nil {
			return false, err
		}
		if !contact.HasAnyTag(cond.Tags) {
			return false, nil
		}
	}

	return true, nil
}
