package campaign

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
	"github.com/relaycrm/automation/usecase"
)

// ReplyDetector exits contacts from sequences when they answer. Only the
// single most recently sent campaign message is attributed: a contact in
// two concurrent campaigns gets exactly one of them marked replied.
type ReplyDetector struct {
	messages  repository.MessageRepository
	publisher usecase.Publisher
	logger    *zap.Logger
}

func NewReplyDetector(messages repository.MessageRepository, publisher usecase.Publisher, logger *zap.Logger) *ReplyDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyDetector{
		messages:  messages,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleEvent is the bus consumer entry point; it reacts to
// message.received only.
func (rd *ReplyDetector) HandleEvent(ctx context.Context, event *domain.Event) {
	if event.Type != domain.EventMessageReceived {
		return
	}
	contactID, _ := event.Data()["contactId"].(string)
	if contactID == "" {
		return
	}
	if err := rd.Handle(ctx, event.OrganizationID, contactID); err != nil {
		rd.logger.Error("reply handling failed",
			zap.String("organization_id", event.OrganizationID),
			zap.String("contact_id", contactID),
			zap.Error(err))
	}
}

// Handle attributes an inbound message from the contact to their latest
// outstanding campaign message, marks it replied and skips every pending
// row for that (campaign, contact) pair.
func (rd *ReplyDetector) Handle(ctx context.Context, organizationID, contactID string) error {
	latest, err := rd.messages.LatestSent(ctx, organizationID, contactID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return nil
		}
		return err
	}

	if err := rd.messages.MarkReplied(ctx, latest.ID); err != nil {
		return err
	}

	skipped, err := rd.messages.SkipPending(ctx, latest.CampaignID, contactID)
	if err != nil {
		rd.logger.Error("skip pending failed",
			zap.String("campaign_id", latest.CampaignID),
			zap.String("contact_id", contactID),
			zap.Error(err))
	}

	if rd.publisher != nil {
		_, err := rd.publisher.Publish(ctx, domain.EventCampaignReply, domain.EventInput{
			OrganizationID: organizationID,
			EntityType:     "campaign_message",
			EntityID:       latest.ID,
			Data: map[string]any{
				"campaignId": latest.CampaignID,
				"contactId":  contactID,
				"messageId":  latest.ID,
			},
		})
		if err != nil {
			rd.logger.Warn("campaign.reply publish failed", zap.Error(err))
		}
	}

	rd.logger.Info("reply recorded",
		zap.String("campaign_id", latest.CampaignID),
		zap.String("contact_id", contactID),
		zap.Int64("skipped", skipped))
	return nil
}
