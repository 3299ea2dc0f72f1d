package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	GetByID(ctx context.Context, id, organizationID string) (*domain.Campaign, error)
	List(ctx context.Context, organizationID string) ([]domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) error
	Delete(ctx context.Context, id, organizationID string) error
}

type SequenceRepository interface {
	Create(ctx context.Context, sequence *domain.CampaignSequence) (*domain.CampaignSequence, error)
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignSequence, error)
	// NextActive returns the lowest-numbered active step strictly after
	// currentStep, or domain.ErrSequenceNotFound when the plan is complete.
	NextActive(ctx context.Context, campaignID string, currentStep int) (*domain.CampaignSequence, error)
}

// MessageFilter narrows campaign-message lookups. Zero values are ignored.
type MessageFilter struct {
	CampaignID string
	ContactID  string
	Statuses   []domain.MessageStatus
}

type MessageRepository interface {
	Create(ctx context.Context, message *domain.CampaignMessage) (*domain.CampaignMessage, error)
	// HasReplied reports whether any message for (campaign, contact) has
	// reached replied.
	HasReplied(ctx context.Context, campaignID, contactID string) (bool, error)
	// LatestSent returns the most recently sent/delivered message for the
	// contact across the organization's active campaigns, or
	// domain.ErrMessageNotFound.
	LatestSent(ctx context.Context, organizationID, contactID string) (*domain.CampaignMessage, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errorMessage string) error
	MarkReplied(ctx context.Context, id string) error
	// SkipPending force-transitions every pending row for (campaign, contact)
	// to skipped and returns the number of rows changed.
	SkipPending(ctx context.Context, campaignID, contactID string) (int64, error)
	List(ctx context.Context, filter MessageFilter) ([]domain.CampaignMessage, error)
}
