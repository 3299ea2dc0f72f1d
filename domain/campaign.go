package domain

import "time"

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignActive    CampaignStatus = "active"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// Campaign is a tenant-owned outreach plan made of ordered sequence steps.
type Campaign struct {
	ID              string          `json:"id"`
	OrganizationID  string          `json:"organization_id"`
	Name            string          `json:"name"`
	Status          CampaignStatus  `json:"status"`
	MessageTemplate string          `json:"message_template,omitempty"`
	TargetAudience  *AudienceFilter `json:"target_audience,omitempty"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CanStart reports whether the campaign may transition to active.
func (c *Campaign) CanStart() bool {
	return c != nil && (c.Status == CampaignDraft || c.Status == CampaignPaused)
}

// AudienceFilter selects the contacts a campaign targets.
type AudienceFilter struct {
	Tags       []string `json:"tags,omitempty"`
	CompanyIDs []string `json:"company_ids,omitempty"`
	Stages     []string `json:"stages,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

// SequenceConditions gate whether a sequence step is scheduled for a contact.
type SequenceConditions struct {
	RequireReply bool     `json:"require_reply,omitempty"`
	RequireOpen  bool     `json:"require_open,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// IsEmpty reports whether no condition is configured.
func (c *SequenceConditions) IsEmpty() bool {
	return c == nil || (!c.RequireReply && !c.RequireOpen && len(c.Tags) == 0)
}

// CampaignSequence is one delayed step of a multi-step outreach plan.
// StepNumber orders steps and is unique per campaign.
type CampaignSequence struct {
	ID         string              `json:"id"`
	CampaignID string              `json:"campaign_id"`
	StepNumber int                 `json:"step_number"`
	DelayDays  int                 `json:"delay_days"`
	DelayHours int                 `json:"delay_hours"`
	Template   string              `json:"template"`
	Conditions *SequenceConditions `json:"conditions,omitempty"`
	IsActive   bool                `json:"is_active"`
	CreatedAt  time.Time           `json:"created_at"`
}

// Delay converts the configured day/hour offsets to a duration.
func (s *CampaignSequence) Delay() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.DelayDays)*24*time.Hour + time.Duration(s.DelayHours)*time.Hour
}

// MessageStatus is the per-row state of a scheduled or sent campaign message.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
	MessageReplied   MessageStatus = "replied"
	MessageSkipped   MessageStatus = "skipped"
)

// IsTerminal reports whether a row in this status never transitions again.
func (s MessageStatus) IsTerminal() bool {
	return s == MessageFailed || s == MessageReplied || s == MessageSkipped
}

// CampaignMessage is one scheduled/sent instance of a sequence step for
// one contact. At most one pending row per (campaign, contact) survives
// once any row for the pair reaches replied.
type CampaignMessage struct {
	ID           string        `json:"id"`
	CampaignID   string        `json:"campaign_id"`
	ContactID    string        `json:"contact_id"`
	SequenceStep int           `json:"sequence_step,omitempty"`
	Status       MessageStatus `json:"status"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	RepliedAt    *time.Time    `json:"replied_at,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}
