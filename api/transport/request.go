package transport

import "github.com/relaycrm/automation/domain"

type EventPublishRequest struct {
	Type       string         `json:"type"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	UserID     string         `json:"user_id"`
	AgentID    string         `json:"agent_id"`
	Data       map[string]any `json:"data"`
}

type TriggerRequest struct {
	Name       string          `json:"name"`
	EventType  string          `json:"event_type"`
	Conditions map[string]any  `json:"conditions"`
	Actions    []domain.Action `json:"actions"`
	IsActive   *bool           `json:"is_active"`
	Priority   int             `json:"priority"`
}

type CampaignRequest struct {
	Name            string                 `json:"name"`
	MessageTemplate string                 `json:"message_template"`
	TargetAudience  *domain.AudienceFilter `json:"target_audience"`
}

type SequenceStepRequest struct {
	StepNumber int                        `json:"step_number"`
	DelayDays  int                        `json:"delay_days"`
	DelayHours int                        `json:"delay_hours"`
	Template   string                     `json:"template"`
	Conditions *domain.SequenceConditions `json:"conditions"`
	IsActive   *bool                      `json:"is_active"`
}

type PolicyRequest struct {
	PipelineID   string                   `json:"pipeline_id"`
	PolicyType   string                   `json:"policy_type"`
	TriggerEvent string                   `json:"trigger_event"`
	Conditions   *domain.PolicyConditions `json:"conditions"`
	Actions      domain.PolicyActions     `json:"actions"`
	IsActive     *bool                    `json:"is_active"`
}
