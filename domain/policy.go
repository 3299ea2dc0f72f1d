package domain

import "time"

// PolicyTypeAutoTransition is the only policy type the engine evaluates.
const PolicyTypeAutoTransition = "auto_transition"

// PolicyConditions gate a pipeline policy.
type PolicyConditions struct {
	ContactTags  []string `json:"contact_tags,omitempty"`
	CurrentStage string   `json:"current_stage,omitempty"`
}

// IsEmpty reports whether no condition is configured.
func (c *PolicyConditions) IsEmpty() bool {
	return c == nil || (len(c.ContactTags) == 0 && c.CurrentStage == "")
}

// StageEntryActions run after a policy moves a deal into its target stage.
// Only UpdateFields is executed; Notify and CreateTask are recorded as
// configuration but produce log lines only.
type StageEntryActions struct {
	Notify       bool           `json:"notify,omitempty"`
	CreateTask   bool           `json:"create_task,omitempty"`
	UpdateFields map[string]any `json:"update_fields,omitempty"`
}

// PolicyActions describe the transition a matching policy performs.
type PolicyActions struct {
	TargetStage string             `json:"target_stage"`
	OnEntry     *StageEntryActions `json:"on_entry,omitempty"`
}

// PipelinePolicy is an auto-transition rule: structurally a specialized
// trigger scoped to deal-stage movement within a single pipeline.
type PipelinePolicy struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	PipelineID     string            `json:"pipeline_id"`
	PolicyType     string            `json:"policy_type"`
	TriggerEvent   EventType         `json:"trigger_event"`
	Conditions     *PolicyConditions `json:"conditions,omitempty"`
	Actions        PolicyActions     `json:"actions"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Validate checks policy configuration before it is persisted.
func (p *PipelinePolicy) Validate() error {
	if p == nil {
		return ErrInvalidPayload
	}
	if p.PipelineID == "" {
		return WrapError(ErrCodeInvalid, "policy pipeline id is required", nil)
	}
	if p.TriggerEvent == "" {
		return WrapError(ErrCodeInvalid, "policy trigger event is required", nil)
	}
	if p.Actions.TargetStage == "" {
		return WrapError(ErrCodeInvalid, "policy target stage is required", nil)
	}
	return nil
}
