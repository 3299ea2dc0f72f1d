package domain

import (
	"fmt"
	"time"
)

// ActionType enumerates the closed set of trigger action variants.
type ActionType string

const (
	ActionMoveDeal      ActionType = "move_deal"
	ActionCreateDeal    ActionType = "create_deal"
	ActionSendMessage   ActionType = "send_message"
	ActionUpdateContact ActionType = "update_contact"
	ActionPublishEvent  ActionType = "publish_event"
)

var knownActionTypes = map[ActionType]bool{
	ActionMoveDeal:      true,
	ActionCreateDeal:    true,
	ActionSendMessage:   true,
	ActionUpdateContact: true,
	ActionPublishEvent:  true,
}

// Action is one step of a trigger's ordered action list.
type Action struct {
	Type   ActionType     `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate rejects unknown action variants at configuration time so a
// misspelled type fails CRUD instead of silently no-oping at runtime.
func (a Action) Validate() error {
	if !knownActionTypes[a.Type] {
		return WrapError(ErrCodeInvalid, fmt.Sprintf("unknown action type %q", a.Type), nil)
	}
	return nil
}

// StringParam returns a string-typed action parameter, empty when absent.
func (a Action) StringParam(key string) string {
	if a.Params == nil {
		return ""
	}
	v, _ := a.Params[key].(string)
	return v
}

// Trigger is a tenant-owned condition→action rule bound to one event type.
type Trigger struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	Name           string         `json:"name"`
	EventType      EventType      `json:"event_type"`
	Conditions     map[string]any `json:"conditions,omitempty"`
	Actions        []Action       `json:"actions"`
	IsActive       bool           `json:"is_active"`
	Priority       int            `json:"priority"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate checks trigger configuration before it is persisted.
func (t *Trigger) Validate() error {
	if t == nil {
		return ErrInvalidPayload
	}
	if t.Name == "" {
		return WrapError(ErrCodeInvalid, "trigger name is required", nil)
	}
	if t.EventType == "" {
		return WrapError(ErrCodeInvalid, "trigger event type is required", nil)
	}
	for _, action := range t.Actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ExecutionStatus is the outcome recorded for one trigger execution.
type ExecutionStatus string

const (
	ExecutionSuccess ExecutionStatus = "success"
	ExecutionError   ExecutionStatus = "error"
)

// TriggerExecution is the append-only audit record of one (trigger, event)
// evaluation whose conditions matched.
type TriggerExecution struct {
	ID              string          `json:"id"`
	TriggerID       string          `json:"trigger_id"`
	OrganizationID  string          `json:"organization_id"`
	EventType       EventType       `json:"event_type"`
	EventID         string          `json:"event_id,omitempty"`
	Status          ExecutionStatus `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	CreatedAt       time.Time       `json:"created_at"`
}
