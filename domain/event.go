package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies a domain fact published on the automation bus.
type EventType string

const (
	EventContactCreated EventType = "contact.created"
	EventContactUpdated EventType = "contact.updated"
	EventContactDeleted EventType = "contact.deleted"

	EventDealCreated      EventType = "deal.created"
	EventDealUpdated      EventType = "deal.updated"
	EventDealStageChanged EventType = "deal.stage.changed"
	EventDealDeleted      EventType = "deal.deleted"

	EventMessageReceived EventType = "message.received"
	EventMessageSent     EventType = "message.sent"
	EventMeetingBooked   EventType = "meeting.booked"

	EventCampaignStarted   EventType = "campaign.started"
	EventCampaignPaused    EventType = "campaign.paused"
	EventCampaignStopped   EventType = "campaign.stopped"
	EventCampaignCompleted EventType = "campaign.completed"
	EventCampaignReply     EventType = "campaign.reply"
)

// Event is an immutable fact recorded before any consumer sees it.
// Rows are append-only; nothing in the system mutates or deletes them.
type Event struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Type           EventType       `json:"type"`
	EntityType     string          `json:"entity_type,omitempty"`
	EntityID       string          `json:"entity_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	AgentID        string          `json:"agent_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// EventInput carries the publisher-supplied fields of a new event.
type EventInput struct {
	OrganizationID string
	EntityType     string
	EntityID       string
	UserID         string
	AgentID        string
	Data           map[string]any
}

// Data decodes the payload into a generic map. Malformed or empty
// payloads yield an empty map rather than an error: condition matching
// treats both the same way.
func (e *Event) Data() map[string]any {
	if e == nil || len(e.Payload) == 0 {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(e.Payload, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}
