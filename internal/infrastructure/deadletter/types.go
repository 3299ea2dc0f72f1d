package deadletter

import (
	"encoding/json"
	"time"
)

// Entry captures everything needed to diagnose or replay a job whose
// retry budget is exhausted.
type Entry struct {
	JobID          string          `json:"job_id"`
	QueueName      string          `json:"queue_name"`
	Type           string          `json:"type"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	Attempts       int             `json:"attempts"`
	LastError      string          `json:"last_error,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

func (e *Entry) normalize() {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}
