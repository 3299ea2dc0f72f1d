package domain

import (
	"encoding/json"
	"time"
)

// JobStatus tracks a delayed job through the queue. Postgres is the
// source of truth; Redis only carries ids between states.
type JobStatus string

const (
	JobQueued       JobStatus = "queued"
	JobLeased       JobStatus = "leased"
	JobSucceeded    JobStatus = "succeeded"
	JobFailedTemp   JobStatus = "failed_temp"
	JobFailedPerm   JobStatus = "failed_perm"
	JobDeadLettered JobStatus = "dead_lettered"
)

// QueueCampaigns is the queue name the campaign sequencer schedules on.
const QueueCampaigns = "campaigns"

// JobTypeSequenceStep dispatches to the campaign sequencer's step handler.
const JobTypeSequenceStep = "send-campaign-sequence"

// DelayedJob is a generic unit of deferred, retried work.
type DelayedJob struct {
	ID             string          `json:"id"`
	QueueName      string          `json:"queue_name"`
	Type           string          `json:"type"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	RunAt          time.Time       `json:"run_at"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
	BackoffBase    time.Duration   `json:"backoff_base"`
	Status         JobStatus       `json:"status"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NextBackoff returns the retry delay for the job's current attempt:
// base * 2^attempt.
func (j *DelayedJob) NextBackoff() time.Duration {
	base := j.BackoffBase
	if base <= 0 {
		base = 2 * time.Second
	}
	delay := base
	for i := 0; i < j.Attempt; i++ {
		delay *= 2
	}
	return delay
}

// Exhausted reports whether the job has used up its retry budget.
func (j *DelayedJob) Exhausted() bool {
	max := j.MaxAttempts
	if max <= 0 {
		max = 3
	}
	return j.Attempt >= max
}

// SequenceStepPayload is the job payload for a scheduled campaign step.
type SequenceStepPayload struct {
	CampaignID     string `json:"campaign_id"`
	ContactID      string `json:"contact_id"`
	OrganizationID string `json:"organization_id"`
	SequenceID     string `json:"sequence_id"`
	StepNumber     int    `json:"step_number"`
	Template       string `json:"template"`
}
