package domain

import "time"

// Deal is a pipeline-tracked opportunity owned by one organization.
type Deal struct {
	ID             string         `json:"id"`
	OrganizationID string         `json:"organization_id"`
	ContactID      string         `json:"contact_id,omitempty"`
	PipelineID     string         `json:"pipeline_id"`
	StageID        string         `json:"stage_id"`
	Title          string         `json:"title"`
	Value          float64        `json:"value,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Pipeline groups ordered stages for deal progression.
type Pipeline struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	Name           string          `json:"name"`
	Stages         []PipelineStage `json:"stages,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StageByName returns the stage with the given name, or nil.
func (p *Pipeline) StageByName(name string) *PipelineStage {
	if p == nil {
		return nil
	}
	for i := range p.Stages {
		if p.Stages[i].Name == name {
			return &p.Stages[i]
		}
	}
	return nil
}

// PipelineStage is one named position within a pipeline.
type PipelineStage struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
	Name       string `json:"name"`
	Position   int    `json:"position"`
}
