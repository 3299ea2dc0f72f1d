package repository

import (
	"context"

	"github.com/relaycrm/automation/domain"
)

type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) (*domain.Deal, error)
	GetByID(ctx context.Context, id, organizationID string) (*domain.Deal, error)
	// FirstByContact returns the contact's deal in the given pipeline.
	// Multiple deals per (contact, pipeline) are not disambiguated: the
	// earliest-created one wins.
	FirstByContact(ctx context.Context, contactID, pipelineID, organizationID string) (*domain.Deal, error)
	UpdateStage(ctx context.Context, id, organizationID, stageID string) error
	MergeFields(ctx context.Context, id string, fields map[string]any) error
}

type PipelineRepository interface {
	// GetWithStages loads a pipeline and its ordered stages.
	GetWithStages(ctx context.Context, id, organizationID string) (*domain.Pipeline, error)
	// StageByName resolves a stage by name within a pipeline, or
	// domain.ErrStageNotFound.
	StageByName(ctx context.Context, pipelineID, name string) (*domain.PipelineStage, error)
	// StageNameByID resolves a stage's name, empty when unknown.
	StageNameByID(ctx context.Context, stageID string) (string, error)
}
