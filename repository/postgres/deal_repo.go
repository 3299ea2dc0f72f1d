package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type dealRepository struct {
	pool *pgxpool.Pool
}

// NewDealRepository returns a Postgres-backed implementation of DealRepository.
func NewDealRepository(pool *pgxpool.Pool) repository.DealRepository {
	return &dealRepository{pool: pool}
}

const dealColumns = "id, organization_id, contact_id, pipeline_id, stage_id, title, value, fields, created_at, updated_at"

func (r *dealRepository) Create(ctx context.Context, deal *domain.Deal) (*domain.Deal, error) {
	if deal == nil || deal.OrganizationID == "" || deal.PipelineID == "" || deal.StageID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if deal.ID == "" {
		deal.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO deals (id, organization_id, contact_id, pipeline_id, stage_id, title, value, fields)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		deal.ID,
		deal.OrganizationID,
		deal.ContactID,
		deal.PipelineID,
		deal.StageID,
		deal.Title,
		deal.Value,
		marshalJSON(deal.Fields),
	).Scan(&deal.CreatedAt, &deal.UpdatedAt); err != nil {
		return nil, err
	}
	return deal, nil
}

func (r *dealRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Deal, error) {
	const query = `
	SELECT ` + dealColumns + `
	FROM deals
	WHERE id = $1 AND organization_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanDeal(row)
}

func (r *dealRepository) FirstByContact(ctx context.Context, contactID, pipelineID, organizationID string) (*domain.Deal, error) {
	const query = `
	SELECT ` + dealColumns + `
	FROM deals
	WHERE contact_id = $1 AND pipeline_id = $2 AND organization_id = $3
	ORDER BY created_at ASC
	LIMIT 1
	`
	row := r.pool.QueryRow(ctx, query, contactID, pipelineID, organizationID)
	return scanDeal(row)
}

func (r *dealRepository) UpdateStage(ctx context.Context, id, organizationID, stageID string) error {
	const query = `
	UPDATE deals
	SET stage_id = $3, updated_at = NOW()
	WHERE id = $1 AND organization_id = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, organizationID, stageID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}

func (r *dealRepository) MergeFields(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	const query = `
	UPDATE deals
	SET fields = COALESCE(fields, '{}'::jsonb) || $2::jsonb, updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, marshalJSON(fields))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDealNotFound
	}
	return nil
}

func scanDeal(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Deal, error) {
	var (
		d         domain.Deal
		contactID *string
		fields    []byte
	)
	if err := row.Scan(
		&d.ID,
		&d.OrganizationID,
		&contactID,
		&d.PipelineID,
		&d.StageID,
		&d.Title,
		&d.Value,
		&fields,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDealNotFound
		}
		return nil, err
	}
	if contactID != nil {
		d.ContactID = *contactID
	}
	if len(fields) > 0 {
		_ = json.Unmarshal(fields, &d.Fields)
	}
	return &d, nil
}

type pipelineRepository struct {
	pool *pgxpool.Pool
}

// NewPipelineRepository returns a Postgres-backed implementation of PipelineRepository.
func NewPipelineRepository(pool *pgxpool.Pool) repository.PipelineRepository {
	return &pipelineRepository{pool: pool}
}

func (r *pipelineRepository) GetWithStages(ctx context.Context, id, organizationID string) (*domain.Pipeline, error) {
	const query = `
	SELECT id, organization_id, name, created_at
	FROM pipelines
	WHERE id = $1 AND organization_id = $2
	`
	var p domain.Pipeline
	if err := r.pool.QueryRow(ctx, query, id, organizationID).Scan(
		&p.ID, &p.OrganizationID, &p.Name, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCodeNotFound, "pipeline not found", nil)
		}
		return nil, err
	}

	const stagesQuery = `
	SELECT id, pipeline_id, name, position
	FROM pipeline_stages
	WHERE pipeline_id = $1
	ORDER BY position ASC
	`
	rows, err := r.pool.Query(ctx, stagesQuery, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.PipelineStage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Position); err != nil {
			return nil, err
		}
		p.Stages = append(p.Stages, s)
	}
	return &p, rows.Err()
}

func (r *pipelineRepository) StageByName(ctx context.Context, pipelineID, name string) (*domain.PipelineStage, error) {
	const query = `
	SELECT id, pipeline_id, name, position
	FROM pipeline_stages
	WHERE pipeline_id = $1 AND name = $2
	LIMIT 1
	`
	var s domain.PipelineStage
	if err := r.pool.QueryRow(ctx, query, pipelineID, name).Scan(&s.ID, &s.PipelineID, &s.Name, &s.Position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrStageNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *pipelineRepository) StageNameByID(ctx context.Context, stageID string) (string, error) {
	const query = `SELECT name FROM pipeline_stages WHERE id = $1`
	var name string
	if err := r.pool.QueryRow(ctx, query, stageID).Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return name, nil
}
