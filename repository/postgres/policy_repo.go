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

type policyRepository struct {
	pool *pgxpool.Pool
}

// NewPolicyRepository returns a Postgres-backed implementation of PolicyRepository.
func NewPolicyRepository(pool *pgxpool.Pool) repository.PolicyRepository {
	return &policyRepository{pool: pool}
}

const policyColumns = "id, organization_id, pipeline_id, policy_type, trigger_event, conditions, actions, is_active, created_at, updated_at"

func (r *policyRepository) Create(ctx context.Context, policy *domain.PipelinePolicy) (*domain.PipelinePolicy, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if policy.ID == "" {
		policy.ID = uuid.NewString()
	}
	if policy.PolicyType == "" {
		policy.PolicyType = domain.PolicyTypeAutoTransition
	}

	const query = `
	INSERT INTO pipeline_policies (id, organization_id, pipeline_id, policy_type, trigger_event, conditions, actions, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		policy.ID,
		policy.OrganizationID,
		policy.PipelineID,
		policy.PolicyType,
		string(policy.TriggerEvent),
		marshalJSON(policy.Conditions),
		marshalJSON(policy.Actions),
		policy.IsActive,
	).Scan(&policy.CreatedAt, &policy.UpdatedAt); err != nil {
		return nil, err
	}
	return policy, nil
}

func (r *policyRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.PipelinePolicy, error) {
	const query = `
	SELECT ` + policyColumns + `
	FROM pipeline_policies
	WHERE id = $1 AND organization_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanPolicy(row)
}

func (r *policyRepository) List(ctx context.Context, organizationID string) ([]domain.PipelinePolicy, error) {
	const query = `
	SELECT ` + policyColumns + `
	FROM pipeline_policies
	WHERE organization_id = $1
	ORDER BY created_at DESC
	`
	return r.queryPolicies(ctx, query, organizationID)
}

func (r *policyRepository) ListActive(ctx context.Context, organizationID string, triggerEvent domain.EventType) ([]domain.PipelinePolicy, error) {
	const query = `
	SELECT ` + policyColumns + `
	FROM pipeline_policies
	WHERE organization_id = $1
	  AND policy_type = $2
	  AND trigger_event = $3
	  AND is_active = TRUE
	ORDER BY created_at ASC
	`
	return r.queryPolicies(ctx, query, organizationID, domain.PolicyTypeAutoTransition, string(triggerEvent))
}

func (r *policyRepository) Update(ctx context.Context, policy *domain.PipelinePolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	const query = `
	UPDATE pipeline_policies
	SET pipeline_id = $3,
		trigger_event = $4,
		conditions = $5,
		actions = $6,
		is_active = $7,
		updated_at = NOW()
	WHERE id = $1 AND organization_id = $2
	RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		policy.ID,
		policy.OrganizationID,
		policy.PipelineID,
		string(policy.TriggerEvent),
		marshalJSON(policy.Conditions),
		marshalJSON(policy.Actions),
		policy.IsActive,
	).Scan(&policy.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPolicyNotFound
		}
		return err
	}
	return nil
}

func (r *policyRepository) Delete(ctx context.Context, id, organizationID string) error {
	const query = `DELETE FROM pipeline_policies WHERE id = $1 AND organization_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPolicyNotFound
	}
	return nil
}

func (r *policyRepository) queryPolicies(ctx context.Context, query string, args ...any) ([]domain.PipelinePolicy, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []domain.PipelinePolicy
	for rows.Next() {
		policy, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *policy)
	}
	return policies, rows.Err()
}

func scanPolicy(row interface {
	Scan(dest ...interface{}) error
}) (*domain.PipelinePolicy, error) {
	var (
		p          domain.PipelinePolicy
		trigger    string
		conditions []byte
		actions    []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.OrganizationID,
		&p.PipelineID,
		&p.PolicyType,
		&trigger,
		&conditions,
		&actions,
		&p.IsActive,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPolicyNotFound
		}
		return nil, err
	}
	p.TriggerEvent = domain.EventType(trigger)
	if len(conditions) > 0 {
		_ = json.Unmarshal(conditions, &p.Conditions)
	}
	if len(actions) > 0 {
		_ = json.Unmarshal(actions, &p.Actions)
	}
	return &p, nil
}
