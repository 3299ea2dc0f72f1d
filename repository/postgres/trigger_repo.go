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

type triggerRepository struct {
	pool *pgxpool.Pool
}

// NewTriggerRepository returns a Postgres-backed implementation of TriggerRepository.
func NewTriggerRepository(pool *pgxpool.Pool) repository.TriggerRepository {
	return &triggerRepository{pool: pool}
}

const triggerColumns = "id, organization_id, name, event_type, conditions, actions, is_active, priority, created_at, updated_at"

func (r *triggerRepository) Create(ctx context.Context, trigger *domain.Trigger) (*domain.Trigger, error) {
	if err := trigger.Validate(); err != nil {
		return nil, err
	}
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO triggers (id, organization_id, name, event_type, conditions, actions, is_active, priority)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at, updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		trigger.ID,
		trigger.OrganizationID,
		trigger.Name,
		string(trigger.EventType),
		marshalJSON(trigger.Conditions),
		marshalJSON(trigger.Actions),
		trigger.IsActive,
		trigger.Priority,
	).Scan(&trigger.CreatedAt, &trigger.UpdatedAt); err != nil {
		return nil, err
	}

	return trigger, nil
}

func (r *triggerRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Trigger, error) {
	const query = `
	SELECT ` + triggerColumns + `
	FROM triggers
	WHERE id = $1 AND organization_id = $2
	`
	row := r.pool.QueryRow(ctx, query, id, organizationID)
	return scanTrigger(row)
}

func (r *triggerRepository) List(ctx context.Context, organizationID string) ([]domain.Trigger, error) {
	const query = `
	SELECT ` + triggerColumns + `
	FROM triggers
	WHERE organization_id = $1
	ORDER BY priority DESC, created_at ASC
	`
	return r.queryTriggers(ctx, query, organizationID)
}

func (r *triggerRepository) ListActive(ctx context.Context, organizationID string, eventType domain.EventType) ([]domain.Trigger, error) {
	const query = `
	SELECT ` + triggerColumns + `
	FROM triggers
	WHERE organization_id = $1 AND event_type = $2 AND is_active = TRUE
	ORDER BY priority DESC, created_at ASC
	`
	return r.queryTriggers(ctx, query, organizationID, string(eventType))
}

func (r *triggerRepository) Update(ctx context.Context, trigger *domain.Trigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}

	const query = `
	UPDATE triggers
	SET name = $3,
		event_type = $4,
		conditions = $5,
		actions = $6,
		is_active = $7,
		priority = $8,
		updated_at = NOW()
	WHERE id = $1 AND organization_id = $2
	RETURNING updated_at
	`

	if err := r.pool.QueryRow(ctx, query,
		trigger.ID,
		trigger.OrganizationID,
		trigger.Name,
		string(trigger.EventType),
		marshalJSON(trigger.Conditions),
		marshalJSON(trigger.Actions),
		trigger.IsActive,
		trigger.Priority,
	).Scan(&trigger.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTriggerNotFound
		}
		return err
	}
	return nil
}

func (r *triggerRepository) Delete(ctx context.Context, id, organizationID string) error {
	const query = `DELETE FROM triggers WHERE id = $1 AND organization_id = $2`
	tag, err := r.pool.Exec(ctx, query, id, organizationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTriggerNotFound
	}
	return nil
}

func (r *triggerRepository) queryTriggers(ctx context.Context, query string, args ...any) ([]domain.Trigger, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		trigger, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, *trigger)
	}
	return triggers, rows.Err()
}

func scanTrigger(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Trigger, error) {
	var (
		t          domain.Trigger
		evType     string
		conditions []byte
		actions    []byte
	)

	if err := row.Scan(
		&t.ID,
		&t.OrganizationID,
		&t.Name,
		&evType,
		&conditions,
		&actions,
		&t.IsActive,
		&t.Priority,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTriggerNotFound
		}
		return nil, err
	}

	t.Conditions = unmarshalMap(conditions)
	if len(actions) > 0 {
		_ = json.Unmarshal(actions, &t.Actions)
	}

	return &t, nil
}

type executionRepository struct {
	pool *pgxpool.Pool
}

// NewExecutionRepository returns a Postgres-backed implementation of ExecutionRepository.
func NewExecutionRepository(pool *pgxpool.Pool) repository.ExecutionRepository {
	return &executionRepository{pool: pool}
}

func (r *executionRepository) Create(ctx context.Context, execution *domain.TriggerExecution) error {
	if execution == nil {
		return domain.ErrInvalidPayload
	}
	if execution.ID == "" {
		execution.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO trigger_executions (id, trigger_id, organization_id, event_type, event_id, status, error_message, execution_time_ms)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at
	`
	return r.pool.QueryRow(ctx, query,
		execution.ID,
		execution.TriggerID,
		execution.OrganizationID,
		string(execution.EventType),
		execution.EventID,
		string(execution.Status),
		execution.ErrorMessage,
		execution.ExecutionTimeMs,
	).Scan(&execution.CreatedAt)
}

func (r *executionRepository) ListByTrigger(ctx context.Context, triggerID, organizationID string, limit int) ([]domain.TriggerExecution, error) {
	const query = `
	SELECT id, trigger_id, organization_id, event_type, event_id, status, error_message, execution_time_ms, created_at
	FROM trigger_executions
	WHERE trigger_id = $1 AND organization_id = $2
	ORDER BY created_at DESC
	LIMIT $3
	`
	rows, err := r.pool.Query(ctx, query, triggerID, organizationID, clampLimit(limit, 50))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []domain.TriggerExecution
	for rows.Next() {
		var (
			e      domain.TriggerExecution
			evType string
			status string
		)
		if err := rows.Scan(
			&e.ID,
			&e.TriggerID,
			&e.OrganizationID,
			&evType,
			&e.EventID,
			&status,
			&e.ErrorMessage,
			&e.ExecutionTimeMs,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		e.EventType = domain.EventType(evType)
		e.Status = domain.ExecutionStatus(status)
		executions = append(executions, e)
	}
	return executions, rows.Err()
}
