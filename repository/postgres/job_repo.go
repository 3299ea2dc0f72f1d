package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository returns a Postgres-backed implementation of JobRepository.
// The jobs table is the source of truth; Redis only carries ids.
func NewJobRepository(pool *pgxpool.Pool) repository.JobRepository {
	return &jobRepository{pool: pool}
}

func (r *jobRepository) Insert(ctx context.Context, job *domain.DelayedJob) (bool, error) {
	if job == nil || job.ID == "" || job.QueueName == "" {
		return false, domain.ErrInvalidPayload
	}
	if job.Status == "" {
		job.Status = domain.JobQueued
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = 3
	}
	if job.BackoffBase <= 0 {
		job.BackoffBase = 2 * time.Second
	}
	if job.RunAt.IsZero() {
		job.RunAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO jobs (id, queue_name, type, organization_id, payload, run_at, attempt, max_attempts, backoff_base_ms, status)
	VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		job.ID,
		job.QueueName,
		job.Type,
		job.OrganizationID,
		[]byte(job.Payload),
		job.RunAt,
		job.MaxAttempts,
		job.BackoffBase.Milliseconds(),
		string(job.Status),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id string) (*domain.DelayedJob, error) {
	const query = `
	SELECT id, queue_name, type, organization_id, payload, run_at, attempt, max_attempts, backoff_base_ms,
	       status, lease_expires_at, last_error, created_at, updated_at
	FROM jobs
	WHERE id = $1
	`
	var (
		j         domain.DelayedJob
		payload   []byte
		backoffMs int64
		status    string
		lastErr   *string
	)
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID,
		&j.QueueName,
		&j.Type,
		&j.OrganizationID,
		&payload,
		&j.RunAt,
		&j.Attempt,
		&j.MaxAttempts,
		&backoffMs,
		&status,
		&j.LeaseExpiresAt,
		&lastErr,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	j.Payload = payload
	j.BackoffBase = time.Duration(backoffMs) * time.Millisecond
	j.Status = domain.JobStatus(status)
	if lastErr != nil {
		j.LastError = *lastErr
	}
	return &j, nil
}

func (r *jobRepository) Lease(ctx context.Context, id string, expiresAt time.Time) (bool, error) {
	const query = `
	UPDATE jobs
	SET status = 'leased', lease_expires_at = $2, updated_at = NOW()
	WHERE id = $1 AND status IN ('queued', 'failed_temp')
	`
	tag, err := r.pool.Exec(ctx, query, id, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *jobRepository) MarkSucceeded(ctx context.Context, id string) error {
	const query = `
	UPDATE jobs
	SET status = 'succeeded', lease_expires_at = NULL, updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *jobRepository) MarkFailedTemp(ctx context.Context, id, lastError string, runAt time.Time) error {
	const query = `
	UPDATE jobs
	SET status = 'failed_temp',
		attempt = attempt + 1,
		last_error = $2,
		run_at = $3,
		lease_expires_at = NULL,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, lastError, runAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) MarkFailedPerm(ctx context.Context, id, lastError string) error {
	const query = `
	UPDATE jobs
	SET status = 'failed_perm',
		attempt = attempt + 1,
		last_error = $2,
		lease_expires_at = NULL,
		updated_at = NOW()
	WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, lastError)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) MarkDeadLettered(ctx context.Context, id string) error {
	const query = `
	UPDATE jobs
	SET status = 'dead_lettered', updated_at = NOW()
	WHERE id = $1
	`
	return r.exec(ctx, query, id)
}

func (r *jobRepository) ListDueQueued(ctx context.Context, queueName string, now time.Time, limit int) ([]string, error) {
	const query = `
	SELECT id FROM jobs
	WHERE queue_name = $1 AND status IN ('queued', 'failed_temp') AND run_at <= $2
	ORDER BY created_at ASC
	LIMIT $3
	`
	return r.queryIDs(ctx, query, queueName, now, limit)
}

func (r *jobRepository) ListExpiredLeases(ctx context.Context, queueName string, now time.Time, limit int) ([]string, error) {
	const query = `
	SELECT id FROM jobs
	WHERE queue_name = $1
	  AND status = 'leased'
	  AND lease_expires_at IS NOT NULL
	  AND lease_expires_at < $2
	ORDER BY lease_expires_at ASC
	LIMIT $3
	`
	return r.queryIDs(ctx, query, queueName, now, limit)
}

func (r *jobRepository) Requeue(ctx context.Context, id string) error {
	const query = `
	UPDATE jobs
	SET status = 'queued', lease_expires_at = NULL, updated_at = NOW()
	WHERE id = $1 AND status = 'leased'
	`
	return r.exec(ctx, query, id)
}

func (r *jobRepository) exec(ctx context.Context, query, id string) error {
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *jobRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
