package repository

import (
	"context"
	"time"

	"github.com/relaycrm/automation/domain"
)

// JobRepository persists delayed jobs. The jobs table is authoritative;
// Redis structures only carry ids.
type JobRepository interface {
	// Insert stores a new job row. Returns false without error when a row
	// with the same id already exists (idempotent scheduling).
	Insert(ctx context.Context, job *domain.DelayedJob) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.DelayedJob, error)
	// Lease transitions a queued or failed_temp job to leased with the
	// given expiry. Returns false when the job is not in a leasable state.
	Lease(ctx context.Context, id string, expiresAt time.Time) (bool, error)
	MarkSucceeded(ctx context.Context, id string) error
	// MarkFailedTemp records a failed attempt, bumps the attempt counter and
	// sets the next run time.
	MarkFailedTemp(ctx context.Context, id, lastError string, runAt time.Time) error
	MarkFailedPerm(ctx context.Context, id, lastError string) error
	MarkDeadLettered(ctx context.Context, id string) error
	// ListDueQueued returns ids of queued jobs whose run time has passed,
	// oldest first, for Redis reconciliation.
	ListDueQueued(ctx context.Context, queueName string, now time.Time, limit int) ([]string, error)
	// ListExpiredLeases returns ids of leased jobs whose lease has lapsed.
	ListExpiredLeases(ctx context.Context, queueName string, now time.Time, limit int) ([]string, error)
	// Requeue returns an expired-lease job to queued.
	Requeue(ctx context.Context, id string) error
}
