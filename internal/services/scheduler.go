package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/queue"
	"github.com/relaycrm/automation/repository"
)

// Scheduler enqueues delayed jobs: the database row comes first, the
// Redis structures second. Losing the Redis write only delays the job
// until the mover reconciles it from the database.
type Scheduler struct {
	jobs   repository.JobRepository
	redisq *queue.RedisQ
	logger *zap.Logger
}

func NewScheduler(jobs repository.JobRepository, redisq *queue.RedisQ, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{jobs: jobs, redisq: redisq, logger: logger}
}

// Schedule inserts the job and places its id on the queue. When a job
// with the same id already exists the call is a no-op, which makes
// scheduling idempotent under deterministic ids.
func (s *Scheduler) Schedule(ctx context.Context, job *domain.DelayedJob) (bool, error) {
	if job.ID == "" {
		return false, domain.WrapError(domain.ErrCodeInvalid, "job id is required", nil)
	}
	if job.QueueName == "" {
		job.QueueName = domain.QueueCampaigns
	}
	if job.RunAt.IsZero() {
		job.RunAt = time.Now().UTC()
	}
	job.Status = domain.JobQueued

	inserted, err := s.jobs.Insert(ctx, job)
	if err != nil {
		return false, domain.WrapError(domain.ErrCodeInternal, "job insert failed", err)
	}
	if !inserted {
		s.logger.Debug("job already scheduled", zap.String("job_id", job.ID))
		return false, nil
	}

	if err := s.redisq.Enqueue(ctx, job.QueueName, job.ID, job.RunAt); err != nil {
		// The row is durable; the mover will pick it up from the database.
		s.logger.Warn("redis enqueue failed, job will be reconciled",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	s.logger.Debug("job scheduled",
		zap.String("job_id", job.ID),
		zap.String("queue", job.QueueName),
		zap.Time("run_at", job.RunAt))
	return true, nil
}

// Retry pushes a failed job back onto the queue after its backoff.
func (s *Scheduler) Retry(ctx context.Context, job *domain.DelayedJob, runAt time.Time) error {
	return s.redisq.Enqueue(ctx, job.QueueName, job.ID, runAt)
}
