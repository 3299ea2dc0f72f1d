package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/infrastructure/deadletter"
	"github.com/relaycrm/automation/internal/queue"
	"github.com/relaycrm/automation/repository"
)

// JobHandler executes one leased job. A nil return marks the job
// succeeded; an error triggers retry with backoff until the attempt
// budget is spent, after which the job is dead-lettered.
type JobHandler func(ctx context.Context, job *domain.DelayedJob) error

// WorkerConfig tunes the consuming side of the job queue.
type WorkerConfig struct {
	QueueName    string
	Concurrency  int
	LeaseTimeout time.Duration
	PollTimeout  time.Duration
}

// Worker leases ready jobs and dispatches them to registered handlers
// by job type.
type Worker struct {
	jobs   repository.JobRepository
	redisq *queue.RedisQ
	dlq    *deadletter.Store
	logger *zap.Logger
	cfg    WorkerConfig

	handlers map[string]JobHandler
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewWorker(
	jobs repository.JobRepository,
	redisq *queue.RedisQ,
	dlq *deadletter.Store,
	logger *zap.Logger,
	cfg WorkerConfig,
) *Worker {
	if cfg.QueueName == "" {
		cfg.QueueName = domain.QueueCampaigns
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 60 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		jobs:     jobs,
		redisq:   redisq,
		dlq:      dlq,
		logger:   logger,
		cfg:      cfg,
		handlers: make(map[string]JobHandler),
	}
}

// Register maps a job type to its handler. Must be called before Start.
func (w *Worker) Register(jobType string, handler JobHandler) {
	w.handlers[jobType] = handler
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
	w.logger.Info("worker started",
		zap.String("queue", w.cfg.QueueName),
		zap.Int("concurrency", w.cfg.Concurrency))
}

// Stop cancels the consumers and waits for in-flight jobs to finish or
// the context to expire.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	w.logger.Info("worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		jobID, err := w.redisq.Dequeue(ctx, w.cfg.QueueName, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if jobID == "" {
			continue
		}

		w.process(ctx, jobID)
	}
}

func (w *Worker) process(ctx context.Context, jobID string) {
	job, err := w.jobs.GetByID(ctx, jobID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			w.logger.Warn("dequeued unknown job", zap.String("job_id", jobID))
			return
		}
		w.logger.Error("job load failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	leased, err := w.jobs.Lease(ctx, job.ID, time.Now().UTC().Add(w.cfg.LeaseTimeout))
	if err != nil {
		w.logger.Error("job lease failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if !leased {
		// Another worker got it, or the job is already terminal.
		return
	}

	handler, ok := w.handlers[job.Type]
	if !ok {
		w.logger.Error("no handler for job type",
			zap.String("job_id", job.ID), zap.String("type", job.Type))
		w.deadLetter(ctx, job, "no handler registered for job type")
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, w.cfg.LeaseTimeout)
	err = w.run(runCtx, job, handler)
	cancel()

	if err == nil {
		if err := w.jobs.MarkSucceeded(ctx, job.ID); err != nil {
			w.logger.Error("mark succeeded failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	w.logger.Warn("job attempt failed",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.Int("attempt", job.Attempt),
		zap.Error(err))

	if job.Exhausted() {
		w.deadLetter(ctx, job, err.Error())
		return
	}

	runAt := time.Now().UTC().Add(job.NextBackoff())
	if err := w.jobs.MarkFailedTemp(ctx, job.ID, err.Error(), runAt); err != nil {
		w.logger.Error("mark failed_temp failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if err := w.redisq.Enqueue(ctx, job.QueueName, job.ID, runAt); err != nil {
		w.logger.Warn("retry enqueue failed, job will be reconciled",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (w *Worker) run(ctx context.Context, job *domain.DelayedJob, handler JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.WrapError(domain.ErrCodeInternal, "job handler panicked", nil)
			w.logger.Error("job handler panicked",
				zap.String("job_id", job.ID), zap.Any("panic", r))
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) deadLetter(ctx context.Context, job *domain.DelayedJob, reason string) {
	if err := w.jobs.MarkFailedPerm(ctx, job.ID, reason); err != nil {
		w.logger.Error("mark failed_perm failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	if w.dlq != nil {
		entry := deadletter.Entry{
			JobID:          job.ID,
			QueueName:      job.QueueName,
			Type:           job.Type,
			OrganizationID: job.OrganizationID,
			Payload:        job.Payload,
			Attempts:       job.Attempt + 1,
			LastError:      reason,
			Timestamp:      time.Now().UTC(),
		}
		if err := w.dlq.Put(entry); err != nil {
			w.logger.Error("dead letter write failed", zap.String("job_id", job.ID), zap.Error(err))
			return
		}
	}

	if err := w.jobs.MarkDeadLettered(ctx, job.ID); err != nil {
		w.logger.Error("mark dead_lettered failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	w.logger.Warn("job dead lettered",
		zap.String("job_id", job.ID),
		zap.String("type", job.Type),
		zap.String("reason", reason))
}
