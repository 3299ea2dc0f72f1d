package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/internal/queue"
	"github.com/relaycrm/automation/repository"
)

// MoverConfig controls how often due jobs are promoted to ready.
type MoverConfig struct {
	QueueName string
	Interval  time.Duration
	BatchSize int
}

// Mover keeps Redis and the jobs table in agreement. Each tick it
// promotes due delayed jobs to the ready list, re-pushes queued jobs
// Redis lost, and returns expired leases to the queue.
type Mover struct {
	jobs   repository.JobRepository
	redisq *queue.RedisQ
	logger *zap.Logger
	cron   *cron.Cron
	cfg    MoverConfig
}

func NewMover(jobs repository.JobRepository, redisq *queue.RedisQ, logger *zap.Logger, cfg MoverConfig) *Mover {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Mover{
		jobs:   jobs,
		redisq: redisq,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = m.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		m.Tick(ctx)
	})

	return m
}

func (m *Mover) Start() {
	if m == nil || m.cron == nil {
		return
	}
	m.cron.Start()
	m.logger.Info("queue mover started", zap.String("queue", m.cfg.QueueName))
}

func (m *Mover) Stop(ctx context.Context) {
	if m == nil || m.cron == nil {
		return
	}
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	m.logger.Info("queue mover stopped")
}

// Tick runs one promotion pass.
func (m *Mover) Tick(ctx context.Context) {
	now := time.Now().UTC()

	moved, err := m.redisq.MoveDue(ctx, m.cfg.QueueName, now.Unix(), int64(m.cfg.BatchSize))
	if err != nil {
		m.logger.Warn("move due failed", zap.Error(err))
	} else if moved > 0 {
		m.logger.Debug("promoted delayed jobs", zap.Int("count", moved))
	}

	if err := m.reconcile(ctx, now); err != nil {
		m.logger.Warn("queue reconcile failed", zap.Error(err))
	}
	if err := m.requeueExpired(ctx, now); err != nil {
		m.logger.Warn("lease requeue failed", zap.Error(err))
	}
}

// reconcile re-pushes due jobs the database still sees as queued. Covers
// Redis writes lost at schedule time and flushed Redis instances. The
// ready list may briefly hold duplicate ids; the lease step makes
// duplicate deliveries no-ops.
func (m *Mover) reconcile(ctx context.Context, now time.Time) error {
	ids, err := m.jobs.ListDueQueued(ctx, m.cfg.QueueName, now, m.cfg.BatchSize)
	if err != nil || len(ids) == 0 {
		return err
	}
	if err := m.redisq.Push(ctx, m.cfg.QueueName, ids...); err != nil {
		return err
	}
	m.logger.Info("reconciled queued jobs", zap.Int("count", len(ids)))
	return nil
}

func (m *Mover) requeueExpired(ctx context.Context, now time.Time) error {
	ids, err := m.jobs.ListExpiredLeases(ctx, m.cfg.QueueName, now, m.cfg.BatchSize)
	if err != nil || len(ids) == 0 {
		return err
	}
	for _, id := range ids {
		if err := m.jobs.Requeue(ctx, id); err != nil {
			m.logger.Warn("requeue failed", zap.String("job_id", id), zap.Error(err))
			continue
		}
		if err := m.redisq.Push(ctx, m.cfg.QueueName, id); err != nil {
			m.logger.Warn("requeue push failed", zap.String("job_id", id), zap.Error(err))
		}
	}
	m.logger.Info("requeued expired leases", zap.Int("count", len(ids)))
	return nil
}
