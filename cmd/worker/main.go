package main

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/channel"
	"github.com/relaycrm/automation/internal/config"
	"github.com/relaycrm/automation/internal/eventbus"
	"github.com/relaycrm/automation/internal/infrastructure/deadletter"
	"github.com/relaycrm/automation/internal/infrastructure/monitor"
	pgInfra "github.com/relaycrm/automation/internal/infrastructure/postgres"
	redisInfra "github.com/relaycrm/automation/internal/infrastructure/redis"
	"github.com/relaycrm/automation/internal/queue"
	"github.com/relaycrm/automation/internal/services"
	"github.com/relaycrm/automation/internal/services/lifecycle"
	"github.com/relaycrm/automation/pkg/logger"
	"github.com/relaycrm/automation/repository/postgres"
	campaignUC "github.com/relaycrm/automation/usecase/campaign"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	dlq, err := deadletter.Open(cfg.DeadLetter.Path, "deadletter")
	if err != nil {
		zapLogger.Fatal("failed to open dead letter store", zap.Error(err))
	}
	manager.Register("deadletter", func(ctx context.Context) error {
		return dlq.Close()
	})

	mon := monitor.New(pool, redisClient, dlq, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	eventRepo := postgres.NewEventRepository(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)
	sequenceRepo := postgres.NewSequenceRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)

	bus := eventbus.New(eventRepo, eventbus.NewRedisBroadcaster(redisClient), zapLogger)
	manager.Register("eventbus", func(ctx context.Context) error {
		bus.Close()
		return nil
	})

	redisq := queue.New(redisClient)
	scheduler := services.NewScheduler(jobRepo, redisq, zapLogger)

	// The automation consumers run in the API process; events published
	// here (message.sent, campaign.reply) reach them over the Redis
	// broadcast. This side publishes and works the queue, nothing more.
	sender := channel.NewLogSender(zapLogger)
	sequencer := campaignUC.NewSequencer(campaignRepo, sequenceRepo, messageRepo, contactRepo, scheduler, sender, bus, zapLogger)

	mover := services.NewMover(jobRepo, redisq, zapLogger, services.MoverConfig{
		QueueName: cfg.Queue.Name,
		Interval:  cfg.Queue.MoveInterval,
		BatchSize: cfg.Queue.MoveBatch,
	})
	mover.Start()
	manager.Register("mover", func(ctx context.Context) error {
		mover.Stop(ctx)
		return nil
	})

	worker := services.NewWorker(jobRepo, redisq, dlq, zapLogger, services.WorkerConfig{
		QueueName:    cfg.Queue.Name,
		Concurrency:  cfg.Worker.Concurrency,
		LeaseTimeout: cfg.Worker.LeaseTimeout,
		PollTimeout:  cfg.Worker.PollTimeout,
	})
	worker.Register(domain.JobTypeSequenceStep, sequencer.ProcessStep)
	worker.Start(appCtx)
	manager.Register("worker", func(ctx context.Context) error {
		worker.Stop(ctx)
		return nil
	})

	zapLogger.Info("worker process running",
		zap.String("queue", cfg.Queue.Name),
		zap.Int("concurrency", cfg.Worker.Concurrency))

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
