package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/relaycrm/automation/api/handler"
	"github.com/relaycrm/automation/internal/channel"
	"github.com/relaycrm/automation/internal/config"
	"github.com/relaycrm/automation/internal/eventbus"
	"github.com/relaycrm/automation/internal/infrastructure/monitor"
	pgInfra "github.com/relaycrm/automation/internal/infrastructure/postgres"
	redisInfra "github.com/relaycrm/automation/internal/infrastructure/redis"
	"github.com/relaycrm/automation/internal/middleware"
	"github.com/relaycrm/automation/internal/queue"
	"github.com/relaycrm/automation/internal/router"
	"github.com/relaycrm/automation/internal/services"
	"github.com/relaycrm/automation/internal/services/lifecycle"
	"github.com/relaycrm/automation/pkg/httpcontext"
	"github.com/relaycrm/automation/pkg/logger"
	"github.com/relaycrm/automation/repository/postgres"
	campaignUC "github.com/relaycrm/automation/usecase/campaign"
	dealUC "github.com/relaycrm/automation/usecase/deal"
	eventUC "github.com/relaycrm/automation/usecase/event"
	policyUC "github.com/relaycrm/automation/usecase/policy"
	triggerUC "github.com/relaycrm/automation/usecase/trigger"
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

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

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

	// The dead-letter store lives with the worker; health here covers the
	// shared dependencies only.
	mon := monitor.New(pool, redisClient, nil, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	eventRepo := postgres.NewEventRepository(pool)
	triggerRepo := postgres.NewTriggerRepository(pool)
	executionRepo := postgres.NewExecutionRepository(pool)
	campaignRepo := postgres.NewCampaignRepository(pool)
	sequenceRepo := postgres.NewSequenceRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	contactRepo := postgres.NewContactRepository(pool)
	dealRepo := postgres.NewDealRepository(pool)
	pipelineRepo := postgres.NewPipelineRepository(pool)
	policyRepo := postgres.NewPolicyRepository(pool)
	jobRepo := postgres.NewJobRepository(pool)

	bus := eventbus.New(eventRepo, eventbus.NewRedisBroadcaster(redisClient), zapLogger)
	manager.Register("eventbus", func(ctx context.Context) error {
		bus.Close()
		return nil
	})

	// The worker binary consumes the queue; this side only enqueues.
	redisq := queue.New(redisClient)
	scheduler := services.NewScheduler(jobRepo, redisq, zapLogger)

	dealUseCase := dealUC.New(dealRepo, pipelineRepo, bus, zapLogger)
	sender := channel.NewLogSender(zapLogger)
	sequencer := campaignUC.NewSequencer(campaignRepo, sequenceRepo, messageRepo, contactRepo, scheduler, sender, bus, zapLogger)
	campaignUseCase := campaignUC.New(campaignRepo, sequenceRepo, messageRepo, contactRepo, sequencer, bus, zapLogger)
	triggerUseCase := triggerUC.New(triggerRepo, executionRepo, zapLogger)
	policyUseCase := policyUC.New(policyRepo, zapLogger)
	eventUseCase := eventUC.New(bus, zapLogger)

	// Automation consumers run in-process so API-published events take
	// effect immediately.
	actionExecutor := triggerUC.NewActionExecutor(dealUseCase, bus, zapLogger)
	triggerEngine := triggerUC.NewEngine(triggerRepo, executionRepo, actionExecutor, zapLogger)
	policyEngine := policyUC.NewEngine(policyRepo, contactRepo, dealRepo, pipelineRepo, dealUseCase, zapLogger)
	replyDetector := campaignUC.NewReplyDetector(messageRepo, bus, zapLogger)

	bus.RegisterConsumer(triggerEngine.HandleEvent)
	bus.RegisterConsumer(policyEngine.HandleEvent)
	bus.RegisterConsumer(replyDetector.HandleEvent)

	// Events published by the worker (message.sent, campaign.reply) arrive
	// over Redis; self-originated broadcasts are skipped by the listener.
	listener := eventbus.NewListener(redisClient, bus, zapLogger)
	if err := listener.Start(appCtx); err != nil {
		zapLogger.Fatal("event listener failed", zap.Error(err))
	}
	manager.Register("event_listener", func(ctx context.Context) error {
		listener.Stop()
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Event:    apiHandler.NewEventHandler(eventUseCase, ctxAdapter, zapLogger),
		Trigger:  apiHandler.NewTriggerHandler(triggerUseCase, ctxAdapter, zapLogger),
		Campaign: apiHandler.NewCampaignHandler(campaignUseCase, ctxAdapter, zapLogger),
		Policy:   apiHandler.NewPolicyHandler(policyUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	tenant := middleware.RequireOrganization(zapLogger)
	recoverMw := middleware.Recover(zapLogger)
	r := router.New(handlers, tenant)

	server := &fasthttp.Server{
		Handler:      recoverMw(r.Handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
