package trigger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

// Engine evaluates every active trigger bound to an event's type, in
// priority order, and records an execution row for each trigger whose
// conditions matched. One trigger's failure never stops the others.
type Engine struct {
	triggers   repository.TriggerRepository
	executions repository.ExecutionRepository
	actions    *ActionExecutor
	logger     *zap.Logger
}

func NewEngine(
	triggers repository.TriggerRepository,
	executions repository.ExecutionRepository,
	actions *ActionExecutor,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		triggers:   triggers,
		executions: executions,
		actions:    actions,
		logger:     logger,
	}
}

// HandleEvent is the bus consumer entry point.
func (e *Engine) HandleEvent(ctx context.Context, event *domain.Event) {
	triggers, err := e.triggers.ListActive(ctx, event.OrganizationID, event.Type)
	if err != nil {
		e.logger.Error("trigger lookup failed",
			zap.String("event_type", string(event.Type)),
			zap.String("organization_id", event.OrganizationID),
			zap.Error(err))
		return
	}
	if len(triggers) == 0 {
		return
	}

	data := event.Data()
	for i := range triggers {
		e.runTrigger(ctx, &triggers[i], event, data)
	}
}

func (e *Engine) runTrigger(ctx context.Context, trigger *domain.Trigger, event *domain.Event, data map[string]any) {
	if !matchConditions(trigger.Conditions, data) {
		return
	}

	start := time.Now()
	execErr := e.actions.Execute(ctx, trigger, event, data)
	elapsed := time.Since(start)

	execution := &domain.TriggerExecution{
		ID:              uuid.NewString(),
		TriggerID:       trigger.ID,
		OrganizationID:  trigger.OrganizationID,
		EventType:       event.Type,
		EventID:         event.ID,
		Status:          domain.ExecutionSuccess,
		ExecutionTimeMs: elapsed.Milliseconds(),
	}
	if execErr != nil {
		execution.Status = domain.ExecutionError
		execution.ErrorMessage = execErr.Error()
		e.logger.Warn("trigger execution failed",
			zap.String("trigger_id", trigger.ID),
			zap.String("event_id", event.ID),
			zap.Error(execErr))
	} else {
		e.logger.Debug("trigger executed",
			zap.String("trigger_id", trigger.ID),
			zap.String("event_id", event.ID),
			zap.Duration("took", elapsed))
	}

	if err := e.executions.Create(ctx, execution); err != nil {
		e.logger.Error("trigger execution audit write failed",
			zap.String("trigger_id", trigger.ID),
			zap.Error(err))
	}
}
