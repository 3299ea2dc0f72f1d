// Package event is the thin application surface over the event bus:
// validated publishing and event-log queries for the API layer.
package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/eventbus"
	"github.com/relaycrm/automation/repository"
)

type UseCase struct {
	bus    *eventbus.Bus
	logger *zap.Logger
}

func New(bus *eventbus.Bus, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{bus: bus, logger: logger}
}

// Publish validates and publishes one event.
func (uc *UseCase) Publish(ctx context.Context, eventType domain.EventType, input domain.EventInput) (*domain.Event, error) {
	if eventType == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "event type is required", nil)
	}
	return uc.bus.Publish(ctx, eventType, input)
}

// Subscribe registers a live callback for one organization's events.
func (uc *UseCase) Subscribe(organizationID string, callback func(*domain.Event)) func() {
	return uc.bus.Subscribe(organizationID, callback)
}

// ListEvents queries the durable log.
func (uc *UseCase) ListEvents(ctx context.Context, organizationID string, filter repository.EventFilter) ([]domain.Event, error) {
	if organizationID == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "organization id is required", nil)
	}
	return uc.bus.Events(ctx, organizationID, filter)
}
