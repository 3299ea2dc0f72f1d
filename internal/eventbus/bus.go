// Package eventbus implements the durable event store and the in-process
// fan-out on top of it. Events are persisted before any consumer sees
// them; consumer failures never propagate back to the publisher.
package eventbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/pkg/logger"
	"github.com/relaycrm/automation/repository"
)

// GlobalScope subscribes a callback to every organization's events.
// Kept for the policy engine, which historically listens process-wide
// and filters per event.
const GlobalScope = "global"

// Consumer is an in-process handler invoked once per published event.
// Consumers run on the publishing process's dispatch goroutines and must
// tolerate being called concurrently for different organizations.
type Consumer func(ctx context.Context, event *domain.Event)

// Broadcaster fans a serialized event out to other processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload []byte) error
}

const laneBuffer = 256

// Bus persists events and delivers them, in per-organization publish
// order, to registered consumers and subscribers.
type Bus struct {
	store     repository.EventRepository
	broadcast Broadcaster
	logger    *zap.Logger

	// instanceID distinguishes this process's broadcasts from remote
	// ones so the remote listener can skip self-originated events.
	instanceID string

	mu        sync.RWMutex
	consumers []Consumer
	subs      map[string]map[int]func(*domain.Event)
	nextToken int

	lanesMu sync.Mutex
	lanes   map[string]chan *domain.Event
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Bus. The broadcaster may be nil for single-process use.
func New(store repository.EventRepository, broadcast Broadcaster, logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		store:      store,
		broadcast:  broadcast,
		logger:     logger,
		instanceID: uuid.NewString(),
		subs:       make(map[string]map[int]func(*domain.Event)),
		lanes:      make(map[string]chan *domain.Event),
	}
}

// InstanceID identifies this bus instance in broadcast envelopes.
func (b *Bus) InstanceID() string {
	return b.instanceID
}

// RegisterConsumer adds an in-process consumer receiving every event.
// Must be called during wiring, before the first publish.
func (b *Bus) RegisterConsumer(c Consumer) {
	if c == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consumers = append(b.consumers, c)
}

// Subscribe registers a callback for one organization's events (or every
// organization's when organizationID is GlobalScope). Delivery is
// at-most-once per subscriber per process lifetime; there is no replay.
// The returned function removes the subscription.
func (b *Bus) Subscribe(organizationID string, callback func(*domain.Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	token := b.nextToken
	b.nextToken++
	if b.subs[organizationID] == nil {
		b.subs[organizationID] = make(map[int]func(*domain.Event))
	}
	b.subs[organizationID][token] = callback

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[organizationID], token)
	}
}

// Publish durably appends the event, then broadcasts it, then hands it to
// in-process consumers asynchronously. A persistence failure aborts the
// publish; everything after the append is best-effort.
func (b *Bus) Publish(ctx context.Context, eventType domain.EventType, input domain.EventInput) (*domain.Event, error) {
	if input.OrganizationID == "" {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "event organization id is required", nil)
	}

	event := &domain.Event{
		ID:             uuid.NewString(),
		OrganizationID: input.OrganizationID,
		Type:           eventType,
		EntityType:     input.EntityType,
		EntityID:       input.EntityID,
		UserID:         input.UserID,
		AgentID:        input.AgentID,
	}
	if input.Data != nil {
		payload, err := json.Marshal(input.Data)
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInvalid, "event payload not serializable", err)
		}
		event.Payload = payload
	}

	stored, err := b.store.Append(ctx, event)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "event append failed", err)
	}

	if b.broadcast != nil {
		envelope, err := json.Marshal(Envelope{Origin: b.instanceID, Event: stored})
		if err == nil {
			channel := ChannelFor(stored.OrganizationID)
			if err := b.broadcast.Broadcast(ctx, channel, envelope); err != nil {
				b.logger.Warn("event broadcast failed",
					zap.String("event_type", string(eventType)),
					zap.String("organization_id", stored.OrganizationID),
					zap.Error(err))
			}
		}
	}

	b.enqueue(stored)

	logger.FromContext(ctx, b.logger).Debug("event published",
		zap.String("event_id", stored.ID),
		zap.String("event_type", string(eventType)),
		zap.String("organization_id", stored.OrganizationID))

	return stored, nil
}

// DispatchLocal delivers an already-persisted event to this process's
// consumers and subscribers. Used by the remote listener for events
// published elsewhere.
func (b *Bus) DispatchLocal(event *domain.Event) {
	if event == nil || event.OrganizationID == "" {
		return
	}
	b.enqueue(event)
}

// Events queries the durable log for the API surface.
func (b *Bus) Events(ctx context.Context, organizationID string, filter repository.EventFilter) ([]domain.Event, error) {
	return b.store.List(ctx, organizationID, filter)
}

// Close stops accepting events and waits for the dispatch lanes to drain.
func (b *Bus) Close() {
	b.lanesMu.Lock()
	if b.closed {
		b.lanesMu.Unlock()
		return
	}
	b.closed = true
	for _, lane := range b.lanes {
		close(lane)
	}
	b.lanesMu.Unlock()
	b.wg.Wait()
}

// enqueue places the event on its organization's ordered lane. Each
// organization gets one dispatch goroutine, so per-organization delivery
// order matches publish order. A full lane drops the event with a
// warning: the durable log remains authoritative, fan-out is best-effort.
func (b *Bus) enqueue(event *domain.Event) {
	b.lanesMu.Lock()
	if b.closed {
		b.lanesMu.Unlock()
		return
	}
	lane, ok := b.lanes[event.OrganizationID]
	if !ok {
		lane = make(chan *domain.Event, laneBuffer)
		b.lanes[event.OrganizationID] = lane
		b.wg.Add(1)
		go b.drain(lane)
	}
	b.lanesMu.Unlock()

	select {
	case lane <- event:
	default:
		b.logger.Warn("event lane full, dropping delivery",
			zap.String("event_id", event.ID),
			zap.String("organization_id", event.OrganizationID))
	}
}

func (b *Bus) drain(lane chan *domain.Event) {
	defer b.wg.Done()
	for event := range lane {
		b.deliver(event)
	}
}

func (b *Bus) deliver(event *domain.Event) {
	b.mu.RLock()
	consumers := make([]Consumer, len(b.consumers))
	copy(consumers, b.consumers)
	var callbacks []func(*domain.Event)
	for _, cb := range b.subs[event.OrganizationID] {
		callbacks = append(callbacks, cb)
	}
	for _, cb := range b.subs[GlobalScope] {
		callbacks = append(callbacks, cb)
	}
	b.mu.RUnlock()

	ctx := context.Background()
	for _, consumer := range consumers {
		b.safeInvoke(event, func() { consumer(ctx, event) })
	}
	for _, cb := range callbacks {
		b.safeInvoke(event, func() { cb(event) })
	}
}

func (b *Bus) safeInvoke(event *domain.Event, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event consumer panicked",
				zap.String("event_id", event.ID),
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
		}
	}()
	fn()
}
