package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
)

// fakeEventStore appends in memory and stamps CreatedAt, mirroring what
// the postgres repository returns.
type fakeEventStore struct {
	mu     sync.Mutex
	events []domain.Event
	fail   error
}

func (s *fakeEventStore) Append(ctx context.Context, event *domain.Event) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	stored := *event
	stored.CreatedAt = time.Now().UTC()
	s.events = append(s.events, stored)
	return &stored, nil
}

func (s *fakeEventStore) List(ctx context.Context, organizationID string, filter repository.EventFilter) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.OrganizationID == organizationID {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	b.payloads = append(b.payloads, payload)
	return nil
}

func decodeEnvelope(t *testing.T, payload []byte) Envelope {
	t.Helper()
	var envelope Envelope
	assert.NoError(t, json.Unmarshal(payload, &envelope))
	return envelope
}

func TestPublishAppendsBeforeDelivery(t *testing.T) {
	store := &fakeEventStore{}
	bus := New(store, nil, zap.NewNop())

	var mu sync.Mutex
	var seen []string
	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		mu.Lock()
		seen = append(seen, event.ID)
		mu.Unlock()
	})

	event, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{
		OrganizationID: "org-1",
		EntityType:     "contact",
		EntityID:       "cont-1",
		Data:           map[string]any{"contactId": "cont-1"},
	})
	bus.Close()

	assert.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.Equal(t, []string{event.ID}, seen)
	assert.Len(t, store.events, 1)
}

func TestPublishRequiresOrganization(t *testing.T) {
	bus := New(&fakeEventStore{}, nil, zap.NewNop())
	defer bus.Close()

	_, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{})

	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
}

func TestPublishAbortsOnAppendFailure(t *testing.T) {
	store := &fakeEventStore{fail: errors.New("connection refused")}
	bus := New(store, nil, zap.NewNop())

	delivered := 0
	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		delivered++
	})

	_, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{
		OrganizationID: "org-1",
	})
	bus.Close()

	assert.Error(t, err)
	assert.Zero(t, delivered)
}

func TestDeliveryPreservesPerOrganizationOrder(t *testing.T) {
	bus := New(&fakeEventStore{}, nil, zap.NewNop())

	var mu sync.Mutex
	var order []string
	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		mu.Lock()
		order = append(order, event.EntityID)
		mu.Unlock()
	})

	var want []string
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("entity-%d", i)
		want = append(want, id)
		_, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{
			OrganizationID: "org-1",
			EntityID:       id,
		})
		assert.NoError(t, err)
	}
	bus.Close()

	assert.Equal(t, want, order)
}

func TestSubscribeScopesAndUnsubscribes(t *testing.T) {
	bus := New(&fakeEventStore{}, nil, zap.NewNop())

	var mu sync.Mutex
	counts := map[string]int{}
	record := func(key string) func(*domain.Event) {
		return func(*domain.Event) {
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}
	}

	unsubOrg1 := bus.Subscribe("org-1", record("org-1"))
	bus.Subscribe("org-2", record("org-2"))
	bus.Subscribe(GlobalScope, record("global"))

	publish := func(orgID string) {
		_, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{OrganizationID: orgID})
		assert.NoError(t, err)
	}

	publish("org-1")
	publish("org-2")
	unsubOrg1()
	publish("org-1")
	bus.Close()

	assert.Equal(t, 1, counts["org-1"])
	assert.Equal(t, 1, counts["org-2"])
	assert.Equal(t, 3, counts["global"])
}

func TestConsumerPanicDoesNotStopDelivery(t *testing.T) {
	bus := New(&fakeEventStore{}, nil, zap.NewNop())

	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		panic("boom")
	})
	delivered := 0
	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		delivered++
	})

	_, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{OrganizationID: "org-1"})
	bus.Close()

	assert.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestPublishBroadcastsEnvelope(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	bus := New(&fakeEventStore{}, broadcaster, zap.NewNop())

	event, err := bus.Publish(context.Background(), domain.EventContactCreated, domain.EventInput{
		OrganizationID: "org-1",
	})
	bus.Close()

	assert.NoError(t, err)
	assert.Equal(t, []string{ChannelFor("org-1")}, broadcaster.channels)

	envelope := decodeEnvelope(t, broadcaster.payloads[0])
	assert.Equal(t, bus.InstanceID(), envelope.Origin)
	assert.Equal(t, event.ID, envelope.Event.ID)
}

func TestDispatchLocalSkipsStore(t *testing.T) {
	store := &fakeEventStore{}
	bus := New(store, nil, zap.NewNop())

	var mu sync.Mutex
	var seen []string
	bus.RegisterConsumer(func(ctx context.Context, event *domain.Event) {
		mu.Lock()
		seen = append(seen, event.ID)
		mu.Unlock()
	})

	bus.DispatchLocal(&domain.Event{ID: "evt-remote", OrganizationID: "org-1", Type: domain.EventContactCreated})
	bus.Close()

	assert.Equal(t, []string{"evt-remote"}, seen)
	assert.Empty(t, store.events)
}
