package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	dealUC "github.com/relaycrm/automation/usecase/deal"
)

type MockTriggerRepository struct {
	mock.Mock
}

func (m *MockTriggerRepository) Create(ctx context.Context, trigger *domain.Trigger) (*domain.Trigger, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Trigger, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) List(ctx context.Context, organizationID string) ([]domain.Trigger, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).([]domain.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) ListActive(ctx context.Context, organizationID string, eventType domain.EventType) ([]domain.Trigger, error) {
	args := m.Called(ctx, organizationID, eventType)
	return args.Get(0).([]domain.Trigger), args.Error(1)
}

func (m *MockTriggerRepository) Update(ctx context.Context, trigger *domain.Trigger) error {
	args := m.Called(ctx, trigger)
	return args.Error(0)
}

func (m *MockTriggerRepository) Delete(ctx context.Context, id, organizationID string) error {
	args := m.Called(ctx, id, organizationID)
	return args.Error(0)
}

type MockExecutionRepository struct {
	mock.Mock
}

func (m *MockExecutionRepository) Create(ctx context.Context, execution *domain.TriggerExecution) error {
	args := m.Called(ctx, execution)
	return args.Error(0)
}

func (m *MockExecutionRepository) ListByTrigger(ctx context.Context, triggerID, organizationID string, limit int) ([]domain.TriggerExecution, error) {
	args := m.Called(ctx, triggerID, organizationID, limit)
	return args.Get(0).([]domain.TriggerExecution), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, eventType domain.EventType, input domain.EventInput) (*domain.Event, error) {
	args := m.Called(ctx, eventType, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func newTestEngine(t *testing.T, triggers *MockTriggerRepository, executions *MockExecutionRepository, publisher *MockPublisher) *Engine {
	t.Helper()
	actions := NewActionExecutor(dealUC.New(nil, nil, publisher, zap.NewNop()), publisher, zap.NewNop())
	return NewEngine(triggers, executions, actions, zap.NewNop())
}

func testEvent(eventType domain.EventType, payload string) *domain.Event {
	return &domain.Event{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Type:           eventType,
		Payload:        []byte(payload),
	}
}

func TestEngineRecordsSuccessfulExecution(t *testing.T) {
	triggers := new(MockTriggerRepository)
	executions := new(MockExecutionRepository)
	publisher := new(MockPublisher)
	engine := newTestEngine(t, triggers, executions, publisher)

	triggers.On("ListActive", mock.Anything, "org-1", domain.EventContactCreated).
		Return([]domain.Trigger{{
			ID:             "trg-1",
			OrganizationID: "org-1",
			EventType:      domain.EventContactCreated,
		}}, nil)
	executions.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.TriggerExecution) bool {
		return e.TriggerID == "trg-1" && e.Status == domain.ExecutionSuccess && e.EventID == "evt-1"
	})).Return(nil)

	engine.HandleEvent(context.Background(), testEvent(domain.EventContactCreated, `{}`))

	executions.AssertExpectations(t)
}

func TestEngineSkipsUnmatchedConditions(t *testing.T) {
	triggers := new(MockTriggerRepository)
	executions := new(MockExecutionRepository)
	publisher := new(MockPublisher)
	engine := newTestEngine(t, triggers, executions, publisher)

	triggers.On("ListActive", mock.Anything, "org-1", domain.EventDealUpdated).
		Return([]domain.Trigger{{
			ID:             "trg-1",
			OrganizationID: "org-1",
			EventType:      domain.EventDealUpdated,
			Conditions:     map[string]any{"status": "won"},
		}}, nil)

	engine.HandleEvent(context.Background(), testEvent(domain.EventDealUpdated, `{"status":"lost"}`))

	// No execution row is written for a trigger whose conditions failed.
	executions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEngineIsolatesFailingTrigger(t *testing.T) {
	triggers := new(MockTriggerRepository)
	executions := new(MockExecutionRepository)
	publisher := new(MockPublisher)
	engine := newTestEngine(t, triggers, executions, publisher)

	// First trigger fails: move_deal without a dealId in the payload.
	// Second trigger must still run and record success.
	triggers.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.Trigger{
			{
				ID:             "trg-bad",
				OrganizationID: "org-1",
				EventType:      domain.EventMeetingBooked,
				Priority:       10,
				Actions: []domain.Action{{
					Type:   domain.ActionMoveDeal,
					Params: map[string]any{"stageId": "stage-2"},
				}},
			},
			{
				ID:             "trg-ok",
				OrganizationID: "org-1",
				EventType:      domain.EventMeetingBooked,
			},
		}, nil)

	var statuses []domain.ExecutionStatus
	executions.On("Create", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			exec := args.Get(1).(*domain.TriggerExecution)
			statuses = append(statuses, exec.Status)
		}).
		Return(nil)

	engine.HandleEvent(context.Background(), testEvent(domain.EventMeetingBooked, `{"contactId":"c1"}`))

	assert.Equal(t, []domain.ExecutionStatus{domain.ExecutionError, domain.ExecutionSuccess}, statuses)
}

func TestEnginePublishEventActionChains(t *testing.T) {
	triggers := new(MockTriggerRepository)
	executions := new(MockExecutionRepository)
	publisher := new(MockPublisher)
	engine := newTestEngine(t, triggers, executions, publisher)

	triggers.On("ListActive", mock.Anything, "org-1", domain.EventContactCreated).
		Return([]domain.Trigger{{
			ID:             "trg-1",
			OrganizationID: "org-1",
			EventType:      domain.EventContactCreated,
			Actions: []domain.Action{{
				Type:   domain.ActionPublishEvent,
				Params: map[string]any{"eventType": "meeting.booked"},
			}},
		}}, nil)
	publisher.On("Publish", mock.Anything, domain.EventMeetingBooked, mock.MatchedBy(func(in domain.EventInput) bool {
		return in.OrganizationID == "org-1"
	})).Return(&domain.Event{ID: "evt-2"}, nil)
	executions.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.TriggerExecution) bool {
		return e.Status == domain.ExecutionSuccess
	})).Return(nil)

	engine.HandleEvent(context.Background(), testEvent(domain.EventContactCreated, `{"contactId":"c1"}`))

	publisher.AssertExpectations(t)
	executions.AssertExpectations(t)
}
