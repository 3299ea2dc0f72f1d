package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/repository"
	dealUC "github.com/relaycrm/automation/usecase/deal"
)

type MockPolicyRepository struct {
	mock.Mock
}

func (m *MockPolicyRepository) Create(ctx context.Context, policy *domain.PipelinePolicy) (*domain.PipelinePolicy, error) {
	args := m.Called(ctx, policy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelinePolicy), args.Error(1)
}

func (m *MockPolicyRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.PipelinePolicy, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelinePolicy), args.Error(1)
}

func (m *MockPolicyRepository) List(ctx context.Context, organizationID string) ([]domain.PipelinePolicy, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).([]domain.PipelinePolicy), args.Error(1)
}

func (m *MockPolicyRepository) ListActive(ctx context.Context, organizationID string, triggerEvent domain.EventType) ([]domain.PipelinePolicy, error) {
	args := m.Called(ctx, organizationID, triggerEvent)
	return args.Get(0).([]domain.PipelinePolicy), args.Error(1)
}

func (m *MockPolicyRepository) Update(ctx context.Context, policy *domain.PipelinePolicy) error {
	args := m.Called(ctx, policy)
	return args.Error(0)
}

func (m *MockPolicyRepository) Delete(ctx context.Context, id, organizationID string) error {
	args := m.Called(ctx, id, organizationID)
	return args.Error(0)
}

type MockDealRepository struct {
	mock.Mock
}

func (m *MockDealRepository) Create(ctx context.Context, deal *domain.Deal) (*domain.Deal, error) {
	args := m.Called(ctx, deal)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deal), args.Error(1)
}

func (m *MockDealRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Deal, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deal), args.Error(1)
}

func (m *MockDealRepository) FirstByContact(ctx context.Context, contactID, pipelineID, organizationID string) (*domain.Deal, error) {
	args := m.Called(ctx, contactID, pipelineID, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Deal), args.Error(1)
}

func (m *MockDealRepository) UpdateStage(ctx context.Context, id, organizationID, stageID string) error {
	args := m.Called(ctx, id, organizationID, stageID)
	return args.Error(0)
}

func (m *MockDealRepository) MergeFields(ctx context.Context, id string, fields map[string]any) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

type MockPipelineRepository struct {
	mock.Mock
}

func (m *MockPipelineRepository) GetWithStages(ctx context.Context, id, organizationID string) (*domain.Pipeline, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Pipeline), args.Error(1)
}

func (m *MockPipelineRepository) StageByName(ctx context.Context, pipelineID, name string) (*domain.PipelineStage, error) {
	args := m.Called(ctx, pipelineID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PipelineStage), args.Error(1)
}

func (m *MockPipelineRepository) StageNameByID(ctx context.Context, stageID string) (string, error) {
	args := m.Called(ctx, stageID)
	return args.String(0), args.Error(1)
}

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Contact, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contact), args.Error(1)
}

func (m *MockContactRepository) List(ctx context.Context, organizationID string, filter repository.ContactFilter) ([]domain.Contact, error) {
	args := m.Called(ctx, organizationID, filter)
	return args.Get(0).([]domain.Contact), args.Error(1)
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

type engineFixture struct {
	policies  *MockPolicyRepository
	deals     *MockDealRepository
	pipelines *MockPipelineRepository
	contacts  *MockContactRepository
	publisher *MockPublisher
	engine    *Engine
}

func newEngineFixture() *engineFixture {
	f := &engineFixture{
		policies:  new(MockPolicyRepository),
		deals:     new(MockDealRepository),
		pipelines: new(MockPipelineRepository),
		contacts:  new(MockContactRepository),
		publisher: new(MockPublisher),
	}
	mover := dealUC.New(f.deals, f.pipelines, f.publisher, zap.NewNop())
	f.engine = NewEngine(f.policies, f.contacts, f.deals, f.pipelines, mover, zap.NewNop())
	return f
}

func meetingBooked(contactID string) *domain.Event {
	return &domain.Event{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Type:           domain.EventMeetingBooked,
		Payload:        []byte(`{"contactId":"` + contactID + `"}`),
	}
}

func activePolicy() domain.PipelinePolicy {
	return domain.PipelinePolicy{
		ID:             "pol-1",
		OrganizationID: "org-1",
		PipelineID:     "pipe-1",
		PolicyType:     domain.PolicyTypeAutoTransition,
		TriggerEvent:   domain.EventMeetingBooked,
		Actions:        domain.PolicyActions{TargetStage: "Meeting Booked"},
		IsActive:       true,
	}
}

func TestPolicyMovesDealToTargetStage(t *testing.T) {
	f := newEngineFixture()

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{activePolicy()}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", OrganizationID: "org-1", ContactID: "cont-1", PipelineID: "pipe-1", StageID: "stage-new"}, nil)
	f.pipelines.On("StageByName", mock.Anything, "pipe-1", "Meeting Booked").
		Return(&domain.PipelineStage{ID: "stage-meeting", PipelineID: "pipe-1", Name: "Meeting Booked"}, nil)
	f.deals.On("GetByID", mock.Anything, "deal-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", OrganizationID: "org-1", ContactID: "cont-1", PipelineID: "pipe-1", StageID: "stage-new"}, nil)
	f.deals.On("UpdateStage", mock.Anything, "deal-1", "org-1", "stage-meeting").Return(nil)
	f.pipelines.On("StageNameByID", mock.Anything, "stage-new").Return("New", nil)
	f.pipelines.On("StageNameByID", mock.Anything, "stage-meeting").Return("Meeting Booked", nil)
	f.publisher.On("Publish", mock.Anything, domain.EventDealStageChanged, mock.MatchedBy(func(in domain.EventInput) bool {
		return in.Data["fromStageName"] == "New" && in.Data["toStageName"] == "Meeting Booked"
	})).Return(&domain.Event{ID: "evt-2"}, nil)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	f.deals.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestPolicyNoopWhenAlreadyAtTargetStage(t *testing.T) {
	f := newEngineFixture()

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{activePolicy()}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", StageID: "stage-meeting"}, nil)
	f.pipelines.On("StageByName", mock.Anything, "pipe-1", "Meeting Booked").
		Return(&domain.PipelineStage{ID: "stage-meeting"}, nil)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	// Re-firing against a deal already in the target stage moves nothing
	// and publishes nothing, so policies cannot loop.
	f.deals.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicySkipsContactWithoutDeal(t *testing.T) {
	f := newEngineFixture()

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{activePolicy()}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(nil, domain.ErrDealNotFound)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	f.pipelines.AssertNotCalled(t, "StageByName", mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicyTagConditionRejectsContact(t *testing.T) {
	f := newEngineFixture()

	withTags := activePolicy()
	withTags.Conditions = &domain.PolicyConditions{ContactTags: []string{"vip"}}

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{withTags}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", StageID: "stage-new"}, nil)
	f.contacts.On("GetByID", mock.Anything, "cont-1", "org-1").
		Return(&domain.Contact{ID: "cont-1", Tags: []string{"newsletter"}}, nil)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	f.deals.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicyCurrentStageConditionMustMatchDeal(t *testing.T) {
	f := newEngineFixture()

	gated := activePolicy()
	gated.Conditions = &domain.PolicyConditions{CurrentStage: "New"}

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{gated}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", StageID: "stage-qualified"}, nil)
	f.pipelines.On("StageByName", mock.Anything, "pipe-1", "New").
		Return(&domain.PipelineStage{ID: "stage-new"}, nil)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	f.deals.AssertNotCalled(t, "UpdateStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicyRunsFieldMergeOnEntry(t *testing.T) {
	f := newEngineFixture()

	merging := activePolicy()
	merging.Actions.OnEntry = &domain.StageEntryActions{UpdateFields: map[string]any{"source": "meeting"}}

	f.policies.On("ListActive", mock.Anything, "org-1", domain.EventMeetingBooked).
		Return([]domain.PipelinePolicy{merging}, nil)
	f.deals.On("FirstByContact", mock.Anything, "cont-1", "pipe-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", OrganizationID: "org-1", PipelineID: "pipe-1", StageID: "stage-new"}, nil)
	f.pipelines.On("StageByName", mock.Anything, "pipe-1", "Meeting Booked").
		Return(&domain.PipelineStage{ID: "stage-meeting"}, nil)
	f.deals.On("GetByID", mock.Anything, "deal-1", "org-1").
		Return(&domain.Deal{ID: "deal-1", OrganizationID: "org-1", PipelineID: "pipe-1", StageID: "stage-new"}, nil)
	f.deals.On("UpdateStage", mock.Anything, "deal-1", "org-1", "stage-meeting").Return(nil)
	f.pipelines.On("StageNameByID", mock.Anything, mock.Anything).Return("", nil)
	f.publisher.On("Publish", mock.Anything, domain.EventDealStageChanged, mock.Anything).
		Return(&domain.Event{ID: "evt-2"}, nil)
	f.deals.On("MergeFields", mock.Anything, "deal-1", map[string]any{"source": "meeting"}).Return(nil)

	f.engine.HandleEvent(context.Background(), meetingBooked("cont-1"))

	assert.True(t, f.deals.AssertCalled(t, "MergeFields", mock.Anything, "deal-1", map[string]any{"source": "meeting"}))
}

func TestPolicyEngineIgnoresUnrelatedEvents(t *testing.T) {
	f := newEngineFixture()

	f.engine.HandleEvent(context.Background(), &domain.Event{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Type:           domain.EventDealCreated,
		Payload:        []byte(`{"contactId":"cont-1"}`),
	})

	f.policies.AssertNotCalled(t, "ListActive", mock.Anything, mock.Anything, mock.Anything)
}
