package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
	"github.com/relaycrm/automation/internal/channel"
	"github.com/relaycrm/automation/repository"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error) {
	args := m.Called(ctx, campaign)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) GetByID(ctx context.Context, id, organizationID string) (*domain.Campaign, error) {
	args := m.Called(ctx, id, organizationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) List(ctx context.Context, organizationID string) ([]domain.Campaign, error) {
	args := m.Called(ctx, organizationID)
	return args.Get(0).([]domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Update(ctx context.Context, campaign *domain.Campaign) error {
	args := m.Called(ctx, campaign)
	return args.Error(0)
}

func (m *MockCampaignRepository) Delete(ctx context.Context, id, organizationID string) error {
	args := m.Called(ctx, id, organizationID)
	return args.Error(0)
}

type MockSequenceRepository struct {
	mock.Mock
}

func (m *MockSequenceRepository) Create(ctx context.Context, sequence *domain.CampaignSequence) (*domain.CampaignSequence, error) {
	args := m.Called(ctx, sequence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignSequence), args.Error(1)
}

func (m *MockSequenceRepository) ListByCampaign(ctx context.Context, campaignID string) ([]domain.CampaignSequence, error) {
	args := m.Called(ctx, campaignID)
	return args.Get(0).([]domain.CampaignSequence), args.Error(1)
}

func (m *MockSequenceRepository) NextActive(ctx context.Context, campaignID string, currentStep int) (*domain.CampaignSequence, error) {
	args := m.Called(ctx, campaignID, currentStep)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignSequence), args.Error(1)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, message *domain.CampaignMessage) (*domain.CampaignMessage, error) {
	args := m.Called(ctx, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignMessage), args.Error(1)
}

func (m *MockMessageRepository) HasReplied(ctx context.Context, campaignID, contactID string) (bool, error) {
	args := m.Called(ctx, campaignID, contactID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) LatestSent(ctx context.Context, organizationID, contactID string) (*domain.CampaignMessage, error) {
	args := m.Called(ctx, organizationID, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CampaignMessage), args.Error(1)
}

func (m *MockMessageRepository) MarkSent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkFailed(ctx context.Context, id, errorMessage string) error {
	args := m.Called(ctx, id, errorMessage)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkReplied(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepository) SkipPending(ctx context.Context, campaignID, contactID string) (int64, error) {
	args := m.Called(ctx, campaignID, contactID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockMessageRepository) List(ctx context.Context, filter repository.MessageFilter) ([]domain.CampaignMessage, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]domain.CampaignMessage), args.Error(1)
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

type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) Schedule(ctx context.Context, job *domain.DelayedJob) (bool, error) {
	args := m.Called(ctx, job)
	return args.Bool(0), args.Error(1)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, message channel.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
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

type sequencerFixture struct {
	campaigns *MockCampaignRepository
	sequences *MockSequenceRepository
	messages  *MockMessageRepository
	contacts  *MockContactRepository
	scheduler *MockScheduler
	sender    *MockSender
	publisher *MockPublisher
	sequencer *Sequencer
}

func newSequencerFixture() *sequencerFixture {
	f := &sequencerFixture{
		campaigns: new(MockCampaignRepository),
		sequences: new(MockSequenceRepository),
		messages:  new(MockMessageRepository),
		contacts:  new(MockContactRepository),
		scheduler: new(MockScheduler),
		sender:    new(MockSender),
		publisher: new(MockPublisher),
	}
	f.sequencer = NewSequencer(f.campaigns, f.sequences, f.messages, f.contacts, f.scheduler, f.sender, f.publisher, zap.NewNop())
	return f
}

func stepPayload(t *testing.T, payload domain.SequenceStepPayload) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	assert.NoError(t, err)
	return raw
}

func TestScheduleNextStepBuildsDeterministicJob(t *testing.T) {
	f := newSequencerFixture()

	f.sequences.On("NextActive", mock.Anything, "camp-1", 1).
		Return(&domain.CampaignSequence{
			ID:         "seq-2",
			CampaignID: "camp-1",
			StepNumber: 2,
			DelayDays:  1,
			Template:   "Hi {{firstName}}",
			IsActive:   true,
		}, nil)
	f.scheduler.On("Schedule", mock.Anything, mock.MatchedBy(func(job *domain.DelayedJob) bool {
		return job.ID == "campaign-camp-1-contact-cont-1-step-2" &&
			job.Type == domain.JobTypeSequenceStep &&
			job.QueueName == domain.QueueCampaigns &&
			job.RunAt.After(time.Now().UTC().Add(23*time.Hour))
	})).Return(true, nil)

	err := f.sequencer.ScheduleNextStep(context.Background(), "camp-1", "cont-1", "org-1", 1)

	assert.NoError(t, err)
	f.scheduler.AssertExpectations(t)
}

func TestScheduleNextStepDuplicateIsNoop(t *testing.T) {
	f := newSequencerFixture()

	f.sequences.On("NextActive", mock.Anything, "camp-1", 0).
		Return(&domain.CampaignSequence{ID: "seq-1", CampaignID: "camp-1", StepNumber: 1, IsActive: true}, nil)
	// Insert reports the job already exists; the caller treats it as done.
	f.scheduler.On("Schedule", mock.Anything, mock.Anything).Return(false, nil)

	assert.NoError(t, f.sequencer.ScheduleNextStep(context.Background(), "camp-1", "cont-1", "org-1", 0))
	assert.NoError(t, f.sequencer.ScheduleNextStep(context.Background(), "camp-1", "cont-1", "org-1", 0))
}

func TestScheduleNextStepCompletedSequence(t *testing.T) {
	f := newSequencerFixture()

	f.sequences.On("NextActive", mock.Anything, "camp-1", 3).
		Return(nil, domain.ErrSequenceNotFound)

	err := f.sequencer.ScheduleNextStep(context.Background(), "camp-1", "cont-1", "org-1", 3)

	assert.NoError(t, err)
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestScheduleNextStepStopsOnUnmetReplyCondition(t *testing.T) {
	f := newSequencerFixture()

	f.sequences.On("NextActive", mock.Anything, "camp-1", 1).
		Return(&domain.CampaignSequence{
			ID:         "seq-2",
			CampaignID: "camp-1",
			StepNumber: 2,
			IsActive:   true,
			Conditions: &domain.SequenceConditions{RequireReply: true},
		}, nil)
	f.messages.On("HasReplied", mock.Anything, "camp-1", "cont-1").Return(false, nil)

	err := f.sequencer.ScheduleNextStep(context.Background(), "camp-1", "cont-1", "org-1", 1)

	// The whole remaining sequence stops here, not just this step.
	assert.NoError(t, err)
	f.scheduler.AssertNotCalled(t, "Schedule", mock.Anything, mock.Anything)
}

func TestProcessStepDroppedAfterReply(t *testing.T) {
	f := newSequencerFixture()

	f.messages.On("HasReplied", mock.Anything, "camp-1", "cont-1").Return(true, nil)

	err := f.sequencer.ProcessStep(context.Background(), &domain.DelayedJob{
		Payload: stepPayload(t, domain.SequenceStepPayload{
			CampaignID:     "camp-1",
			ContactID:      "cont-1",
			OrganizationID: "org-1",
			StepNumber:     2,
			Template:       "Hello",
		}),
	})

	assert.NoError(t, err)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestProcessStepDroppedWhenCampaignPaused(t *testing.T) {
	f := newSequencerFixture()

	f.messages.On("HasReplied", mock.Anything, "camp-1", "cont-1").Return(false, nil)
	f.campaigns.On("GetByID", mock.Anything, "camp-1", "org-1").
		Return(&domain.Campaign{ID: "camp-1", Status: domain.CampaignPaused}, nil)

	err := f.sequencer.ProcessStep(context.Background(), &domain.DelayedJob{
		Payload: stepPayload(t, domain.SequenceStepPayload{
			CampaignID:     "camp-1",
			ContactID:      "cont-1",
			OrganizationID: "org-1",
			StepNumber:     1,
			Template:       "Hello",
		}),
	})

	assert.NoError(t, err)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestProcessStepSendsAndAdvances(t *testing.T) {
	f := newSequencerFixture()

	f.messages.On("HasReplied", mock.Anything, "camp-1", "cont-1").Return(false, nil)
	f.campaigns.On("GetByID", mock.Anything, "camp-1", "org-1").
		Return(&domain.Campaign{ID: "camp-1", Status: domain.CampaignActive}, nil)
	f.contacts.On("GetByID", mock.Anything, "cont-1", "org-1").
		Return(&domain.Contact{ID: "cont-1", FirstName: "Sam", Email: "sam@acme.test"}, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).
		Return(&domain.CampaignMessage{ID: "msg-1", CampaignID: "camp-1", ContactID: "cont-1"}, nil)
	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg channel.Message) bool {
		return msg.Channel == domain.ChannelEmail && msg.To == "sam@acme.test" && msg.Body == "Hi Sam!"
	})).Return(nil)
	f.messages.On("MarkSent", mock.Anything, "msg-1").Return(nil)
	f.publisher.On("Publish", mock.Anything, domain.EventMessageSent, mock.Anything).
		Return(&domain.Event{ID: "evt-1"}, nil)
	f.sequences.On("NextActive", mock.Anything, "camp-1", 1).
		Return(nil, domain.ErrSequenceNotFound)

	err := f.sequencer.ProcessStep(context.Background(), &domain.DelayedJob{
		Payload: stepPayload(t, domain.SequenceStepPayload{
			CampaignID:     "camp-1",
			ContactID:      "cont-1",
			OrganizationID: "org-1",
			StepNumber:     1,
			Template:       "Hi {{firstName}}!",
		}),
	})

	assert.NoError(t, err)
	f.sender.AssertExpectations(t)
	f.messages.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
}

func TestProcessStepSendFailureIsTerminal(t *testing.T) {
	f := newSequencerFixture()

	f.messages.On("HasReplied", mock.Anything, "camp-1", "cont-1").Return(false, nil)
	f.campaigns.On("GetByID", mock.Anything, "camp-1", "org-1").
		Return(&domain.Campaign{ID: "camp-1", Status: domain.CampaignActive}, nil)
	f.contacts.On("GetByID", mock.Anything, "cont-1", "org-1").
		Return(&domain.Contact{ID: "cont-1", FirstName: "Sam", TelegramChatID: "4242"}, nil)
	f.messages.On("Create", mock.Anything, mock.Anything).
		Return(&domain.CampaignMessage{ID: "msg-1"}, nil)
	f.sender.On("Send", mock.Anything, mock.MatchedBy(func(msg channel.Message) bool {
		return msg.Channel == domain.ChannelTelegram && msg.To == "4242"
	})).Return(errors.New("gateway unreachable"))
	f.messages.On("MarkFailed", mock.Anything, "msg-1", "gateway unreachable").Return(nil)

	err := f.sequencer.ProcessStep(context.Background(), &domain.DelayedJob{
		Payload: stepPayload(t, domain.SequenceStepPayload{
			CampaignID:     "camp-1",
			ContactID:      "cont-1",
			OrganizationID: "org-1",
			StepNumber:     1,
			Template:       "Hello",
		}),
	})

	// No error means no job retry; the contact does not advance either.
	assert.NoError(t, err)
	f.messages.AssertCalled(t, "MarkFailed", mock.Anything, "msg-1", "gateway unreachable")
	f.messages.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
	f.sequences.AssertNotCalled(t, "NextActive", mock.Anything, mock.Anything, mock.Anything)
}
