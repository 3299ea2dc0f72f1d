package campaign

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
)

func TestReplyAttributesLatestSentMessage(t *testing.T) {
	messages := new(MockMessageRepository)
	publisher := new(MockPublisher)
	detector := NewReplyDetector(messages, publisher, zap.NewNop())

	messages.On("LatestSent", mock.Anything, "org-1", "cont-1").
		Return(&domain.CampaignMessage{ID: "msg-9", CampaignID: "camp-1", ContactID: "cont-1"}, nil)
	messages.On("MarkReplied", mock.Anything, "msg-9").Return(nil)
	messages.On("SkipPending", mock.Anything, "camp-1", "cont-1").Return(int64(2), nil)
	publisher.On("Publish", mock.Anything, domain.EventCampaignReply, mock.MatchedBy(func(in domain.EventInput) bool {
		return in.Data["campaignId"] == "camp-1" && in.Data["messageId"] == "msg-9"
	})).Return(&domain.Event{ID: "evt-1"}, nil)

	err := detector.Handle(context.Background(), "org-1", "cont-1")

	assert.NoError(t, err)
	messages.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestReplyWithoutOutstandingMessageIsNoop(t *testing.T) {
	messages := new(MockMessageRepository)
	publisher := new(MockPublisher)
	detector := NewReplyDetector(messages, publisher, zap.NewNop())

	messages.On("LatestSent", mock.Anything, "org-1", "cont-1").
		Return(nil, domain.ErrMessageNotFound)

	err := detector.Handle(context.Background(), "org-1", "cont-1")

	assert.NoError(t, err)
	messages.AssertNotCalled(t, "MarkReplied", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplyDetectorIgnoresOtherEventTypes(t *testing.T) {
	messages := new(MockMessageRepository)
	detector := NewReplyDetector(messages, nil, zap.NewNop())

	detector.HandleEvent(context.Background(), &domain.Event{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Type:           domain.EventDealCreated,
		Payload:        []byte(`{"contactId":"cont-1"}`),
	})

	messages.AssertNotCalled(t, "LatestSent", mock.Anything, mock.Anything, mock.Anything)
}

func TestReplyDetectorHandlesMessageReceived(t *testing.T) {
	messages := new(MockMessageRepository)
	detector := NewReplyDetector(messages, nil, zap.NewNop())

	messages.On("LatestSent", mock.Anything, "org-1", "cont-1").
		Return(&domain.CampaignMessage{ID: "msg-1", CampaignID: "camp-1"}, nil)
	messages.On("MarkReplied", mock.Anything, "msg-1").Return(nil)
	messages.On("SkipPending", mock.Anything, "camp-1", "cont-1").Return(int64(0), nil)

	detector.HandleEvent(context.Background(), &domain.Event{
		ID:             "evt-1",
		OrganizationID: "org-1",
		Type:           domain.EventMessageReceived,
		Payload:        []byte(`{"contactId":"cont-1"}`),
	})

	messages.AssertExpectations(t)
}
