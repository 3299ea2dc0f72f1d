// Package channel abstracts outbound message delivery. The automation
// core decides what to send and when; actual transports live behind the
// Sender interface.
package channel

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
)

// Message is a rendered outbound message ready for delivery.
type Message struct {
	OrganizationID string
	ContactID      string
	Channel        domain.Channel
	To             string
	Body           string
}

// Sender delivers a message over one concrete transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records outbound messages instead of delivering them. It is
// the default sender until a real transport is wired in.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("outbound message",
		zap.String("organization_id", msg.OrganizationID),
		zap.String("contact_id", msg.ContactID),
		zap.String("channel", string(msg.Channel)),
		zap.String("to", msg.To),
		zap.Int("body_len", len(msg.Body)))
	return nil
}
