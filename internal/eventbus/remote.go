package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/relaycrm/automation/domain"
)

const channelPattern = "org:*:events"

// ChannelFor returns the per-organization broadcast channel name.
func ChannelFor(organizationID string) string {
	return fmt.Sprintf("org:%s:events", organizationID)
}

// Envelope is the broadcast wire format. Origin lets a process skip
// events it published itself, which it already delivered locally.
type Envelope struct {
	Origin string        `json:"origin"`
	Event  *domain.Event `json:"event"`
}

// RedisBroadcaster publishes event envelopes over Redis pub/sub.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (r *RedisBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Listener re-dispatches remotely published events into the local bus.
// Delivery is fire-and-forget pub/sub: a process that is down misses
// broadcasts, the durable log is the source of truth for history.
type Listener struct {
	client *redis.Client
	bus    *Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func NewListener(client *redis.Client, bus *Bus, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		client: client,
		bus:    bus,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start subscribes to every organization channel and pumps envelopes into
// the bus until Stop or context cancellation.
func (l *Listener) Start(ctx context.Context) error {
	ctx, l.cancel = context.WithCancel(ctx)

	sub := l.client.PSubscribe(ctx, channelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		l.cancel()
		return fmt.Errorf("event listener subscribe: %w", err)
	}

	go func() {
		defer close(l.done)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				l.handle(msg.Payload)
			}
		}
	}()

	l.logger.Info("event listener started", zap.String("pattern", channelPattern))
	return nil
}

func (l *Listener) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	<-l.done
	l.logger.Info("event listener stopped")
}

func (l *Listener) handle(payload string) {
	var envelope Envelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		l.logger.Warn("discarding malformed event envelope", zap.Error(err))
		return
	}
	if envelope.Event == nil {
		return
	}
	if envelope.Origin == l.bus.InstanceID() {
		return
	}
	l.bus.DispatchLocal(envelope.Event)
}
