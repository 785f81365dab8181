package events

import (
	"context"
	"encoding/json"
	"fmt"

	"advising-chat/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const localTopic = "advising.events"

// LocalBus is an in-process watermill channel whose only consumer writes events to the log.
type LocalBus struct {
	pubSub *gochannel.GoChannel
	logger logger.ILogger
}

func NewLocalBus(log logger.ILogger) *LocalBus {
	return &LocalBus{
		pubSub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewStdLogger(false, false),
		),
		logger: log,
	}
}

func (b *LocalBus) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(envelope(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("event_type", event.EventType())
	return b.pubSub.Publish(localTopic, msg)
}

// Start subscribes the logging consumer. It returns once the subscription exists.
func (b *LocalBus) Start(ctx context.Context) error {
	messages, err := b.pubSub.Subscribe(ctx, localTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			b.consume(msg)
		}
	}()
	return nil
}

func (b *LocalBus) consume(msg *message.Message) {
	var evt wireEvent
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		b.logger.Warn("Events", "Dropping unreadable event", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}
	b.logger.Info("Events", evt.Type, evt.Data)
	msg.Ack()
}

func (b *LocalBus) Close() {
	if err := b.pubSub.Close(); err != nil {
		b.logger.Warn("Events", "Failed to close local event bus", map[string]interface{}{"error": err.Error()})
	}
}
