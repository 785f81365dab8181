package events

import (
	"context"

	"advising-chat/internal/pkg/logger"
)

type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// NewPublisher prefers NATS and falls back to the in-process bus when NATS is not
// configured or cannot be reached.
func NewPublisher(ctx context.Context, natsURL string, log logger.ILogger) Publisher {
	if natsURL != "" {
		pub, err := NewNatsPublisher(natsURL)
		if err == nil {
			log.Info("Events", "Publishing conversation events to NATS", map[string]interface{}{"url": natsURL})
			return pub
		}
		log.Warn("Events", "Failed to connect to NATS, using local event bus", map[string]interface{}{"error": err.Error()})
	}

	bus := NewLocalBus(log)
	if err := bus.Start(ctx); err != nil {
		log.Warn("Events", "Local event bus consumer did not start", map[string]interface{}{"error": err.Error()})
	}
	return bus
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

func (NopPublisher) Close() {}
