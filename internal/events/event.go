// Package events carries best-effort notifications about conversation activity to an
// event bus. Nothing in the session core depends on delivery.
package events

import "time"

const (
	TypeConversationBootstrapped = "CONVERSATION_BOOTSTRAPPED"
	TypeChatQuerySent            = "CHAT_QUERY_SENT"
	TypeChatQueryFailed          = "CHAT_QUERY_FAILED"
	TypeChatRateLimited          = "CHAT_RATE_LIMITED"
	TypeConversationStarted      = "CONVERSATION_STARTED"
	TypeConversationSwitched     = "CONVERSATION_SWITCHED"
	TypeConversationDeleted      = "CONVERSATION_DELETED"
	TypeCacheCleared             = "CACHE_CLEARED"
)

// Event defines the contract for all published events.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}, at time.Time) BaseEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: at}
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
