package entity

import (
	"time"
)

type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

// SentAt parses the optional timestamp. Missing or unparseable values yield the zero time.
func (m Message) SentAt() time.Time {
	if m.Timestamp == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t
		}
	}
	return time.Time{}
}

type Conversation struct {
	ConversationId string    `json:"conversation_id"`
	UserId         string    `json:"user_id"`
	Messages       []Message `json:"messages"`
}

// LastActivity is the timestamp of the final message, or the zero time for an empty conversation.
func (c Conversation) LastActivity() time.Time {
	if len(c.Messages) == 0 {
		return time.Time{}
	}
	return c.Messages[len(c.Messages)-1].SentAt()
}

// Index is the per-identity conversation list, most recently active first.
type Index []Conversation

// Title is the content of the first message, which the conversation list uses as its label.
func (c Conversation) Title() string {
	if len(c.Messages) == 0 {
		return ""
	}
	return c.Messages[0].Content
}
