package dto

import "time"

type SendQueryRequest struct {
	Query string `json:"query" validate:"required"`
}

type ScheduleModeRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type MessageResponse struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type ConversationSummaryResponse struct {
	ConversationId string     `json:"conversation_id"`
	Title          string     `json:"title"`
	MessageCount   int        `json:"message_count"`
	LastActivity   *time.Time `json:"last_activity,omitempty"`
	Active         bool       `json:"active"`
}

type SessionResponse struct {
	State          string                        `json:"state"`
	ConversationId string                        `json:"conversation_id"`
	Messages       []MessageResponse             `json:"messages"`
	Conversations  []ConversationSummaryResponse `json:"conversations"`
	ChatError      string                        `json:"chat_error,omitempty"`
	Error          string                        `json:"error,omitempty"`
	ScheduleMode   bool                          `json:"schedule_mode"`
	CacheDegraded  bool                          `json:"cache_degraded"`
}

type StartNewChatResponse struct {
	ConversationId string           `json:"conversation_id"`
	Session        *SessionResponse `json:"session"`
}
