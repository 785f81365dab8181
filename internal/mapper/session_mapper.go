package mapper

import (
	"time"

	"advising-chat/internal/constant"
	"advising-chat/internal/dto"
	"advising-chat/internal/entity"
	"advising-chat/internal/session"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToResponse(v session.View) *dto.SessionResponse {
	messages := make([]dto.MessageResponse, 0, len(v.Messages))
	for _, msg := range v.Messages {
		messages = append(messages, m.ToMessageResponse(msg))
	}

	conversations := make([]dto.ConversationSummaryResponse, 0, len(v.Conversations))
	for _, conv := range v.Conversations {
		summary := m.ToSummaryResponse(conv)
		summary.Active = conv.ConversationId == v.ConversationId
		conversations = append(conversations, summary)
	}

	return &dto.SessionResponse{
		State:          v.State.String(),
		ConversationId: v.ConversationId,
		Messages:       messages,
		Conversations:  conversations,
		ChatError:      v.ChatError,
		Error:          v.Error,
		ScheduleMode:   v.ScheduleMode,
		CacheDegraded:  v.CacheDegraded,
	}
}

func (m *SessionMapper) ToMessageResponse(msg entity.Message) dto.MessageResponse {
	return dto.MessageResponse{
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: timePtr(msg.SentAt()),
	}
}

func (m *SessionMapper) ToSummaryResponse(conv entity.Conversation) dto.ConversationSummaryResponse {
	title := conv.Title()
	if title == "" {
		title = constant.UntitledConversation
	}
	return dto.ConversationSummaryResponse{
		ConversationId: conv.ConversationId,
		Title:          title,
		MessageCount:   len(conv.Messages),
		LastActivity:   timePtr(conv.LastActivity()),
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
