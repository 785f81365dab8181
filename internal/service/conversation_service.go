package service

import (
	"context"
	"errors"
	"time"

	"advising-chat/internal/dto"
	"advising-chat/internal/mapper"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/session"
)

// Caller is the authenticated requester as decoded by the JWT middleware.
type Caller struct {
	UserId    string
	Token     string
	ExpiresAt time.Time
}

// OperationError is a failed session operation together with the view it left behind.
type OperationError struct {
	Err     error
	Message string
	Session *dto.SessionResponse
}

func (e *OperationError) Error() string { return e.Err.Error() }

func (e *OperationError) Unwrap() error { return e.Err }

type IConversationService interface {
	GetSession(ctx context.Context, caller Caller) (*dto.SessionResponse, error)
	SendQuery(ctx context.Context, caller Caller, req *dto.SendQueryRequest) (*dto.SessionResponse, error)
	SetScheduleMode(ctx context.Context, caller Caller, req *dto.ScheduleModeRequest) (*dto.SessionResponse, error)
	StartNewChat(ctx context.Context, caller Caller) (*dto.StartNewChatResponse, error)
	SwitchConversation(ctx context.Context, caller Caller, conversationId string) (*dto.SessionResponse, error)
	DeleteConversation(ctx context.Context, caller Caller, conversationId string) (*dto.SessionResponse, error)
	ClearCache(ctx context.Context, caller Caller) (*dto.SessionResponse, error)
	EndSession(ctx context.Context, caller Caller) error
}

type conversationService struct {
	registry *session.Registry
	mapper   *mapper.SessionMapper
	logger   logger.ILogger
}

func NewConversationService(registry *session.Registry, logger logger.ILogger) IConversationService {
	return &conversationService{
		registry: registry,
		mapper:   mapper.NewSessionMapper(),
		logger:   logger,
	}
}

func (s *conversationService) GetSession(ctx context.Context, caller Caller) (*dto.SessionResponse, error) {
	m := s.acquire(caller)
	if err := m.Bootstrap(ctx); err != nil {
		return nil, s.fail(m, err, false)
	}
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) SendQuery(ctx context.Context, caller Caller, req *dto.SendQueryRequest) (*dto.SessionResponse, error) {
	m, err := s.ready(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := m.Send(ctx, req.Query); err != nil {
		return nil, s.fail(m, err, true)
	}
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) SetScheduleMode(ctx context.Context, caller Caller, req *dto.ScheduleModeRequest) (*dto.SessionResponse, error) {
	m := s.acquire(caller)
	m.SetScheduleMode(*req.Enabled)
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) StartNewChat(ctx context.Context, caller Caller) (*dto.StartNewChatResponse, error) {
	m, err := s.ready(ctx, caller)
	if err != nil {
		return nil, err
	}
	id, err := m.StartNewChat()
	if err != nil {
		return nil, s.fail(m, err, false)
	}
	return &dto.StartNewChatResponse{
		ConversationId: id,
		Session:        s.mapper.ToResponse(m.View()),
	}, nil
}

func (s *conversationService) SwitchConversation(ctx context.Context, caller Caller, conversationId string) (*dto.SessionResponse, error) {
	m, err := s.ready(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := m.SwitchConversation(ctx, conversationId); err != nil {
		return nil, s.fail(m, err, false)
	}
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) DeleteConversation(ctx context.Context, caller Caller, conversationId string) (*dto.SessionResponse, error) {
	m, err := s.ready(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := m.Delete(ctx, conversationId); err != nil {
		return nil, s.fail(m, err, false)
	}
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) ClearCache(ctx context.Context, caller Caller) (*dto.SessionResponse, error) {
	m, err := s.ready(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := m.ClearCache(); err != nil {
		return nil, s.fail(m, err, false)
	}
	return s.mapper.ToResponse(m.View()), nil
}

func (s *conversationService) EndSession(ctx context.Context, caller Caller) error {
	s.registry.Release(caller.UserId)
	s.logger.Info("ConversationService", "Session ended", map[string]interface{}{"user_id": caller.UserId})
	return nil
}

// acquire returns the caller's manager with the bearer token of the current request.
func (s *conversationService) acquire(caller Caller) *session.Manager {
	handle := s.registry.Acquire(caller.UserId)
	handle.Bearer.Refresh(caller.Token, caller.ExpiresAt)
	return handle.Manager
}

// ready bootstraps a fresh manager first. A bootstrap that failed remotely still leaves the
// manager usable, so only precondition failures abort the request.
func (s *conversationService) ready(ctx context.Context, caller Caller) (*session.Manager, error) {
	m := s.acquire(caller)
	if m.State() != session.StateBootstrapping {
		return m, nil
	}
	err := m.Bootstrap(ctx)
	if err != nil && m.State() == session.StateBootstrapping {
		return nil, s.fail(m, err, false)
	}
	return m, nil
}

func (s *conversationService) fail(m *session.Manager, err error, chat bool) error {
	view := m.View()
	return &OperationError{
		Err:     err,
		Message: userMessage(err, view, chat),
		Session: s.mapper.ToResponse(view),
	}
}

var preconditionErrors = []error{
	session.ErrBusy,
	session.ErrNotReady,
	session.ErrNoIdentity,
	session.ErrIdentityChanged,
	session.ErrClosed,
	session.ErrEmptyQuery,
}

// userMessage prefers the status line the manager recorded for this failure.
func userMessage(err error, view session.View, chat bool) string {
	for _, target := range preconditionErrors {
		if errors.Is(err, target) {
			return err.Error()
		}
	}
	if chat && view.ChatError != "" {
		return view.ChatError
	}
	if !chat && view.Error != "" {
		return view.Error
	}
	return err.Error()
}
