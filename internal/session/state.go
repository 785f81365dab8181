package session

import (
	"errors"

	"advising-chat/internal/entity"
)

type State int

const (
	StateBootstrapping State = iota
	StateIdle
	StateSending
	StateSwitchingConversation
	StateStartingNewChat
	StateDeleting
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateSwitchingConversation:
		return "switching_conversation"
	case StateStartingNewChat:
		return "starting_new_chat"
	case StateDeleting:
		return "deleting"
	default:
		return "unknown"
	}
}

var (
	ErrBusy            = errors.New("another conversation operation is in progress")
	ErrNotReady        = errors.New("session has not finished loading")
	ErrNoIdentity      = errors.New("waiting for a signed-in identity")
	ErrIdentityChanged = errors.New("signed-in identity changed")
	ErrClosed          = errors.New("session closed")
	ErrEmptyQuery      = errors.New("query is empty")
	ErrQueryTooLong    = errors.New("query is too long")
)

// View is a snapshot of the working set rendered by the presentation layer.
// An empty ConversationId means the conversation has not been created yet.
type View struct {
	State          State
	Messages       []entity.Message
	ConversationId string
	Conversations  entity.Index
	ChatError      string
	Error          string
	ScheduleMode   bool
	CacheDegraded  bool
}
