// Package session reconciles the in-memory transcript, the local durable cache and the
// remote conversation store for one signed-in identity.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"advising-chat/internal/cache"
	"advising-chat/internal/constant"
	"advising-chat/internal/entity"
	"advising-chat/internal/events"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/remote"

	"github.com/google/uuid"
)

const logModule = "SessionManager"

// RemoteStore is the authoritative conversation backend.
type RemoteStore interface {
	ListConversations(ctx context.Context, who identity.Principal) (entity.Index, error)
	DeleteConversation(ctx context.Context, who identity.Principal, conversationId string) error
	SendQuery(ctx context.Context, who identity.Principal, q remote.QueryRequest) (*remote.QueryReply, error)
}

type Options struct {
	MaxQueryLength    int
	RemoteTimeout     time.Duration
	Now               func() time.Time
	NewConversationId func() string
}

func DefaultOptions() Options {
	return Options{
		MaxQueryLength:    constant.DefaultMaxQueryLength,
		RemoteTimeout:     60 * time.Second,
		Now:               time.Now,
		NewConversationId: NewProvisionalId,
	}
}

// NewProvisionalId mints a client-side conversation id used until the server confirms one.
func NewProvisionalId() string {
	return constant.ProvisionalConversationPrefix + uuid.New().String()
}

// Manager is the conversation session state machine. Every operation except Bootstrap
// requires the Idle state, so at most one operation is in flight. The mutex is held
// between suspension points and released around remote calls.
type Manager struct {
	principal identity.Principal
	cache     *cache.Accessor
	remote    RemoteStore
	publisher events.Publisher
	logger    logger.ILogger
	opts      Options

	lifetime context.Context
	cancel   context.CancelFunc

	mu             sync.Mutex
	state          State
	booting        bool
	closed         bool
	boundIdentity  string
	messages       []entity.Message
	conversationId string
	conversations  entity.Index
	chatError      string
	lastError      string
	scheduleMode   bool
	pending        []events.Event
}

func NewManager(
	principal identity.Principal,
	accessor *cache.Accessor,
	remoteStore RemoteStore,
	publisher events.Publisher,
	log logger.ILogger,
	opts Options,
) *Manager {
	defaults := DefaultOptions()
	if opts.MaxQueryLength <= 0 {
		opts.MaxQueryLength = defaults.MaxQueryLength
	}
	if opts.RemoteTimeout <= 0 {
		opts.RemoteTimeout = defaults.RemoteTimeout
	}
	if opts.Now == nil {
		opts.Now = defaults.Now
	}
	if opts.NewConversationId == nil {
		opts.NewConversationId = defaults.NewConversationId
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Manager{
		principal:     principal,
		cache:         accessor,
		remote:        remoteStore,
		publisher:     publisher,
		logger:        log,
		opts:          opts,
		lifetime:      lifetime,
		cancel:        cancel,
		state:         StateBootstrapping,
		conversations: entity.Index{},
	}
}

func (m *Manager) Principal() identity.Principal {
	return m.principal
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// View returns a copy that is safe to hold while the manager keeps mutating.
func (m *Manager) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	conversations := make(entity.Index, len(m.conversations))
	for i, conv := range m.conversations {
		conv.Messages = slices.Clone(conv.Messages)
		conversations[i] = conv
	}
	messages := slices.Clone(m.messages)
	if messages == nil {
		messages = []entity.Message{}
	}
	return View{
		State:          m.state,
		Messages:       messages,
		ConversationId: m.conversationId,
		Conversations:  conversations,
		ChatError:      m.chatError,
		Error:          m.lastError,
		ScheduleMode:   m.scheduleMode,
		CacheDegraded:  m.cache.Degraded(),
	}
}

// Close cancels in-flight remote calls. Answers arriving afterwards are discarded.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cancel()
}

// Bootstrap hydrates the view from valid cache entries, or from the remote store when the
// active conversation entry is missing, expired or belongs to someone else. Without a
// signed-in identity it returns ErrNoIdentity and stays in Bootstrapping.
func (m *Manager) Bootstrap(ctx context.Context) error {
	defer m.flush()
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateIdle {
		m.mu.Unlock()
		return nil
	}
	if m.state != StateBootstrapping || m.booting {
		m.mu.Unlock()
		return ErrBusy
	}
	who := m.principal.Identity()
	if who == "" {
		m.mu.Unlock()
		m.logger.Warn(logModule, "User ID is missing, waiting for sign-in", nil)
		return ErrNoIdentity
	}
	m.boundIdentity = who
	policy := m.cache.Policy()

	active, found := m.cache.ReadActive()
	if found && policy.IsValid(active.GetStamp(), who) {
		m.messages = slices.Clone(active.Data.Messages)
		m.conversationId = active.Data.ConversationId
		// Index validity is checked on its own; an expired index stays empty until the next list fetch.
		if index, ok := m.cache.ReadIndex(); ok && policy.IsValid(index.GetStamp(), who) {
			m.conversations = index.Data
		} else {
			m.conversations = entity.Index{}
		}
		m.state = StateIdle
		m.emit(events.TypeConversationBootstrapped, map[string]interface{}{
			"user_id":         who,
			"source":          "cache",
			"conversation_id": m.conversationId,
			"conversations":   len(m.conversations),
		})
		m.mu.Unlock()
		m.logger.Debug(logModule, "Using cached current conversation", map[string]interface{}{"user_id": who})
		return nil
	}
	if found {
		m.cache.ClearActive()
	}
	m.booting = true
	m.mu.Unlock()

	callCtx, done := m.callContext(ctx)
	index, err := m.remote.ListConversations(callCtx, m.principal)
	done()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.booting = false
	if err := m.resumeLocked(who); err != nil {
		return err
	}
	m.state = StateIdle

	if err != nil {
		m.lastError = describeRemoteError(constant.StatusHistoryFailed, err)
		m.logger.Error(logModule, "Error fetching conversations", map[string]interface{}{
			"user_id": who,
			"error":   err.Error(),
		})
		return fmt.Errorf("bootstrap: %w", err)
	}

	sorted := Normalize(index)
	m.conversations = sorted
	m.cache.WriteIndex(sorted, who)
	if len(sorted) > 0 {
		latest := sorted[0]
		m.messages = slices.Clone(latest.Messages)
		m.conversationId = latest.ConversationId
		m.cache.WriteActive(m.messages, m.conversationId, who)
	} else {
		m.logger.Info(logModule, "No conversations returned for user", map[string]interface{}{"user_id": who})
	}
	m.emit(events.TypeConversationBootstrapped, map[string]interface{}{
		"user_id":         who,
		"source":          "remote",
		"conversation_id": m.conversationId,
		"conversations":   len(sorted),
	})
	return nil
}

// Send appends the user message optimistically, asks the chat backend and reconciles the
// index with the server-issued conversation id. A failed send keeps the user message.
func (m *Manager) Send(ctx context.Context, query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		m.logger.Warn(logModule, "Query is empty, aborting request", nil)
		return ErrEmptyQuery
	}

	defer m.flush()
	m.mu.Lock()
	who, err := m.begin(StateSending)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if n := utf8.RuneCountInString(trimmed); n > m.opts.MaxQueryLength {
		m.chatError = fmt.Sprintf(constant.StatusQueryTooLong, n, m.opts.MaxQueryLength)
		m.state = StateIdle
		m.mu.Unlock()
		return fmt.Errorf("%w: %d/%d characters", ErrQueryTooLong, n, m.opts.MaxQueryLength)
	}

	m.chatError = ""
	m.messages = append(m.messages, entity.Message{
		Role:      constant.MessageRoleUser,
		Content:   query,
		Timestamp: m.timestamp(),
	})
	m.cache.WriteActive(m.messages, m.conversationId, who)
	sentId := m.conversationId
	request := remote.QueryRequest{
		Query:            query,
		ConversationId:   sentId,
		GenerateSchedule: m.scheduleMode,
	}
	m.mu.Unlock()

	callCtx, done := m.callContext(ctx)
	reply, err := m.remote.SendQuery(callCtx, m.principal, request)
	done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resumeLocked(who); err != nil {
		return err
	}
	m.state = StateIdle

	if err != nil {
		if errors.Is(err, remote.ErrRateLimited) {
			m.chatError = constant.StatusDailyLimit
			m.emit(events.TypeChatRateLimited, map[string]interface{}{"user_id": who})
		} else {
			m.chatError = constant.StatusChatFailed
			m.emit(events.TypeChatQueryFailed, map[string]interface{}{
				"user_id":         who,
				"conversation_id": sentId,
			})
		}
		m.logger.Error(logModule, "Error sending query", map[string]interface{}{
			"user_id":         who,
			"conversation_id": sentId,
			"error":           err.Error(),
		})
		return fmt.Errorf("send query: %w", err)
	}

	m.messages = append(m.messages, entity.Message{
		Role:      constant.MessageRoleBot,
		Content:   reply.Reply,
		Timestamp: m.timestamp(),
	})

	confirmedId := reply.ConversationId
	if confirmedId == "" {
		confirmedId = sentId
	}
	if confirmedId == "" {
		// Neither side has an id; keep the index keyed anyway.
		confirmedId = m.opts.NewConversationId()
	}
	var superseded []string
	if sentId != "" && sentId != confirmedId {
		superseded = append(superseded, sentId)
	}

	m.conversationId = confirmedId
	m.conversations = Upsert(m.conversations, entity.Conversation{
		ConversationId: confirmedId,
		UserId:         who,
		Messages:       slices.Clone(m.messages),
	}, superseded...)
	m.cache.WriteIndex(m.conversations, who)
	m.cache.WriteActive(m.messages, confirmedId, who)

	m.emit(events.TypeChatQuerySent, map[string]interface{}{
		"user_id":           who,
		"conversation_id":   confirmedId,
		"new_conversation":  sentId == "" || len(superseded) > 0,
		"generate_schedule": request.GenerateSchedule,
	})
	return nil
}

// StartNewChat snapshots the current transcript into the index and switches to a fresh
// provisional conversation. The new id only enters the index after its first successful send.
func (m *Manager) StartNewChat() (string, error) {
	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()

	who, err := m.begin(StateStartingNewChat)
	if err != nil {
		return "", err
	}

	if len(m.messages) > 0 && m.conversationId != "" {
		m.conversations = Upsert(m.conversations, entity.Conversation{
			ConversationId: m.conversationId,
			UserId:         who,
			Messages:       slices.Clone(m.messages),
		})
		m.cache.WriteIndex(m.conversations, who)
	}

	newId := m.opts.NewConversationId()
	m.conversationId = newId
	m.messages = []entity.Message{}
	m.chatError = ""
	m.cache.WriteActive(m.messages, newId, who)
	m.state = StateIdle

	m.emit(events.TypeConversationStarted, map[string]interface{}{
		"user_id":         who,
		"conversation_id": newId,
	})
	return newId, nil
}

// SwitchConversation loads conversationId from the in-memory index, then the cached index,
// then the remote store. An id found nowhere yields an empty transcript.
func (m *Manager) SwitchConversation(ctx context.Context, conversationId string) error {
	defer m.flush()
	m.mu.Lock()
	who, err := m.begin(StateSwitchingConversation)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if conv, ok := Find(m.conversations, conversationId); ok {
		m.applySwitchLocked(who, conversationId, conv.Messages, "memory")
		m.mu.Unlock()
		return nil
	}
	if index, ok := m.cache.ReadIndex(); ok && m.cache.Policy().IsValid(index.GetStamp(), who) {
		if conv, ok := Find(index.Data, conversationId); ok {
			m.applySwitchLocked(who, conversationId, conv.Messages, "cache")
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()

	callCtx, done := m.callContext(ctx)
	index, err := m.remote.ListConversations(callCtx, m.principal)
	done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resumeLocked(who); err != nil {
		return err
	}
	if err != nil {
		m.state = StateIdle
		m.lastError = describeRemoteError(constant.StatusHistoryFailed, err)
		m.logger.Error(logModule, "Error loading chat history", map[string]interface{}{
			"user_id":         who,
			"conversation_id": conversationId,
			"error":           err.Error(),
		})
		return fmt.Errorf("switch conversation: %w", err)
	}

	sorted := Normalize(index)
	m.conversations = sorted
	m.cache.WriteIndex(sorted, who)

	var messages []entity.Message
	if conv, ok := Find(sorted, conversationId); ok {
		messages = conv.Messages
	} else {
		m.logger.Warn(logModule, "Conversation not found in history", map[string]interface{}{
			"user_id":         who,
			"conversation_id": conversationId,
		})
	}
	m.applySwitchLocked(who, conversationId, messages, "remote")
	return nil
}

// Delete removes the conversation locally first, then remotely. A remote failure is
// reported but the local removal stays.
func (m *Manager) Delete(ctx context.Context, conversationId string) error {
	defer m.flush()
	m.mu.Lock()
	who, err := m.begin(StateDeleting)
	if err != nil {
		m.mu.Unlock()
		return err
	}

	m.lastError = ""
	m.conversations = Remove(m.conversations, conversationId)
	if entry, ok := m.cache.ReadIndex(); ok {
		entry.Data = Remove(entry.Data, conversationId)
		m.cache.RewriteIndex(entry)
	} else {
		m.logger.Warn(logModule, "Couldn't find conversation index in cache", map[string]interface{}{"user_id": who})
	}
	if m.conversationId == conversationId {
		m.conversationId = ""
		m.messages = []entity.Message{}
		m.cache.ClearActive()
	}
	m.mu.Unlock()

	callCtx, done := m.callContext(ctx)
	err = m.remote.DeleteConversation(callCtx, m.principal, conversationId)
	done()

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resumeLocked(who); err != nil {
		return err
	}
	m.state = StateIdle

	if err != nil {
		m.lastError = describeRemoteError(constant.StatusDeleteFailed, err)
		m.logger.Error(logModule, "Error deleting conversation", map[string]interface{}{
			"user_id":         who,
			"conversation_id": conversationId,
			"error":           err.Error(),
		})
		return fmt.Errorf("delete conversation: %w", err)
	}

	// Re-stamp only our own list; another identity's entry must not become valid for us.
	if entry, ok := m.cache.ReadIndex(); ok && entry.Identity == who {
		m.cache.WriteIndex(Remove(entry.Data, conversationId), who)
	}
	m.emit(events.TypeConversationDeleted, map[string]interface{}{
		"user_id":         who,
		"conversation_id": conversationId,
	})
	return nil
}

// ClearCache drops both cache entries and the current transcript.
func (m *Manager) ClearCache() error {
	defer m.flush()
	m.mu.Lock()
	defer m.mu.Unlock()

	who, err := m.begin(StateIdle)
	if err != nil {
		return err
	}
	m.cache.Clear()
	m.messages = []entity.Message{}
	m.conversationId = ""
	m.chatError = ""
	m.emit(events.TypeCacheCleared, map[string]interface{}{"user_id": who})
	return nil
}

// SetScheduleMode toggles schedule generation for subsequent sends.
func (m *Manager) SetScheduleMode(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleMode = enabled
}

// --- Internals (callers hold m.mu unless noted) ---

func (m *Manager) begin(next State) (string, error) {
	if m.closed {
		return "", ErrClosed
	}
	if m.state == StateBootstrapping {
		return "", ErrNotReady
	}
	if m.state != StateIdle {
		return "", ErrBusy
	}
	who := m.principal.Identity()
	if who != m.boundIdentity {
		m.resetLocked()
		return "", ErrIdentityChanged
	}
	m.state = next
	return who, nil
}

// resumeLocked runs after every remote call, before its result touches the view.
func (m *Manager) resumeLocked(who string) error {
	if m.closed {
		return ErrClosed
	}
	if m.principal.Identity() != who {
		m.resetLocked()
		return ErrIdentityChanged
	}
	return nil
}

func (m *Manager) resetLocked() {
	m.logger.Info(logModule, "Identity changed, discarding view", map[string]interface{}{"previous_user_id": m.boundIdentity})
	m.state = StateBootstrapping
	m.boundIdentity = ""
	m.messages = nil
	m.conversationId = ""
	m.conversations = entity.Index{}
	m.chatError = ""
	m.lastError = ""
}

func (m *Manager) applySwitchLocked(who, conversationId string, messages []entity.Message, source string) {
	m.conversationId = conversationId
	m.messages = slices.Clone(messages)
	if m.messages == nil {
		m.messages = []entity.Message{}
	}
	m.chatError = ""
	m.lastError = ""
	m.cache.WriteActive(m.messages, conversationId, who)
	m.state = StateIdle
	m.emit(events.TypeConversationSwitched, map[string]interface{}{
		"user_id":         who,
		"conversation_id": conversationId,
		"source":          source,
	})
}

// callContext bounds a remote call by the caller, the timeout and the manager lifetime.
// Safe without m.mu.
func (m *Manager) callContext(ctx context.Context) (context.Context, func()) {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.RemoteTimeout)
	stop := context.AfterFunc(m.lifetime, cancel)
	return callCtx, func() {
		stop()
		cancel()
	}
}

func (m *Manager) timestamp() string {
	return m.opts.Now().UTC().Format(time.RFC3339Nano)
}

func (m *Manager) emit(eventType string, data map[string]interface{}) {
	m.pending = append(m.pending, events.New(eventType, data, m.opts.Now()))
}

// flush publishes queued events without m.mu held. It is deferred before the unlock, so it runs after it.
func (m *Manager) flush() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, evt := range pending {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.publisher.Publish(ctx, evt); err != nil {
			m.logger.Warn(logModule, "Failed to publish event", map[string]interface{}{
				"type":  evt.EventType(),
				"error": err.Error(),
			})
		}
		cancel()
	}
}

func describeRemoteError(prefix string, err error) string {
	switch {
	case errors.Is(err, remote.ErrCredential):
		return constant.StatusSignInRequired
	case errors.Is(err, context.DeadlineExceeded):
		return prefix + ": the request timed out"
	default:
		return prefix + ": " + err.Error()
	}
}
