package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"advising-chat/internal/constant"
	"advising-chat/internal/entity"
	"advising-chat/internal/pkg/logger"
)

const (
	logModule = "Cache"
	opTimeout = 3 * time.Second
)

type activeWire struct {
	Messages       []entity.Message `json:"messages"`
	ConversationId *string          `json:"conversation_id"`
	Timestamp      int64            `json:"timestamp"`
	CacheUserId    string           `json:"cacheUserId"`
	Version        int              `json:"version"`
}

type indexWire struct {
	Data      entity.Index `json:"data"`
	Timestamp int64        `json:"timestamp"`
	UserId    string       `json:"userId"`
	Version   int          `json:"version"`
}

// Accessor reads and writes the two cache entries. It never returns storage errors:
// after the first backend failure it logs, marks itself degraded and acts as an empty
// cache, so callers keep running against the remote store alone.
type Accessor struct {
	store     Store
	namespace string
	policy    Policy
	logger    logger.ILogger

	mu       sync.Mutex
	degraded bool
}

func NewAccessor(store Store, namespace string, policy Policy, log logger.ILogger) *Accessor {
	return &Accessor{
		store:     store,
		namespace: namespace,
		policy:    policy,
		logger:    log,
	}
}

func (a *Accessor) Policy() Policy {
	return a.policy
}

func (a *Accessor) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

func (a *Accessor) key(name string) string {
	if a.namespace == "" {
		return name
	}
	return a.namespace + ":" + name
}

func (a *Accessor) ReadActive() (*ActiveEntry, bool) {
	var wire activeWire
	if !a.read(constant.CacheKeyActiveConversation, &wire) {
		return nil, false
	}
	entry := &ActiveEntry{
		Stamp: Stamp{Timestamp: wire.Timestamp, Identity: wire.CacheUserId, Version: wire.Version},
		Data:  ActiveConversation{Messages: wire.Messages},
	}
	if wire.ConversationId != nil {
		entry.Data.ConversationId = *wire.ConversationId
	}
	if entry.Data.Messages == nil {
		entry.Data.Messages = []entity.Message{}
	}
	return entry, true
}

// WriteActive overwrites the active conversation, stamped now for identity.
func (a *Accessor) WriteActive(messages []entity.Message, conversationId, identity string) {
	wire := activeWire{
		Messages:    messages,
		Timestamp:   a.policy.NowMillis(),
		CacheUserId: identity,
		Version:     a.policy.Version,
	}
	if wire.Messages == nil {
		wire.Messages = []entity.Message{}
	}
	if conversationId != "" {
		wire.ConversationId = &conversationId
	}
	a.write(constant.CacheKeyActiveConversation, wire)
}

func (a *Accessor) ClearActive() {
	a.delete(constant.CacheKeyActiveConversation)
}

func (a *Accessor) ReadIndex() (*IndexEntry, bool) {
	var wire indexWire
	if !a.read(constant.CacheKeyConversationIndex, &wire) {
		return nil, false
	}
	if wire.Data == nil {
		wire.Data = entity.Index{}
	}
	return &IndexEntry{
		Stamp: Stamp{Timestamp: wire.Timestamp, Identity: wire.UserId, Version: wire.Version},
		Data:  wire.Data,
	}, true
}

// WriteIndex overwrites the conversation index, stamped now for identity.
func (a *Accessor) WriteIndex(index entity.Index, identity string) {
	a.RewriteIndex(&IndexEntry{
		Stamp: Stamp{Timestamp: a.policy.NowMillis(), Identity: identity, Version: a.policy.Version},
		Data:  index,
	})
}

// RewriteIndex stores entry with its stamp untouched, for read-modify-write edits.
func (a *Accessor) RewriteIndex(entry *IndexEntry) {
	if entry == nil {
		return
	}
	wire := indexWire{
		Data:      entry.Data,
		Timestamp: entry.Timestamp,
		UserId:    entry.Identity,
		Version:   entry.Version,
	}
	if wire.Data == nil {
		wire.Data = entity.Index{}
	}
	a.write(constant.CacheKeyConversationIndex, wire)
}

// Clear removes both entries.
func (a *Accessor) Clear() {
	a.delete(constant.CacheKeyActiveConversation)
	a.delete(constant.CacheKeyConversationIndex)
}

func (a *Accessor) read(name string, out interface{}) bool {
	if a.Degraded() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	data, err := a.store.Get(ctx, a.key(name))
	if errors.Is(err, ErrNotFound) {
		return false
	}
	if err != nil {
		a.fail("read", name, err)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		a.logger.Warn(logModule, "Discarding unreadable cache entry", map[string]interface{}{
			"key":   name,
			"error": err.Error(),
		})
		return false
	}
	return true
}

func (a *Accessor) write(name string, value interface{}) {
	if a.Degraded() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		a.logger.Error(logModule, "Failed to encode cache entry", map[string]interface{}{
			"key":   name,
			"error": err.Error(),
		})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := a.store.Set(ctx, a.key(name), data); err != nil {
		a.fail("write", name, err)
	}
}

func (a *Accessor) delete(name string) {
	if a.Degraded() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := a.store.Delete(ctx, a.key(name)); err != nil {
		a.fail("delete", name, err)
	}
}

func (a *Accessor) fail(op, name string, err error) {
	a.mu.Lock()
	a.degraded = true
	a.mu.Unlock()
	a.logger.Error(logModule, "Local cache unavailable, continuing without it", map[string]interface{}{
		"op":    op,
		"key":   name,
		"error": err.Error(),
	})
}
