// Package cache implements the local durable cache of the chat client: two identity-scoped,
// time-boxed entries (the active conversation and the conversation index) on top of a
// pluggable key-value Store.
package cache

import (
	"time"

	"advising-chat/internal/constant"
	"advising-chat/internal/entity"
)

// Stamp is the metadata every entry carries.
type Stamp struct {
	Timestamp int64 // epoch milliseconds
	Identity  string
	Version   int
}

type Entry[T any] struct {
	Stamp
	Data T
}

// GetStamp tolerates a nil entry so absence flows straight into Policy.IsValid.
func (e *Entry[T]) GetStamp() *Stamp {
	if e == nil {
		return nil
	}
	return &e.Stamp
}

type ActiveConversation struct {
	Messages       []entity.Message
	ConversationId string
}

type ActiveEntry = Entry[ActiveConversation]

type IndexEntry = Entry[entity.Index]

// Policy decides entry validity: same identity, same schema version, younger than TTL.
type Policy struct {
	TTL     time.Duration
	Version int
	Now     func() time.Time
}

func DefaultPolicy() Policy {
	return Policy{
		TTL:     constant.CacheTTL,
		Version: constant.CacheSchemaVersion,
		Now:     time.Now,
	}
}

func (p Policy) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// NowMillis is the stamp value for a write happening now.
func (p Policy) NowMillis() int64 {
	return p.now().UnixMilli()
}

// IsValid never panics; any missing piece makes the entry invalid.
func (p Policy) IsValid(s *Stamp, identity string) bool {
	if s == nil || identity == "" {
		return false
	}
	if s.Timestamp == 0 || s.Identity == "" {
		return false
	}
	if s.Identity != identity || s.Version != p.Version {
		return false
	}
	age := p.now().UnixMilli() - s.Timestamp
	return age < p.TTL.Milliseconds()
}
