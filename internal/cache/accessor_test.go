package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"advising-chat/internal/entity"
	"advising-chat/internal/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBackendDown = errors.New("backend down")

// failingStore fails every call, like storage that is disabled or full.
type failingStore struct{ calls int }

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.calls++
	return nil, errBackendDown
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	s.calls++
	return errBackendDown
}

func (s *failingStore) Delete(ctx context.Context, key string) error {
	s.calls++
	return errBackendDown
}

func newTestAccessor(store Store, namespace string, now time.Time) *Accessor {
	return NewAccessor(store, namespace, fixedPolicy(now), logger.NewNopLogger())
}

func TestAccessorActiveRoundTrip(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	a := newTestAccessor(NewMemoryStore(), "", now)

	_, found := a.ReadActive()
	assert.False(t, found)

	msgs := []entity.Message{{Role: "user", Content: "hi"}, {Role: "bot", Content: "hello"}}
	a.WriteActive(msgs, "c1", "u1")

	entry, found := a.ReadActive()
	require.True(t, found)
	assert.Equal(t, msgs, entry.Data.Messages)
	assert.Equal(t, "c1", entry.Data.ConversationId)
	assert.Equal(t, now.UnixMilli(), entry.Timestamp)
	assert.Equal(t, "u1", entry.Identity)
	assert.True(t, a.Policy().IsValid(entry.GetStamp(), "u1"))
	assert.False(t, a.Policy().IsValid(entry.GetStamp(), "u2"))
}

func TestAccessorWireFormat(t *testing.T) {
	now := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	a := newTestAccessor(store, "", now)

	a.WriteActive(nil, "", "u1")
	raw, err := store.Get(context.Background(), "chatbot_conversation")
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[],"conversation_id":null,"timestamp":1725192000000,"cacheUserId":"u1","version":1}`, string(raw))

	a.WriteIndex(entity.Index{{ConversationId: "c1", UserId: "u1", Messages: []entity.Message{{Role: "user", Content: "hi"}}}}, "u1")
	raw, err = store.Get(context.Background(), "chatbot_conversations")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data":[{"conversation_id":"c1","user_id":"u1","messages":[{"role":"user","content":"hi"}]}],
		"timestamp":1725192000000,"userId":"u1","version":1
	}`, string(raw))
}

func TestAccessorNamespacedKeys(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore()
	a := newTestAccessor(store, "u1", now)
	b := newTestAccessor(store, "u2", now)

	a.WriteActive([]entity.Message{{Role: "user", Content: "mine"}}, "c1", "u1")

	_, found := b.ReadActive()
	assert.False(t, found)

	_, err := store.Get(context.Background(), "u1:chatbot_conversation")
	assert.NoError(t, err)
}

func TestAccessorRewriteIndexKeepsStamp(t *testing.T) {
	start := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	newTestAccessor(store, "", start).WriteIndex(entity.Index{{ConversationId: "c1"}, {ConversationId: "c2"}}, "u1")

	later := newTestAccessor(store, "", start.Add(30*time.Minute))
	entry, found := later.ReadIndex()
	require.True(t, found)
	entry.Data = entry.Data[1:]
	later.RewriteIndex(entry)

	entry, found = later.ReadIndex()
	require.True(t, found)
	assert.Equal(t, start.UnixMilli(), entry.Timestamp)
	assert.Len(t, entry.Data, 1)
	assert.Equal(t, "c2", entry.Data[0].ConversationId)
}

func TestAccessorCorruptEntryIsMiss(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "chatbot_conversation", []byte("{not json")))
	a := newTestAccessor(store, "", time.Now())

	_, found := a.ReadActive()
	assert.False(t, found)
	assert.False(t, a.Degraded())
}

func TestAccessorNullDataIsEmpty(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "chatbot_conversations", []byte(`{"data":null,"timestamp":1,"userId":"u1","version":1}`)))
	a := newTestAccessor(store, "", time.Now())

	entry, found := a.ReadIndex()
	require.True(t, found)
	assert.NotNil(t, entry.Data)
	assert.Empty(t, entry.Data)
}

func TestAccessorDegradesOnStorageError(t *testing.T) {
	store := &failingStore{}
	a := newTestAccessor(store, "", time.Now())

	assert.NotPanics(t, func() {
		a.WriteActive([]entity.Message{{Role: "user", Content: "hi"}}, "c1", "u1")
	})
	assert.True(t, a.Degraded())

	calls := store.calls
	_, found := a.ReadActive()
	assert.False(t, found)
	a.WriteIndex(entity.Index{}, "u1")
	a.Clear()
	assert.Equal(t, calls, store.calls, "a degraded accessor stops touching the backend")
}

func TestAccessorClear(t *testing.T) {
	a := newTestAccessor(NewMemoryStore(), "", time.Now())
	a.WriteActive(nil, "c1", "u1")
	a.WriteIndex(entity.Index{{ConversationId: "c1"}}, "u1")

	a.Clear()

	_, found := a.ReadActive()
	assert.False(t, found)
	_, found = a.ReadIndex()
	assert.False(t, found)
}
