package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"advising-chat/internal/cache"
	"advising-chat/internal/entity"
	"advising-chat/internal/events"
	"advising-chat/internal/identity"
	"advising-chat/internal/pkg/logger"
	"advising-chat/internal/remote"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testPrincipal struct {
	mu sync.Mutex
	id string
}

func (p *testPrincipal) Identity() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id
}

func (p *testPrincipal) Set(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.id = id
}

func (p *testPrincipal) Credential(ctx context.Context) (string, error) {
	if p.Identity() == "" {
		return "", identity.ErrNoSession
	}
	return "token-" + p.Identity(), nil
}

type fakeRemote struct {
	mu        sync.Mutex
	index     entity.Index
	listErr   error
	listCalls int
	deleteErr error
	deleted   []string
	replyId   string
	replyText string
	sendErr   error
	sent      []remote.QueryRequest

	// gate, when set, holds SendQuery until it is closed or the call is cancelled.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeRemote) ListConversations(ctx context.Context, who identity.Principal) (entity.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(entity.Index, len(f.index))
	for i, c := range f.index {
		c.Messages = slices.Clone(c.Messages)
		out[i] = c
	}
	return out, nil
}

func (f *fakeRemote) DeleteConversation(ctx context.Context, who identity.Principal, conversationId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, conversationId)
	return f.deleteErr
}

func (f *fakeRemote) SendQuery(ctx context.Context, who identity.Principal, q remote.QueryRequest) (*remote.QueryReply, error) {
	f.mu.Lock()
	f.sent = append(f.sent, q)
	gate, entered := f.gate, f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &remote.QueryReply{Reply: f.replyText, ConversationId: f.replyId}, nil
}

func (f *fakeRemote) lastSent() remote.QueryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type recordingPublisher struct {
	mu    sync.Mutex
	types []string
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.types = append(p.types, event.EventType())
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.types)
}

type harness struct {
	m         *Manager
	remote    *fakeRemote
	store     cache.Store
	cache     *cache.Accessor
	clock     *testClock
	who       *testPrincipal
	publisher *recordingPublisher
}

var baseTime = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, cache.NewMemoryStore())
}

func newHarnessWithStore(t *testing.T, store cache.Store) *harness {
	t.Helper()
	h := &harness{
		remote:    &fakeRemote{replyText: "reply"},
		store:     store,
		clock:     &testClock{now: baseTime},
		who:       &testPrincipal{id: "u1"},
		publisher: &recordingPublisher{},
	}
	policy := cache.DefaultPolicy()
	policy.Now = h.clock.Now
	h.cache = cache.NewAccessor(store, "", policy, logger.NewNopLogger())

	seq := 0
	h.m = NewManager(h.who, h.cache, h.remote, h.publisher, logger.NewNopLogger(), Options{
		RemoteTimeout: 5 * time.Second,
		Now:           h.clock.Now,
		NewConversationId: func() string {
			seq++
			return fmt.Sprintf("conversation_%d", seq)
		},
	})
	t.Cleanup(h.m.Close)
	return h
}

func msgAt(role, content string, at time.Time) entity.Message {
	return entity.Message{Role: role, Content: content, Timestamp: at.Format(time.RFC3339)}
}

// remoteConv builds a two-message conversation whose last activity is at.
func remoteConv(id string, at time.Time) entity.Conversation {
	return entity.Conversation{
		ConversationId: id,
		UserId:         "u1",
		Messages: []entity.Message{
			msgAt("user", "question "+id, at.Add(-time.Minute)),
			msgAt("bot", "answer "+id, at),
		},
	}
}

var errStorageDisabled = errors.New("storage disabled")

type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errStorageDisabled
}

func (brokenStore) Set(ctx context.Context, key string, value []byte) error {
	return errStorageDisabled
}

func (brokenStore) Delete(ctx context.Context, key string) error {
	return errStorageDisabled
}
