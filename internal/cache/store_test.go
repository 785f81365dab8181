package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "u1:chatbot_conversation", []byte(`{"a":1}`)))
	got, err := store.Get(ctx, "u1:chatbot_conversation")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, store.Set(ctx, "u1:chatbot_conversation", []byte(`{"a":2}`)))
	got, err = store.Get(ctx, "u1:chatbot_conversation")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	require.NoError(t, store.Delete(ctx, "u1:chatbot_conversation"))
	_, err = store.Get(ctx, "u1:chatbot_conversation")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, store.Delete(ctx, "never-written"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, store.Set(context.Background(), "k", value))
	value[0] = 'x'

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestFileStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	testStore(t, store)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set(context.Background(), "chatbot_conversations", []byte(`[]`)))

	second, err := NewFileStore(dir)
	require.NoError(t, err)
	got, err := second.Get(context.Background(), "chatbot_conversations")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.Equal(t, "chatbot_conversations.json", entries[0].Name())
}

func TestFileStoreConcurrentClientsShareDirectory(t *testing.T) {
	dir := t.TempDir()
	first, err := NewFileStore(dir)
	require.NoError(t, err)
	second, err := NewFileStore(dir)
	require.NoError(t, err)

	const writers = 20
	written := make(map[string]bool, 2*writers)
	errs := make(chan error, 2*writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		for n, store := range []*FileStore{first, second} {
			value := fmt.Sprintf(`{"writer":%d,"client":%d}`, i, n)
			written[value] = true
			wg.Add(1)
			go func(store *FileStore, value string) {
				defer wg.Done()
				errs <- store.Set(context.Background(), "chatbot_conversation", []byte(value))
			}(store, value)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := first.Get(context.Background(), "chatbot_conversation")
	require.NoError(t, err)
	assert.True(t, written[string(got)], "stored value %q is one complete write", got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
}

func TestFileStoreHonoursCancelledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v")), context.Canceled)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	testStore(t, NewRedisStore(rdb, "advising-chat-test:", time.Minute))
}
