package session

import (
	"testing"

	"advising-chat/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func conv(id string, timestamps ...string) entity.Conversation {
	c := entity.Conversation{ConversationId: id, UserId: "u1", Messages: []entity.Message{}}
	for _, ts := range timestamps {
		c.Messages = append(c.Messages, entity.Message{Role: "user", Content: id, Timestamp: ts})
	}
	return c
}

func ids(index entity.Index) []string {
	out := make([]string, 0, len(index))
	for _, c := range index {
		out = append(out, c.ConversationId)
	}
	return out
}

func TestUpsert(t *testing.T) {
	tests := []struct {
		name       string
		index      entity.Index
		conv       entity.Conversation
		superseded []string
		want       []string
	}{
		{"into empty", entity.Index{}, conv("a"), nil, []string{"a"}},
		{"new goes first", entity.Index{conv("b"), conv("c")}, conv("a"), nil, []string{"a", "b", "c"}},
		{"existing moves to front", entity.Index{conv("b"), conv("a"), conv("c")}, conv("a"), nil, []string{"a", "b", "c"}},
		{"duplicates collapse", entity.Index{conv("a"), conv("b"), conv("a")}, conv("a"), nil, []string{"a", "b"}},
		{"provisional replaced", entity.Index{conv("conversation_x"), conv("b")}, conv("srv-1"), []string{"conversation_x"}, []string{"srv-1", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Upsert(tt.index, tt.conv, tt.superseded...)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestUpsertReplacesMessages(t *testing.T) {
	index := entity.Index{conv("a", "2024-01-01T00:00:00Z")}
	updated := conv("a", "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")

	got := Upsert(index, updated)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Messages, 2)
	assert.Len(t, index[0].Messages, 1, "input index is not modified")
}

func TestRemove(t *testing.T) {
	index := entity.Index{conv("a"), conv("b"), conv("c")}

	assert.Equal(t, []string{"a", "c"}, ids(Remove(index, "b")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Remove(index, "missing")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(index))
}

func TestFind(t *testing.T) {
	index := entity.Index{conv("a"), conv("b")}

	got, ok := Find(index, "b")
	assert.True(t, ok)
	assert.Equal(t, "b", got.ConversationId)

	_, ok = Find(index, "z")
	assert.False(t, ok)
}

func TestSortByLastActivity(t *testing.T) {
	index := entity.Index{
		conv("old", "2024-01-01T10:00:00Z"),
		conv("empty"),
		conv("new", "2024-01-01T09:00:00Z", "2024-03-01T10:00:00Z"),
		conv("garbage", "not a time"),
		conv("mid", "2024-02-01T10:00:00.123Z"),
	}

	got := SortByLastActivity(index)
	assert.Equal(t, []string{"new", "mid", "old", "empty", "garbage"}, ids(got))
	assert.Equal(t, "old", index[0].ConversationId, "input order is kept")
}

func TestSortByLastActivityNil(t *testing.T) {
	got := SortByLastActivity(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNormalize(t *testing.T) {
	stale := conv("a", "2024-01-01T10:00:00Z")
	fresh := conv("a", "2024-01-01T10:00:00Z", "2024-03-01T10:00:00Z")
	index := entity.Index{stale, conv("b", "2024-02-01T10:00:00Z"), fresh, conv("b", "2024-02-01T10:00:00Z")}

	got := Normalize(index)
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Len(t, got[0].Messages, 2, "the most recent duplicate is kept")
	assert.Len(t, index, 4, "input is not modified")

	assert.NotNil(t, Normalize(nil))
}
