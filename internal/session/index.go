package session

import (
	"slices"
	"sort"

	"advising-chat/internal/entity"
)

func Find(index entity.Index, conversationId string) (entity.Conversation, bool) {
	for _, conv := range index {
		if conv.ConversationId == conversationId {
			return conv, true
		}
	}
	return entity.Conversation{}, false
}

// Upsert puts conv at position 0 and drops every other entry with the same id or with
// one of the superseded ids (a provisional id the server replaced).
func Upsert(index entity.Index, conv entity.Conversation, superseded ...string) entity.Index {
	out := make(entity.Index, 0, len(index)+1)
	out = append(out, conv)
	for _, existing := range index {
		if existing.ConversationId == conv.ConversationId || slices.Contains(superseded, existing.ConversationId) {
			continue
		}
		out = append(out, existing)
	}
	return out
}

// Remove returns index without conversationId. The input is never modified.
func Remove(index entity.Index, conversationId string) entity.Index {
	out := make(entity.Index, 0, len(index))
	for _, existing := range index {
		if existing.ConversationId != conversationId {
			out = append(out, existing)
		}
	}
	return out
}

// SortByLastActivity orders by last message time, newest first. Conversations without a
// usable timestamp count as the epoch; ties keep their server order.
func SortByLastActivity(index entity.Index) entity.Index {
	out := slices.Clone(index)
	if out == nil {
		out = entity.Index{}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lastActivityMillis(out[i]) > lastActivityMillis(out[j])
	})
	return out
}

func lastActivityMillis(conv entity.Conversation) int64 {
	t := conv.LastActivity()
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// Normalize prepares a server list for the view: newest first, one entry per conversation id.
// Of duplicate ids the most recently active entry wins.
func Normalize(index entity.Index) entity.Index {
	sorted := SortByLastActivity(index)
	out := make(entity.Index, 0, len(sorted))
	seen := make(map[string]struct{}, len(sorted))
	for _, conv := range sorted {
		if _, dup := seen[conv.ConversationId]; dup {
			continue
		}
		seen[conv.ConversationId] = struct{}{}
		out = append(out, conv)
	}
	return out
}
