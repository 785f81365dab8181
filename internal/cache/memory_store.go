package cache

import (
	"context"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore lives as long as the process. Items never expire on their own;
// validity is decided by Policy from the stamp inside each value.
type MemoryStore struct {
	cache *gocache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if x, found := s.cache.Get(key); found {
		data := x.([]byte)
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)
	s.cache.Set(key, data, gocache.NoExpiration)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return nil
}
