package cache

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("cache key not found")

// Store is the raw durable key-value backend. Get returns ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
