package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is a normal control-flow signal, not a failure: the caller
// recomputes and (best effort) writes back.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the volatile TTL'd key-value layer. Entries are advisory and may
// expire or be evicted at any time; the cache is never the system of record.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
