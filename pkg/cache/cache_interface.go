package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotInteger is returned by Increment when the stored value is not a counter
var ErrNotInteger = errors.New("cache value is not an integer")

// Cache is the contract of the cache layer (Redis or in-memory)
type Cache interface {
	// Get unmarshals the cached value into dest.
	// found is false on a cache miss and dest is left untouched.
	Get(ctx context.Context, key string, dest interface{}) (bool, error)

	// Set stores value with a TTL; ttl <= 0 keeps it forever
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	// DeletePattern removes every key matching a glob pattern such as "stories:public:*"
	DeletePattern(ctx context.Context, pattern string) error

	// Counters, used for failed login tracking
	Increment(ctx context.Context, key string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}
