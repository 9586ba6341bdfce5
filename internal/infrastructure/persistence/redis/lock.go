package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alem-hub/progress-ranking/internal/domain/ledger"
	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-acquired by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// KeyLocker implements ledger.Locker with SET NX PX. A held key fails fast
// with shared.ErrKeyLocked, which callers treat as retryable.
type KeyLocker struct {
	cache *Cache
	ttl   time.Duration
}

// NewKeyLocker creates a KeyLocker. A non-positive ttl uses TTLDistributedLock.
func NewKeyLocker(cache *Cache, ttl time.Duration) *KeyLocker {
	if ttl <= 0 {
		ttl = TTLDistributedLock
	}
	return &KeyLocker{cache: cache, ttl: ttl}
}

// Lock implements ledger.Locker.
func (l *KeyLocker) Lock(ctx context.Context, key string) (func(context.Context) error, error) {
	redisKey := LockKey(key)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, redisKey, token, l.ttl)
	if err != nil {
		return nil, shared.WrapError("redis", "Lock", shared.ErrServiceUnavailable, "lock "+key, err)
	}
	if !ok {
		return nil, shared.ErrKeyLocked
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.cache.Client(), []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis: release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

var _ ledger.Locker = (*KeyLocker)(nil)
