package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants a short-lived exclusive lock.
type Locker interface {
	// TryLock attempts to take key for ttl without blocking. When ok is true
	// the caller must call release.
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and a per-holder token.
type RedisLocker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisLocker connects to addr and checks it answers.
func NewRedisLocker(ctx context.Context, addr string, logger *slog.Logger) (*RedisLocker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisLocker{client: client, logger: logger}, nil
}

// TryLock implements Locker.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return func() { l.release(key, token) }, true, nil
}

// release drops key if token still holds it. A failure leaves the lock in
// place until its TTL expires, so it is logged.
func (l *RedisLocker) release(key, token string) {
	// The run context may already be canceled; release on a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := releaseScript.Run(ctx, l.client, []string{key}, token).Int()
	switch {
	case err != nil:
		l.logger.Error("release lock failed, other replicas wait for the ttl", "key", key, "error", err)
	case n == 0:
		l.logger.Warn("lock expired before release", "key", key)
	}
}

// Close closes the Redis connection pool.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
