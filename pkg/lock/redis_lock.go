package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockFailed lock is held by someone else
	ErrLockFailed = errors.New("failed to acquire lock")
	// ErrLockNotHeld lock expired or belongs to another owner
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// RedisLock is a single-owner lease stored in Redis. Each instance carries a
// random token so only the owner can release or extend it.
type RedisLock struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a lock handle; nothing is acquired until Lock
func NewRedisLock(client redis.Cmdable, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		client: client,
		key:    key,
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Key returns the Redis key guarding the lease
func (l *RedisLock) Key() string {
	return l.key
}

// Lock acquires the lease or returns ErrLockFailed
func (l *RedisLock) Lock(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockFailed
	}
	return nil
}

// Unlock releases the lease if this handle still owns it
func (l *RedisLock) Unlock(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Extend pushes the lease expiry to ttl from now
func (l *RedisLock) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, l.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// IsHeld reports whether this handle currently owns the lease
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	v, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == l.token, nil
}
