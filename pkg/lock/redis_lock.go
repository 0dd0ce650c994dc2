package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLockNotAcquired another holder owns the key
	ErrLockNotAcquired = errors.New("lock: not acquired")
	// ErrLockNotHeld the lock expired or belongs to someone else
	ErrLockNotHeld = errors.New("lock: not held")
)

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisLock is a single-key lease. The token identifies this holder so one
// replica can never release a lease another replica acquired after expiry.
type RedisLock struct {
	client redis.UniversalClient
	key    string
	token  string
	ttl    time.Duration
}

// NewRedisLock creates a lease on key. An empty token is replaced by a random one.
func NewRedisLock(client redis.UniversalClient, key, token string, ttl time.Duration) *RedisLock {
	if token == "" {
		token = uuid.NewString()
	}
	return &RedisLock{
		client: client,
		key:    key,
		token:  token,
		ttl:    ttl,
	}
}

// Key returns the redis key guarded by the lock
func (l *RedisLock) Key() string {
	return l.key
}

// Lock acquires the lock or returns ErrLockNotAcquired
func (l *RedisLock) Lock(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockNotAcquired
	}
	return nil
}

// TryLock retries Lock until it succeeds, attempts run out or ctx ends
func (l *RedisLock) TryLock(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		err := l.Lock(ctx)
		if !errors.Is(err, ErrLockNotAcquired) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return ErrLockNotAcquired
}

// Unlock releases the lock if this holder still owns it
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

// Extend pushes the expiry out to ttl from now
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

// IsHeld checks if the lock is held by this holder
func (l *RedisLock) IsHeld(ctx context.Context) (bool, error) {
	value, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == l.token, nil
}
