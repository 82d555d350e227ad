package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker is the single-flight guard around finalize/retry for one upload.
// TryAcquire never blocks: ok=false means another operation holds the lock.
type Locker interface {
	TryAcquire(ctx context.Context, uploadID string) (release func(), ok bool, err error)
}

// MemoryLocker guards uploads within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) TryAcquire(_ context.Context, uploadID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[uploadID]; busy {
		return nil, false, nil
	}
	l.held[uploadID] = struct{}{}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, uploadID)
	}
	return release, true, nil
}

// lockMargin keeps the TTL backstop alive past an operation that uses its
// whole deadline.
const lockMargin = 30 * time.Second

// LockTTL returns the lock expiry for an operation bounded by timeout. The
// lock must outlive the operation, otherwise a finalize that uses its full
// budget loses the lock while still running.
func LockTTL(timeout time.Duration) time.Duration {
	return timeout + lockMargin
}

// RedisLocker guards uploads across instances with SETNX. The TTL backstops
// crashed holders; it must exceed the finalize deadline.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker creates a distributed locker.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) TryAcquire(ctx context.Context, uploadID string) (func(), bool, error) {
	key := fmt.Sprintf("upload-lock:%s", uploadID)

	acquired, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire upload lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release must survive the operation's canceled context.
		l.client.Del(context.Background(), key)
	}
	return release, true, nil
}
