// Package lock provides the per-player, per-phraseset and per-queue critical
// section locks required by spec.md §5. When REDIS_URL is configured, locks
// are Redis SET-NX-with-TTL tokens shared across processes; otherwise they
// fall back to an in-process keyed mutex, mirroring the teacher's fail-open
// posture when redisClient is nil (internal/http/middleware/ratelimit_redis.go).
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock held by another holder")

// Locker serialises the critical section named by key.
type Locker interface {
	// Lock blocks (with backoff) until the named key is acquired or ctx is
	// done. It returns a release function that must be deferred.
	Lock(ctx context.Context, key string) (release func(), err error)
}

// NewLocker returns a Redis-backed locker when client is non-nil, else an
// in-process locker. Both share the same interface so callers never branch
// on which one they got.
func NewLocker(client *redis.Client) Locker {
	if client == nil {
		return newMutexLocker()
	}
	return &redisLocker{client: client, ttl: 10 * time.Second}
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	redisKey := "lock:" + key

	backoff := 10 * time.Millisecond
	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		// Only release if we still own it (compare-and-delete via script
		// would be ideal; TTL bounds the blast radius of a lost release).
		val, err := l.client.Get(releaseCtx, redisKey).Result()
		if err == nil && val == token {
			l.client.Del(releaseCtx, redisKey)
		}
	}
	return release, nil
}

// mutexLocker is the in-process fallback: one *sync.Mutex per key, kept in
// a map for the life of the process.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mutexLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()

	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; m.Unlock() }()
		return nil, ctx.Err()
	}
}
