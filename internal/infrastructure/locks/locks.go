package locks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lease could not be taken before the context expired.
var ErrNotAcquired = errors.New("lock not acquired")

const retryInterval = 25 * time.Millisecond

// Lease is a held lock. Release is safe to call more than once.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out exclusive per-key leases.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// PropertyKey is the lock key shared by intake, sweep and finalize for one property.
func PropertyKey(propertyID uuid.UUID) string {
	return "lock:property:" + propertyID.String()
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX leases so several API instances
// serialize work on the same property.
type RedisLocker struct {
	Rdb *redis.Client
}

type redisLease struct {
	rdb   *redis.Client
	key   string
	token string
	once  sync.Once
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.New().String()
	for {
		ok, err := l.Rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &redisLease{rdb: l.Rdb, key: key, token: token}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(retryInterval):
		}
	}
}

func (l *redisLease) Release(ctx context.Context) error {
	var err error
	l.once.Do(func() {
		err = releaseScript.Run(ctx, l.rdb, []string{l.key}, l.token).Err()
	})
	return err
}

// LocalLocker implements Locker in-process, one mutex per key. Used when Redis is not configured.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

type localLease struct {
	slot chan struct{}
	once sync.Once
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[key] = s
	}
	return s
}

// Acquire ignores ttl: a local lease lives until released.
func (l *LocalLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	s := l.slot(key)
	select {
	case s <- struct{}{}:
		return &localLease{slot: s}, nil
	case <-ctx.Done():
		return nil, ErrNotAcquired
	}
}

func (l *localLease) Release(ctx context.Context) error {
	l.once.Do(func() { <-l.slot })
	return nil
}
