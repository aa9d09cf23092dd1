package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

var (
	// ErrLockNotAcquired means the retry budget ran out before the lock
	// freed up.
	ErrLockNotAcquired = errors.New(errors.ErrCodeConflict, "lock not acquired")
	// ErrLockNotHeld means Unlock found the key gone or owned by someone
	// else, usually after the TTL lapsed mid-work.
	ErrLockNotHeld = errors.New(errors.ErrCodeConflict, "lock not held by this owner")
)

// DistributedLock serializes work on a shared resource across processes.
// The analysis worker claims one per document so a redelivered event does
// not start a second extraction.
type DistributedLock interface {
	// Lock blocks until acquired, the retry budget runs out, or ctx ends.
	Lock(ctx context.Context) error
	// TryLock attempts a single acquisition.
	TryLock(ctx context.Context) (bool, error)
	// Unlock releases the lock if this instance still owns it.
	Unlock(ctx context.Context) error
	// Extend pushes the expiry out while still owned.
	Extend(ctx context.Context, ttl time.Duration) (bool, error)
	// TTL reports the remaining hold time.
	TTL(ctx context.Context) (time.Duration, error)
}

// LockFactory mints locks that share one redis client.
type LockFactory interface {
	NewMutex(name string, opts ...LockOption) DistributedLock
}

// LockOption tunes a single lock.
type LockOption func(*lockConfig)

// WithLockTTL sets how long a claim lives without an Extend.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

// WithRetryDelay sets the pause between Lock attempts.
func WithRetryDelay(d time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = d }
}

// WithRetryCount caps how many times Lock re-attempts.
func WithRetryCount(n int) LockOption {
	return func(c *lockConfig) { c.retryCount = n }
}

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

type lockFactory struct {
	client *Client
	logger logging.Logger
}

// NewLockFactory builds a LockFactory over client. Lock keys live under the
// client's configured prefix.
func NewLockFactory(client *Client, log logging.Logger) LockFactory {
	return &lockFactory{client: client, logger: log}
}

func (f *lockFactory) NewMutex(name string, opts ...LockOption) DistributedLock {
	cfg := lockConfig{
		ttl:        30 * time.Second,
		retryDelay: 100 * time.Millisecond,
		retryCount: 30,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &mutex{
		client: f.client,
		key:    f.client.cfg.KeyPrefix + "lock:" + name,
		value:  uuid.NewString(),
		cfg:    cfg,
		logger: f.logger,
	}
}

// mutex is a single-owner lock: SET NX with a random value, released and
// extended through scripts that verify ownership first.
type mutex struct {
	client *Client
	key    string
	value  string
	cfg    lockConfig
	logger logging.Logger
}

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

var extendScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

func (m *mutex) Lock(ctx context.Context) error {
	for i := 0; i < m.cfg.retryCount; i++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.cfg.retryDelay):
		}
	}
	return ErrLockNotAcquired
}

func (m *mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.SetNX(ctx, m.key, m.value, m.cfg.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock acquire failed")
	}
	return ok, nil
}

func (m *mutex) Unlock(ctx context.Context) error {
	res, err := unlockScript.Run(ctx, m.client.Underlying(), []string{m.key}, m.value).Result()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "lock release failed")
	}
	if res.(int64) == 0 {
		return ErrLockNotHeld
	}
	return nil
}

func (m *mutex) Extend(ctx context.Context, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, m.client.Underlying(), []string{m.key}, m.value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeCacheError, "lock extend failed")
	}
	return res.(int64) == 1, nil
}

func (m *mutex) TTL(ctx context.Context) (time.Duration, error) {
	return m.client.PTTL(ctx, m.key).Result()
}
