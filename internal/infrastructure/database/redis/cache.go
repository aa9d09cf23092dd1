package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/loanlens/loanlens/internal/infrastructure/monitoring/logging"
	"github.com/loanlens/loanlens/pkg/errors"
)

var (
	// ErrCacheMiss is the not-found sentinel for cache reads. Negative
	// entries written by GetOrSet surface as a miss too.
	ErrCacheMiss = errors.New(errors.ErrCodeNotFound, "cache miss")
	// ErrSerializationFailed means the value could not be encoded.
	ErrSerializationFailed = errors.New(errors.ErrCodeSerialization, "cache serialization failed")
)

// nullSentinel marks a key whose loader returned nothing, so repeated misses
// do not stampede the database.
const nullSentinel = "__null__"

// Cache is the read-through cache in front of the analysis store, also used
// for chat conversation history.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// GetOrSet reads through the cache: on a miss it runs loader once per
	// key across concurrent callers, stores the result, and fills dest.
	// A nil loader result is cached briefly as a negative entry and
	// reported as ErrCacheMiss.
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error

	// DeleteByPrefix drops every key under prefix and reports how many.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)

	Ping(ctx context.Context) error
}

// Serializer converts cached values to bytes and back.
type Serializer interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error
}

type jsonSerializer struct{}

func (jsonSerializer) Marshal(v interface{}) ([]byte, error)      { return json.Marshal(v) }
func (jsonSerializer) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }

type redisCache struct {
	client     *Client
	logger     logging.Logger
	prefix     string
	defaultTTL time.Duration
	nullTTL    time.Duration
	serializer Serializer
	group      singleflight.Group
}

// CacheOption tunes a cache instance.
type CacheOption func(*redisCache)

// WithPrefix overrides the key namespace.
func WithPrefix(prefix string) CacheOption {
	return func(c *redisCache) { c.prefix = prefix }
}

// WithDefaultTTL sets the expiry used when a call passes ttl 0.
func WithDefaultTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.defaultTTL = ttl }
}

// WithNullTTL sets how long negative entries live.
func WithNullTTL(ttl time.Duration) CacheOption {
	return func(c *redisCache) { c.nullTTL = ttl }
}

// WithSerializer swaps the value codec.
func WithSerializer(s Serializer) CacheOption {
	return func(c *redisCache) { c.serializer = s }
}

// NewCache builds a Cache over client. Defaults come from the client's
// config; options override per instance.
func NewCache(client *Client, log logging.Logger, opts ...CacheOption) Cache {
	c := &redisCache{
		client:     client,
		logger:     log,
		prefix:     client.cfg.KeyPrefix,
		defaultTTL: client.cfg.DefaultTTL,
		nullTTL:    30 * time.Second,
		serializer: jsonSerializer{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *redisCache) fullKey(key string) string {
	return c.prefix + key
}

// jitterTTL spreads expiries +/- 10% so hot keys written together do not
// expire together.
func (c *redisCache) jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return ttl
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, negative, err := c.getRaw(ctx, key)
	if err != nil {
		return err
	}
	if negative {
		return ErrCacheMiss
	}
	return c.serializer.Unmarshal(data, dest)
}

// getRaw reads a key and distinguishes a negative entry from an absent one,
// so GetOrSet can honor negative entries instead of re-running the loader.
func (c *redisCache) getRaw(ctx context.Context, key string) (data []byte, negative bool, err error) {
	data, err = c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, ErrCacheMiss
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "cache get failed")
	}
	return data, string(data) == nullSentinel, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return ErrSerializationFailed
	}
	return c.client.Set(ctx, c.fullKey(key), data, c.jitterTTL(ttl)).Err()
}

func (c *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	fullKeys := make([]string, len(keys))
	for i, k := range keys {
		fullKeys[i] = c.fullKey(k)
	}
	return c.client.Del(ctx, fullKeys...).Err()
}

func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.fullKey(key)).Result()
	return n > 0, err
}

func (c *redisCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	data, negative, err := c.getRaw(ctx, key)
	if err == nil {
		if negative {
			return ErrCacheMiss
		}
		return c.serializer.Unmarshal(data, dest)
	}
	if err != ErrCacheMiss {
		return err
	}

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		v, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		if v == nil {
			c.client.Set(ctx, c.fullKey(key), nullSentinel, c.nullTTL)
			return nil, nil
		}
		if setErr := c.Set(ctx, key, v, ttl); setErr != nil {
			c.logger.Warn("cache fill failed, serving loaded value uncached",
				logging.String("key", key), logging.Err(setErr))
		}
		return v, nil
	})
	if err != nil {
		return err
	}
	if val == nil {
		return ErrCacheMiss
	}

	// Followers of the flight share the winner's value; route it through
	// the serializer so dest fills the same way a cache hit would.
	data, err = c.serializer.Marshal(val)
	if err != nil {
		return ErrSerializationFailed
	}
	return c.serializer.Unmarshal(data, dest)
}

func (c *redisCache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	var cursor uint64
	match := c.fullKey(prefix) + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, match, 100).Result()
		if err != nil {
			return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "cache scan failed")
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, errors.Wrap(err, errors.ErrCodeCacheError, "cache delete failed")
			}
			deleted += int64(len(keys))
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}
