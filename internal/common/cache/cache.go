package cache

import (
	"context"
	stderrors "errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"paypal-gateway/internal/redis"
)

// Cache defines the key/value operations with TTL semantics. A zero ttl stores
// the value without expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// LocalCache wraps patrickmn/go-cache for in-memory caching
type LocalCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates a local cache that sweeps expired items every cleanupInterval
func NewLocalCache(cleanupInterval time.Duration) *LocalCache {
	return &LocalCache{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

func (l *LocalCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, found := l.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s, ok := value.(string)
	return s, ok, nil
}

func (l *LocalCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	l.cache.Set(key, value, ttl)
	return nil
}

func (l *LocalCache) Delete(ctx context.Context, key string) error {
	l.cache.Delete(key)
	return nil
}

// RedisStore is the subset of the Redis client the cache needs
type RedisStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RedisCache stores values in Redis under a key prefix
type RedisCache struct {
	client    RedisStore
	keyPrefix string
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client RedisStore, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.keyPrefix+key)
	if stderrors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.keyPrefix+key, value, ttl)
}

func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.client.Delete(ctx, r.keyPrefix+key)
}
