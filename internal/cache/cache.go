package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	go_store "github.com/eko/gocache/store/go_cache/v4"
	redis_store "github.com/eko/gocache/store/redis/v4"
	"github.com/jon4hz/botconsole/internal/config"
	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// PrefixedCache wraps a cache.Cache and adds a prefix to all keys.
// Every entry is tagged with the prefix so Clear only drops entries written through this wrapper.
type PrefixedCache struct {
	cache  *cache.Cache[any]
	prefix string
	ttl    time.Duration
}

// NewPrefixedCache creates a new prefixed cache wrapper. A zero ttl keeps entries until they are deleted.
func NewPrefixedCache(cache *cache.Cache[any], prefix string, ttl time.Duration) *PrefixedCache {
	return &PrefixedCache{
		cache:  cache,
		prefix: prefix,
		ttl:    ttl,
	}
}

// New creates a prefixed cache on the backend selected by the store configuration.
func New(cfg *config.StoreConfig, prefix string, ttl time.Duration) (*PrefixedCache, error) {
	switch cfg.Type {
	case config.StoreTypeMemory:
		return NewPrefixedCache(newMemoryCache[any](), prefix, ttl), nil
	case config.StoreTypeRedis:
		return NewPrefixedCache(newRedisCache[any](cfg), prefix, ttl), nil
	default:
		return nil, fmt.Errorf("store type %q is not a cache backend", cfg.Type)
	}
}

// Get retrieves the raw value stored under the prefixed key.
func (p *PrefixedCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := p.cache.Get(ctx, p.prefix+key)
	if err != nil {
		return nil, err
	}
	// redis hands values back as strings, the memory store keeps what was written.
	switch data := value.(type) {
	case []byte:
		return data, nil
	case string:
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("unexpected cache value of type %T", value)
	}
}

// Set stores a raw value under the prefixed key.
func (p *PrefixedCache) Set(ctx context.Context, key string, data []byte) error {
	options := []store.Option{store.WithTags([]string{p.prefix})}
	if p.ttl > 0 {
		options = append(options, store.WithExpiration(p.ttl))
	}
	return p.cache.Set(ctx, p.prefix+key, data, options...)
}

// Delete removes the value stored under the prefixed key.
func (p *PrefixedCache) Delete(ctx context.Context, key string) error {
	return p.cache.Delete(ctx, p.prefix+key)
}

// Clear removes every value written through this wrapper.
func (p *PrefixedCache) Clear(ctx context.Context) error {
	return p.cache.Invalidate(ctx, store.WithInvalidateTags([]string{p.prefix}))
}

// GetType returns the cache type.
func (p *PrefixedCache) GetType() string {
	return p.cache.GetType()
}

// Close is a no-op, the underlying clients are closed with the process.
func (p *PrefixedCache) Close() error {
	return nil
}

func newMemoryCache[T any]() *cache.Cache[T] {
	gocacheClient := gocache.New(gocache.NoExpiration, 10*time.Minute)
	gocacheStore := go_store.NewGoCache(gocacheClient)
	return cache.New[T](gocacheStore)
}

func newRedisCache[T any](cfg *config.StoreConfig) *cache.Cache[T] {
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	redisStore := redis_store.NewRedis(redisClient)
	return cache.New[T](redisStore)
}
