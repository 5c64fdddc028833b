package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	keyPrefix  = "shorturl:"
	DefaultTTL = time.Hour
)

// Key returns the cache key of a short code.
func Key(shortCode string) string {
	return keyPrefix + shortCode
}

// URLCache is a read-through cache of URL records keyed by short code.
// Values are stored as JSON so other consumers of the keyspace can read them.
type URLCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewURLCache(client *redis.Client, ttl time.Duration) *URLCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &URLCache{
		cache: cache.New(&cache.Options{
			Redis:     client,
			Marshal:   json.Marshal,
			Unmarshal: json.Unmarshal,
		}),
		ttl: ttl,
	}
}

// Get returns the cached record of the short code, or nil without an error on
// a cache miss.
func (c *URLCache) Get(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.cache.redis.URLCache.Get"

	var url entity.URL

	if err := c.cache.Get(ctx, Key(shortCode), &url); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: failed to get cached url: %w", op, err)
	}

	return &url, nil
}

func (c *URLCache) Set(ctx context.Context, url *entity.URL) error {
	const op = "adapter.cache.redis.URLCache.Set"

	err := c.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   Key(url.ShortCode),
		Value: url,
		TTL:   c.ttl,
	})
	if err != nil {
		return fmt.Errorf("%s: failed to cache url: %w", op, err)
	}

	return nil
}
