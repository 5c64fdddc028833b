package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "shorturl:abc123", Key("abc123"))
}

func TestURLCache_Unavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() {
		client.Close()
	})

	c := NewURLCache(client, time.Minute)

	url, err := c.Get(context.Background(), "abc123")
	assert.Error(t, err)
	assert.Nil(t, url)

	err = c.Set(context.Background(), &entity.URL{ShortCode: "abc123"})
	assert.Error(t, err)
}

type URLCacheTestSuite struct {
	suite.Suite
	client *redis.Client
	cache  *URLCache
}

func (suite *URLCacheTestSuite) SetupSuite() {
	if testing.Short() {
		suite.T().Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()

	redisCont, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		suite.T().Fatalf("Failed to start redis container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := redisCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate redis container: %v", err)
		}
	})

	addr, err := redisCont.Endpoint(ctx, "")
	if err != nil {
		suite.T().Fatalf("Failed to get redis container endpoint: %v", err)
	}

	suite.client = redis.NewClient(&redis.Options{Addr: addr})
	suite.T().Cleanup(func() {
		suite.client.Close()
	})

	suite.cache = NewURLCache(suite.client, time.Minute)
}

func (suite *URLCacheTestSuite) TearDownSubTest() {
	suite.NoError(suite.client.FlushDB(context.Background()).Err())
}

func (suite *URLCacheTestSuite) TestGet() {
	suite.Run("cache miss", func() {
		url, err := suite.cache.Get(context.Background(), "missing")

		suite.NoError(err)
		suite.Nil(url)
	})

	suite.Run("cache hit", func() {
		expiresAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

		err := suite.cache.Set(context.Background(), &entity.URL{
			ID:          1,
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
			ExpiresAt:   &expiresAt,
			UTMParams:   []entity.UTMParam{{Key: "source", Value: "test"}},
		})
		suite.NoError(err)

		url, err := suite.cache.Get(context.Background(), "abc123")

		suite.NoError(err)
		suite.NotNil(url)
		suite.Equal(int64(1), url.ID)
		suite.Equal("https://example.com", url.OriginalURL)
		suite.True(expiresAt.Equal(*url.ExpiresAt))
		suite.Equal([]entity.UTMParam{{Key: "source", Value: "test"}}, url.UTMParams)
	})

	suite.Run("corrupted value", func() {
		suite.NoError(suite.client.Set(context.Background(), Key("abc123"), "not json", time.Minute).Err())

		url, err := suite.cache.Get(context.Background(), "abc123")

		suite.Error(err)
		suite.Nil(url)
	})
}

func (suite *URLCacheTestSuite) TestSet() {
	suite.Run("stores json with ttl", func() {
		err := suite.cache.Set(context.Background(), &entity.URL{
			ID:          1,
			ShortCode:   "abc123",
			OriginalURL: "https://example.com",
		})
		suite.NoError(err)

		raw, err := suite.client.Get(context.Background(), Key("abc123")).Result()
		suite.NoError(err)
		suite.Contains(raw, `"original_url":"https://example.com"`)

		ttl, err := suite.client.TTL(context.Background(), Key("abc123")).Result()
		suite.NoError(err)
		suite.Greater(ttl, time.Duration(0))
		suite.LessOrEqual(ttl, time.Minute)
	})
}

func TestURLCache(t *testing.T) {
	suite.Run(t, new(URLCacheTestSuite))
}
