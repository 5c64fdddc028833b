package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/migrations"
	"golang.org/x/sync/errgroup"

	goredis "github.com/redis/go-redis/v9"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	pgpkg "github.com/vadimbarashkov/shortlink/pkg/postgres"
	redispkg "github.com/vadimbarashkov/shortlink/pkg/redis"
)

type analyticsBody struct {
	TotalClicks  int `json:"totalClicks"`
	RecentClicks []struct {
		ID        int64     `json:"id"`
		IPAddress string    `json:"ip_address"`
		ClickedAt time.Time `json:"clicked_at"`
	} `json:"recentClicks"`
}

type AppTestSuite struct {
	suite.Suite
	cfg    *config.Config
	logger *httplog.Logger
	db     *sqlx.DB
	rdb    *goredis.Client
	server *httptest.Server
	e      *httpexpect.Expect
}

func (suite *AppTestSuite) SetupSuite() {
	if testing.Short() {
		suite.T().Skip("skipping container tests in short mode")
	}

	ctx := context.Background()

	pgCont, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("shortlink"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		suite.T().Fatalf("Failed to start postgres container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := pgCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pgCont.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		suite.T().Fatalf("Failed to get postgres connection string: %v", err)
	}

	redisCont, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		suite.T().Fatalf("Failed to start redis container: %v", err)
	}
	suite.T().Cleanup(func() {
		if err := redisCont.Terminate(ctx); err != nil {
			suite.T().Fatalf("Failed to terminate redis container: %v", err)
		}
	})

	redisAddr, err := redisCont.Endpoint(ctx, "")
	if err != nil {
		suite.T().Fatalf("Failed to get redis container endpoint: %v", err)
	}

	suite.db, err = pgpkg.New(ctx, dsn)
	if err != nil {
		suite.T().Fatalf("Failed to connect to postgres: %v", err)
	}
	suite.T().Cleanup(func() {
		suite.db.Close()
	})

	if err := pgpkg.RunMigrations(migrations.FS, dsn); err != nil {
		suite.T().Fatalf("Failed to run migrations: %v", err)
	}

	suite.rdb = redispkg.New(redisAddr)
	suite.T().Cleanup(func() {
		suite.rdb.Close()
	})

	if err := redispkg.Ping(ctx, suite.rdb); err != nil {
		suite.T().Fatalf("Failed to ping redis: %v", err)
	}

	suite.logger = httplog.NewLogger("", httplog.Options{Writer: io.Discard})
	suite.cfg = &config.Config{
		BaseURL:  "https://sho.rt",
		Postgres: config.Postgres{QueryTimeout: 3 * time.Second},
		Cache:    config.Cache{TTL: time.Minute, Timeout: time.Second},
		Clicks:   config.Clicks{BufferSize: 100, WriteTimeout: 3 * time.Second},
	}

	suite.server, suite.e = suite.start(suite.rdb)
}

// start serves a router backed by the suite database and the given redis
// client, with its click recorder running until the test ends.
func (suite *AppTestSuite) start(rdb *goredis.Client) (*httptest.Server, *httpexpect.Expect) {
	router, recorder := newRouter(suite.logger, suite.cfg, suite.db, rdb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(ctx)
	}()

	server := httptest.NewServer(router)
	suite.T().Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  server.URL,
		Reporter: httpexpect.NewAssertReporter(suite.T()),
		Client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})

	return server, e
}

func (suite *AppTestSuite) shorten(body map[string]any) string {
	return suite.e.POST("/api/shorten").
		WithJSON(body).
		Expect().
		Status(http.StatusCreated).
		JSON().Object().
		Value("shortCode").String().Raw()
}

func (suite *AppTestSuite) analytics(shortCode string) (analyticsBody, error) {
	var body analyticsBody

	resp, err := http.Get(fmt.Sprintf("%s/api/analytics/%s", suite.server.URL, shortCode))
	if err != nil {
		return body, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return body, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	err = json.NewDecoder(resp.Body).Decode(&body)
	return body, err
}

func (suite *AppTestSuite) TestShortenAndResolve() {
	code := suite.shorten(map[string]any{
		"originalUrl": "https://example.com",
		"utmParams":   []map[string]string{{"key": "source", "value": "test"}},
	})

	for i := 0; i < 2; i++ {
		suite.e.GET("/{shortCode}", code).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/?source=test")
	}

	exists, err := suite.rdb.Exists(context.Background(), redis.Key(code)).Result()
	suite.NoError(err)
	suite.Equal(int64(1), exists)
}

func (suite *AppTestSuite) TestResolveUnknownCode() {
	suite.e.GET("/{shortCode}", "nope1234").
		Expect().
		Status(http.StatusNotFound)

	suite.e.GET("/api/analytics/{shortCode}", "nope1234").
		Expect().
		Status(http.StatusNotFound)
}

func (suite *AppTestSuite) TestResolveExpired() {
	code := suite.shorten(map[string]any{
		"originalUrl": "https://example.com",
		"expiresAt":   time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
	})

	suite.e.GET("/{shortCode}", code).
		Expect().
		Status(http.StatusGone)

	time.Sleep(200 * time.Millisecond)

	body, err := suite.analytics(code)
	suite.NoError(err)
	suite.Zero(body.TotalClicks)
	suite.Empty(body.RecentClicks)
}

func (suite *AppTestSuite) TestConcurrentCustomCode() {
	const n = 2

	statuses := make([]int, n)

	var g errgroup.Group
	var start sync.WaitGroup
	start.Add(1)

	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			start.Wait()

			body := bytes.NewBufferString(`{"originalUrl":"https://example.com","customCode":"race"}`)
			resp, err := http.Post(suite.server.URL+"/api/shorten", "application/json", body)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			statuses[i] = resp.StatusCode
			return nil
		})
	}

	start.Done()
	suite.NoError(g.Wait())

	suite.ElementsMatch([]int{http.StatusCreated, http.StatusConflict}, statuses)

	var count int
	suite.NoError(suite.db.Get(&count, `SELECT COUNT(*) FROM urls WHERE short_code = $1`, "race"))
	suite.Equal(1, count)
}

func (suite *AppTestSuite) TestAnalytics() {
	const resolves = 12

	code := suite.shorten(map[string]any{"originalUrl": "https://example.com/analytics"})

	for i := 0; i < resolves; i++ {
		suite.e.GET("/{shortCode}", code).
			WithHeader("X-Real-IP", "203.0.113.42").
			Expect().
			Status(http.StatusFound)
	}

	suite.Eventually(func() bool {
		body, err := suite.analytics(code)
		return err == nil && body.TotalClicks == resolves
	}, 5*time.Second, 50*time.Millisecond)

	body, err := suite.analytics(code)
	suite.Require().NoError(err)
	suite.Len(body.RecentClicks, 10)

	for i, c := range body.RecentClicks {
		suite.Equal("203.0.113.0", c.IPAddress)

		if i > 0 {
			prev := body.RecentClicks[i-1]
			suite.False(c.ClickedAt.After(prev.ClickedAt))
			if c.ClickedAt.Equal(prev.ClickedAt) {
				suite.Less(c.ID, prev.ID)
			}
		}
	}
}

func (suite *AppTestSuite) TestCacheUnavailable() {
	code := suite.shorten(map[string]any{
		"originalUrl": "https://example.com/fallback",
		"utmParams":   []map[string]string{{"key": "utm_source", "value": "cache"}},
	})

	deadRedis := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	suite.T().Cleanup(func() {
		deadRedis.Close()
	})

	_, e := suite.start(deadRedis)

	e.GET("/{shortCode}", code).
		Expect().
		Status(http.StatusFound).
		Header("Location").IsEqual("https://example.com/fallback?utm_source=cache")

	suite.Eventually(func() bool {
		body, err := suite.analytics(code)
		return err == nil && body.TotalClicks == 1
	}, 5*time.Second, 50*time.Millisecond)
}

func (suite *AppTestSuite) TestPreview() {
	code := suite.shorten(map[string]any{
		"originalUrl": "https://example.com",
		"preview": map[string]string{
			"title":       "Example",
			"description": "An example",
		},
	})

	resp := suite.e.GET("/api/preview/{shortCode}", code).
		Expect().
		Status(http.StatusOK).
		JSON().Object()

	resp.HasValue("shortCode", code)
	resp.Value("preview").Object().HasValue("title", "Example")
}

func TestNewServer_BaseContextOutlivesShutdown(t *testing.T) {
	type ctxKey struct{}

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "shortlink"))

	server := newServer(ctx, &config.Config{}, http.NotFoundHandler())
	cancel()

	baseCtx := server.BaseContext(nil)

	assert.NoError(t, baseCtx.Err())
	assert.Equal(t, "shortlink", baseCtx.Value(ctxKey{}))
}

func TestApp(t *testing.T) {
	suite.Run(t, new(AppTestSuite))
}
