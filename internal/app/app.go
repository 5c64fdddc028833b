package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/internal/worker"
	"github.com/vadimbarashkov/shortlink/migrations"
	"golang.org/x/sync/errgroup"

	goredis "github.com/redis/go-redis/v9"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgpkg "github.com/vadimbarashkov/shortlink/pkg/postgres"
	redispkg "github.com/vadimbarashkov/shortlink/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func NewLogger(cfg *config.Config) *httplog.Logger {
	return httplog.NewLogger("shortlink", httplog.Options{
		LogLevel:       cfg.Log.SlogLevel(),
		JSON:           cfg.Log.JSON,
		Concise:        !cfg.Log.JSON,
		RequestHeaders: cfg.Env != config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

// newRouter wires the repositories, cache, click recorder and use case behind
// the HTTP router. The recorder must be started by the caller.
func newRouter(logger *httplog.Logger, cfg *config.Config, db *sqlx.DB, rdb *goredis.Client) (*chi.Mux, *worker.ClickRecorder) {
	urlRepo := postgres.NewURLRepository(db)
	clickRepo := postgres.NewClickRepository(db)
	urlCache := redis.NewURLCache(rdb, cfg.Cache.TTL)

	recorder := worker.NewClickRecorder(logger.Logger, clickRepo, cfg.Clicks.BufferSize, cfg.Clicks.WriteTimeout)

	urlUseCase := usecase.NewURLUseCase(
		urlRepo,
		clickRepo,
		urlCache,
		recorder,
		usecase.WithLogger(logger.Logger),
		usecase.WithCacheTimeout(cfg.Cache.Timeout),
		usecase.WithStoreTimeout(cfg.Postgres.QueryTimeout),
	)

	router := delivery.NewRouter(logger, urlUseCase, delivery.Config{
		BaseURL:        cfg.BaseURL,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
	})

	return router, recorder
}

// newServer builds the HTTP server. Request contexts keep the values of ctx but
// are not cancelled with it, so requests in flight finish during shutdown.
func newServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	baseCtx := context.WithoutCancel(ctx)

	return &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        handler,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return baseCtx
		},
	}
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	db, err := pgpkg.New(
		ctx,
		cfg.Postgres.DSN(),
		pgpkg.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		pgpkg.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		pgpkg.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		pgpkg.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		pgpkg.WithConnectTimeout(cfg.Postgres.ConnectTimeout),
	)
	if err != nil {
		return fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}
	defer db.Close()

	if err := pgpkg.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	rdb := redispkg.New(
		cfg.Redis.Addr,
		redispkg.WithPassword(cfg.Redis.Password),
		redispkg.WithDB(cfg.Redis.DB),
		redispkg.WithTimeouts(cfg.Redis.DialTimeout, cfg.Redis.ReadTimeout, cfg.Redis.WriteTimeout),
		redispkg.WithPoolSize(cfg.Redis.PoolSize),
	)
	defer rdb.Close()

	if err := redispkg.Ping(ctx, rdb); err != nil {
		logger.Warn("redis is unavailable, serving from database only", slog.Any("err", err))
	}

	router, recorder := newRouter(logger, cfg, db, rdb)

	server := newServer(ctx, cfg, router)

	// The recorder outlives the server so clicks of in-flight requests are
	// still accepted while it shuts down.
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return recorder.Run(recorderCtx)
	})

	g.Go(func() error {
		var err error

		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", cfg.Env))

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		defer stopRecorder()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
