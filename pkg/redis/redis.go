// Package redis builds go-redis clients and checks that the server is reachable.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPingTimeout = 5 * time.Second

type Option func(*redis.Options)

func WithPassword(password string) Option {
	return func(o *redis.Options) {
		o.Password = password
	}
}

func WithDB(db int) Option {
	return func(o *redis.Options) {
		o.DB = db
	}
}

func WithTimeouts(dial, read, write time.Duration) Option {
	return func(o *redis.Options) {
		o.DialTimeout = dial
		o.ReadTimeout = read
		o.WriteTimeout = write
	}
}

func WithPoolSize(n int) Option {
	return func(o *redis.Options) {
		o.PoolSize = n
	}
}

// New creates a client for the server at addr. Connections are established
// lazily, so a client is returned even when the server is down.
func New(addr string, opts ...Option) *redis.Client {
	o := &redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	}

	for _, opt := range opts {
		opt(o)
	}

	return redis.NewClient(o)
}

// Ping checks that the server behind client answers within a bounded time.
func Ping(ctx context.Context, client *redis.Client) error {
	const op = "redis.Ping"

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: failed to ping redis: %w", op, err)
	}

	return nil
}
