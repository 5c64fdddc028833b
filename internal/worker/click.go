// Package worker contains background workers that take slow writes off the
// request path.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"
)

const (
	DefaultBufferSize   = 1024
	DefaultWriteTimeout = 3 * time.Second
)

type clickRepository interface {
	Save(ctx context.Context, click entity.Click) error
}

// ClickRecorder persists clicks asynchronously. Record never blocks: when the
// queue is full the click is dropped and a warning is logged.
type ClickRecorder struct {
	in           chan entity.Click
	logger       *slog.Logger
	repo         clickRepository
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewClickRecorder(logger *slog.Logger, repo clickRepository, bufferSize int, writeTimeout time.Duration) *ClickRecorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	return &ClickRecorder{
		in:           make(chan entity.Click, bufferSize),
		logger:       logger,
		repo:         repo,
		writeTimeout: writeTimeout,
	}
}

// Record enqueues the click. It reports whether the click was accepted.
func (w *ClickRecorder) Record(click entity.Click) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.logger.Warn("click recorder stopped, dropping click", slog.Int64("url_id", click.URLID))
		return false
	}

	select {
	case w.in <- click:
		return true
	default:
		w.logger.Warn("click queue is full, dropping click", slog.Int64("url_id", click.URLID))
		return false
	}
}

// Run saves queued clicks until ctx is done, then stops accepting new clicks
// and saves whatever is left in the queue before returning.
func (w *ClickRecorder) Run(ctx context.Context) error {
	for {
		select {
		case click := <-w.in:
			w.save(click)
		case <-ctx.Done():
			w.stop()
			w.drain()
			return nil
		}
	}
}

func (w *ClickRecorder) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.closed {
		w.closed = true
		close(w.in)
	}
}

func (w *ClickRecorder) drain() {
	var n int
	for click := range w.in {
		w.save(click)
		n++
	}

	if n > 0 {
		w.logger.Info("flushed queued clicks", slog.Int("count", n))
	}
}

func (w *ClickRecorder) save(click entity.Click) {
	ctx, cancel := context.WithTimeout(context.Background(), w.writeTimeout)
	defer cancel()

	if err := w.repo.Save(ctx, click); err != nil {
		w.logger.Error("failed to record click",
			slog.Int64("url_id", click.URLID),
			slog.Any("err", err),
		)
	}
}
