package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/vadimbarashkov/shortlink/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const (
	DefaultCacheTimeout = 100 * time.Millisecond
	DefaultStoreTimeout = 3 * time.Second
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
}

type clickRepository interface {
	CountByURLID(ctx context.Context, urlID int64) (int64, error)
	ListRecentByURLID(ctx context.Context, urlID int64, limit int) ([]entity.Click, error)
}

type urlCache interface {
	Get(ctx context.Context, shortCode string) (*entity.URL, error)
	Set(ctx context.Context, url *entity.URL) error
}

type clickRecorder interface {
	Record(click entity.Click) bool
}

type Option func(*URLUseCase)

func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

func WithCacheTimeout(timeout time.Duration) Option {
	return func(uc *URLUseCase) {
		if timeout > 0 {
			uc.cacheTimeout = timeout
		}
	}
}

func WithStoreTimeout(timeout time.Duration) Option {
	return func(uc *URLUseCase) {
		if timeout > 0 {
			uc.storeTimeout = timeout
		}
	}
}

// URLUseCase shortens URLs, resolves short codes and aggregates clicks.
//
// The cache is never invalidated: a record changed or removed out of band may
// keep resolving from its cached copy for up to one cache TTL.
type URLUseCase struct {
	urlRepo       urlRepository
	clickRepo     clickRepository
	cache         urlCache
	clickRecorder clickRecorder
	logger        *slog.Logger
	cacheTimeout  time.Duration
	storeTimeout  time.Duration
	generateCode  func() (string, error)
	now           func() time.Time
}

func NewURLUseCase(
	urlRepo urlRepository,
	clickRepo clickRepository,
	cache urlCache,
	clickRecorder clickRecorder,
	opts ...Option,
) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:       urlRepo,
		clickRepo:     clickRepo,
		cache:         cache,
		clickRecorder: clickRecorder,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		cacheTimeout:  DefaultCacheTimeout,
		storeTimeout:  DefaultStoreTimeout,
		generateCode:  generateShortCode,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func generateShortCode() (string, error) {
	return gonanoid.New(entity.MaxShortCodeLength)
}

func validateOriginalURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return entity.ErrInvalidURL
	}
	return nil
}

func validateShortCode(code string) error {
	if len(code) == 0 || len(code) > entity.MaxShortCodeLength || entity.IsReservedShortCode(code) {
		return entity.ErrInvalidShortCode
	}

	for _, c := range code {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return entity.ErrInvalidShortCode
		}
	}

	return nil
}

// applyUTM appends the params to the query of rawURL in their order. Existing
// query parameters and duplicate keys are kept. A URL that fails to parse is
// returned unchanged.
func applyUTM(rawURL string, params []entity.UTMParam) string {
	if len(params) == 0 {
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}

	var b strings.Builder
	b.WriteString(u.RawQuery)

	for _, p := range params {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}

	u.RawQuery = b.String()
	u.ForceQuery = false

	return u.String()
}

func (uc *URLUseCase) save(ctx context.Context, u *entity.URL) (*entity.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.storeTimeout)
	defer cancel()

	return uc.urlRepo.Save(ctx, u)
}

func (uc *URLUseCase) ShortenURL(ctx context.Context, params entity.ShortenParams) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"
	const maxRetries = 5

	if err := validateOriginalURL(params.OriginalURL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	u := &entity.URL{
		OriginalURL: params.OriginalURL,
		ExpiresAt:   params.ExpiresAt,
		Preview:     params.Preview,
		UTMParams:   params.UTMParams,
	}

	if params.CustomCode != "" {
		if err := validateShortCode(params.CustomCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		u.ShortCode = params.CustomCode

		saved, err := uc.save(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return saved, nil
	}

	for i := 0; i < maxRetries; i++ {
		shortCode, err := uc.generateCode()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		u.ShortCode = shortCode

		saved, err := uc.save(ctx, u)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return saved, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

func (uc *URLUseCase) lookupCache(ctx context.Context, shortCode string) *entity.URL {
	ctx, cancel := context.WithTimeout(ctx, uc.cacheTimeout)
	defer cancel()

	u, err := uc.cache.Get(ctx, shortCode)
	if err != nil {
		uc.logger.Warn("cache lookup failed, falling back to store",
			slog.String("short_code", shortCode),
			slog.Any("err", err),
		)
		return nil
	}

	return u
}

func (uc *URLUseCase) populateCache(ctx context.Context, u *entity.URL) {
	ctx, cancel := context.WithTimeout(ctx, uc.cacheTimeout)
	defer cancel()

	if err := uc.cache.Set(ctx, u); err != nil {
		uc.logger.Warn("failed to cache url",
			slog.String("short_code", u.ShortCode),
			slog.Any("err", err),
		)
	}
}

func (uc *URLUseCase) retrieve(ctx context.Context, shortCode string) (*entity.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.storeTimeout)
	defer cancel()

	return uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
}

// ResolveShortCode returns the redirect target of the short code and enqueues a
// click of the visitor. The cache is consulted first; cache failures degrade to
// a store read. Expired and unknown codes record no click.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string, visitor entity.Visitor) (string, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	u := uc.lookupCache(ctx, shortCode)
	if u == nil {
		var err error

		u, err = uc.retrieve(ctx, shortCode)
		if err != nil {
			return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
		}

		uc.populateCache(ctx, u)
	}

	now := uc.now()

	if u.IsExpired(now) {
		return "", fmt.Errorf("%s: %w", op, entity.ErrURLExpired)
	}

	target := applyUTM(u.OriginalURL, u.UTMParams)

	uc.clickRecorder.Record(entity.NewClick(u.ID, visitor, now))

	return target, nil
}

func (uc *URLUseCase) GetAnalytics(ctx context.Context, shortCode string) (*entity.Analytics, error) {
	const op = "usecase.URLUseCase.GetAnalytics"

	u, err := uc.retrieve(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.storeTimeout)
	defer cancel()

	total, err := uc.clickRepo.CountByURLID(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to count clicks: %w", op, err)
	}

	recent, err := uc.clickRepo.ListRecentByURLID(ctx, u.ID, entity.RecentClicksLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list recent clicks: %w", op, err)
	}

	return &entity.Analytics{
		URL:          u,
		TotalClicks:  total,
		RecentClicks: recent,
	}, nil
}

func (uc *URLUseCase) GetPreview(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetPreview"

	u, err := uc.retrieve(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	return u, nil
}
