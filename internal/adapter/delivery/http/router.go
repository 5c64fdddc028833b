// Package http provides the HTTP delivery layer for the URL shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/docs"
	"github.com/vadimbarashkov/shortlink/pkg/middleware/ratelimit"
	"github.com/vadimbarashkov/shortlink/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Config holds the settings of the HTTP layer that do not come from the use case.
type Config struct {
	BaseURL        string   // BaseURL prefixes short codes in shortUrl responses.
	AllowedOrigins []string // AllowedOrigins is the CORS allow list of the API.
	RateLimitRPS   float64  // RateLimitRPS limits URL creation; zero disables the limit.
	RateLimitBurst int
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
func NewRouter(logger *httplog.Logger, urlUseCase urlUseCase, cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(docs.Swagger)
	})

	validate := validator.New()
	h := newURLHandler(urlUseCase, validate, cfg.BaseURL)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Accept"},
			AllowCredentials: false,
			MaxAge:           84600,
		}))

		r.Get("/ping", handlePing)

		r.With(ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst)).
			Post("/shorten", h.shortenURL)

		r.Get("/analytics/{shortCode}", h.getAnalytics)
		r.Get("/preview/{shortCode}", h.getPreview)
	})

	r.Get("/{shortCode}", h.redirect)

	return r
}
