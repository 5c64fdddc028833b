// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL together with
// its preview metadata and UTM parameters, the Click struct describing a single
// redirect, and the sentinel errors shared by every layer.
package entity

import (
	"errors"
	"time"
)

var (
	// ErrInvalidURL is returned when the original URL is not a well-formed absolute URL.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidShortCode is returned when a custom short code has a wrong length or alphabet.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found.
	ErrURLNotFound = errors.New("url not found")
	// ErrURLExpired is returned when a URL exists but its expiration time has passed.
	ErrURLExpired = errors.New("url expired")
)

// MaxShortCodeLength is the maximum length of a short code, custom or generated.
const MaxShortCodeLength = 8

// reservedShortCodes are first path segments served by routes other than the redirect.
var reservedShortCodes = map[string]struct{}{
	"api":     {},
	"docs":    {},
	"swagger": {},
}

// IsReservedShortCode reports whether the code collides with a route of the service.
func IsReservedShortCode(code string) bool {
	_, ok := reservedShortCodes[code]
	return ok
}

// URL represents a shortened URL.
type URL struct {
	ID          int64      `json:"id"`           // ID is the unique identifier of the URL in the database.
	ShortCode   string     `json:"short_code"`   // ShortCode is the code used to shorten the original URL.
	OriginalURL string     `json:"original_url"` // OriginalURL is the full URL that the short code resolves to.
	ExpiresAt   *time.Time `json:"expires_at"`   // ExpiresAt is the optional moment after which the URL no longer resolves.
	Preview     *Preview   `json:"preview"`      // Preview is the optional link preview metadata.
	UTMParams   []UTMParam `json:"utm_parameters"`
	CreatedAt   time.Time  `json:"created_at"` // CreatedAt is the timestamp when the URL was created.
	UpdatedAt   time.Time  `json:"updated_at"` // UpdatedAt is the timestamp when the URL was last updated.
}

// IsExpired reports whether the URL has an expiration time strictly before now.
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt != nil && u.ExpiresAt.Before(now)
}

// Preview holds the metadata shown when a short link is shared.
type Preview struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl,omitempty"`
}

// UTMParam is a single query parameter appended to the original URL on redirect.
type UTMParam struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// ShortenParams describes a request to shorten a URL.
type ShortenParams struct {
	OriginalURL string
	CustomCode  string
	ExpiresAt   *time.Time
	Preview     *Preview
	UTMParams   []UTMParam
}
