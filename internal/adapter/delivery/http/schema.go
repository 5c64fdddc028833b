package http

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// shortenRequest represents the structure for a request to shorten a URL.
type shortenRequest struct {
	OriginalURL string            `json:"originalUrl" validate:"required,url"`
	CustomCode  string            `json:"customCode" validate:"omitempty,max=8,shortcode"`
	ExpiresAt   *time.Time        `json:"expiresAt"`
	Preview     *previewRequest   `json:"preview"`
	UTMParams   []utmParamRequest `json:"utmParams" validate:"omitempty,dive"`
}

type previewRequest struct {
	Title       string `json:"title" validate:"max=255"`
	Description string `json:"description" validate:"max=1024"`
	ImageURL    string `json:"imageUrl" validate:"omitempty,url"`
}

type utmParamRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

func (req *shortenRequest) toParams() entity.ShortenParams {
	params := entity.ShortenParams{
		OriginalURL: req.OriginalURL,
		CustomCode:  req.CustomCode,
		ExpiresAt:   req.ExpiresAt,
	}

	if req.Preview != nil {
		params.Preview = &entity.Preview{
			Title:       req.Preview.Title,
			Description: req.Preview.Description,
			ImageURL:    req.Preview.ImageURL,
		}
	}

	if len(req.UTMParams) > 0 {
		params.UTMParams = make([]entity.UTMParam, 0, len(req.UTMParams))
		for _, p := range req.UTMParams {
			params.UTMParams = append(params.UTMParams, entity.UTMParam{Key: p.Key, Value: p.Value})
		}
	}

	return params
}

// shortenResponse represents the structure for a response containing the shortened URL.
type shortenResponse struct {
	ShortURL  string     `json:"shortUrl"`
	ShortCode string     `json:"shortCode"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func toShortenResponse(baseURL string, url *entity.URL) shortenResponse {
	return shortenResponse{
		ShortURL:  strings.TrimRight(baseURL, "/") + "/" + url.ShortCode,
		ShortCode: url.ShortCode,
		ExpiresAt: url.ExpiresAt,
	}
}

// clickResponse mirrors a row of the clicks table.
type clickResponse struct {
	ID        int64     `json:"id"`
	URLID     int64     `json:"url_id"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	Referrer  *string   `json:"referrer"`
	ClickedAt time.Time `json:"clicked_at"`
}

// analyticsResponse represents the structure for a response containing click analytics of a URL.
type analyticsResponse struct {
	ShortCode    string          `json:"shortCode"`
	OriginalURL  string          `json:"originalUrl"`
	ExpiresAt    *time.Time      `json:"expiresAt,omitempty"`
	TotalClicks  int64           `json:"totalClicks"`
	RecentClicks []clickResponse `json:"recentClicks"`
}

func toAnalyticsResponse(a *entity.Analytics) analyticsResponse {
	clicks := make([]clickResponse, 0, len(a.RecentClicks))
	for _, c := range a.RecentClicks {
		clicks = append(clicks, clickResponse{
			ID:        c.ID,
			URLID:     c.URLID,
			IPAddress: c.IPAddress,
			UserAgent: c.UserAgent,
			Referrer:  c.Referrer,
			ClickedAt: c.ClickedAt,
		})
	}

	return analyticsResponse{
		ShortCode:    a.URL.ShortCode,
		OriginalURL:  a.URL.OriginalURL,
		ExpiresAt:    a.URL.ExpiresAt,
		TotalClicks:  a.TotalClicks,
		RecentClicks: clicks,
	}
}

// previewResponse represents the structure for a response containing link preview metadata.
type previewResponse struct {
	ShortCode   string          `json:"shortCode"`
	OriginalURL string          `json:"originalUrl"`
	Preview     *entity.Preview `json:"preview"`
}

func toPreviewResponse(url *entity.URL) previewResponse {
	return previewResponse{
		ShortCode:   url.ShortCode,
		OriginalURL: url.OriginalURL,
		Preview:     url.Preview,
	}
}

// validationError represents an individual validation error.
type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse represents a structured error response.
type errorResponse struct {
	Error  string            `json:"error"`
	Errors []validationError `json:"errors,omitempty"`
}

// Predefined error responses for common scenarios.
var (
	emptyRequestBodyResponse   = errorResponse{Error: "empty request body"}
	invalidRequestBodyResponse = errorResponse{Error: "invalid request body"}
	invalidURLResponse         = errorResponse{Error: "invalid url"}
	invalidShortCodeResponse   = errorResponse{Error: "invalid short code"}
	shortCodeExistsResponse    = errorResponse{Error: "This custom short code is already taken. Please try a different one."}
	urlNotFoundResponse        = errorResponse{Error: "url not found"}
	urlExpiredResponse         = errorResponse{Error: "url expired"}
	serverErrorResponse        = errorResponse{Error: "server error occurred"}
)

// messageForTag returns a user-friendly message based on the validation tag.
func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "url":
		return "invalid url"
	case "max":
		return "value is too long"
	case "shortcode":
		return "only letters, digits, '_' and '-' are allowed and the code must not be reserved"
	default:
		return "invalid value"
	}
}

// getValidationErrors processes validation errors and returns a list of validationError.
func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

// validationErrorResponse constructs an errorResponse for validation errors.
func validationErrorResponse(err error) errorResponse {
	return errorResponse{
		Error:  "validation error",
		Errors: getValidationErrors(err),
	}
}
