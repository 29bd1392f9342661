// package services defines the Spotify Web API client
package services

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/spotskill/internal/shared"
)

// APIError describes a non-2xx response from the Spotify Web API.
type APIError struct {
	Method   string
	Endpoint string
	Status   int
	Message  string
	// RetryAfter is set for 429 responses that carry a Retry-After header.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("spotify API error: %s %s: status %d", e.Method, e.Endpoint, e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// Unwrap maps the status onto the shared sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return shared.ErrAuthFailed
	case http.StatusNotFound:
		return shared.ErrNotFound
	case http.StatusTooManyRequests:
		return shared.ErrRateLimited
	default:
		return shared.ErrAPIRequest
	}
}

func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
