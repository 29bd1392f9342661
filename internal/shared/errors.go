package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenNotFound    = fmt.Errorf("no cached token")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrIndexOutOfRange = fmt.Errorf("%w: index out of range", ErrInvalidInput)
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Registry errors
	ErrNoDeviceForRoom = fmt.Errorf("no device for room")
	ErrDeviceNotFound  = fmt.Errorf("device not found")
)

// IsRemote reports whether err came from the Spotify Web API or its auth layer.
func IsRemote(err error) bool {
	return errors.Is(err, ErrAPIRequest) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrNotFound)
}
