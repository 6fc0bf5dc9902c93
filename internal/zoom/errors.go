package zoom

import (
	"errors"
	"fmt"
)

// ErrInvalidToken indicates the bearer token was rejected or the account credentials are invalid
var ErrInvalidToken = errors.New("invalid or expired webinar platform credentials")

// ErrMissingConnection indicates the organization has not connected a platform account
var ErrMissingConnection = errors.New("webinar platform account is not connected")

// ErrRateLimited indicates the API rate limit was exceeded
var ErrRateLimited = errors.New("webinar platform API rate limit exceeded")

// ErrNotFound indicates the requested resource does not exist upstream
var ErrNotFound = errors.New("webinar platform resource not found")

// ServerError represents a 5xx error from the webinar platform API
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("webinar platform server error: HTTP %d", e.StatusCode)
}

// StatusError represents any other non-success response
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

func isRetryableError(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}
