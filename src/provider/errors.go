package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrNotFound        = errors.New("not found")
	ErrArtifactExpired = errors.New("artifact expired")
	ErrRateLimited     = errors.New("rate limited")
)

// APIError is a non-success response from the provider.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider API error %d", e.StatusCode)
	}
	return fmt.Sprintf("provider API error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError classifies a non-success status code into the error taxonomy.
func NewAPIError(statusCode int, message string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrAuthFailed, message)
	case http.StatusNotFound:
		return &APIError{StatusCode: statusCode, Message: message, Err: ErrNotFound}
	case http.StatusGone:
		return &APIError{StatusCode: statusCode, Message: message, Err: ErrArtifactExpired}
	case http.StatusTooManyRequests:
		return &APIError{StatusCode: statusCode, Message: message, Err: ErrRateLimited}
	}
	return &APIError{StatusCode: statusCode, Message: message}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	if errors.Is(err, ErrAuthFailed) {
		return http.StatusUnauthorized
	}
	return 0
}

// IsMissing reports whether err means the resource is gone (404 or 410).
func IsMissing(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrArtifactExpired)
}

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts provider errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidRepository) {
		return &UserError{
			Message: "Invalid repository",
			Hint:    "Supported formats:\n  - owner/repo\n  - https://github.com/owner/repo",
			Err:     err,
		}
	}

	if errors.Is(err, ErrAuthFailed) {
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Re-enter your API token and check that it has access to the repository.\n  - GitHub: Set CISYNC_GITHUB_TOKEN\n  - Buildkite: Set CISYNC_BUILDKITE_TOKEN",
			Err:     err,
		}
	}

	if errors.Is(err, ErrRateLimited) {
		return &UserError{
			Message: "Provider rate limit exceeded",
			Hint:    "Wait for the rate limit window to reset, or raise sync.inter_page_delay.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrNotFound) {
		return &UserError{
			Message: "Repository not found",
			Hint:    "Check that the owner/repo is correct and you have access to the repository.",
			Err:     err,
		}
	}

	return err
}
