package common

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Text codes attached to external failures.
const (
	TextCodeRateLimited     = "RATE_LIMITED"
	TextCodeUpstreamFailure = "UPSTREAM_FAILURE"
	TextCodeUnauthorized    = "UNAUTHORIZED"
	TextCodeNotFound        = "NOT_FOUND"
	TextCodeBadRequest      = "BAD_REQUEST"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CategoryForStatus maps an HTTP status from a collaborator onto an error category.
func CategoryForStatus(status int) goerrors.Category {
	switch {
	case status == http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status == http.StatusForbidden:
		return goerrors.CategoryAuthz
	case status == http.StatusNotFound:
		return goerrors.CategoryNotFound
	case status >= 500:
		return goerrors.CategoryExternal
	default:
		return goerrors.CategoryBadInput
	}
}

func textCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryRateLimit:
		return TextCodeRateLimited
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return TextCodeUnauthorized
	case goerrors.CategoryNotFound:
		return TextCodeNotFound
	case goerrors.CategoryExternal:
		return TextCodeUpstreamFailure
	default:
		return TextCodeBadRequest
	}
}

// ExternalError builds the error returned when a collaborator answers with a
// non-2xx status. The status is kept as the error code so retry policies can
// classify it.
func ExternalError(service string, status int, body []byte) error {
	category := CategoryForStatus(status)
	err := goerrors.New(fmt.Sprintf("%s returned status %d", service, status), category).
		WithCode(status).
		WithTextCode(textCodeForCategory(category))
	metadata := map[string]any{"service": service}
	if len(body) > 0 {
		metadata["body"] = truncate(string(body), 512)
	}
	err.WithMetadata(metadata)
	return err
}

// StatusCode returns the HTTP status carried by an external error, or 0.
func StatusCode(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Code
	}
	return 0
}

// IsNotFound reports whether err is a sentinel or external not-found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Category == goerrors.CategoryNotFound
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
