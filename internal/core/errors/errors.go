package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent report request and configuration problems
var (
	// Authentication & Authorization
	ErrForbidden    = errors.New("action forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Report validation
	ErrInvalidView       = errors.New("invalid report view")
	ErrInvalidFilter     = errors.New("invalid report filter")
	ErrInvalidWindow     = errors.New("invalid time window")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
	ErrInvalidFormat     = errors.New("invalid export format")

	// Calendar & configuration
	ErrConfiguration = errors.New("invalid configuration")

	// Record store
	ErrUpstreamFetch = errors.New("upstream fetch failed")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidViewError reports a report view name that is not recognised.
func NewInvalidViewError(view string) *AppError {
	return &AppError{
		Err:        ErrInvalidView,
		Message:    fmt.Sprintf("unknown report view %q", view),
		Code:       "INVALID_VIEW",
		StatusCode: 400,
		Details:    map[string]interface{}{"view": view},
	}
}

// NewInvalidFilterError reports a bad filter, window or pagination value.
func NewInvalidFilterError(err error, message string, details map[string]interface{}) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INVALID_FILTER",
		StatusCode: 400,
		Details:    details,
	}
}

// NewUpstreamFetchError reports a failed primary read against the record store.
func NewUpstreamFetchError(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "Failed to read records for the report",
		Code:       "UPSTREAM_FETCH_FAILED",
		StatusCode: 502,
	}
}

// ConfigurationError describes a rejected configuration value.
type ConfigurationError struct {
	Field  string
	Reason string
}

func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// UpstreamFetchError wraps a failed call to the record store.
type UpstreamFetchError struct {
	Op  string
	Err error
}

func NewUpstreamError(op string, err error) *UpstreamFetchError {
	return &UpstreamFetchError{Op: op, Err: err}
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Is lets errors.Is match both ErrUpstreamFetch and the wrapped cause.
func (e *UpstreamFetchError) Is(target error) bool {
	return target == ErrUpstreamFetch
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}

// Unwrap classifies field validation failures as filter errors.
func (v *ValidationErrors) Unwrap() error {
	return ErrInvalidFilter
}
