package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamFetchError_MatchesSentinelAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("ticket-summary: %w", NewUpstreamError("find tickets", cause))

	assert.ErrorIs(t, err, ErrUpstreamFetch)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ticket-summary: find tickets: connection refused", err.Error())
}

func TestValidationErrors_ClassifiesAsFilterError(t *testing.T) {
	v := NewValidationErrors()
	assert.False(t, v.HasErrors())

	v.Add("limit", "Must be at least 0")
	v.Add("limit", "Must be an integer")

	assert.True(t, v.HasErrors())
	assert.Len(t, v.Errors["limit"], 2)
	assert.ErrorIs(t, v, ErrInvalidFilter)
	assert.Equal(t, "validation failed: 1 field(s) have errors", v.Error())
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("WORK_END_HOUR", "must be after WORK_START_HOUR")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Contains(t, err.Error(), "WORK_END_HOUR")
}

func TestAppError_MessageFallsBackToCause(t *testing.T) {
	withMessage := NewUpstreamFetchError(errors.New("secret dsn detail"))
	assert.Equal(t, "Failed to read records for the report", withMessage.Error())
	assert.Equal(t, 502, withMessage.StatusCode)

	bare := &AppError{Err: ErrInvalidWindow}
	assert.Equal(t, ErrInvalidWindow.Error(), bare.Error())
	assert.ErrorIs(t, bare, ErrInvalidWindow)

	view := NewInvalidViewError("nope")
	assert.ErrorIs(t, view, ErrInvalidView)
	assert.Equal(t, "nope", view.Details["view"])
}
