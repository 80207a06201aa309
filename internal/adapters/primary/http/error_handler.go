package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// ErrorResponse is the standard JSON error response format. Code is the
// machine-readable error kind.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// errorMapping turns a sentinel into a status and code. An empty message
// means the error's own text is safe to show.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "You do not have permission to perform this action"},
	{apperrors.ErrInvalidView, http.StatusBadRequest, "INVALID_VIEW", ""},
	{apperrors.ErrInvalidFilter, http.StatusBadRequest, "INVALID_FILTER", ""},
	{apperrors.ErrInvalidWindow, http.StatusBadRequest, "INVALID_FILTER", ""},
	{apperrors.ErrInvalidPagination, http.StatusBadRequest, "INVALID_FILTER", ""},
	{apperrors.ErrInvalidFormat, http.StatusBadRequest, "INVALID_FILTER", ""},
	{apperrors.ErrUpstreamFetch, http.StatusBadGateway, "UPSTREAM_FETCH_FAILED", "Failed to read records for the report"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "REPORT_TIMEOUT", "The report took too long to assemble"},
	{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Resource not found"},
	{apperrors.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Please try again later."},
}

// ErrorHandler writes errors as JSON and logs them by severity.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler with the given logger
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle processes an error and writes the appropriate HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := h.classify(err)
	h.logError(r, status, err)
	WriteJSON(w, status, resp)
}

// classify prefers an AppError's own response, then field errors, then the
// sentinel table. Anything else is an opaque 500.
func (h *ErrorHandler) classify(err error) (int, ErrorResponse) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode, ErrorResponse{
			Error:   appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		}
	}

	var fieldErrs *apperrors.ValidationErrors
	if errors.As(err, &fieldErrs) {
		return http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid report request",
			Code:    "INVALID_FILTER",
			Details: map[string]interface{}{"fields": fieldErrs.Errors},
		}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, ErrorResponse{Error: msg, Code: m.code}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{
		Error: "An unexpected error occurred",
		Code:  "INTERNAL_ERROR",
	}
}

// logError logs server faults as errors and client faults as warnings.
// request_id and user_id come from the context.
func (h *ErrorHandler) logError(r *http.Request, status int, err error) {
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status_code", status,
		"error", err.Error(),
	)
}

// HandleError Helper function to handle errors inline in handlers
// Usage: if HandleError(w, r, err, h.errorHandler) { return }
func HandleError(w http.ResponseWriter, r *http.Request, err error, handler *ErrorHandler) bool {
	if err != nil {
		handler.Handle(w, r, err)
		return true
	}
	return false
}
