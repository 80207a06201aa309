package http

import (
	"context"
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/field-metrics/internal/adapters/secondary/memory"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, checker HealthChecker, path string) (*httptest.ResponseRecorder, DetailedHealthResponse) {
	t.Helper()
	r := chi.NewRouter()
	NewHealthHandler(checker, "1.2.3").RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(stdhttp.MethodGet, path, nil))

	var resp DetailedHealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestHealthHandler_Ready(t *testing.T) {
	rec, resp := serveHealth(t, memory.NewRecordStore(), "/health/ready")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, "healthy", resp.Checks["record_store"].Status)
}

func TestHealthHandler_StoreDown(t *testing.T) {
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	rec, resp := serveHealth(t, down, "/health/ready")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["record_store"].Message)

	rec, resp = serveHealth(t, down, "/health")
	assert.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Positive(t, resp.Runtime.Goroutines)
}

func TestHealthHandler_LivenessIgnoresStore(t *testing.T) {
	rec, resp := serveHealth(t, nil, "/health/live")
	assert.Equal(t, stdhttp.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Empty(t, resp.Checks)
}
