package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	mw "github.com/lorrc/field-metrics/internal/adapters/primary/http/middleware"
	"github.com/lorrc/field-metrics/internal/auth"
	"github.com/lorrc/field-metrics/internal/core/domain"
	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
	"github.com/lorrc/field-metrics/internal/core/mocks"
	"github.com/lorrc/field-metrics/internal/core/ports"
	"github.com/lorrc/field-metrics/internal/infrastructure/logging"
)

type reportTestEnv struct {
	router   *chi.Mux
	tokens   *auth.TokenManager
	reports  *mocks.MockReportService
	exporter *mocks.MockExportService
}

func newReportTestEnv(t *testing.T) *reportTestEnv {
	t.Helper()
	logger := logging.Nop()
	env := &reportTestEnv{
		tokens:   auth.NewTokenManager("test-secret", time.Hour),
		reports:  mocks.NewMockReportService(),
		exporter: mocks.NewMockExportService(),
	}
	handler := NewReportHandler(env.reports, env.exporter, ReportHandlerConfig{Location: time.UTC, Timeout: time.Minute},
		NewErrorHandler(logger), logger)

	env.router = chi.NewRouter()
	env.router.Use(mw.RequestID)
	env.router.Use(mw.JWTMiddleware(env.tokens))
	env.router.Route("/reports", handler.RegisterRoutes)

	t.Cleanup(func() {
		env.reports.AssertExpectations(t)
		env.exporter.AssertExpectations(t)
	})
	return env
}

func (env *reportTestEnv) do(t *testing.T, path, role string, zones ...string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := env.tokens.GenerateToken("u1", role, zones)
	require.NoError(t, err)

	req := httptest.NewRequest(stdhttp.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	env.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeError(t *testing.T, recorder *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	return resp
}

func TestReportHandler_ListViews(t *testing.T) {
	env := newReportTestEnv(t)
	env.reports.On("Views").Return([]domain.ReportView{domain.ViewTicketSummary, domain.ViewTargetReport})

	recorder := env.do(t, "/reports", auth.RoleAdmin)
	require.Equal(t, stdhttp.StatusOK, recorder.Code)

	var resp ListResponse[string]
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, []string{"ticket-summary", "target-report"}, resp.Data)
	assert.Equal(t, 2, resp.Count)
}

func TestReportHandler_GenerateScopesTechnicians(t *testing.T) {
	env := newReportTestEnv(t)
	env.reports.On("Generate", mock.Anything, mock.MatchedBy(func(req ports.ReportRequest) bool {
		return req.View == domain.ViewTicketSummary &&
			req.Scope.Restricted &&
			assert.ObjectsAreEqual([]string{"z1"}, req.Scope.ZoneIDs) &&
			assert.ObjectsAreEqual([]string{"z2"}, req.Filters.ZoneIDs) &&
			req.Page == 2 &&
			req.Window != nil &&
			req.Window.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	})).Return(&domain.Report{View: domain.ViewTicketSummary, Rows: []domain.Row{}}, nil)

	recorder := env.do(t, "/reports/ticket-summary?from=2024-03-01&to=2024-03-31&zoneId=z2&page=2", "technician", "z1")
	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))

	var resp struct {
		Data      map[string]any `json:"data"`
		RequestID string         `json:"request_id"`
	}
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "ticket-summary", resp.Data["view"])
	assert.Equal(t, recorder.Header().Get("X-Request-ID"), resp.RequestID)
	assert.NotEmpty(t, resp.RequestID)
}

func TestReportHandler_ManagersAreUnrestrictedAndAliasesResolve(t *testing.T) {
	env := newReportTestEnv(t)
	env.reports.On("Generate", mock.Anything, mock.MatchedBy(func(req ports.ReportRequest) bool {
		return req.View == domain.ViewBusinessHoursSla && !req.Scope.Restricted && req.Window == nil
	})).Return(&domain.Report{View: domain.ViewBusinessHoursSla}, nil)

	recorder := env.do(t, "/reports/her-analysis", auth.RoleManager)
	assert.Equal(t, stdhttp.StatusOK, recorder.Code)
}

func TestReportHandler_Errors(t *testing.T) {
	t.Run("unknown view", func(t *testing.T) {
		env := newReportTestEnv(t)
		recorder := env.do(t, "/reports/revenue-forecast", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_VIEW", decodeError(t, recorder).Code)
		env.reports.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("bad query", func(t *testing.T) {
		env := newReportTestEnv(t)
		recorder := env.do(t, "/reports/sla-performance?from=2024-03-31&to=2024-03-01&limit=x", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		resp := decodeError(t, recorder)
		assert.Equal(t, "INVALID_FILTER", resp.Code)
		fields, ok := resp.Details["fields"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, fields, "window")
		assert.Contains(t, fields, "limit")
	})

	t.Run("unknown status from the service", func(t *testing.T) {
		env := newReportTestEnv(t)
		verrs := apperrors.NewValidationErrors()
		verrs.Add("status", "unknown status NEW")
		env.reports.On("Generate", mock.Anything, mock.Anything).Return(nil, verrs)

		recorder := env.do(t, "/reports/ticket-summary?status=new", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_FILTER", decodeError(t, recorder).Code)
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newReportTestEnv(t)
		env.reports.On("Generate", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewUpstreamFetchError(errors.New("connection refused")))

		recorder := env.do(t, "/reports/zone-performance", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadGateway, recorder.Code)
		resp := decodeError(t, recorder)
		assert.Equal(t, "UPSTREAM_FETCH_FAILED", resp.Code)
		assert.NotContains(t, resp.Error, "connection refused")
	})

	t.Run("missing token", func(t *testing.T) {
		env := newReportTestEnv(t)
		req := httptest.NewRequest(stdhttp.MethodGet, "/reports", nil)
		recorder := httptest.NewRecorder()
		env.router.ServeHTTP(recorder, req)
		assert.Equal(t, stdhttp.StatusUnauthorized, recorder.Code)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, recorder).Code)
	})
}

func TestReportHandler_Export(t *testing.T) {
	env := newReportTestEnv(t)
	env.exporter.Payload = []byte("Zone,Tickets\nNorth,4\n")
	env.exporter.On("Export", mock.Anything, mock.MatchedBy(func(req ports.ReportRequest) bool {
		return req.View == domain.ViewZonePerformance && req.Page == 0
	}), domain.FormatCSV, mock.Anything).Return(nil)

	recorder := env.do(t, "/reports/zone-performance/export?format=csv", auth.RoleAdmin)
	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	assert.Equal(t, "text/csv; charset=utf-8", recorder.Header().Get("Content-Type"))

	disposition := recorder.Header().Get("Content-Disposition")
	assert.True(t, strings.HasPrefix(disposition, "attachment; filename=zone-performance-"), disposition)
	assert.True(t, strings.HasSuffix(disposition, ".csv"), disposition)
	assert.Equal(t, "Zone,Tickets\nNorth,4\n", recorder.Body.String())
}

func TestReportHandler_ExportDefaultsToTable(t *testing.T) {
	env := newReportTestEnv(t)
	env.exporter.Payload = []byte("Target Report\n")
	env.exporter.On("Export", mock.Anything, mock.Anything, domain.FormatTable, mock.Anything).Return(nil)

	recorder := env.do(t, "/reports/target-report/export", auth.RoleAdmin)
	require.Equal(t, stdhttp.StatusOK, recorder.Code)
	assert.Equal(t, "text/plain; charset=utf-8", recorder.Header().Get("Content-Type"))
}

func TestReportHandler_ExportErrors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		env := newReportTestEnv(t)
		recorder := env.do(t, "/reports/zone-performance/export?format=pdf", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadRequest, recorder.Code)
		assert.Equal(t, "INVALID_FILTER", decodeError(t, recorder).Code)
	})

	t.Run("failed export carries no attachment", func(t *testing.T) {
		env := newReportTestEnv(t)
		env.exporter.On("Export", mock.Anything, mock.Anything, domain.FormatSpreadsheet, mock.Anything).
			Return(apperrors.NewUpstreamFetchError(errors.New("timeout")))

		recorder := env.do(t, "/reports/offer-summary/export?format=xlsx", auth.RoleAdmin)
		require.Equal(t, stdhttp.StatusBadGateway, recorder.Code)
		assert.Empty(t, recorder.Header().Get("Content-Disposition"))
		assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
		assert.Equal(t, "UPSTREAM_FETCH_FAILED", decodeError(t, recorder).Code)
	})
}
