package validation

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

func TestParseReportQuery_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/v1/reports/ticket-summary", nil)

	req, err := ParseReportQuery(r, time.UTC)
	require.NoError(t, err)
	assert.Nil(t, req.Window)
	assert.Zero(t, req.Page)
	assert.Zero(t, req.Limit)
	assert.Empty(t, req.Filters.ZoneIDs)
	assert.False(t, req.Filters.IncludeTrend)
}

func TestParseReportQuery_DateOnlyWindowSnapsToLocalDays(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	r := httptest.NewRequest("GET", "/r?from=2024-03-01&to=2024-03-31", nil)
	req, err := ParseReportQuery(r, berlin)
	require.NoError(t, err)
	require.NotNil(t, req.Window)

	assert.Equal(t, time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC), req.Window.Start)
	assert.Equal(t, time.Date(2024, 3, 31, 21, 59, 59, 999000000, time.UTC), req.Window.End)
}

func TestParseReportQuery_RFC3339Window(t *testing.T) {
	r := httptest.NewRequest("GET", "/r?from=2024-03-01T15:00:00Z&to=2024-03-02T08:00:00Z", nil)
	req, err := ParseReportQuery(r, time.UTC)
	require.NoError(t, err)
	require.NotNil(t, req.Window)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), req.Window.Start)
	assert.Equal(t, time.Date(2024, 3, 2, 23, 59, 59, 999000000, time.UTC), req.Window.End)
}

func TestParseReportQuery_FiltersAndPaging(t *testing.T) {
	r := httptest.NewRequest("GET",
		"/r?zoneId=z1,z2&zoneId=z2&zoneId=z3&status=open,in_progress&priority=high&stage=won&customerId=c1&trend=true&page=3&limit=25", nil)

	req, err := ParseReportQuery(r, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []string{"z1", "z2", "z3"}, req.Filters.ZoneIDs)
	assert.Equal(t, []string{"OPEN", "IN_PROGRESS"}, req.Filters.Statuses)
	assert.Equal(t, []string{"HIGH"}, req.Filters.Priorities)
	assert.Equal(t, []string{"WON"}, req.Filters.Stages)
	assert.Equal(t, []string{"c1"}, req.Filters.CustomerIDs)
	assert.True(t, req.Filters.IncludeTrend)
	assert.Equal(t, 3, req.Page)
	assert.Equal(t, 25, req.Limit)
}

func TestParseReportQuery_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
	}{
		{"only from", "from=2024-03-01", "window"},
		{"bad from", "from=yesterday&to=2024-03-31", "from"},
		{"reversed", "from=2024-03-31&to=2024-03-01", "window"},
		{"negative page", "page=-1", "page"},
		{"non numeric limit", "limit=ten", "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/r?"+tt.query, nil)
			_, err := ParseReportQuery(r, time.UTC)
			require.Error(t, err)

			var verrs *apperrors.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, verrs.Errors, tt.field)
			assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
		})
	}
}

func TestValidator_ListDropsBlanks(t *testing.T) {
	r := httptest.NewRequest("GET", "/r?assetId=,a1,,a2%20,", nil)
	v := NewValidator(r.URL.Query())
	assert.Equal(t, []string{"a1", "a2"}, v.List("assetId"))
	assert.Nil(t, v.List("missing"))
	assert.NoError(t, v.Err())
}

func TestValidator_BoolRejectsGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/r?trend=maybe", nil)
	_, err := ParseReportQuery(r, time.UTC)

	var verrs *apperrors.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"Must be true or false"}, verrs.Errors["trend"])
}
