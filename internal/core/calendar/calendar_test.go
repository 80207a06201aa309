package calendar_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/lorrc/field-metrics/internal/core/calendar"
	"github.com/lorrc/field-metrics/internal/core/domain"
	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(domain.DefaultWorkCalendar())
	require.NoError(t, err)
	return cal
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultWorkCalendar()
	cfg.WorkingWeekdays = nil

	cal, err := calendar.New(cfg)
	assert.Nil(t, cal)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	cfg = domain.DefaultWorkCalendar()
	cfg.EndHour = cfg.StartHour
	_, err = calendar.New(cfg)
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
}

func TestElapsedMinutes(t *testing.T) {
	cal := defaultCalendar(t)

	// 2025-03-08 is a Saturday.
	tests := []struct {
		name       string
		start, end time.Time
		want       float64
	}{
		{"saturday afternoon to monday morning", at(2025, 3, 8, 16, 0), at(2025, 3, 10, 10, 0), 150},
		{"same day inside window", at(2025, 3, 10, 10, 0), at(2025, 3, 10, 11, 15), 75},
		{"same day clamped both ends", at(2025, 3, 10, 6, 0), at(2025, 3, 10, 20, 0), 510},
		{"same day after closing", at(2025, 3, 10, 18, 0), at(2025, 3, 10, 22, 0), 0},
		{"sunday only", at(2025, 3, 9, 8, 0), at(2025, 3, 9, 18, 0), 0},
		{"full week", at(2025, 3, 10, 0, 0), at(2025, 3, 17, 0, 0), 6 * 510},
		{"reversed", at(2025, 3, 10, 11, 0), at(2025, 3, 10, 10, 0), 0},
		{"equal", at(2025, 3, 10, 11, 0), at(2025, 3, 10, 11, 0), 0},
		{"fractional minutes", at(2025, 3, 10, 10, 0), at(2025, 3, 10, 10, 0).Add(90 * time.Second), 1.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.ElapsedMinutes(tt.start, tt.end)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestElapsedWholeMinutes_RoundsAtTheEnd(t *testing.T) {
	cal := defaultCalendar(t)

	// Two 40 second slivers plus one full day; rounding per day would give 512.
	start := at(2025, 3, 10, 17, 29).Add(20 * time.Second)
	end := at(2025, 3, 12, 9, 0).Add(40 * time.Second)

	raw, err := cal.ElapsedMinutes(start, end)
	require.NoError(t, err)
	assert.InDelta(t, 40.0/60+510+40.0/60, raw, 1e-9)

	whole, err := cal.ElapsedWholeMinutes(start, end)
	require.NoError(t, err)
	assert.Equal(t, 511, whole)
}

func TestElapsedMinutes_NonNegative(t *testing.T) {
	cal := defaultCalendar(t)
	rng := rand.New(rand.NewSource(42))
	base := at(2024, 1, 1, 0, 0)

	for i := 0; i < 500; i++ {
		a := base.Add(time.Duration(rng.Int63n(int64(400 * 24 * time.Hour))))
		b := base.Add(time.Duration(rng.Int63n(int64(400 * 24 * time.Hour))))

		got, err := cal.ElapsedMinutes(a, b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
		if !a.Before(b) {
			assert.Zero(t, got)
		}
	}
}

func TestProjectDeadline(t *testing.T) {
	cal := defaultCalendar(t)

	tests := []struct {
		name  string
		start time.Time
		hours float64
		want  time.Time
	}{
		{"fits in the same day", at(2025, 3, 10, 9, 0), 4, at(2025, 3, 10, 13, 0)},
		{"rolls to next day", at(2025, 3, 10, 16, 0), 4, at(2025, 3, 11, 11, 30)},
		{"before opening", at(2025, 3, 10, 6, 0), 1, at(2025, 3, 10, 10, 0)},
		{"after closing", at(2025, 3, 10, 19, 0), 1, at(2025, 3, 11, 10, 0)},
		{"starts on sunday", at(2025, 3, 9, 12, 0), 2, at(2025, 3, 10, 11, 0)},
		{"skips sunday", at(2025, 3, 8, 16, 30), 2, at(2025, 3, 10, 10, 0)},
		{"exactly one working day", at(2025, 3, 10, 9, 0), 8.5, at(2025, 3, 10, 17, 30)},
		{"zero hours outside window", at(2025, 3, 9, 12, 0), 0, at(2025, 3, 10, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cal.ProjectDeadline(tt.start, tt.hours)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestProjectDeadline_Errors(t *testing.T) {
	cal := defaultCalendar(t)

	_, err := cal.ProjectDeadline(at(2025, 3, 10, 9, 0), -1)
	assert.ErrorIs(t, err, calendar.ErrNegativeHours)

	_, err = cal.ProjectDeadline(at(2025, 3, 10, 9, 0), 1e7)
	assert.ErrorIs(t, err, calendar.ErrDayWalkExceeded)

	_, err = cal.ElapsedMinutes(at(2000, 1, 1, 0, 0), at(2015, 1, 1, 0, 0))
	assert.ErrorIs(t, err, calendar.ErrDayWalkExceeded)
}

func TestRoundTrip(t *testing.T) {
	calendars := map[string]domain.WorkCalendarConfig{
		"default": domain.DefaultWorkCalendar(),
		"office": {
			StartHour: 8, EndHour: 16,
			WorkingWeekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		},
		"wednesdays around the clock": {
			StartHour: 0, EndHour: 24,
			WorkingWeekdays: []time.Weekday{time.Wednesday},
		},
		"short shift": {
			StartHour: 22, EndHour: 23, EndMinute: 45,
			WorkingWeekdays: []time.Weekday{time.Sunday, time.Thursday},
		},
	}

	rng := rand.New(rand.NewSource(7))
	base := at(2025, 1, 1, 0, 0)

	for name, cfg := range calendars {
		t.Run(name, func(t *testing.T) {
			cal, err := calendar.New(cfg)
			require.NoError(t, err)

			for i := 0; i < 300; i++ {
				start := base.Add(time.Duration(rng.Int63n(int64(365 * 24 * time.Hour))))
				hours := math.Round(rng.Float64()*120*100)/100 + 0.01

				deadline, err := cal.ProjectDeadline(start, hours)
				require.NoError(t, err)
				require.False(t, deadline.Before(start))

				elapsed, err := cal.ElapsedMinutes(start, deadline)
				require.NoError(t, err)
				assert.InDelta(t, hours*60, elapsed, 1e-6, "start %s hours %.2f", start, hours)
			}
		})
	}
}

func TestCalendar_LocalTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	cfg := domain.DefaultWorkCalendar()
	cfg.Location = loc
	cal, err := calendar.New(cfg)
	require.NoError(t, err)

	// 08:00 UTC on a winter Monday is 09:00 in Berlin.
	assert.True(t, cal.IsWorkingTime(at(2025, 1, 6, 8, 0)))
	assert.False(t, cal.IsWorkingTime(at(2025, 1, 6, 7, 59)))

	// Across the spring DST change (Sunday 2025-03-30) a Saturday-to-Monday span is unaffected.
	got, err := cal.ElapsedMinutes(
		time.Date(2025, 3, 29, 17, 0, 0, 0, loc),
		time.Date(2025, 3, 31, 9, 30, 0, 0, loc),
	)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, got, 1e-9)
}

func TestNextOpening(t *testing.T) {
	cal := defaultCalendar(t)

	inside := at(2025, 3, 10, 12, 0)
	assert.Equal(t, inside, cal.NextOpening(inside))
	assert.Equal(t, at(2025, 3, 10, 9, 0), cal.NextOpening(at(2025, 3, 10, 7, 0)))
	assert.Equal(t, at(2025, 3, 10, 9, 0), cal.NextOpening(at(2025, 3, 8, 17, 30)))
	assert.Equal(t, 510.0, cal.DailyMinutes())
}
