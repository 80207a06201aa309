package domain

import (
	"fmt"
	"sort"
	"time"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// WorkCalendarConfig describes the weekly working window used for SLA arithmetic.
type WorkCalendarConfig struct {
	StartHour       int
	EndHour         int
	EndMinute       int
	WorkingWeekdays []time.Weekday
	Location        *time.Location
}

// DefaultWorkCalendar returns 09:00-17:30, Monday to Saturday, in UTC.
func DefaultWorkCalendar() WorkCalendarConfig {
	return WorkCalendarConfig{
		StartHour: 9,
		EndHour:   17,
		EndMinute: 30,
		WorkingWeekdays: []time.Weekday{
			time.Monday, time.Tuesday, time.Wednesday,
			time.Thursday, time.Friday, time.Saturday,
		},
		Location: time.UTC,
	}
}

// Validate rejects configurations that would make calendar walks meaningless.
func (c WorkCalendarConfig) Validate() error {
	if len(c.WorkingWeekdays) == 0 {
		return apperrors.NewConfigurationError("workingWeekdays", "at least one working weekday is required")
	}
	for _, d := range c.WorkingWeekdays {
		if d < time.Sunday || d > time.Saturday {
			return apperrors.NewConfigurationError("workingWeekdays", fmt.Sprintf("weekday %d is outside 0..6", d))
		}
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		return apperrors.NewConfigurationError("startHour", "must be between 0 and 23")
	}
	if c.EndMinute < 0 || c.EndMinute > 59 {
		return apperrors.NewConfigurationError("endMinute", "must be between 0 and 59")
	}
	if c.EndHour <= c.StartHour {
		return apperrors.NewConfigurationError("endHour", "must be after startHour")
	}
	if c.EndHour > 24 || (c.EndHour == 24 && c.EndMinute > 0) {
		return apperrors.NewConfigurationError("endHour", "closing time cannot be later than 24:00")
	}
	return nil
}

// Loc returns the configured location, defaulting to UTC.
func (c WorkCalendarConfig) Loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// IsWorkingDay reports whether the weekday is part of the working week.
func (c WorkCalendarConfig) IsWorkingDay(d time.Weekday) bool {
	for _, w := range c.WorkingWeekdays {
		if w == d {
			return true
		}
	}
	return false
}

// DailyMinutes is the length of one full working day in minutes.
func (c WorkCalendarConfig) DailyMinutes() float64 {
	return float64((c.EndHour-c.StartHour)*60 + c.EndMinute)
}

// String renders the calendar for logs, e.g. "09:00-17:30 Mon,Tue (UTC)".
func (c WorkCalendarConfig) String() string {
	days := make([]time.Weekday, len(c.WorkingWeekdays))
	copy(days, c.WorkingWeekdays)
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	names := ""
	for i, d := range days {
		if i > 0 {
			names += ","
		}
		names += d.String()[:3]
	}
	return fmt.Sprintf("%02d:00-%02d:%02d %s (%s)", c.StartHour, c.EndHour, c.EndMinute, names, c.Loc())
}
