package domain

import (
	"time"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// TimeWindow is an inclusive [Start, End] interval.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate enforces Start <= End and non-zero bounds.
func (w TimeWindow) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return apperrors.NewInvalidFilterError(apperrors.ErrInvalidWindow, "Time window requires both start and end", nil)
	}
	if w.Start.After(w.End) {
		return apperrors.NewInvalidFilterError(apperrors.ErrInvalidWindow, "Time window start must not be after end", map[string]interface{}{
			"start": w.Start.Format(time.RFC3339),
			"end":   w.End.Format(time.RFC3339),
		})
	}
	return nil
}

// Contains reports whether t falls inside the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// UTC converts both bounds to the storage timezone.
func (w TimeWindow) UTC() TimeWindow {
	return TimeWindow{Start: w.Start.UTC(), End: w.End.UTC()}
}

// Days splits the window into per-calendar-day sub-windows in loc.
// The first and last day are clipped to the window bounds.
func (w TimeWindow) Days(loc *time.Location) []TimeWindow {
	if w.Start.After(w.End) {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	var days []TimeWindow
	cursor := StartOfDay(w.Start.In(loc))
	last := StartOfDay(w.End.In(loc))
	for !cursor.After(last) {
		day := TimeWindow{Start: cursor, End: EndOfDay(cursor)}
		if day.Start.Before(w.Start) {
			day.Start = w.Start.In(loc)
		}
		if day.End.After(w.End) {
			day.End = w.End.In(loc)
		}
		days = append(days, day.UTC())
		cursor = cursor.AddDate(0, 0, 1)
	}
	return days
}

// StartOfDay returns 00:00:00.000 of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// DefaultWindow covers the last `days` days ending today, normalized to local
// day boundaries in loc and converted to UTC.
func DefaultWindow(now time.Time, days int, loc *time.Location) TimeWindow {
	if days <= 0 {
		days = 30
	}
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return TimeWindow{
		Start: StartOfDay(local.AddDate(0, 0, -days)),
		End:   EndOfDay(local),
	}.UTC()
}

// NormalizeWindow snaps a caller supplied window to local day boundaries.
func NormalizeWindow(w TimeWindow, loc *time.Location) TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	return TimeWindow{
		Start: StartOfDay(w.Start.In(loc)),
		End:   EndOfDay(w.End.In(loc)),
	}.UTC()
}
