// Package calendar implements working-time arithmetic over a weekly work calendar.
package calendar

import (
	"errors"
	"math"
	"time"

	"github.com/lorrc/field-metrics/internal/core/domain"
)

// MaxDayWalk bounds every day-by-day walk (about ten years).
const MaxDayWalk = 3650

var (
	ErrDayWalkExceeded = errors.New("calendar: day walk exceeded safety ceiling")
	ErrNegativeHours   = errors.New("calendar: required working hours must not be negative")
)

// Calendar answers elapsed-working-time and deadline questions for one
// validated WorkCalendarConfig. It is immutable and safe for concurrent use.
type Calendar struct {
	cfg      domain.WorkCalendarConfig
	loc      *time.Location
	weekdays [7]bool
}

// New validates cfg and builds a Calendar. Invalid configs fail here, never mid-walk.
func New(cfg domain.WorkCalendarConfig) (*Calendar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Calendar{cfg: cfg, loc: cfg.Loc()}
	for _, d := range cfg.WorkingWeekdays {
		c.weekdays[d] = true
	}
	return c, nil
}

// Config returns the configuration the calendar was built from.
func (c *Calendar) Config() domain.WorkCalendarConfig {
	return c.cfg
}

// Location is the timezone working days are evaluated in.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// DailyMinutes is the number of working minutes in one full working day.
func (c *Calendar) DailyMinutes() float64 {
	return c.cfg.DailyMinutes()
}

// ElapsedMinutes returns the working minutes between start and end, unrounded.
// It is 0 when start is not before end.
func (c *Calendar) ElapsedMinutes(start, end time.Time) (float64, error) {
	if !start.Before(end) {
		return 0, nil
	}
	s, e := start.In(c.loc), end.In(c.loc)
	day := domain.StartOfDay(s)
	last := domain.StartOfDay(e)

	var total float64
	for i := 0; !day.After(last); i++ {
		if i >= MaxDayWalk {
			return 0, ErrDayWalkExceeded
		}
		if c.weekdays[day.Weekday()] {
			open, closing := c.hours(day)
			from := latest(open, s)
			to := earliest(closing, e)
			if to.After(from) {
				total += to.Sub(from).Minutes()
			}
		}
		day = nextDay(day)
	}
	return total, nil
}

// ElapsedWholeMinutes is ElapsedMinutes rounded to the nearest minute for display.
func (c *Calendar) ElapsedWholeMinutes(start, end time.Time) (int, error) {
	m, err := c.ElapsedMinutes(start, end)
	if err != nil {
		return 0, err
	}
	return int(math.Round(m)), nil
}

// ElapsedHours is ElapsedMinutes expressed in hours.
func (c *Calendar) ElapsedHours(start, end time.Time) (float64, error) {
	m, err := c.ElapsedMinutes(start, end)
	return m / 60, err
}

// ProjectDeadline walks forward from start consuming the given working hours
// and returns the instant they run out. A start outside working time is
// first moved to the next opening.
func (c *Calendar) ProjectDeadline(start time.Time, hours float64) (time.Time, error) {
	if hours < 0 || math.IsNaN(hours) {
		return time.Time{}, ErrNegativeHours
	}
	remaining := hours * 60
	pos := start.In(c.loc)

	for i := 0; i < MaxDayWalk; i++ {
		day := domain.StartOfDay(pos)
		if c.weekdays[day.Weekday()] {
			open, closing := c.hours(day)
			if pos.Before(open) {
				pos = open
			}
			if pos.Before(closing) {
				available := closing.Sub(pos).Minutes()
				if remaining <= available {
					return pos.Add(minutes(remaining)).In(start.Location()), nil
				}
				remaining -= available
			}
		}
		pos = nextDay(day)
	}
	return time.Time{}, ErrDayWalkExceeded
}

// IsWorkingTime reports whether t falls inside a working window.
func (c *Calendar) IsWorkingTime(t time.Time) bool {
	local := t.In(c.loc)
	if !c.weekdays[local.Weekday()] {
		return false
	}
	open, closing := c.hours(local)
	return !local.Before(open) && local.Before(closing)
}

// NextOpening returns t itself during working time, otherwise the next opening instant.
func (c *Calendar) NextOpening(t time.Time) time.Time {
	local := t.In(c.loc)
	if c.IsWorkingTime(local) {
		return t
	}
	day := domain.StartOfDay(local)
	// a validated config has at least one working weekday, so eight days always suffice
	for i := 0; i < 8; i++ {
		if c.weekdays[day.Weekday()] {
			open, _ := c.hours(day)
			if !open.Before(local) {
				return open.In(t.Location())
			}
		}
		day = nextDay(day)
	}
	return t
}

func (c *Calendar) hours(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	open := time.Date(y, m, d, c.cfg.StartHour, 0, 0, 0, c.loc)
	closing := time.Date(y, m, d, c.cfg.EndHour, c.cfg.EndMinute, 0, 0, c.loc)
	return open, closing
}

func nextDay(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}

func minutes(m float64) time.Duration {
	return time.Duration(math.Round(m * float64(time.Minute)))
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
