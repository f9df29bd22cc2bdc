package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimeOfDayLayout = "15:04"
)

// ParseDate parses a calendar date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseTimeOfDay accepts HH:MM or HH:MM:SS and returns the offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	h, m, sec, err := parseClock(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func parseClock(s string) (hour, minute, second int, err error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{TimeOfDayLayout, "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), t.Second(), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("invalid time of day %q: want HH:MM", s)
}

// Combine joins a local, unzoned date and time of day in loc. The result is
// the wall clock reading in loc, so days with a zone transition keep their
// HH:MM. A wall time skipped by a transition is normalized by time.Date.
func Combine(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	var h, m, sec int
	if strings.TrimSpace(timeOfDay) != "" {
		if h, m, sec, err = parseClock(timeOfDay); err != nil {
			return time.Time{}, err
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, sec, 0, loc), nil
}

// AlertInstant reports the moment the reminder's alert fires. ok is false
// when no alert time is set or the stored values do not parse.
func (r Reminder) AlertInstant(loc *time.Location) (time.Time, bool) {
	if strings.TrimSpace(r.AlertTime) == "" {
		return time.Time{}, false
	}
	t, err := Combine(r.DueDate, r.AlertTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DueInstant is the due date at due time, or midnight without one.
func (r Reminder) DueInstant(loc *time.Location) (time.Time, bool) {
	t, err := Combine(r.DueDate, r.DueTime, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
