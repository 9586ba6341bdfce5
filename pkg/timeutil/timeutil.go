// Package timeutil provides timezone helpers for calendar-day and
// calendar-month arithmetic. Attendance days and ranking months are local to
// the campus, Asia/Almaty by default.
package timeutil

import (
	"fmt"
	"time"
)

// AlmatyTZ is the Almaty timezone (UTC+5, no DST).
// Kazakhstan abolished DST in 2005, so a fixed zone is exact and does not
// depend on the host's tzdata.
var AlmatyTZ = time.FixedZone("Asia/Almaty", 5*60*60)

// DefaultTimezone is used when no zone is configured.
const DefaultTimezone = "Asia/Almaty"

// LoadLocation resolves a zone name. "Asia/Almaty" and the empty string
// always resolve, even without tzdata installed.
func LoadLocation(name string) (*time.Location, error) {
	switch name {
	case "", DefaultTimezone:
		return AlmatyTZ, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: load location %q: %w", name, err)
	}
	return loc, nil
}

// NowIn returns the current time in loc.
func NowIn(loc *time.Location) time.Time {
	return time.Now().In(loc)
}

// StartOfDay returns 00:00:00 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// StartOfMonth returns 00:00:00 on the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}

// EndOfMonth returns the last nanosecond of t's month in loc.
func EndOfMonth(t time.Time, loc *time.Location) time.Time {
	return StartOfMonth(t, loc).AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// PreviousMonthStart returns the first instant of the month before t's month.
func PreviousMonthStart(t time.Time, loc *time.Location) time.Time {
	return StartOfMonth(t, loc).AddDate(0, -1, 0)
}

// IsSameDay checks if two times fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	a, b := t1.In(loc), t2.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// FormatDate formats t's calendar day in loc as "2006-01-02".
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}
