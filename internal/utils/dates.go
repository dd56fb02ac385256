package utils

import "time"

// DateLayout is how service dates are stored and exchanged.
const DateLayout = "2006-01-02"

// Today returns the calendar date of t in loc, normalized to midnight.
func Today(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DateString formats the calendar date of t in loc as YYYY-MM-DD.
func DateString(t time.Time, loc *time.Location) string {
	return Today(t, loc).Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// RecentSundays returns the n most recent Sundays on or before the date of
// t in loc, newest first.
func RecentSundays(t time.Time, loc *time.Location, n int) []string {
	day := Today(t, loc)
	back := int(day.Weekday()) // Sunday == 0
	latest := day.AddDate(0, 0, -back)
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, latest.AddDate(0, 0, -7*i).Format(DateLayout))
	}
	return out
}
