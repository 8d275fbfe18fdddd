package domain

import "time"

// MonthKey returns the UTC YYYY-MM bucket for t.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// DayStart truncates t to UTC midnight.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return DayStart(a).Equal(DayStart(b))
}
