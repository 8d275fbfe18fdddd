package service

import (
	"strings"
	"time"
)

// dueDateLayouts are tried in order; the first successful parse wins. Day
// and month take one or two digits.
var dueDateLayouts = []string{
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2-1-2006",
	"2006/1/2",
}

// ParseDueDate parses a stored due date. Parsing is strict, so a value whose
// day or month is out of range for one layout falls through to the next.
func ParseDueDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DaysUntil counts whole days from today's UTC midnight to due.
func DaysUntil(due, now time.Time) int {
	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	diff := due.Sub(today)
	days := int(diff / (24 * time.Hour))
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return days
}
