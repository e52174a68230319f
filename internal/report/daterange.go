package report

import (
	"fmt"
	"sort"
	"time"
)

// DateKeyLayout is the layout of the keys in Result.Contents.
const DateKeyLayout = "2006-01-02"

// ToIsoDate formats t as a date key in loc.
func ToIsoDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateKeyLayout)
}

// ParseIsoDate parses a date key as the start of that day in loc.
func ParseIsoDate(key string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateKeyLayout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date key %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DateRange returns the start of every day from start through end, inclusive,
// in ascending order. It returns an empty slice when start is after end.
func DateRange(start, end time.Time, loc *time.Location) []time.Time {
	current := StartOfDay(start, loc)
	last := StartOfDay(end, loc)

	dates := []time.Time{}
	if current.After(last) {
		return dates
	}

	for !current.After(last) {
		dates = append(dates, current)
		current = current.AddDate(0, 0, 1)
	}
	return dates
}

// SortedDates returns the date keys of r in ascending order.
func SortedDates(r Result) []string {
	keys := make([]string, 0, len(r.Contents))
	for k := range r.Contents {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
