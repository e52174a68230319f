package weeklyreport

import (
	"fmt"
	"strings"
	"time"

	"github.com/Afrawles/weeklyreport/internal/report"
)

// PeriodNames lists the values NamedPeriod accepts.
var PeriodNames = []string{"last-7-days", "today", "yesterday", "this-week", "last-week", "this-month", "last-month"}

// DefaultPeriod runs from the start of today one week ago through the start of
// today.
func DefaultPeriod(now time.Time, loc *time.Location) report.Period {
	today := report.StartOfDay(now, loc)
	return report.Period{Start: today.AddDate(0, 0, -7), End: today}
}

// NamedPeriod resolves a period name relative to now. Weeks start on Monday.
func NamedPeriod(name string, now time.Time, loc *time.Location) (report.Period, error) {
	today := report.StartOfDay(now, loc)

	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "last-7-days":
		return DefaultPeriod(now, loc), nil
	case "today":
		return report.Period{Start: today, End: today}, nil
	case "yesterday":
		yesterday := today.AddDate(0, 0, -1)
		return report.Period{Start: yesterday, End: yesterday}, nil
	case "this-week", "thisweek":
		monday := today.AddDate(0, 0, -daysSinceMonday(today))
		return report.Period{Start: monday, End: today}, nil
	case "last-week", "lastweek":
		monday := today.AddDate(0, 0, -daysSinceMonday(today)-7)
		return report.Period{Start: monday, End: monday.AddDate(0, 0, 6)}, nil
	case "this-month", "thismonth":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return report.Period{Start: first, End: today}, nil
	case "last-month", "lastmonth":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return report.Period{Start: first.AddDate(0, -1, 0), End: first.AddDate(0, 0, -1)}, nil
	default:
		return report.Period{}, fmt.Errorf("unknown period %q (valid: %s)", name, strings.Join(PeriodNames, ", "))
	}
}

func daysSinceMonday(t time.Time) int {
	d := int(t.Weekday() - time.Monday)
	if d < 0 {
		d += 7
	}
	return d
}

// ParsePeriod builds a period from YYYY-MM-DD bounds. An empty bound falls
// back to the matching bound of fallback.
func ParsePeriod(start, end string, fallback report.Period, loc *time.Location) (report.Period, error) {
	p := fallback
	if start != "" {
		t, err := report.ParseIsoDate(start, loc)
		if err != nil {
			return report.Period{}, fmt.Errorf("invalid start date: %w", err)
		}
		p.Start = t
	}
	if end != "" {
		t, err := report.ParseIsoDate(end, loc)
		if err != nil {
			return report.Period{}, fmt.Errorf("invalid end date: %w", err)
		}
		p.End = t
	}
	if p.Start.After(p.End) {
		return report.Period{}, fmt.Errorf("start date %s is after end date %s",
			report.ToIsoDate(p.Start, loc), report.ToIsoDate(p.End, loc))
	}
	return p, nil
}
