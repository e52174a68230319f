package main

import (
	"strings"
	"time"

	"github.com/Afrawles/weeklyreport/internal/report"
	"github.com/Afrawles/weeklyreport/internal/weeklyreport"
)

// resolvePeriod applies --period, then --start and --end, on top of the
// default week.
func resolvePeriod(now time.Time, loc *time.Location) (report.Period, error) {
	base, err := weeklyreport.NamedPeriod(periodName, now, loc)
	if err != nil {
		return report.Period{}, err
	}
	return weeklyreport.ParsePeriod(startDate, endDate, base, loc)
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
