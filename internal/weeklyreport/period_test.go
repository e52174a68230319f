package weeklyreport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weeklyreport/internal/report"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDefaultPeriod_IsTheWeekBeforeToday(t *testing.T) {
	p := DefaultPeriod(time.Date(2024, 1, 8, 17, 45, 0, 0, time.UTC), time.UTC)

	assert.Equal(t, day(2024, 1, 1), p.Start)
	assert.Equal(t, day(2024, 1, 8), p.End)
}

func TestDefaultPeriod_UsesConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 20:00 UTC on Jan 7 is already Jan 8 in Tokyo.
	p := DefaultPeriod(time.Date(2024, 1, 7, 20, 0, 0, 0, time.UTC), tokyo)

	assert.Equal(t, "2024-01-08", report.ToIsoDate(p.End, tokyo))
	assert.Equal(t, "2024-01-01", report.ToIsoDate(p.Start, tokyo))
}

func TestNamedPeriod(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 3, 13, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"", day(2024, 3, 6), day(2024, 3, 13)},
		{"today", day(2024, 3, 13), day(2024, 3, 13)},
		{"yesterday", day(2024, 3, 12), day(2024, 3, 12)},
		{"this-week", day(2024, 3, 11), day(2024, 3, 13)},
		{"last-week", day(2024, 3, 4), day(2024, 3, 10)},
		{"this-month", day(2024, 3, 1), day(2024, 3, 13)},
		{"last-month", day(2024, 2, 1), day(2024, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NamedPeriod(tt.name, now, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.start, p.Start)
			assert.Equal(t, tt.end, p.End)
		})
	}

	_, err := NamedPeriod("fortnight", now, time.UTC)
	assert.ErrorContains(t, err, "unknown period")
}

func TestNamedPeriod_SundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)

	p, err := NamedPeriod("this-week", sunday, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 3, 11), p.Start)
}

func TestParsePeriod(t *testing.T) {
	fallback := report.Period{Start: day(2024, 1, 1), End: day(2024, 1, 8)}

	p, err := ParsePeriod("2024-01-03", "", fallback, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, report.Period{Start: day(2024, 1, 3), End: day(2024, 1, 8)}, p)

	p, err = ParsePeriod("", "", fallback, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, fallback, p)

	_, err = ParsePeriod("2024-01-09", "", fallback, time.UTC)
	assert.ErrorContains(t, err, "is after end date")

	_, err = ParsePeriod("03/01/2024", "", fallback, time.UTC)
	assert.ErrorContains(t, err, "invalid start date")
}
