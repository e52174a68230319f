package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Afrawles/weeklyreport/internal/report"
)

type stubEvents struct {
	events []Event
	err    error
}

func (s stubEvents) Events(context.Context, time.Time, time.Time) ([]Event, error) {
	return s.events, s.err
}

func week() report.Period {
	return report.Period{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.UTC)
}

func title(s string) *string { return &s }

func TestAdapter_AllDayEventBucketedOnStartDate(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{AllDay("Offsite", "2024-01-01", "2024-01-02")}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-01"}, report.SortedDates(res))
	assert.Equal(t, []report.Content{{Title: "Meetings: 1 (24h 0m)", Items: []string{"• Offsite"}}}, res.Contents["2024-01-01"])
}

func TestAdapter_DurationBlock(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{
		Timed("Standup", at(2, 9, 0), at(2, 9, 30)),
		Timed("Planning", at(2, 10, 0), at(2, 11, 15)),
		Timed("Retro", at(4, 15, 0), at(4, 15, 45)),
	}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, report.Content{
		Title: "Meetings: 2 (1h 45m)",
		Items: []string{"• Standup", "• Planning"},
	}, res.Contents["2024-01-02"][0])
	assert.Equal(t, "Meetings: 1 (45m)", res.Contents["2024-01-04"][0].Title)
	assert.Equal(t, ReportTitle, res.Title)
	assert.Equal(t, week(), res.Period)
}

func TestAdapter_InactiveDaysAreAbsent(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{Timed("Standup", at(3, 9, 0), at(3, 9, 15))}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Len(t, res.Contents, 1)
	assert.NotContains(t, res.Contents, "2024-01-02")
}

func TestAdapter_EventSpanningMidnightStaysOnStartDate(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{Timed("Release", at(2, 23, 0), at(3, 1, 0))}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02"}, report.SortedDates(res))
	assert.Equal(t, "Meetings: 1 (2h 0m)", res.Contents["2024-01-02"][0].Title)
}

func TestAdapter_NegativeDurationIsNotClamped(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{Timed("Broken", at(2, 10, 0), at(2, 9, 30))}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, "Meetings: 1 (-30m)", res.Contents["2024-01-02"][0].Title)
}

func TestAdapter_EventWithoutStartIsSkipped(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{
		{Title: title("Ghost"), End: EventTime{DateTime: at(2, 10, 0).Format(time.RFC3339)}},
		{Title: title("No end"), Start: EventTime{DateTime: at(2, 11, 0).Format(time.RFC3339)}},
		{Start: EventTime{DateTime: at(2, 12, 0).Format(time.RFC3339)}, End: EventTime{DateTime: at(2, 12, 30).Format(time.RFC3339)}},
	}})

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, report.Content{
		Title: "Meetings: 2 (30m)",
		Items: []string{"• No end"},
	}, res.Contents["2024-01-02"][0])
}

func TestAdapter_DaysFollowConfiguredZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	a := NewAdapter(stubEvents{events: []Event{Timed("Late call", at(2, 20, 0), at(2, 21, 0))}}, WithLocation(tokyo))

	res, err := a.Report(context.Background(), report.Period{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, tokyo),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, tokyo),
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-03"}, report.SortedDates(res))
}

func TestAdapter_TitlesModeExcludesCaseInsensitively(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{
		Timed("Design review", at(2, 9, 0), at(2, 10, 0)),
		Timed("BUSY", at(2, 10, 0), at(2, 11, 0)),
		Timed("Vacation - Alex", at(3, 0, 0), at(3, 23, 0)),
		Timed("Out Of Office", at(3, 9, 0), at(3, 17, 0)),
	}}, WithMode(ModeTitles))

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, map[string][]report.Content{
		"2024-01-02": {{Title: "Meetings: 1", Items: []string{"• Design review"}}},
	}, res.Contents)
}

func TestAdapter_CustomExcludeList(t *testing.T) {
	a := NewAdapter(stubEvents{events: []Event{
		Timed("Focus time", at(2, 9, 0), at(2, 10, 0)),
		Timed("Busy", at(2, 10, 0), at(2, 11, 0)),
	}}, WithMode(ModeTitles), WithExclude([]string{"focus"}))

	res, err := a.Report(context.Background(), week())

	require.NoError(t, err)
	assert.Equal(t, []string{"• Busy"}, res.Contents["2024-01-02"][0].Items)
}

func TestAdapter_FetchErrorIsWrapped(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewAdapter(stubEvents{err: boom})

	res, err := a.Report(context.Background(), week())

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "calendar: ")
	assert.Nil(t, res.Contents)
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDuration, mode)

	mode, err = ParseMode(" Titles ")
	require.NoError(t, err)
	assert.Equal(t, ModeTitles, mode)

	_, err = ParseMode("agenda")
	assert.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m", FormatDuration(0))
	assert.Equal(t, "59m", FormatDuration(59))
	assert.Equal(t, "1h 0m", FormatDuration(60))
	assert.Equal(t, "2h 5m", FormatDuration(125))
}
