package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Afrawles/weeklyreport/internal/report"
)

// ReportTitle names the calendar source's report.
const ReportTitle = "Calendar Weekly Activity Report"

// Mode selects what the adapter reports per day.
type Mode string

const (
	// ModeDuration reports the meeting count, total time and every title.
	ModeDuration Mode = "duration"
	// ModeTitles reports titles only, dropping excluded ones.
	ModeTitles Mode = "titles"
)

// DefaultExclude are the title fragments ModeTitles drops when no exclusion
// list is configured.
var DefaultExclude = []string{"busy", "vacation", "out of office"}

// ParseMode parses a mode name; empty means ModeDuration.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeDuration:
		return ModeDuration, nil
	case ModeTitles:
		return ModeTitles, nil
	default:
		return "", fmt.Errorf("unknown calendar mode %q", s)
	}
}

type Adapter struct {
	events   EventSource
	location *time.Location
	mode     Mode
	exclude  []string
}

type AdapterOption func(*Adapter)

func WithLocation(loc *time.Location) AdapterOption {
	return func(a *Adapter) { a.location = loc }
}

func WithMode(mode Mode) AdapterOption {
	return func(a *Adapter) { a.mode = mode }
}

// WithExclude replaces the ModeTitles exclusion list.
func WithExclude(fragments []string) AdapterOption {
	return func(a *Adapter) { a.exclude = fragments }
}

func NewAdapter(events EventSource, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		events:   events,
		location: time.UTC,
		mode:     ModeDuration,
		exclude:  DefaultExclude,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string {
	return "calendar"
}

type dayMeetings struct {
	count   int
	minutes int
	titles  []string
}

// Report fetches the events in period and emits one block per day with at
// least one meeting. Events are bucketed by their start date only.
func (a *Adapter) Report(ctx context.Context, period report.Period) (report.Result, error) {
	logger := zerolog.Ctx(ctx)

	events, err := a.events.Events(ctx, period.Start, period.End)
	if err != nil {
		return report.Result{}, fmt.Errorf("calendar: %w", err)
	}

	days := report.NewDayBuckets[dayMeetings]()
	for _, ev := range events {
		start, ok, err := ev.Start.Resolve(a.location)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping event with unreadable start")
			continue
		}
		if !ok {
			continue
		}

		minutes := 0
		if end, ok, err := ev.End.Resolve(a.location); err != nil {
			logger.Warn().Err(err).Msg("ignoring unreadable event end")
		} else if ok {
			minutes = int(end.Sub(start).Minutes())
		}

		key := report.ToIsoDate(start, a.location)

		if a.mode == ModeTitles {
			if ev.Title == nil || a.excluded(*ev.Title) {
				continue
			}
			day := days.At(key)
			day.count++
			day.titles = append(day.titles, *ev.Title)
			continue
		}

		day := days.At(key)
		day.count++
		day.minutes += minutes
		if ev.Title != nil {
			day.titles = append(day.titles, *ev.Title)
		}
	}

	contents := make(map[string][]report.Content)
	for _, date := range report.DateRange(period.Start, period.End, a.location) {
		key := report.ToIsoDate(date, a.location)
		day, ok := days.Get(key)
		if !ok || day.count == 0 {
			continue
		}
		contents[key] = []report.Content{a.block(day)}
	}

	logger.Debug().Int("events", len(events)).Int("days", len(contents)).Msg("calendar events bucketed")

	return report.Result{
		Title:    ReportTitle,
		Contents: contents,
		Period:   period,
	}, nil
}

func (a *Adapter) block(day *dayMeetings) report.Content {
	items := make([]string, 0, len(day.titles))
	for _, title := range day.titles {
		items = append(items, "• "+title)
	}

	if a.mode == ModeTitles {
		return report.Content{Title: fmt.Sprintf("Meetings: %d", day.count), Items: items}
	}
	return report.Content{
		Title: fmt.Sprintf("Meetings: %d (%s)", day.count, FormatDuration(day.minutes)),
		Items: items,
	}
}

func (a *Adapter) excluded(title string) bool {
	lower := strings.ToLower(title)
	for _, fragment := range a.exclude {
		if fragment != "" && strings.Contains(lower, strings.ToLower(fragment)) {
			return true
		}
	}
	return false
}

// FormatDuration renders minutes as "Xh Ym", or "Ym" below one hour.
func FormatDuration(minutes int) string {
	hours := minutes / 60
	rest := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, rest)
	}
	return fmt.Sprintf("%dm", rest)
}
