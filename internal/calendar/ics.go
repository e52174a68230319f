package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"

	"github.com/Afrawles/weeklyreport/internal/apierror"
	"github.com/Afrawles/weeklyreport/internal/report"
)

// maxOccurrences caps the expansion of a single recurring event.
const maxOccurrences = 5000

// ICSSource reads events from an iCalendar feed, either a URL (http, https
// or webcal) or a local file path.
type ICSSource struct {
	location   string
	zone       *time.Location
	httpClient HTTPClient
}

func NewICSSource(location string, zone *time.Location, httpClient HTTPClient) *ICSSource {
	if zone == nil {
		zone = time.UTC
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &ICSSource{location: location, zone: zone, httpClient: httpClient}
}

func (s *ICSSource) Events(ctx context.Context, start, end time.Time) ([]Event, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseICS(ctx, body, s.zone, start, end)
}

func (s *ICSSource) fetch(ctx context.Context) ([]byte, error) {
	target := s.location
	if rest, ok := strings.CutPrefix(target, "webcal://"); ok {
		target = "https://" + rest
	}

	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		body, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("failed to read calendar file: %w", err)
		}
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendar feed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch calendar feed: %w",
			&apierror.Error{Service: "ICS", StatusCode: resp.StatusCode, Body: body})
	}
	return body, nil
}

type vevent struct {
	uid        string
	title      *string
	start      time.Time
	end        time.Time
	hasEnd     bool
	allDay     bool
	rrule      string
	exdates    []time.Time
	recurrence *time.Time
}

// ParseICS parses body and returns the events overlapping [start, end], with
// recurring events expanded into one Event per occurrence. Broken VEVENTs are
// logged and skipped.
func ParseICS(ctx context.Context, body []byte, zone *time.Location, start, end time.Time) ([]Event, error) {
	logger := zerolog.Ctx(ctx)

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty calendar feed")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar feed: %w", err)
	}

	var parsed []vevent
	overridden := make(map[string][]time.Time)
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, zone)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping calendar entry")
			continue
		}
		if ev.recurrence != nil {
			overridden[ev.uid] = append(overridden[ev.uid], *ev.recurrence)
		}
		parsed = append(parsed, ev)
	}

	events := make([]Event, 0, len(parsed))
	for _, ev := range parsed {
		if ev.rrule == "" || ev.recurrence != nil {
			if overlaps(ev.start, ev.end, start, end) {
				events = append(events, ev.event(ev.start, ev.end))
			}
			continue
		}

		occurrences, err := ev.expand(start, end, overridden[ev.uid])
		if err != nil {
			logger.Warn().Err(err).Str("uid", ev.uid).Msg("skipping unreadable recurrence rule")
			continue
		}
		events = append(events, occurrences...)
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent, zone *time.Location) (vevent, error) {
	var out vevent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.uid = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		title := p.Value
		out.title = &title
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, fmt.Errorf("event %q has no DTSTART", out.uid)
	}
	out.allDay = isDateValue(dtStart)

	if out.allDay {
		start, err := parseICSTime(dtStart.Value, zone)
		if err != nil {
			return out, err
		}
		out.start = start
		out.end = start.AddDate(0, 0, 1)
		out.hasEnd = true
		if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
			if end, err := parseICSTime(p.Value, zone); err == nil {
				out.end = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("event %q: %w", out.uid, err)
		}
		out.start = start
		out.end = start
		if end, err := ve.GetEndAt(); err == nil {
			out.end = end
			out.hasEnd = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.rrule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exZone := propertyZone(p, zone)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(strings.TrimSpace(part), exZone); err == nil {
				out.exdates = append(out.exdates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, err := parseICSTime(p.Value, propertyZone(p, zone)); err == nil {
			out.recurrence = &t
		}
	}

	return out, nil
}

func (ev vevent) expand(start, end time.Time, overridden []time.Time) ([]Event, error) {
	rule, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		return nil, err
	}
	rule.DTStart(ev.start)

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range ev.exdates {
		set.ExDate(ex.In(ev.start.Location()))
	}
	for _, rid := range overridden {
		set.ExDate(rid.In(ev.start.Location()))
	}

	length := ev.end.Sub(ev.start)
	// Occurrences starting before the window can still overlap it.
	from := start.Add(-length).In(ev.start.Location())
	times := set.Between(from, end.In(ev.start.Location()), true)
	if len(times) > maxOccurrences {
		times = times[:maxOccurrences]
	}

	events := make([]Event, 0, len(times))
	for _, t := range times {
		occEnd := t.Add(length)
		if ev.allDay {
			days := int(length.Hours() / 24)
			occEnd = t.AddDate(0, 0, days)
		}
		if overlaps(t, occEnd, start, end) {
			events = append(events, ev.event(t, occEnd))
		}
	}
	return events, nil
}

func (ev vevent) event(start, end time.Time) Event {
	out := Event{Title: ev.title}
	if ev.allDay {
		out.Start = EventTime{Date: start.Format(report.DateKeyLayout)}
		out.End = EventTime{Date: end.Format(report.DateKeyLayout)}
		return out
	}
	out.Start = EventTime{DateTime: start.Format(time.RFC3339)}
	if ev.hasEnd {
		out.End = EventTime{DateTime: end.Format(time.RFC3339)}
	}
	return out
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(aStart) {
		aEnd = aStart
	}
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func propertyZone(p *ical.IANAProperty, fallback *time.Location) *time.Location {
	if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
		if loc, err := time.LoadLocation(tzs[0]); err == nil {
			return loc
		}
	}
	return fallback
}

// parseICSTime reads the basic DATE and DATE-TIME forms. Floating times are
// read in zone.
func parseICSTime(v string, zone *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, zone)
	default:
		return time.ParseInLocation("20060102", v, zone)
	}
}
