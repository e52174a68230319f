// Package calendar turns calendar events into daily meeting blocks. Events come
// from the Google Calendar API or from an ICS subscription.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/Afrawles/weeklyreport/internal/report"
)

// EventTime is either a timed instant (RFC 3339 DateTime) or an all-day Date.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Event is a calendar entry as returned by an EventSource.
type Event struct {
	Title *string   `json:"summary,omitempty"`
	Start EventTime `json:"start"`
	End   EventTime `json:"end"`
}

// EventSource lists the events between start and end.
type EventSource interface {
	Events(ctx context.Context, start, end time.Time) ([]Event, error)
}

// Resolve returns the instant t describes, preferring DateTime over Date.
// Dates are read as midnight in loc. ok is false when neither is set.
func (t EventTime) Resolve(loc *time.Location) (resolved time.Time, ok bool, err error) {
	switch {
	case t.DateTime != "":
		resolved, err = time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid dateTime %q: %w", t.DateTime, err)
		}
		return resolved, true, nil
	case t.Date != "":
		resolved, err = report.ParseIsoDate(t.Date, loc)
		if err != nil {
			return time.Time{}, false, err
		}
		return resolved, true, nil
	default:
		return time.Time{}, false, nil
	}
}

// Timed builds an Event from two instants.
func Timed(title string, start, end time.Time) Event {
	return Event{
		Title: &title,
		Start: EventTime{DateTime: start.Format(time.RFC3339)},
		End:   EventTime{DateTime: end.Format(time.RFC3339)},
	}
}

// AllDay builds an all-day Event spanning [start, end) date keys.
func AllDay(title, start, end string) Event {
	return Event{
		Title: &title,
		Start: EventTime{Date: start},
		End:   EventTime{Date: end},
	}
}
