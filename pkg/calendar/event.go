package calendar

import (
	"time"
)

const (
	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405"
)

// Time is a calendar value that is either a date (all-day) or a date-time.
// A date-time is either anchored to a zone or floating (no zone information).
// The zero Time means the value is absent.
type Time struct {
	// Value holds midnight UTC for dates and the UTC wall clock for floating date-times.
	Value    time.Time
	AllDay   bool
	Floating bool
}

func Date(year int, month time.Month, day int) Time {
	return Time{Value: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), AllDay: true}
}

func DateOf(t time.Time) Time {
	return Date(t.Year(), t.Month(), t.Day())
}

func DateTime(t time.Time) Time {
	return Time{Value: t}
}

// FloatingDateTime keeps the wall clock of t and drops its zone.
func FloatingDateTime(t time.Time) Time {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return Time{Value: wall, Floating: true}
}

func (t Time) IsZero() bool {
	return t.Value.IsZero()
}

// In resolves t to an instant. Dates resolve to their midnight in loc and
// floating date-times to their wall clock in loc.
func (t Time) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	v := t.Value
	switch {
	case t.AllDay:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, loc)
	case t.Floating:
		return time.Date(v.Year(), v.Month(), v.Day(), v.Hour(), v.Minute(), v.Second(), v.Nanosecond(), loc)
	default:
		return v
	}
}

func (t Time) String() string {
	switch {
	case t.IsZero():
		return ""
	case t.AllDay:
		return t.Value.Format("2006-01-02")
	case t.Floating:
		return t.Value.Format("2006-01-02T15:04:05")
	default:
		return t.Value.Format(time.RFC3339)
	}
}

// Event is the store independent view of a calendar entry. ID is assigned by the
// store the event was read from and changes whenever the publisher recreates
// the event, so it is never used to match events across stores.
type Event struct {
	ID          string
	Title       string
	Start       Time
	End         Time
	Location    string
	Description string
}

// EffectiveEnd returns End, or Start when the event has no end.
func (e Event) EffectiveEnd() Time {
	if e.End.IsZero() {
		return e.Start
	}
	return e.End
}

// SyncedEvent is a destination event managed by calsync.
type SyncedEvent struct {
	Event
	SourceKey       StableKey
	NormalizedTitle string
}

// Payload is the full set of fields written to the destination for one event.
type Payload struct {
	Title       string
	Start       Time
	End         Time
	Location    string
	Description string
	SourceKey   StableKey
}

func NewPayload(source Event, key StableKey, normalizedTitle string) Payload {
	return Payload{
		Title:       normalizedTitle,
		Start:       source.Start,
		End:         source.End,
		Location:    source.Location,
		Description: source.Description,
		SourceKey:   key,
	}
}

// AsSynced returns the SyncedEvent a destination would list after storing p under id.
func (p Payload) AsSynced(id string) SyncedEvent {
	return SyncedEvent{
		Event: Event{
			ID:          id,
			Title:       p.Title,
			Start:       p.Start,
			End:         p.End,
			Location:    p.Location,
			Description: p.Description,
		},
		SourceKey:       p.SourceKey,
		NormalizedTitle: p.Title,
	}
}
