package calendar

import (
	"fmt"
	"time"
)

// IsPast reports whether e ended strictly before ref. The end is End, or
// Start when the event has none. A date resolves to the last instant of that
// day in loc, a floating date-time to its wall clock in loc.
//
// When neither end nor start is set, IsPast returns false with
// ErrRetentionUnresolved: an event that cannot be placed in time is kept.
func IsPast(e Event, ref time.Time, loc *time.Location) (bool, error) {
	end := e.EffectiveEnd()
	if end.IsZero() {
		return false, fmt.Errorf("%w: event %q has neither end nor start", ErrRetentionUnresolved, e.ID)
	}
	return effectiveEndInstant(end, loc).Before(ref), nil
}

func effectiveEndInstant(t Time, loc *time.Location) time.Time {
	if !t.AllDay {
		return t.In(loc)
	}
	return endOfDay(t.In(loc))
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999999999, day.Location())
}
