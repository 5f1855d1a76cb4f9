package ics

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

// Source reads events from a published iCalendar feed.
type Source struct {
	fetcher *Fetcher
	url     string
	loc     *time.Location
}

func NewSource(fetcher *Fetcher, feedURL string, loc *time.Location) *Source {
	if loc == nil {
		loc = time.UTC
	}
	return &Source{fetcher: fetcher, url: feedURL, loc: loc}
}

// FetchEvents returns the feed events overlapping [from, to]. Any failure to
// download or parse the feed is wrapped in calendar.ErrFetch.
func (s *Source) FetchEvents(ctx context.Context, from time.Time, to time.Time) ([]calendar.Event, error) {
	result, err := s.fetcher.Fetch(ctx, s.url)
	if err != nil {
		log.Errorf("Error fetching source calendar: %v", err)
		return nil, fmt.Errorf("%w: %v", calendar.ErrFetch, err)
	}

	events, err := Parse(result.Body, s.loc)
	if err != nil {
		log.Errorf("Error parsing source calendar: %v", err)
		return nil, fmt.Errorf("%w: %v", calendar.ErrFetch, err)
	}

	inWindow := FilterWindow(events, from, to, s.loc)
	log.Debugf("Found %d source events between %s and %s (cached: %t)",
		len(inWindow), from.Format(time.RFC3339), to.Format(time.RFC3339), result.FromCache)
	return inWindow, nil
}

// FilterWindow keeps the events that start or end inside [from, to] or span
// the whole window. Dates count from their midnight in loc.
func FilterWindow(events []calendar.Event, from time.Time, to time.Time, loc *time.Location) []calendar.Event {
	kept := make([]calendar.Event, 0, len(events))
	for _, event := range events {
		if event.Start.IsZero() {
			continue
		}
		start := event.Start.In(loc)
		end := event.EffectiveEnd().In(loc)
		if within(start, from, to) || within(end, from, to) || (!start.After(from) && !end.Before(to)) {
			kept = append(kept, event)
		}
	}
	return kept
}

func within(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}
