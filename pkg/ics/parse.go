package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

const (
	icsDate        = "20060102"
	icsDateTime    = "20060102T150405"
	icsDateTimeUTC = "20060102T150405Z"
)

var errNoStart = errors.New("missing DTSTART")

// Parse turns an iCalendar document into events. A VEVENT that cannot be read
// is logged and skipped. Date-times without zone information (and with an
// unknown TZID) are read as wall clock in loc; dates stay dates.
//
// Recurrence rules are not expanded: a recurring VEVENT yields its first
// instance only.
func Parse(body []byte, loc *time.Location) ([]calendar.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty calendar document")
	}
	if !bytes.Contains(body, []byte("BEGIN:VCALENDAR")) {
		return nil, errors.New("document is not an iCalendar feed")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}

	vevents := cal.Events()
	events := make([]calendar.Event, 0, len(vevents))
	for _, ve := range vevents {
		event, err := parseVEvent(ve, loc)
		if err != nil {
			log.Warnf("Skipping source event %q: %v", event.ID, err)
			continue
		}
		events = append(events, event)
	}
	log.Debugf("Parsed %d of %d source events", len(events), len(vevents))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (calendar.Event, error) {
	event := calendar.Event{
		ID:          propertyValue(ve, ical.ComponentPropertyUniqueId),
		Title:       propertyValue(ve, ical.ComponentPropertySummary),
		Location:    propertyValue(ve, ical.ComponentPropertyLocation),
		Description: propertyValue(ve, ical.ComponentPropertyDescription),
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return event, errNoStart
	}
	start, err := parseTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return event, fmt.Errorf("DTSTART: %w", err)
	}
	event.Start = start

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && strings.TrimSpace(dtEnd.Value) != "" {
		end, err := parseTime(dtEnd.Value, dtEnd.ICalParameters, loc)
		if err != nil {
			return event, fmt.Errorf("DTEND: %w", err)
		}
		event.End = end
	}

	if rrule := ve.GetProperty(ical.ComponentPropertyRrule); rrule != nil {
		log.Debugf("Source event %q is recurring (%s), only its first instance is mirrored", event.ID, rrule.Value)
	}
	return event, nil
}

func propertyValue(ve *ical.VEvent, property ical.ComponentProperty) string {
	if p := ve.GetProperty(property); p != nil {
		return p.Value
	}
	return ""
}

// parseTime reads a DATE or DATE-TIME value. UTC and TZID values become zoned
// date-times. Floating values are anchored in loc.
func parseTime(value string, params map[string][]string, loc *time.Location) (calendar.Time, error) {
	value = strings.TrimSpace(value)

	if isDate(value, params) {
		t, err := time.Parse(icsDate, value)
		if err != nil {
			return calendar.Time{}, err
		}
		return calendar.DateOf(t), nil
	}

	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse(icsDateTimeUTC, value)
		if err != nil {
			return calendar.Time{}, err
		}
		return calendar.DateTime(t), nil
	}

	zone := loc
	if tzids := params[string(ical.ParameterTzid)]; len(tzids) > 0 && tzids[0] != "" {
		named, err := time.LoadLocation(strings.Trim(tzids[0], `"`))
		if err != nil {
			log.Debugf("Unknown TZID %q, reading the time in %s", tzids[0], loc)
		} else {
			zone = named
		}
	}
	t, err := time.ParseInLocation(icsDateTime, value, zone)
	if err != nil {
		return calendar.Time{}, err
	}
	return calendar.DateTime(t), nil
}

func isDate(value string, params map[string][]string) bool {
	if values := params[string(ical.ParameterValue)]; len(values) > 0 && strings.EqualFold(values[0], "DATE") {
		return true
	}
	return !strings.Contains(value, "T")
}
