package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

// SourceKeyProperty tags every event calsync writes. Events without it are not managed.
const SourceKeyProperty = "X-SYNC-SOURCE-IDENTIFIER"

const productID = "-//calsync//calsync//EN"

// toCalendarObject builds the iCalendar object stored for payload under uid.
func toCalendarObject(payload calendar.Payload, uid string, now time.Time) *ical.Calendar {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetDateTime(ical.PropDateTimeStamp, now.UTC())
	event.Props.SetText(ical.PropSummary, payload.Title)
	setTime(event.Props, ical.PropDateTimeStart, payload.Start)
	if !payload.End.IsZero() {
		setTime(event.Props, ical.PropDateTimeEnd, payload.End)
	}
	if payload.Location != "" {
		event.Props.SetText(ical.PropLocation, payload.Location)
	}
	if payload.Description != "" {
		event.Props.SetText(ical.PropDescription, payload.Description)
	}
	event.Props.SetText(SourceKeyProperty, payload.SourceKey.String())

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Children = append(cal.Children, event.Component)
	return cal
}

func setTime(props ical.Props, name string, t calendar.Time) {
	switch {
	case t.AllDay:
		props.SetDate(name, t.Value)
	case t.Floating:
		prop := ical.NewProp(name)
		prop.Value = t.Value.Format("20060102T150405")
		props.Set(prop)
	default:
		props.SetDateTime(name, t.Value.UTC())
	}
}

// fromCalendarObject reads the managed event stored at path. ok is false for
// objects that carry no VEVENT with a source key.
func fromCalendarObject(path string, cal *ical.Calendar) (event calendar.SyncedEvent, uid string, ok bool, err error) {
	if cal == nil {
		return event, "", false, nil
	}
	for _, vevent := range cal.Events() {
		key := textValue(vevent.Props, SourceKeyProperty)
		if key == "" {
			continue
		}
		uid = textValue(vevent.Props, ical.PropUID)
		event.ID = path
		event.SourceKey = calendar.StableKey(key)
		event.Title = textValue(vevent.Props, ical.PropSummary)
		event.NormalizedTitle = event.Title
		event.Location = textValue(vevent.Props, ical.PropLocation)
		event.Description = textValue(vevent.Props, ical.PropDescription)
		if event.Start, err = readTime(vevent.Props.Get(ical.PropDateTimeStart)); err != nil {
			return event, uid, true, fmt.Errorf("DTSTART of %s: %w", path, err)
		}
		if event.End, err = readTime(vevent.Props.Get(ical.PropDateTimeEnd)); err != nil {
			return event, uid, true, fmt.Errorf("DTEND of %s: %w", path, err)
		}
		return event, uid, true, nil
	}
	return event, "", false, nil
}

func textValue(props ical.Props, name string) string {
	value, err := props.Text(name)
	if err != nil {
		return ""
	}
	return value
}

// readTime converts a DATE or DATE-TIME property. A missing property yields the zero Time.
func readTime(prop *ical.Prop) (calendar.Time, error) {
	if prop == nil || strings.TrimSpace(prop.Value) == "" {
		return calendar.Time{}, nil
	}
	t, err := prop.DateTime(time.UTC)
	if err != nil {
		return calendar.Time{}, err
	}
	if prop.ValueType() == ical.ValueDate || !strings.Contains(prop.Value, "T") {
		return calendar.DateOf(t), nil
	}
	if !strings.HasSuffix(prop.Value, "Z") && prop.Params.Get(ical.ParamTimezoneID) == "" {
		return calendar.FloatingDateTime(t), nil
	}
	return calendar.DateTime(t), nil
}
