package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/pkg/calendar"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
)

// Private extended properties written on every managed event.
const (
	sourceKeyProperty = "calsyncSourceKey"
	managedProperty   = "calsync"
	managedValue      = "managed"
	// noEndProperty marks events whose source had no end. Google requires an
	// end, so the start is stored there and dropped again when listing.
	noEndProperty = "calsyncNoEnd"
)

const (
	dateLayout     = "2006-01-02"
	wallTimeLayout = "2006-01-02T15:04:05"
)

// Calendar is a calendar.Destination backed by one Google calendar.
type Calendar struct {
	service    *gcal.Service
	calendarId string
}

func newGoogleCalendar(service *gcal.Service, calendarId string) *Calendar {
	return &Calendar{service: service, calendarId: calendarId}
}

func (c *Calendar) ListManagedEvents(ctx context.Context, normalizedTitle string) ([]calendar.SyncedEvent, error) {
	var events []calendar.SyncedEvent
	err := c.service.Events.List(c.calendarId).
		PrivateExtendedProperty(managedProperty+"="+managedValue).
		ShowDeleted(false).
		MaxResults(2500).
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				event, ok, err := fromGoogleEvent(item)
				if err != nil {
					log.Warnf("Skipping unreadable destination event %s: %v", item.Id, err)
					continue
				}
				if !ok || event.Title != normalizedTitle {
					continue
				}
				events = append(events, event)
			}
			return nil
		})
	if err != nil {
		err := fmt.Errorf("unable to retrieve events from Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	log.Debugf("Found %d managed events in Google calendar %s", len(events), c.calendarId)
	return events, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, payload calendar.Payload) (string, error) {
	result, err := c.service.Events.Insert(c.calendarId, toGoogleEvent(payload)).Context(ctx).Do()
	if err != nil {
		err := fmt.Errorf("unable to insert event in Google Calendar: %w", err)
		log.Error(err)
		return "", err
	}
	return result.Id, nil
}

func (c *Calendar) UpdateEvent(ctx context.Context, id string, payload calendar.Payload) error {
	_, err := c.service.Events.Update(c.calendarId, id, toGoogleEvent(payload)).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("update %s: %w", id, calendar.ErrNotFound)
		}
		err := fmt.Errorf("unable to update event in Google Calendar: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (c *Calendar) DeleteEvent(ctx context.Context, id string) error {
	err := c.service.Events.Delete(c.calendarId, id).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("delete %s: %w", id, calendar.ErrNotFound)
		}
		err := fmt.Errorf("unable to delete event from Google Calendar: %w", err)
		log.Error(err)
		return err
	}
	return nil
}

func (c *Calendar) ListCalendars(ctx context.Context) ([]calendar.CalendarItem, error) {
	var items []calendar.CalendarItem
	err := c.service.CalendarList.List().Pages(ctx, func(page *gcal.CalendarList) error {
		for _, entry := range page.Items {
			items = append(items, calendar.CalendarItem{ID: entry.Id, Name: entry.Summary})
		}
		return nil
	})
	if err != nil {
		err := fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	return items, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func toGoogleEvent(payload calendar.Payload) *gcal.Event {
	private := map[string]string{
		managedProperty:   managedValue,
		sourceKeyProperty: payload.SourceKey.String(),
	}
	end := payload.End
	if end.IsZero() {
		private[noEndProperty] = "true"
		end = payload.Start
		if end.AllDay {
			end = calendar.DateOf(end.Value.AddDate(0, 0, 1))
		}
	}
	return &gcal.Event{
		Summary:            payload.Title,
		Location:           payload.Location,
		Description:        payload.Description,
		Start:              toEventDateTime(payload.Start),
		End:                toEventDateTime(end),
		ExtendedProperties: &gcal.EventExtendedProperties{Private: private},
	}
}

func toEventDateTime(t calendar.Time) *gcal.EventDateTime {
	switch {
	case t.AllDay:
		return &gcal.EventDateTime{Date: t.Value.Format(dateLayout)}
	case t.Floating:
		return &gcal.EventDateTime{DateTime: t.Value.Format(wallTimeLayout), TimeZone: "UTC"}
	default:
		return &gcal.EventDateTime{DateTime: t.Value.Format(time.RFC3339)}
	}
}

// fromGoogleEvent reads a managed event. ok is false for events without a source key.
func fromGoogleEvent(item *gcal.Event) (calendar.SyncedEvent, bool, error) {
	if item.ExtendedProperties == nil || item.ExtendedProperties.Private[sourceKeyProperty] == "" {
		return calendar.SyncedEvent{}, false, nil
	}
	private := item.ExtendedProperties.Private

	start, err := fromEventDateTime(item.Start)
	if err != nil {
		return calendar.SyncedEvent{}, true, fmt.Errorf("start: %w", err)
	}
	var end calendar.Time
	if private[noEndProperty] != "true" {
		if end, err = fromEventDateTime(item.End); err != nil {
			return calendar.SyncedEvent{}, true, fmt.Errorf("end: %w", err)
		}
	}

	return calendar.SyncedEvent{
		Event: calendar.Event{
			ID:          item.Id,
			Title:       item.Summary,
			Start:       start,
			End:         end,
			Location:    item.Location,
			Description: item.Description,
		},
		SourceKey:       calendar.StableKey(private[sourceKeyProperty]),
		NormalizedTitle: item.Summary,
	}, true, nil
}

func fromEventDateTime(edt *gcal.EventDateTime) (calendar.Time, error) {
	if edt == nil {
		return calendar.Time{}, nil
	}
	if edt.Date != "" {
		day, err := time.Parse(dateLayout, edt.Date)
		if err != nil {
			return calendar.Time{}, err
		}
		return calendar.DateOf(day), nil
	}
	if edt.DateTime == "" {
		return calendar.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, edt.DateTime)
	if err != nil {
		return calendar.Time{}, err
	}
	return calendar.DateTime(t), nil
}
