package caldav

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/utils"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

type Config struct {
	URL          string
	Username     string
	Password     string
	CalendarName string
}

// Calendar is a calendar.Destination backed by a CalDAV collection.
// Destination IDs are object paths.
type Calendar struct {
	client       *caldav.Client
	httpClient   webdav.HTTPClient
	endpoint     *url.URL
	homeSet      string
	calendarPath string
	clock        utils.Clock

	mu   sync.Mutex
	// uids maps object paths seen by listings and creates to their UID, so
	// updates keep the UID of the object they replace.
	uids map[string]string
}

// Connect logs in and selects the calendar named cfg.CalendarName. Without a
// name, or when no calendar has that name, the first calendar is used.
func Connect(ctx context.Context, cfg Config, httpClient *http.Client, clock utils.Clock) (*Calendar, error) {
	c, err := newClient(cfg, httpClient, clock)
	if err != nil {
		return nil, err
	}

	principal, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		log.Errorf("Error connecting to destination calendar: %v", err)
		return nil, fmt.Errorf("unable to find CalDAV principal: %w", err)
	}
	c.homeSet, err = c.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		log.Errorf("Error connecting to destination calendar: %v", err)
		return nil, fmt.Errorf("unable to find CalDAV calendar home: %w", err)
	}

	calendars, err := c.client.FindCalendars(ctx, c.homeSet)
	if err != nil {
		log.Errorf("Error listing destination calendars: %v", err)
		return nil, fmt.Errorf("unable to list CalDAV calendars: %w", err)
	}
	selected, err := pickCalendar(toItems(calendars), cfg.CalendarName)
	if err != nil {
		return nil, err
	}
	c.calendarPath = selected.ID
	log.Infof("Using destination calendar %q (%s)", selected.Name, selected.ID)
	return c, nil
}

func newClient(cfg Config, httpClient *http.Client, clock utils.Clock) (*Calendar, error) {
	endpoint, err := url.Parse(cfg.URL)
	if err != nil || endpoint.Host == "" {
		return nil, fmt.Errorf("invalid CalDAV URL %q", cfg.URL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	authenticated := webdav.HTTPClientWithBasicAuth(httpClient, cfg.Username, cfg.Password)
	client, err := caldav.NewClient(authenticated, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to create CalDAV client: %w", err)
	}
	return &Calendar{
		client:     client,
		httpClient: authenticated,
		endpoint:   endpoint,
		clock:      clock,
		uids:       map[string]string{},
	}, nil
}

func pickCalendar(calendars []calendar.CalendarItem, name string) (calendar.CalendarItem, error) {
	if len(calendars) == 0 {
		return calendar.CalendarItem{}, errors.New("no calendars found on the CalDAV server")
	}
	if name == "" {
		return calendars[0], nil
	}
	for _, c := range calendars {
		if c.Name == name {
			return c, nil
		}
	}
	log.Warnf("Calendar %q not found, using %q instead", name, calendars[0].Name)
	return calendars[0], nil
}

func toItems(calendars []caldav.Calendar) []calendar.CalendarItem {
	items := make([]calendar.CalendarItem, 0, len(calendars))
	for _, c := range calendars {
		items = append(items, calendar.CalendarItem{ID: c.Path, Name: c.Name})
	}
	return items
}

func (c *Calendar) ListCalendars(ctx context.Context) ([]calendar.CalendarItem, error) {
	calendars, err := c.client.FindCalendars(ctx, c.homeSet)
	if err != nil {
		log.Errorf("Error listing destination calendars: %v", err)
		return nil, err
	}
	return toItems(calendars), nil
}

func (c *Calendar) ListManagedEvents(ctx context.Context, normalizedTitle string) ([]calendar.SyncedEvent, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{Name: "VEVENT", AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT"}},
		},
	}
	objects, err := c.client.QueryCalendar(ctx, c.calendarPath, query)
	if err != nil {
		log.Errorf("Error fetching destination events: %v", err)
		return nil, fmt.Errorf("unable to query calendar %s: %w", c.calendarPath, err)
	}

	events := make([]calendar.SyncedEvent, 0, len(objects))
	for _, object := range objects {
		event, uid, managed, err := fromCalendarObject(object.Path, object.Data)
		if !managed {
			continue
		}
		if err != nil {
			log.Warnf("Skipping unreadable destination event: %v", err)
			continue
		}
		if event.Title != normalizedTitle {
			continue
		}
		c.rememberUID(object.Path, uid)
		events = append(events, event)
	}
	log.Debugf("Found %d managed events in destination calendar", len(events))
	return events, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, payload calendar.Payload) (string, error) {
	uid := uuid.NewString()
	objectPath := path.Join(c.calendarPath, uid+".ics")
	if _, err := c.client.PutCalendarObject(ctx, objectPath, toCalendarObject(payload, uid, c.clock.Now())); err != nil {
		log.Errorf("Error creating event: %v", err)
		return "", err
	}
	c.rememberUID(objectPath, uid)
	return objectPath, nil
}

func (c *Calendar) UpdateEvent(ctx context.Context, id string, payload calendar.Payload) error {
	uid := c.uidOf(id)
	if _, err := c.client.PutCalendarObject(ctx, id, toCalendarObject(payload, uid, c.clock.Now())); err != nil {
		log.Errorf("Error updating event %s: %v", id, err)
		return err
	}
	return nil
}

// DeleteEvent removes the object at id. A 404 or 410 answer is reported as
// calendar.ErrNotFound.
func (c *Calendar) DeleteEvent(ctx context.Context, id string) error {
	target := c.endpoint.ResolveReference(&url.URL{Path: id})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Errorf("Error deleting event %s: %v", id, err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("delete %s: %w", id, calendar.ErrNotFound)
	case resp.StatusCode >= 300:
		err := fmt.Errorf("delete %s: unexpected status %s", id, resp.Status)
		log.Error(err)
		return err
	}
	c.mu.Lock()
	delete(c.uids, id)
	c.mu.Unlock()
	return nil
}

func (c *Calendar) rememberUID(objectPath, uid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uids[objectPath] = uid
}

// uidOf returns the UID of the object at objectPath, falling back to the
// object's file name for paths not seen yet.
func (c *Calendar) uidOf(objectPath string) string {
	c.mu.Lock()
	uid := c.uids[objectPath]
	c.mu.Unlock()
	if uid == "" {
		uid = strings.TrimSuffix(path.Base(objectPath), ".ics")
	}
	return uid
}
