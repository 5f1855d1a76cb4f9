package caldav

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuckerworks/calsync/internal/utils"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

func setupDeleteTest(t *testing.T, status int) (*Calendar, *[]string) {
	t.Helper()
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "tucker" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		seen = append(seen, r.Method+" "+r.URL.Path)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	c, err := newClient(Config{URL: server.URL + "/dav/", Username: "tucker", Password: "secret"}, server.Client(), &utils.MockClock{FixedNow: now})
	require.NoError(t, err)
	return c, &seen
}

func TestCalendar_DeleteEvent(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		wantErr      bool
		wantNotFound bool
	}{
		{name: "deleted", status: http.StatusNoContent},
		{name: "already gone", status: http.StatusNotFound, wantErr: true, wantNotFound: true},
		{name: "gone for good", status: http.StatusGone, wantErr: true, wantNotFound: true},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c, seen := setupDeleteTest(t, tc.status)

			// when
			err := c.DeleteEvent(context.Background(), "/dav/cal/work/uid-1.ics")

			// then
			assert.Equal(t, []string{"DELETE /dav/cal/work/uid-1.ics"}, *seen)
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tc.wantNotFound, errors.Is(err, calendar.ErrNotFound))
		})
	}
}

func TestNewClient_RejectsInvalidURL(t *testing.T) {
	_, err := newClient(Config{URL: "not a url"}, nil, nil)

	assert.Error(t, err)
}

const calendarPath = "/dav/cal/work/"

// davServer is a minimal CalDAV collection: REPORT lists every stored object,
// PUT stores one.
type davServer struct {
	mu       sync.Mutex
	objects  map[string]string
	requests []string
}

func (s *davServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)

	switch r.Method {
	case "REPORT":
		paths := make([]string, 0, len(s.objects))
		for p := range s.objects {
			if strings.HasPrefix(p, r.URL.Path) {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
		w.Header().Set("Content-Type", "application/xml; charset=utf-8")
		w.WriteHeader(http.StatusMultiStatus)
		fmt.Fprint(w, `<?xml version="1.0" encoding="utf-8"?><D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">`)
		for _, p := range paths {
			fmt.Fprintf(w, `<D:response><D:href>%s</D:href><D:propstat><D:prop><C:calendar-data>`, p)
			_ = xml.EscapeText(w, []byte(s.objects[p]))
			fmt.Fprint(w, `</C:calendar-data></D:prop><D:status>HTTP/1.1 200 OK</D:status></D:propstat></D:response>`)
		}
		fmt.Fprint(w, `</D:multistatus>`)
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.objects[r.URL.Path] = string(body)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *davServer) object(t *testing.T, objectPath string) ical.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[objectPath]
	require.True(t, ok, "no object stored at %s", objectPath)
	cal, err := ical.NewDecoder(strings.NewReader(body)).Decode()
	require.NoError(t, err)
	events := cal.Events()
	require.Len(t, events, 1)
	return events[0]
}

func (s *davServer) seen() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func encodeObject(t *testing.T, cal *ical.Calendar) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ical.NewEncoder(&buf).Encode(cal))
	return buf.String()
}

func setupServerTest(t *testing.T) (*Calendar, *davServer) {
	t.Helper()
	dav := &davServer{objects: map[string]string{}}
	server := httptest.NewServer(dav)
	t.Cleanup(server.Close)

	c, err := newClient(Config{URL: server.URL + "/dav/", Username: "tucker", Password: "secret"}, server.Client(), &utils.MockClock{FixedNow: now})
	require.NoError(t, err)
	c.calendarPath = calendarPath
	return c, dav
}

func shiftPayload(title, location string) calendar.Payload {
	return calendar.Payload{
		Title:     title,
		Start:     calendar.DateTime(time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)),
		End:       calendar.DateTime(time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC)),
		Location:  location,
		SourceKey: "3f2a9c",
	}
}

func TestCalendar_ListManagedEvents(t *testing.T) {
	// given
	c, dav := setupServerTest(t)
	dav.objects[calendarPath+"managed.ics"] = encodeObject(t, toCalendarObject(shiftPayload("Tucker Works", "Store 1"), "uid-managed", now))
	dav.objects[calendarPath+"retitled.ics"] = encodeObject(t, toCalendarObject(shiftPayload("Other Shift", "Store 1"), "uid-retitled", now))
	personal := toCalendarObject(shiftPayload("Tucker Works", "Dentist"), "uid-personal", now)
	delete(personal.Children[0].Props, SourceKeyProperty)
	dav.objects[calendarPath+"personal.ics"] = encodeObject(t, personal)

	// when
	events, err := c.ListManagedEvents(context.Background(), "Tucker Works")

	// then
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, calendarPath+"managed.ics", events[0].ID)
	assert.Equal(t, calendar.StableKey("3f2a9c"), events[0].SourceKey)
	assert.Equal(t, "Store 1", events[0].Location)
	assert.Equal(t, []string{"REPORT " + calendarPath}, dav.seen())
}

func TestCalendar_CreateEvent(t *testing.T) {
	// given
	c, dav := setupServerTest(t)

	// when
	id, err := c.CreateEvent(context.Background(), shiftPayload("Tucker Works", "Store 1"))

	// then
	require.NoError(t, err)
	assert.Equal(t, calendarPath, path.Dir(id)+"/")
	assert.Equal(t, []string{"PUT " + id}, dav.seen())

	stored := dav.object(t, id)
	uid, err := stored.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, path.Base(id), uid+".ics")
	key, err := stored.Props.Text(SourceKeyProperty)
	require.NoError(t, err)
	assert.Equal(t, "3f2a9c", key)
}

func TestCalendar_UpdateEvent_KeepsPathAndUID(t *testing.T) {
	// given
	c, dav := setupServerTest(t)
	objectPath := calendarPath + "imported-by-hand.ics"
	dav.objects[objectPath] = encodeObject(t, toCalendarObject(shiftPayload("Tucker Works", "Store 1"), "uid-original", now))
	events, err := c.ListManagedEvents(context.Background(), "Tucker Works")
	require.NoError(t, err)
	require.Len(t, events, 1)

	// when
	err = c.UpdateEvent(context.Background(), events[0].ID, shiftPayload("Tucker Works", "Store 2"))

	// then
	require.NoError(t, err)
	assert.Equal(t, []string{"REPORT " + calendarPath, "PUT " + objectPath}, dav.seen())
	assert.Len(t, dav.objects, 1)

	stored := dav.object(t, objectPath)
	uid, err := stored.Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "uid-original", uid)
	location, err := stored.Props.Text(ical.PropLocation)
	require.NoError(t, err)
	assert.Equal(t, "Store 2", location)
}

func TestCalendar_UpdateEvent_UnlistedObjectUsesFileName(t *testing.T) {
	// given
	c, dav := setupServerTest(t)
	objectPath := calendarPath + "uid-from-name.ics"

	// when
	err := c.UpdateEvent(context.Background(), objectPath, shiftPayload("Tucker Works", "Store 1"))

	// then
	require.NoError(t, err)
	uid, err := dav.object(t, objectPath).Props.Text(ical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "uid-from-name", uid)
}

func TestCalendar_ConcurrentListAndCreate(t *testing.T) {
	// given
	c, dav := setupServerTest(t)
	dav.objects[calendarPath+"managed.ics"] = encodeObject(t, toCalendarObject(shiftPayload("Tucker Works", "Store 1"), "uid-managed", now))
	ctx := context.Background()

	// when
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := c.ListManagedEvents(ctx, "Tucker Works")
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := c.CreateEvent(ctx, shiftPayload("Tucker Works", "Store 1"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// then
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, "uid-managed", c.uidOf(calendarPath+"managed.ics"))
}
