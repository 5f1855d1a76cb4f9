package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuckerworks/calsync/pkg/calendar"
)

const feed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Store Scheduler//EN
BEGIN:VEVENT
UID:utc-1
SUMMARY:Shift A
LOCATION:Store 1
DESCRIPTION:Opening shift
DTSTART:20240601T100000Z
DTEND:20240601T110000Z
END:VEVENT
BEGIN:VEVENT
UID:zoned-1
SUMMARY:Shift B
DTSTART;TZID=America/New_York:20240602T090000
DTEND;TZID=America/New_York:20240602T170000
END:VEVENT
BEGIN:VEVENT
UID:floating-1
SUMMARY:Shift C
DTSTART:20240603T080000
END:VEVENT
BEGIN:VEVENT
UID:allday-1
SUMMARY:Inventory
DTSTART;VALUE=DATE:20240604
DTEND;VALUE=DATE:20240605
END:VEVENT
BEGIN:VEVENT
UID:broken-1
SUMMARY:No start
END:VEVENT
END:VCALENDAR
`

func TestParse(t *testing.T) {
	// given
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// when
	events, err := Parse([]byte(feed), chicago)

	// then
	require.NoError(t, err)
	require.Len(t, events, 4)

	utc := events[0]
	assert.Equal(t, "utc-1", utc.ID)
	assert.Equal(t, "Shift A", utc.Title)
	assert.Equal(t, "Store 1", utc.Location)
	assert.Equal(t, "Opening shift", utc.Description)
	assert.True(t, utc.Start.Value.Equal(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)))
	assert.True(t, utc.End.Value.Equal(time.Date(2024, 6, 1, 11, 0, 0, 0, time.UTC)))
	assert.False(t, utc.Start.AllDay)

	zoned := events[1]
	assert.True(t, zoned.Start.Value.Equal(time.Date(2024, 6, 2, 9, 0, 0, 0, newYork)))
	assert.True(t, zoned.End.Value.Equal(time.Date(2024, 6, 2, 17, 0, 0, 0, newYork)))

	floating := events[2]
	assert.True(t, floating.Start.Value.Equal(time.Date(2024, 6, 3, 8, 0, 0, 0, chicago)))
	assert.False(t, floating.Start.Floating)
	assert.True(t, floating.End.IsZero())

	allDay := events[3]
	assert.Equal(t, calendar.Date(2024, 6, 4), allDay.Start)
	assert.Equal(t, calendar.Date(2024, 6, 5), allDay.End)
}

func TestParse_UnknownTZIDFallsBackToConfiguredZone(t *testing.T) {
	doc := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:windows-tz
SUMMARY:Shift W
DTSTART;TZID=Eastern Standard Time:20240601T090000
END:VEVENT
END:VCALENDAR
`
	events, err := Parse([]byte(doc), time.UTC)

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Start.Value.Equal(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)))
}

func TestParse_InvalidDocuments(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "not a calendar", body: "<html>maintenance</html>"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.body), time.UTC)
			assert.Error(t, err)
		})
	}
}

func TestParse_KeysStayStableAcrossRecreatedFeeds(t *testing.T) {
	first, err := Parse([]byte(feed), time.UTC)
	require.NoError(t, err)
	recreated := `BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:new-uid-after-refresh
SUMMARY:Shift A
LOCATION:Store 1
DTSTART:20240601T100000Z
DTEND:20240601T110000Z
END:VEVENT
END:VCALENDAR
`
	second, err := Parse([]byte(recreated), time.UTC)
	require.NoError(t, err)

	firstKey, _ := calendar.DeriveKey(first[0])
	secondKey, _ := calendar.DeriveKey(second[0])
	assert.Equal(t, firstKey, secondKey)
}
