package calendar_provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tuckerworks/calsync/internal/config"
	"github.com/tuckerworks/calsync/internal/utils"
	"github.com/tuckerworks/calsync/pkg/caldav"
	"github.com/tuckerworks/calsync/pkg/calendar"
	"github.com/tuckerworks/calsync/pkg/google"
)

// CalendarProvider connects to the configured destination on first use and
// keeps the connection for later runs. A failed connection is retried on the
// next call.
type CalendarProvider struct {
	cfg        config.Destination
	httpClient *http.Client
	clock      utils.Clock

	mu       sync.Mutex
	calendar calendar.Destination
}

func NewCalendarProvider(cfg config.Destination, httpClient *http.Client, clock utils.Clock) *CalendarProvider {
	return &CalendarProvider{cfg: cfg, httpClient: httpClient, clock: clock}
}

func (p *CalendarProvider) GetCalendar(ctx context.Context) (calendar.Destination, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calendar != nil {
		return p.calendar, nil
	}

	dest, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s destination: %w", p.cfg.Type, err)
	}
	p.calendar = dest
	return dest, nil
}

func (p *CalendarProvider) connect(ctx context.Context) (calendar.Destination, error) {
	switch p.cfg.Type {
	case config.DestinationCalDAV:
		log.Debugf("Connecting to CalDAV server %s", p.cfg.CalDAV.URL)
		return caldav.Connect(ctx, caldav.Config{
			URL:          p.cfg.CalDAV.URL,
			Username:     p.cfg.CalDAV.Username,
			Password:     p.cfg.CalDAV.Password,
			CalendarName: p.cfg.CalDAV.Calendar,
		}, p.httpClient, p.clock)
	case config.DestinationGoogle:
		log.Debugf("Connecting to Google calendar %s", p.cfg.Google.CalendarId)
		return google.NewCalendar(ctx, google.Config{
			CredentialsFile: p.cfg.Google.CredentialsFile,
			TokenFile:       p.cfg.Google.TokenFile,
			CalendarId:      p.cfg.Google.CalendarId,
		})
	}
	return nil, fmt.Errorf("unknown calendar type %q", p.cfg.Type)
}
