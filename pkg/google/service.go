package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var ErrUnauthenticated = errors.New("no Google credentials available, run `calsync google-auth` first")

type Config struct {
	// CredentialsFile is a service account key or an OAuth client secret.
	CredentialsFile string
	// TokenFile holds the OAuth token of an OAuth client. Unused for service accounts.
	TokenFile  string
	CalendarId string
}

// NewCalendar connects to the Google calendar configured in cfg.
func NewCalendar(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Calendar, error) {
	client, err := NewHTTPClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	service, err := prepareGoogleService(ctx, client, opts...)
	if err != nil {
		return nil, err
	}
	calendarId := cfg.CalendarId
	if calendarId == "" {
		calendarId = "primary"
	}
	return newGoogleCalendar(service, calendarId), nil
}

func prepareGoogleService(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*calendar.Service, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	service, err := calendar.NewService(ctx, opts...)
	if err != nil {
		err := fmt.Errorf("unable to retrieve Calendar client: %v", err)
		log.Error(err)
		return nil, err
	}
	return service, nil
}
