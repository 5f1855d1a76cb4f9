package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

const (
	DestinationCalDAV = "caldav"
	DestinationGoogle = "google"
)

type Application struct {
	Source      Source      `koanf:"source"`
	Destination Destination `koanf:"destination"`
	Sync        Sync        `koanf:"sync"`
	Server      Server      `koanf:"server"`
	Database    Database    `koanf:"db"`
	Log         Log         `koanf:"log"`
}

type Source struct {
	URL string `koanf:"url"`
	// CacheDir keeps the last fetched feed. Empty disables the cache.
	CacheDir string `koanf:"cachedir"`
}

type Destination struct {
	Type   string `koanf:"type"`
	CalDAV CalDAV `koanf:"caldav"`
	Google Google `koanf:"google"`
}

type CalDAV struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Calendar string `koanf:"calendar"`
}

type Google struct {
	CredentialsFile string `koanf:"credentialsfile"`
	TokenFile       string `koanf:"tokenfile"`
	CalendarId      string `koanf:"calendarid"`
}

type Sync struct {
	Title    string `koanf:"title"`
	Days     int    `koanf:"days"`
	Timezone string `koanf:"timezone"`
	// Schedule is the cron expression used by serve.
	Schedule string `koanf:"schedule"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Database struct {
	Enabled bool   `koanf:"enabled"`
	Host    string `koanf:"host"`
	Port    int    `koanf:"port"`
	User    string `koanf:"user"`
	Pass    string `koanf:"pass"`
	Name    string `koanf:"name"`
	Schema  string `koanf:"schema"`
}

type Log struct {
	Level string `koanf:"level"`
}

// legacyEnv maps the environment names of the first calsync release to config keys.
var legacyEnv = map[string]string{
	"SOURCE_CALENDAR_URL":    "source.url",
	"DEST_CALDAV_URL":        "destination.caldav.url",
	"DEST_CALDAV_USERNAME":   "destination.caldav.username",
	"DEST_CALDAV_PASSWORD":   "destination.caldav.password",
	"DEST_CALENDAR_NAME":     "destination.caldav.calendar",
	"NORMALIZED_EVENT_TITLE": "sync.title",
	"TIMEZONE":               "sync.timezone",
	"LOG_LEVEL":              "log.level",
}

func defaults() Application {
	return Application{
		Destination: Destination{
			Type: DestinationCalDAV,
			Google: Google{
				TokenFile:  "google-token.json",
				CalendarId: "primary",
			},
		},
		Sync: Sync{
			Title:    "Tucker Works",
			Days:     30,
			Timezone: "UTC",
			Schedule: "@every 15m",
		},
		Server: Server{Addr: ":8181"},
		Database: Database{
			Host:   "localhost",
			Port:   5432,
			User:   "calsync",
			Name:   "calsync",
			Schema: "calsync",
		},
		Log: Log{Level: "info"},
	}
}

// Load reads the configuration. Later sources win: defaults, the YAML file at
// path, CALSYNC_ environment variables, legacy environment variables and
// finally overrides, keyed like "source.url".
func Load(path string, overrides map[string]any) (Application, error) {
	var k = koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		log.Errorf("error loading config from structs: %v", err)
		return Application{}, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if os.IsNotExist(err) {
				log.Infof("Config file not found at %s, using defaults and environment variables", path)
			} else {
				log.Errorf("error loading config from YAML: %v", err)
				return Application{}, err
			}
		} else {
			log.Infof("Loaded configuration from file: %s", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix: "CALSYNC_",
		TransformFunc: func(k, v string) (string, any) {
			k = strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(k, "CALSYNC_")), "_", ".")
			return k, v
		},
	}), nil)
	if err != nil {
		log.Errorf("error loading config from envs: %v", err)
		return Application{}, err
	}

	for name, key := range legacyEnv {
		if value, ok := os.LookupEnv(name); ok && value != "" {
			if err := k.Set(key, value); err != nil {
				return Application{}, err
			}
		}
	}

	for key, value := range overrides {
		if err := k.Set(key, value); err != nil {
			return Application{}, err
		}
	}

	var app Application
	if err := k.Unmarshal("", &app); err != nil {
		return Application{}, err
	}
	return app, nil
}

// Validate checks the values a sync run needs.
func (a Application) Validate() error {
	var errs []error
	if a.Source.URL == "" {
		errs = append(errs, errors.New("source url is required"))
	}
	switch a.Destination.Type {
	case DestinationCalDAV:
		if a.Destination.CalDAV.URL == "" {
			errs = append(errs, errors.New("caldav url is required"))
		}
		if a.Destination.CalDAV.Username == "" || a.Destination.CalDAV.Password == "" {
			errs = append(errs, errors.New("caldav username and password are required"))
		}
	case DestinationGoogle:
		if a.Destination.Google.CredentialsFile == "" {
			errs = append(errs, errors.New("google credentials file is required"))
		}
		if a.Destination.Google.CalendarId == "" {
			errs = append(errs, errors.New("google calendar id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown destination type %q", a.Destination.Type))
	}
	if a.Sync.Days <= 0 {
		errs = append(errs, fmt.Errorf("days must be positive, got %d", a.Sync.Days))
	}
	if strings.TrimSpace(a.Sync.Title) == "" {
		errs = append(errs, errors.New("title must not be empty"))
	}
	return errors.Join(errs...)
}

// Location resolves the configured timezone. An unknown name falls back to UTC.
func (s Sync) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Errorf("Unknown timezone %q, using UTC: %v", s.Timezone, err)
		return time.UTC
	}
	return loc
}
