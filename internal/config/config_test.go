package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("should use defaults without file", func(t *testing.T) {
		// when
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)

		// then
		require.NoError(t, err)
		assert.Equal(t, "Tucker Works", cfg.Sync.Title)
		assert.Equal(t, 30, cfg.Sync.Days)
		assert.Equal(t, "UTC", cfg.Sync.Timezone)
		assert.Equal(t, DestinationCalDAV, cfg.Destination.Type)
		assert.False(t, cfg.Database.Enabled)
	})

	t.Run("should apply file, env, legacy env and overrides in order", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "calsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
source:
  url: https://file.example.com/feed.ics
destination:
  caldav:
    url: https://dav.example.com
    username: file-user
sync:
  days: 14
  title: From File
`), 0o600))
		t.Setenv("CALSYNC_DESTINATION_CALDAV_USERNAME", "env-user")
		t.Setenv("DEST_CALDAV_PASSWORD", "legacy-secret")
		t.Setenv("NORMALIZED_EVENT_TITLE", "Legacy Title")

		// when
		cfg, err := Load(path, map[string]any{"sync.days": 7})

		// then
		require.NoError(t, err)
		assert.Equal(t, "https://file.example.com/feed.ics", cfg.Source.URL)
		assert.Equal(t, "env-user", cfg.Destination.CalDAV.Username)
		assert.Equal(t, "legacy-secret", cfg.Destination.CalDAV.Password)
		assert.Equal(t, "Legacy Title", cfg.Sync.Title)
		assert.Equal(t, 7, cfg.Sync.Days)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("should fail on malformed file", func(t *testing.T) {
		// given
		path := filepath.Join(t.TempDir(), "calsync.yaml")
		require.NoError(t, os.WriteFile(path, []byte("source: [unclosed"), 0o600))

		// when
		_, err := Load(path, nil)

		// then
		assert.Error(t, err)
	})
}

func TestApplication_Validate(t *testing.T) {
	valid := func() Application {
		cfg := defaults()
		cfg.Source.URL = "https://example.com/feed.ics"
		cfg.Destination.CalDAV = CalDAV{URL: "https://dav.example.com", Username: "u", Password: "p"}
		return cfg
	}

	testCases := []struct {
		name    string
		modify  func(*Application)
		wantErr string
	}{
		{name: "valid caldav", modify: func(a *Application) {}},
		{name: "missing source", modify: func(a *Application) { a.Source.URL = "" }, wantErr: "source url is required"},
		{name: "missing caldav password", modify: func(a *Application) { a.Destination.CalDAV.Password = "" }, wantErr: "caldav username and password are required"},
		{name: "google without credentials", modify: func(a *Application) { a.Destination.Type = DestinationGoogle }, wantErr: "google credentials file is required"},
		{name: "valid google", modify: func(a *Application) {
			a.Destination.Type = DestinationGoogle
			a.Destination.Google.CredentialsFile = "creds.json"
		}},
		{name: "unknown type", modify: func(a *Application) { a.Destination.Type = "exchange" }, wantErr: `unknown destination type "exchange"`},
		{name: "zero days", modify: func(a *Application) { a.Sync.Days = 0 }, wantErr: "days must be positive"},
		{name: "blank title", modify: func(a *Application) { a.Sync.Title = "  " }, wantErr: "title must not be empty"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			cfg := valid()
			tc.modify(&cfg)

			// when
			err := cfg.Validate()

			// then
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tc.wantErr)
			}
		})
	}
}

func TestSync_Location(t *testing.T) {
	assert.Equal(t, time.UTC, Sync{}.Location())
	assert.Equal(t, time.UTC, Sync{Timezone: "Mars/Olympus"}.Location())
	assert.Equal(t, "Europe/Warsaw", Sync{Timezone: "Europe/Warsaw"}.Location().String())
}
