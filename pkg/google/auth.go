package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

var scopes = []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope}

type credentialsFile struct {
	Type string `json:"type"`
}

// NewHTTPClient returns an authorized client. A service account key is used
// directly; an OAuth client secret needs a token stored by Authorizer.
func NewHTTPClient(ctx context.Context, cfg Config) (*http.Client, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read Google credentials: %w", err)
	}

	var kind credentialsFile
	if err := json.Unmarshal(data, &kind); err != nil {
		return nil, fmt.Errorf("unable to parse Google credentials: %w", err)
	}
	if kind.Type == "service_account" {
		creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to load service account: %w", err)
		}
		return oauth2.NewClient(ctx, creds.TokenSource), nil
	}

	oauthConfig, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth client secret: %w", err)
	}
	token, err := loadToken(cfg.TokenFile)
	if err != nil {
		log.Debugf("No usable Google token at %s: %v", cfg.TokenFile, err)
		return nil, ErrUnauthenticated
	}
	return oauthConfig.Client(ctx, token), nil
}

// Authorizer runs the installed-application OAuth flow and stores the token.
type Authorizer struct {
	oauthConfig *oauth2.Config
	tokenFile   string
	state       string
}

func NewAuthorizer(cfg Config) (*Authorizer, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read Google credentials: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse OAuth client secret: %w", err)
	}
	return &Authorizer{oauthConfig: oauthConfig, tokenFile: cfg.TokenFile, state: uuid.NewString()}, nil
}

func (a *Authorizer) AuthCodeURL() string {
	log.Tracef("Google auth URL with state: %s", a.state)
	return a.oauthConfig.AuthCodeURL(a.state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades the code shown by Google for a token and saves it.
func (a *Authorizer) Exchange(ctx context.Context, code string) error {
	token, err := a.oauthConfig.Exchange(ctx, code)
	if err != nil {
		err := fmt.Errorf("unable to exchange code for token: %v", err)
		log.Error(err)
		return err
	}
	if err := saveToken(a.tokenFile, token); err != nil {
		return fmt.Errorf("unable to store Google auth token: %w", err)
	}
	log.Infof("Stored Google auth token in %s", a.tokenFile)
	return nil
}

func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, fmt.Errorf("no token file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func saveToken(path string, token *oauth2.Token) error {
	if path == "" {
		return fmt.Errorf("no token file configured")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
