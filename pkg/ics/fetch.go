package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// FetchResult is the body of a feed, fresh or taken from the disk cache.
type FetchResult struct {
	Body      []byte
	FromCache bool
}

type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"lastModified,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Fetcher downloads feeds with conditional requests. When cacheDir is set the
// last good body is kept on disk and served on 304 responses, and as a
// fallback when the publisher is unreachable.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(client *http.Client, cacheDir string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (FetchResult, error) {
	if feedURL == "" {
		return FetchResult{}, errors.New("feed URL is empty")
	}

	cachePath := f.cachePath(feedURL)
	var meta cacheMeta
	var cachedBody []byte
	if cachePath != "" {
		if err := os.MkdirAll(cachePath, 0o700); err != nil {
			log.Warnf("Cannot create feed cache directory %s: %v", cachePath, err)
			cachePath = ""
		} else {
			meta, _ = loadMeta(cachePath)
			cachedBody, _ = os.ReadFile(filepath.Join(cachePath, "body.ics"))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return FetchResult{}, fmt.Errorf("invalid feed URL: %w", err)
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	log.Debugf("Fetching source calendar from %s", redactURL(feedURL))
	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 && ctx.Err() == nil {
			log.Warnf("Fetching %s failed, using cached copy: %v", redactURL(feedURL), err)
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("fetching %s: %w", redactURL(feedURL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, fmt.Errorf("reading %s: %w", redactURL(feedURL), err)
		}
		if cachePath != "" {
			newMeta := cacheMeta{
				URL:          feedURL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(cachePath, newMeta, body); err != nil {
				log.Warnf("Could not cache feed %s: %v", redactURL(feedURL), err)
			}
		}
		return FetchResult{Body: body}, nil
	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, fmt.Errorf("%s answered 304 Not Modified but nothing is cached", redactURL(feedURL))
		}
		log.Debugf("Source calendar not modified, using cached copy")
		return FetchResult{Body: cachedBody, FromCache: true}, nil
	default:
		// A publisher error must not look like an empty feed: that would
		// delete every future event. Serve the last good copy or fail.
		if len(cachedBody) > 0 {
			log.Warnf("Fetching %s returned %s, using cached copy", redactURL(feedURL), resp.Status)
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, fmt.Errorf("fetching %s: unexpected status %s", redactURL(feedURL), resp.Status)
	}
}

func (f *Fetcher) cachePath(feedURL string) string {
	if f.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(feedURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(cachePath string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func saveCache(cachePath string, meta cacheMeta, body []byte) error {
	// Body first, so meta never refers to a body that is not there.
	if err := os.WriteFile(filepath.Join(cachePath, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host: feed URLs usually embed a secret token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
