package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "taskline/internal/log"
)

// Source identifies a single ICS subscription feed carrying fixed calendar
// commitments.
type Source struct {
	ID  string
	URL string
}

// FetchResult is the outcome of fetching one feed.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool // true when the cached body was reused (304 or network failure)
}

// feedMeta holds the HTTP cache metadata for one feed URL.
type feedMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests (ETag /
// Last-Modified) backed by a flat on-disk cache keyed by a URL hash.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		// Relative fallback so development runs without root permissions.
		cacheDir = "./var/ics-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// FetchAll fetches every source. Per-source failures are logged and
// collected; successful bodies are returned regardless.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.fetchOne(ctx, src)
		if err != nil {
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

func (f *Fetcher) fetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	if err := os.MkdirAll(f.cacheDir, 0o700); err != nil {
		return FetchResult{}, err
	}

	key := cacheKey(src.URL)
	meta := f.loadMeta(key)
	cached, _ := os.ReadFile(f.bodyPath(key))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Network error: fall back to the cached body when one exists.
		if len(cached) > 0 {
			appLog.Warn("ics fetch network error; using cached body", "id", src.ID, "url", redactURL(src.URL))
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}
		f.saveCache(key, feedMeta{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body, src)
		appLog.Info("ics fetch success", "id", src.ID, "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return FetchResult{}, errors.New("304 Not Modified but no cached body")
		}
		return FetchResult{Source: src, Body: cached, FromCache: true}, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("ics fetch non-OK; using cached body", "id", src.ID, "status", resp.StatusCode)
			return FetchResult{Source: src, Body: cached, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) bodyPath(key string) string {
	return filepath.Join(f.cacheDir, key+".ics")
}

func (f *Fetcher) metaPath(key string) string {
	return filepath.Join(f.cacheDir, key+".json")
}

func (f *Fetcher) loadMeta(key string) feedMeta {
	var meta feedMeta
	data, err := os.ReadFile(f.metaPath(key))
	if err != nil {
		return feedMeta{}
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return feedMeta{}
	}
	return meta
}

// saveCache writes body before meta so metadata never points at a missing
// body. Cache write failures are logged, not propagated; the fresh body is
// still usable.
func (f *Fetcher) saveCache(key string, meta feedMeta, body []byte, src Source) {
	if err := os.WriteFile(f.bodyPath(key), body, 0o600); err != nil {
		appLog.Error("ics cache body write failed", err, "id", src.ID)
		return
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		appLog.Error("ics cache meta marshal failed", err, "id", src.ID)
		return
	}
	if err := os.WriteFile(f.metaPath(key), data, 0o600); err != nil {
		appLog.Error("ics cache meta write failed", err, "id", src.ID)
	}
}

// redactURL hides path and query of a feed URL for logging; private feed
// URLs often embed access tokens.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
