package sheet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "sheetcal/internal/log"
)

// ErrNotModifiedNoCache is returned when the server answers 304 but no
// cached body exists.
var ErrNotModifiedNoCache = errors.New("received 304 Not Modified but no cached body available")

// ErrNotHTML is returned when a source answers with something other than
// an HTML page and no cached page exists.
var ErrNotHTML = errors.New("source did not return an HTML page")

// Source is one published spreadsheet page.
type Source struct {
	// ID is used for logging and cache keys in the UI.
	ID string
	// Name is a human-friendly label.
	Name string
	// URL is the published HTML page.
	URL string
}

// FetchResult contains the outcome of fetching a single source.
type FetchResult struct {
	Source    Source
	Body      []byte // HTML payload (either freshly fetched or from cache)
	FromCache bool   // true if the cached body was used
}

// Fetcher retrieves the HTML of a source.
type Fetcher interface {
	FetchOne(ctx context.Context, src Source) (FetchResult, error)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPFetcher fetches pages over HTTP with conditional requests
// (ETag / Last-Modified) backed by a disk cache.
type HTTPFetcher struct {
	client   *http.Client
	cacheDir string
}

// NewHTTPFetcher creates a fetcher caching under cacheDir, one
// subdirectory per URL. An empty cacheDir uses "./var/sheet-cache".
func NewHTTPFetcher(cacheDir string, timeout time.Duration) *HTTPFetcher {
	if cacheDir == "" {
		cacheDir = "./var/sheet-cache"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
	}
}

// FetchOne fetches a single source. Network errors, non-OK statuses and
// payloads that are not HTML fall back to the last cached page when there
// is one.
func (f *HTTPFetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := f.cachePathForURL(src.URL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := loadCacheBody(cachePath)
	fallback := func(cause error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, cause
		}
		appLog.Error("sheet fetch failed, using cached page", cause, "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9")
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("sheet fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return fallback(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, ErrNotModifiedNoCache
		}
		appLog.Info("sheet not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	default:
		return fallback(fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fallback(err)
	}
	if err := checkHTML(resp.Header.Get("Content-Type"), body); err != nil {
		return fallback(err)
	}

	newMeta := cacheEntry{
		URL:          src.URL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	if err := saveCache(cachePath, newMeta, body); err != nil {
		appLog.Error("sheet cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
	}
	appLog.Info("sheet fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

// checkHTML rejects payloads that are not a web page, such as a CSV export
// or a sign-in JSON error served from a sheet link. A missing Content-Type
// is sniffed from the body.
func checkHTML(contentType string, body []byte) error {
	if strings.TrimSpace(contentType) == "" {
		contentType = http.DetectContentType(body)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return fmt.Errorf("%w: content type %q", ErrNotHTML, contentType)
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return nil
	}
	return fmt.Errorf("%w: content type %q", ErrNotHTML, mediaType)
}

func (f *HTTPFetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body.html"))
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body.html"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; published sheet URLs carry the
// document key in the path.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "sheet://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
