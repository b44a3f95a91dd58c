package rows

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	appLog "wstcal/internal/log"
)

// Source yields the raw row table.
type Source interface {
	Fetch(ctx context.Context) (FetchResult, error)
	String() string
}

// FetchResult is one fetched table payload.
type FetchResult struct {
	Body      []byte
	FromCache bool // true if a cached body was reused (304 or upstream failure)
}

// Load fetches from src and decodes the table.
func Load(ctx context.Context, src Source) (Table, error) {
	res, err := src.Fetch(ctx)
	if err != nil {
		return Table{}, err
	}
	return Decode(res.Body)
}

// NewSource picks an HTTPSource for http(s) locations and a FileSource
// otherwise.
func NewSource(location, cacheDir string) Source {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, cacheDir)
	}
	return FileSource{Path: location}
}

// FileSource reads a table file from disk.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(ctx context.Context) (FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return FetchResult{}, err
	}
	if f.Path == "" {
		return FetchResult{}, errors.New("rows: source path is empty")
	}
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return FetchResult{}, fmt.Errorf("rows: read %s: %w", f.Path, err)
	}
	return FetchResult{Body: body}, nil
}

func (f FileSource) String() string { return f.Path }

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HTTPSource fetches a table over HTTP with conditional requests
// (ETag / Last-Modified) and a disk-backed cache that also covers upstream
// failures.
type HTTPSource struct {
	url      string
	client   *http.Client
	cacheDir string
}

// NewHTTPSource creates a source for rawURL caching under cacheDir.
func NewHTTPSource(rawURL, cacheDir string) *HTTPSource {
	if cacheDir == "" {
		cacheDir = "./var/rows-cache"
	}
	return &HTTPSource{
		url: rawURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

func (h *HTTPSource) String() string { return redactURL(h.url) }

// Fetch performs a conditional GET, falling back to the cached body on
// network errors and non-OK statuses.
func (h *HTTPSource) Fetch(ctx context.Context) (FetchResult, error) {
	if h.url == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}

	cachePath := h.cachePath()
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("rows fetch start", "url", h.String())

	resp, err := h.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("rows fetch network error, using cached body", err, "url", h.String())
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return FetchResult{}, readErr
		}

		newMeta := cacheEntry{
			URL:          h.url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("rows cache save failed", err, "url", h.String())
		}

		appLog.Info("rows fetch success", "url", h.String(), "status", resp.StatusCode, "bytes", len(body))
		return FetchResult{Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("rows fetch not modified; using cache", "url", h.String())
		return FetchResult{Body: cachedBody, FromCache: true}, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("rows fetch non-OK, using cached body", errors.New(resp.Status), "url", h.String(), "status", resp.StatusCode)
			return FetchResult{Body: cachedBody, FromCache: true}, nil
		}
		return FetchResult{}, errors.New(resp.Status)
	}
}

// cachePath is cacheDir/<first 16 hex chars of sha256(url)>.
func (h *HTTPSource) cachePath() string {
	sum := sha256.Sum256([]byte(h.url))
	return filepath.Join(h.cacheDir, hex.EncodeToString(sum[:8]))
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

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host so tokens in paths or queries stay out
// of logs.
func redactURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Host == "" {
		return "rows://...(redacted)"
	}
	return parsed.Scheme + "://" + parsed.Host + "/...(redacted)"
}
