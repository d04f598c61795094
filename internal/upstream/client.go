// Package upstream fronts the third-party verse-content service with a
// per-path response cache.
package upstream

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/singleflight"

	"github.com/FocuswithJustin/GitaCompanion/core/errors"
	"github.com/FocuswithJustin/GitaCompanion/core/verse"
	"github.com/FocuswithJustin/GitaCompanion/internal/cache"
	"github.com/FocuswithJustin/GitaCompanion/internal/logging"
)

const (
	// DefaultBaseURL is the public verse-content service.
	DefaultBaseURL = "https://vedicscriptures.github.io"
	// DefaultTTL is how long a fetched payload is served from cache.
	DefaultTTL = time.Hour
	// DefaultTimeout bounds a single upstream request.
	DefaultTimeout = 5 * time.Second

	// maxBodySize caps how much of an upstream response is read.
	maxBodySize = 4 << 20
)

// ChaptersPath lists all chapters.
const ChaptersPath = "/chapters"

// ChapterPath returns the upstream path describing one chapter.
func ChapterPath(chapter int) string {
	return fmt.Sprintf("/chapter/%d", chapter)
}

// Entry is one cached upstream response.
type Entry struct {
	Path      string
	Body      json.RawMessage
	Digest    string // BLAKE3-256 of Body, hex encoded
	FetchedAt time.Time
}

// ETag returns a strong entity tag derived from the payload digest.
func (e *Entry) ETag() string {
	return `"` + e.Digest + `"`
}

// WithCoordinate decodes a verse payload and merges the coordinate into it
// as top-level "chapter" and "verse" fields.
func (e *Entry) WithCoordinate(c verse.Coordinate) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal(e.Body, &obj); err != nil {
		return nil, errors.NewUpstream(e.Path, 0, fmt.Errorf("payload is not a JSON object: %w", err))
	}
	if obj == nil {
		obj = make(map[string]any)
	}
	obj["chapter"] = c.Chapter
	obj["verse"] = c.Verse
	return obj, nil
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	TTL        time.Duration
	Clock      cache.Clock
	HTTPClient *http.Client
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Fetches  int64 `json:"fetches"`
	Failures int64 `json:"failures"`
	Entries  int   `json:"entries"`
}

// Client fetches and memoizes upstream payloads keyed by request path.
// Failed fetches are never cached. Concurrent misses on the same path share
// one upstream request.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
	clock   cache.Clock
	entries *cache.TTLCache[string, *Entry]
	group   singleflight.Group

	hits     atomic.Int64
	misses   atomic.Int64
	fetches  atomic.Int64
	failures atomic.Int64
}

// New creates a Client, filling zero fields of cfg with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = cache.SystemClock{}
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		clock:   cfg.Clock,
		entries: cache.NewWithClock[string, *Entry](cfg.TTL, cfg.Clock),
	}
}

// Fetch returns the payload for path, from cache when fresh.
// Errors are *errors.UpstreamError.
func (c *Client) Fetch(ctx context.Context, path string) (*Entry, error) {
	if e, ok := c.entries.Get(path); ok {
		c.hits.Add(1)
		logging.CacheEvent("hit", path)
		return e, nil
	}
	c.misses.Add(1)
	logging.CacheEvent("miss", path)

	ch := c.group.DoChan(path, func() (any, error) {
		if e, ok := c.entries.Get(path); ok {
			return e, nil
		}
		// The shared fetch outlives any single caller's cancellation but
		// not the configured timeout.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		e, err := c.fetch(fetchCtx, path)
		if err != nil {
			c.failures.Add(1)
			return nil, err
		}
		c.entries.Set(path, e)
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, errors.NewUpstream(path, 0, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil
	}
}

// Verse fetches the payload for c merged with its coordinate.
func (c *Client) Verse(ctx context.Context, coord verse.Coordinate) (map[string]any, *Entry, error) {
	e, err := c.Fetch(ctx, coord.SlokPath())
	if err != nil {
		return nil, nil, err
	}
	merged, err := e.WithCoordinate(coord)
	if err != nil {
		return nil, nil, err
	}
	return merged, e, nil
}

// Stats reports cache counters.
func (c *Client) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Fetches:  c.fetches.Load(),
		Failures: c.failures.Load(),
		Entries:  c.entries.Len(),
	}
}

// Purge drops expired entries.
func (c *Client) Purge() int {
	return c.entries.Purge()
}

func (c *Client) fetch(ctx context.Context, path string) (*Entry, error) {
	c.fetches.Add(1)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.NewUpstream(path, 0, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		logging.UpstreamFetch(path, 0, time.Since(start), err)
		return nil, errors.NewUpstream(path, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		uerr := errors.NewUpstream(path, resp.StatusCode, nil)
		logging.UpstreamFetch(path, resp.StatusCode, time.Since(start), uerr)
		return nil, uerr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		logging.UpstreamFetch(path, resp.StatusCode, time.Since(start), err)
		return nil, errors.NewUpstream(path, 0, err)
	}
	if !json.Valid(body) {
		perr := errors.NewUpstream(path, 0, fmt.Errorf("response is not valid JSON"))
		logging.UpstreamFetch(path, resp.StatusCode, time.Since(start), perr)
		return nil, perr
	}

	logging.UpstreamFetch(path, resp.StatusCode, time.Since(start), nil)
	return &Entry{
		Path:      path,
		Body:      json.RawMessage(body),
		Digest:    digest(body),
		FetchedAt: c.clock.Now(),
	}, nil
}

// digest computes the BLAKE3-256 hex digest of data.
func digest(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}
