package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	appLog "docappt/internal/log"
	"docappt/internal/model"
)

// ErrUnexpectedStatus wraps any non-OK, non-304 response from the feed.
var ErrUnexpectedStatus = errors.New("network response was not ok")

// FetchResult is the outcome of one feed request.
type FetchResult struct {
	Entries     []model.ScheduleEntry
	NotModified bool // true on 304; Entries is nil
}

// Fetcher downloads the schedule feed, a JSON array of schedule entries.
// It remembers ETag / Last-Modified validators between calls and sends them
// as conditional headers.
type Fetcher struct {
	client *http.Client
	url    string

	mu           sync.Mutex
	etag         string
	lastModified string
}

// NewFetcher creates a Fetcher for url. A zero timeout leaves the request
// bounded only by ctx.
func NewFetcher(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

// URL returns the feed endpoint.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch performs one GET of the feed.
func (f *Fetcher) Fetch(ctx context.Context) (FetchResult, error) {
	if f.url == "" {
		return FetchResult{}, errors.New("schedule url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	f.mu.Lock()
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	f.mu.Unlock()

	appLog.Debug("schedule fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, fmt.Errorf("read body: %w", err)
		}

		var entries []model.ScheduleEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return FetchResult{}, fmt.Errorf("decode schedules: %w", err)
		}
		if entries == nil {
			entries = []model.ScheduleEntry{}
		}

		f.mu.Lock()
		f.etag = resp.Header.Get("ETag")
		f.lastModified = resp.Header.Get("Last-Modified")
		f.mu.Unlock()

		appLog.Info("schedule fetch success", "url", redactURL(f.url), "entries", len(entries))
		return FetchResult{Entries: entries}, nil

	case http.StatusNotModified:
		appLog.Info("schedule fetch not modified", "url", redactURL(f.url))
		return FetchResult{NotModified: true}, nil

	default:
		return FetchResult{}, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
}

// redactURL hides the path and query of a feed URL for logging purposes.
//
//	https://example.com/path/to/feed.json?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "feed://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' {
		j++
	}
	return u[:j] + redactedSuffix
}
