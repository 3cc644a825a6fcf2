package loe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	appLog "loeoutaged/internal/log"
)

// DefaultEndpoint is the LOE menus API that carries the schedule HTML.
const DefaultEndpoint = "https://api.loe.lviv.ua/api/menus?page=1&type=photo-grafic"

// menusResponse mirrors the hydra envelope the API returns. Only the
// first member's first menu item ("Today") is consumed.
type menusResponse struct {
	Members []menuMember `json:"hydra:member"`
}

type menuMember struct {
	MenuItems []menuItem `json:"menuItems"`
}

type menuItem struct {
	RawHTML string `json:"rawHtml"`
}

// Fetcher performs the network round trip for one schedule document.
//
// It keeps ETag/Last-Modified validators from the previous response in
// memory and sends them as conditional headers, so an unchanged schedule
// costs a 304 instead of a full body. There is no disk cache; state is
// rebuilt on every process start.
type Fetcher struct {
	client   *http.Client
	endpoint string

	mu           sync.Mutex
	etag         string
	lastModified string
	cachedHTML   string
}

// NewFetcher creates a Fetcher against endpoint with the given request
// timeout. Empty endpoint falls back to the LOE API.
func NewFetcher(endpoint string, timeout time.Duration) *Fetcher {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
	}
}

// FetchScheduleHTML performs one GET and returns the raw schedule HTML
// fragment. A transport or HTTP error returns an error and nothing else;
// the caller decides what stale state to keep serving.
//
// An OK response that is missing the expected members/menuItems shape is
// not an error: it yields an empty fragment, which parses into an
// all-absent snapshot.
func (f *Fetcher) FetchScheduleHTML(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return "", errors.Wrap(err, "build schedule request")
	}
	req.Header.Set("Accept", "application/ld+json, application/json")

	f.mu.Lock()
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch schedule")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.mu.Lock()
		cached := f.cachedHTML
		f.mu.Unlock()
		appLog.Debug("schedule not modified, reusing previous body")
		return cached, nil

	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", errors.Errorf("fetch schedule: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "read schedule response")
	}

	var payload menusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "decode schedule response")
	}

	raw := firstRawHTML(payload)
	if raw == "" {
		appLog.Warn("schedule response has no rawHtml menu item")
	}

	f.mu.Lock()
	f.etag = resp.Header.Get("ETag")
	f.lastModified = resp.Header.Get("Last-Modified")
	f.cachedHTML = raw
	f.mu.Unlock()

	return raw, nil
}

func firstRawHTML(payload menusResponse) string {
	if len(payload.Members) == 0 {
		return ""
	}
	items := payload.Members[0].MenuItems
	if len(items) == 0 {
		return ""
	}
	return items[0].RawHTML
}
