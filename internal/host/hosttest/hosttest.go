// Package hosttest provides an in-memory browser for tests.
package hosttest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/sitesweep/internal/host"
)

// RemovedCookie records one RemoveCookie call.
type RemovedCookie struct {
	URL  string
	Name string
}

// Browser implements every host capability over in-memory state.
// Exported fields may be set before use; read them back after the code
// under test has run.
type Browser struct {
	*host.Broadcaster

	mu sync.Mutex

	History []host.HistoryEntry
	Jar     []host.Cookie
	Usages  map[string]host.OriginUsage

	// Failure injection.
	SearchErr  map[string]error // keyed by query text
	DeleteErr  map[string]error // keyed by URL
	CookiesErr error
	UsageErr   error

	Searches       []host.Query
	Deleted        []string
	RemovedCookies []RemovedCookie
	RemovedSince   []time.Time
	Cleared        []string // "origin|type,type"
}

// New returns an empty Browser.
func New() *Browser {
	return &Browser{
		Broadcaster: host.NewBroadcaster(),
		Usages:      map[string]host.OriginUsage{},
		SearchErr:   map[string]error{},
		DeleteErr:   map[string]error{},
	}
}

// Visit appends a history entry.
func (b *Browser) Visit(rawURL, title string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.History = append(b.History, host.HistoryEntry{URL: rawURL, Title: title, LastVisitTime: at})
}

// URLs returns the URLs still in history.
func (b *Browser) URLs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.History))
	for _, e := range b.History {
		out = append(out, e.URL)
	}
	return out
}

// Search matches Text case-insensitively against URL and title.
func (b *Browser) Search(ctx context.Context, q host.Query) ([]host.HistoryEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Searches = append(b.Searches, q)
	if err := b.SearchErr[q.Text]; err != nil {
		return nil, err
	}

	text := strings.ToLower(q.Text)
	var out []host.HistoryEntry
	for _, e := range b.History {
		if text != "" && !strings.Contains(strings.ToLower(e.URL), text) &&
			!strings.Contains(strings.ToLower(e.Title), text) {
			continue
		}
		if !q.Start.IsZero() && e.LastVisitTime.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && e.LastVisitTime.After(q.End) {
			continue
		}
		out = append(out, e)
		if q.MaxResults > 0 && len(out) == q.MaxResults {
			break
		}
	}
	return out, nil
}

// DeleteURL removes every entry for rawURL.
func (b *Browser) DeleteURL(ctx context.Context, rawURL string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.DeleteErr[rawURL]; err != nil {
		return err
	}
	b.Deleted = append(b.Deleted, rawURL)
	kept := b.History[:0]
	for _, e := range b.History {
		if e.URL != rawURL {
			kept = append(kept, e)
		}
	}
	b.History = kept
	return nil
}

// Cookies returns a copy of the jar.
func (b *Browser) Cookies(ctx context.Context) ([]host.Cookie, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.CookiesErr != nil {
		return nil, b.CookiesErr
	}
	return append([]host.Cookie(nil), b.Jar...), nil
}

// RemoveCookie removes cookies called name whose domain equals the URL
// host and whose path prefixes the URL path.
func (b *Browser) RemoveCookie(ctx context.Context, rawURL, name string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("hosttest: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RemovedCookies = append(b.RemovedCookies, RemovedCookie{URL: rawURL, Name: name})

	kept := b.Jar[:0]
	for _, c := range b.Jar {
		domain := strings.TrimPrefix(c.Domain, ".")
		if c.Name == name && strings.EqualFold(domain, u.Hostname()) && strings.HasPrefix(u.Path, c.Path) {
			continue
		}
		kept = append(kept, c)
	}
	b.Jar = kept
	return nil
}

// RemoveSince records the call.
func (b *Browser) RemoveSince(ctx context.Context, since time.Time, types host.DataTypes) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if types.Cache {
		b.RemovedSince = append(b.RemovedSince, since)
	}
	return nil
}

// ClearOrigin records the call.
func (b *Browser) ClearOrigin(ctx context.Context, origin string, types []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Cleared = append(b.Cleared, origin+"|"+strings.Join(types, ","))
	return nil
}

// Usage returns the configured usage for origin.
func (b *Browser) Usage(ctx context.Context, origin string) (host.OriginUsage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.UsageErr != nil {
		return host.OriginUsage{}, b.UsageErr
	}
	return b.Usages[origin], nil
}
