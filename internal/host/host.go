// Package host declares the browser capabilities sitesweep consumes.
//
// Implementations live in internal/chromium (a real Chromium profile and
// DevTools connection) and internal/host/hosttest (in-memory fakes).
package host

import (
	"context"
	"strings"
	"time"
)

// HistoryEntry is one URL from the browser's history.
type HistoryEntry struct {
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	LastVisitTime time.Time `json:"last_visit_time"`
}

// Query filters a history search. Text is matched as a substring of the
// URL or title. Zero Start/End leave that side open; zero MaxResults
// means no limit.
type Query struct {
	Text       string
	Start      time.Time
	End        time.Time
	MaxResults int
}

// HistoryStore searches and deletes browser history.
type HistoryStore interface {
	Search(ctx context.Context, q Query) ([]HistoryEntry, error)
	DeleteURL(ctx context.Context, url string) error
}

// Cookie is one browser cookie.
type Cookie struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
	Value  string `json:"value"`
	Path   string `json:"path"`
	Secure bool   `json:"secure"`
}

// URL is the address a cookie is removed by: http or https by the Secure
// flag, the domain without its leading dot, then the path.
func (c Cookie) URL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimPrefix(c.Domain, ".") + c.Path
}

// CookieStore lists and removes cookies.
type CookieStore interface {
	Cookies(ctx context.Context) ([]Cookie, error)
	// RemoveCookie deletes the cookie called name that would be sent to url.
	RemoveCookie(ctx context.Context, url, name string) error
}

// DataTypes selects bulk browsing-data categories.
type DataTypes struct {
	Cache bool
}

// DataRemover removes browsing data in bulk.
type DataRemover interface {
	RemoveSince(ctx context.Context, since time.Time, types DataTypes) error
}

// Storage types accepted by OriginClearer.
const (
	StorageLocal = "local_storage"
	StorageCache = "cache_storage"
)

// OriginClearer clears storage for a single origin.
type OriginClearer interface {
	ClearOrigin(ctx context.Context, origin string, types []string) error
}

// OriginUsage is the storage an origin occupies, in bytes.
type OriginUsage struct {
	LocalStorage int64
	Cache        int64
	Total        int64
}

// UsageEstimator reports per-origin storage usage.
type UsageEstimator interface {
	Usage(ctx context.Context, origin string) (OriginUsage, error)
}

// NavigationKind distinguishes the two events the watcher reacts to.
type NavigationKind string

const (
	// NavigationLoaded is a tab finishing a page load.
	NavigationLoaded NavigationKind = "loaded"
	// NavigationActivated is a tab becoming the active tab.
	NavigationActivated NavigationKind = "activated"
)

// NavigationEvent reports a tab showing url.
type NavigationEvent struct {
	Kind  NavigationKind `json:"kind"`
	TabID string         `json:"tab_id"`
	URL   string         `json:"url"`
	At    time.Time      `json:"at"`
}

// NavigationSource delivers navigation events to a handler until the
// returned function is called.
type NavigationSource interface {
	Subscribe(fn func(NavigationEvent)) (unsubscribe func())
}
