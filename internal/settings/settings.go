// Package settings holds the persisted sitesweep settings record and the
// SQLite store that owns it.
//
// Settings is a singleton. Every write goes through Store.Update, which
// normalizes the record, commits it and broadcasts the change to
// subscribers. Nothing else in the program writes settings.
package settings

import (
	"context"
	"strings"
	"time"
)

// ─── Keys ────────────────────────────────────────────────────────────────────

// Persisted keys, one row each in the settings table.
const (
	KeyEnabled         = "enabled"
	KeyTrackedSites    = "tracked_sites"
	KeyIntervalMinutes = "interval_minutes"
	KeyTimerActive     = "timer_active"
	KeyNextFireAt      = "next_fire_at"
	KeyTriggerSite     = "trigger_site"
	KeyLastCleanedAt   = "last_cleaned_at"
)

// AllKeys lists every persisted key in canonical order.
var AllKeys = []string{
	KeyEnabled,
	KeyTrackedSites,
	KeyIntervalMinutes,
	KeyTimerActive,
	KeyNextFireAt,
	KeyTriggerSite,
	KeyLastCleanedAt,
}

// MaxIntervalMinutes caps the idle interval at one week.
const MaxIntervalMinutes = 7 * 24 * 60

// ─── Types ───────────────────────────────────────────────────────────────────

// Settings is the full application state.
type Settings struct {
	Enabled         bool       `json:"enabled"`
	TrackedSites    []string   `json:"tracked_sites"`
	IntervalMinutes uint       `json:"interval_minutes"`
	TimerActive     bool       `json:"timer_active"`
	NextFireAt      time.Time  `json:"next_fire_at"` // zero when idle
	TriggerSite     string     `json:"trigger_site"`
	LastCleanedAt   *time.Time `json:"last_cleaned_at,omitempty"`
}

// Defaults returns the record created on first run.
func Defaults() Settings {
	return Settings{TrackedSites: []string{}}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	out := s
	out.TrackedSites = append([]string{}, s.TrackedSites...)
	if s.LastCleanedAt != nil {
		t := *s.LastCleanedAt
		out.LastCleanedAt = &t
	}
	return out
}

// Interval is IntervalMinutes as a duration, capped at
// MaxIntervalMinutes so it never overflows.
func (s Settings) Interval() time.Duration {
	return time.Duration(min(s.IntervalMinutes, MaxIntervalMinutes)) * time.Minute
}

// Normalize enforces the record invariants in place:
//
//   - tracked sites are trimmed, lower-cased and deduplicated;
//   - TimerActive holds iff NextFireAt is set and TriggerSite is non-empty,
//     otherwise all three are cleared;
//   - a zero interval, or one above MaxIntervalMinutes, forces the timer off.
func Normalize(s *Settings) {
	seen := make(map[string]bool, len(s.TrackedSites))
	sites := make([]string, 0, len(s.TrackedSites))
	for _, site := range s.TrackedSites {
		site = strings.ToLower(strings.TrimSpace(site))
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true
		sites = append(sites, site)
	}
	s.TrackedSites = sites

	armed := s.TimerActive && !s.NextFireAt.IsZero() && s.TriggerSite != ""
	if s.IntervalMinutes == 0 || s.IntervalMinutes > MaxIntervalMinutes {
		armed = false
	}
	if !armed {
		s.TimerActive = false
		s.NextFireAt = time.Time{}
		s.TriggerSite = ""
	}
}

// Change describes one committed update.
type Change struct {
	Old  Settings
	New  Settings
	Keys []string // changed keys, in AllKeys order
}

// Has reports whether key changed.
func (c Change) Has(key string) bool {
	for _, k := range c.Keys {
		if k == key {
			return true
		}
	}
	return false
}

// PurgeRun is the audit record of one purge.
type PurgeRun struct {
	ID             string    `json:"id"`
	Trigger        string    `json:"trigger"` // "timer", "manual" or "cli"
	TriggerSite    string    `json:"trigger_site,omitempty"`
	Sites          []string  `json:"sites"`
	Deleted        int       `json:"deleted"`
	Skipped        int       `json:"skipped"`
	Kept           int       `json:"kept"`
	Failed         int       `json:"failed"`
	CookiesRemoved int       `json:"cookies_removed"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// Store persists Settings.
//
// Update runs fn against the current record under a write lock. If fn
// returns an error nothing is written. The record is normalized before it
// is committed and the change is broadcast to subscribers afterwards.
// Updates that change no key are not written or broadcast.
type Store interface {
	Get(ctx context.Context) (Settings, error)
	Update(ctx context.Context, fn func(*Settings) error) (Change, error)
	Subscribe() (<-chan Change, func())
}
