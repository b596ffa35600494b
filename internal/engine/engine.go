// Package engine owns the application state.
//
// Every foreground surface (MCP tools, the HTTP API, the CLI) mutates
// settings through App, which applies the timer transitions that go
// with each user action and records a Notice when an operation fails.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/insights"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/purge"
	"github.com/HendryAvila/sitesweep/internal/settings"
	"github.com/HendryAvila/sitesweep/internal/sites"
	"github.com/HendryAvila/sitesweep/internal/timer"
)

var (
	// ErrInvalid wraps errors caused by bad user input.
	ErrInvalid = errors.New("invalid input")
	// ErrBusy is returned by PurgeNow while another purge is running.
	ErrBusy = errors.New("a purge is already running")
	// ErrUnavailable is returned when a capability is not configured.
	ErrUnavailable = errors.New("not available")
)

// Store is the settings surface App needs.
type Store interface {
	settings.Store
	Runs(ctx context.Context, limit int) ([]settings.PurgeRun, error)
}

// Purger runs a purge over the tracked sites.
type Purger interface {
	Purge(ctx context.Context, trigger purge.Trigger, tracked []string) (purge.Result, error)
}

// Guard serializes purges. *timer.Controller implements it.
type Guard interface {
	Exclusive(fn func()) bool
}

// Options configures an App. Analyzer and Navigation may be nil.
type Options struct {
	Store      Store
	Purger     Purger
	Guard      Guard
	Analyzer   *insights.Analyzer
	Navigation *host.Broadcaster
	Logger     *logging.Logger
	MaxNotices int
}

// App is the single owner of settings mutations.
type App struct {
	store    Store
	purger   Purger
	guard    Guard
	analyzer *insights.Analyzer
	nav      *host.Broadcaster
	log      *logging.Logger
	notices  *noticeRing
}

// New creates an App.
func New(opts Options) *App {
	return &App{
		store:    opts.Store,
		purger:   opts.Purger,
		guard:    opts.Guard,
		analyzer: opts.Analyzer,
		nav:      opts.Navigation,
		log:      opts.Logger,
		notices:  newNoticeRing(opts.MaxNotices),
	}
}

// Status is the user-facing view of the settings.
type Status struct {
	Enabled          bool        `json:"enabled"`
	TrackedSites     []string    `json:"tracked_sites"`
	IntervalMinutes  uint        `json:"interval_minutes"`
	State            timer.State `json:"state"`
	TriggerSite      string      `json:"trigger_site,omitempty"`
	NextFireAt       *time.Time  `json:"next_fire_at,omitempty"`
	RemainingSeconds int64       `json:"remaining_seconds"`
	LastCleanedAt    *time.Time  `json:"last_cleaned_at,omitempty"`
	LastCleaned      string      `json:"last_cleaned"`
}

func statusOf(s settings.Settings) Status {
	st := Status{
		Enabled:         s.Enabled,
		TrackedSites:    s.TrackedSites,
		IntervalMinutes: s.IntervalMinutes,
		State:           timer.StateOf(&s),
		LastCleanedAt:   s.LastCleanedAt,
		LastCleaned:     insights.FormatLastAccessed(s.LastCleanedAt),
	}
	if st.State == timer.StateArmed {
		next := s.NextFireAt
		st.TriggerSite = s.TriggerSite
		st.NextFireAt = &next
		st.RemainingSeconds = int64(timer.Remaining(&s, timeNow()) / time.Second)
	}
	return st
}

// Status reports the current settings and timer state.
func (a *App) Status(ctx context.Context) (Status, error) {
	s, err := a.store.Get(ctx)
	if err != nil {
		return Status{}, a.fail("status", err)
	}
	return statusOf(s), nil
}

// SetEnabled turns auto-purge on or off. Turning it off cancels an
// armed timer without purging.
func (a *App) SetEnabled(ctx context.Context, on bool) (Status, error) {
	ch, err := a.store.Update(ctx, func(s *settings.Settings) error {
		s.Enabled = on
		if !on {
			timer.Disarm(s)
		}
		return nil
	})
	if err != nil {
		return Status{}, a.fail("toggle", err)
	}
	a.log.Infof("engine: enabled=%v", on)
	return statusOf(ch.New), nil
}

// AddSite validates input and adds it to the tracked list. It reports
// the stored form and whether the list changed.
func (a *App) AddSite(ctx context.Context, input string) (string, bool, error) {
	site, err := sites.NormalizeSite(input)
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	var added bool
	_, err = a.store.Update(ctx, func(s *settings.Settings) error {
		s.TrackedSites, added = sites.Add(s.TrackedSites, site)
		return nil
	})
	if err != nil {
		return "", false, a.fail("add site", err)
	}
	if added {
		a.log.Infof("engine: tracking %s", site)
	}
	return site, added, nil
}

// RemoveSite drops site from the tracked list. Input is normalized the
// way AddSite does it; input that does not normalize is matched as typed.
// An armed timer whose trigger domain belongs to site is cancelled
// without purging.
func (a *App) RemoveSite(ctx context.Context, input string) (bool, error) {
	site, err := sites.NormalizeSite(input)
	if err != nil {
		site = strings.ToLower(strings.TrimSpace(input))
	}
	if site == "" {
		return false, fmt.Errorf("%w: %w", ErrInvalid, sites.ErrEmptySite)
	}
	var removed, cancelled bool
	_, err = a.store.Update(ctx, func(s *settings.Settings) error {
		s.TrackedSites, removed = sites.Remove(s.TrackedSites, site)
		if removed && s.TimerActive && sites.Matches(s.TriggerSite, site) {
			cancelled = timer.Disarm(s)
		}
		return nil
	})
	if err != nil {
		return false, a.fail("remove site", err)
	}
	if removed {
		a.log.Infof("engine: untracked %s (timer cancelled: %v)", site, cancelled)
	}
	return removed, nil
}

// SetInterval changes the idle interval. Any armed timer is cancelled
// and not rescheduled; the next tracked visit arms with the new value.
func (a *App) SetInterval(ctx context.Context, minutes uint) (Status, error) {
	if minutes > settings.MaxIntervalMinutes {
		return Status{}, fmt.Errorf("%w: interval must be at most %d minutes", ErrInvalid, settings.MaxIntervalMinutes)
	}
	ch, err := a.store.Update(ctx, func(s *settings.Settings) error {
		if s.IntervalMinutes == minutes {
			return nil
		}
		s.IntervalMinutes = minutes
		timer.Disarm(s)
		return nil
	})
	if err != nil {
		return Status{}, a.fail("set interval", err)
	}
	return statusOf(ch.New), nil
}

// PurgeNow purges every tracked site immediately and resets the timer.
func (a *App) PurgeNow(ctx context.Context, trigger purge.Trigger) (purge.Result, error) {
	var (
		res purge.Result
		err error
	)
	ran := a.guard.Exclusive(func() {
		var s settings.Settings
		if s, err = a.store.Get(ctx); err != nil {
			return
		}
		res, err = a.purger.Purge(ctx, trigger, s.TrackedSites)
	})
	if !ran {
		return purge.Result{}, ErrBusy
	}
	if err != nil {
		return res, a.fail("purge", err)
	}
	return res, nil
}

// Insights analyzes per-domain storage use, largest first.
func (a *App) Insights(ctx context.Context) ([]insights.Summary, error) {
	if a.analyzer == nil {
		return nil, fmt.Errorf("insights: %w", ErrUnavailable)
	}
	return insights.Summaries(a.analyzer.Analyze(ctx)), nil
}

// Delete removes the selected data for a domain or URL and reports how
// many items went.
func (a *App) Delete(ctx context.Context, opts insights.DeleteOptions) (int, error) {
	if a.analyzer == nil {
		return 0, fmt.Errorf("delete: %w", ErrUnavailable)
	}
	if opts.Domain == "" && opts.URL == "" {
		return 0, fmt.Errorf("%w: a domain or url is required", ErrInvalid)
	}
	opts.Domain = strings.ToLower(strings.TrimSpace(opts.Domain))
	n := a.analyzer.DeleteSelective(ctx, opts)
	a.log.Infof("engine: deleted %d item(s) for %s%s", n, opts.Domain, opts.URL)
	return n, nil
}

// Runs lists recent purges, newest first.
func (a *App) Runs(ctx context.Context, limit int) ([]settings.PurgeRun, error) {
	runs, err := a.store.Runs(ctx, limit)
	if err != nil {
		return nil, a.fail("list runs", err)
	}
	return runs, nil
}

// ReportNavigation feeds an externally observed tab event to the
// watcher. It reports whether anyone was listening.
func (a *App) ReportNavigation(ev host.NavigationEvent) bool {
	if a.nav == nil {
		return false
	}
	if ev.At.IsZero() {
		ev.At = timeNow()
	}
	return a.nav.Publish(ev) > 0
}

// Notices returns the recorded failures, oldest first.
func (a *App) Notices() []Notice {
	return a.notices.list()
}

// fail logs err and records a Notice for op.
func (a *App) fail(op string, err error) error {
	a.log.Errorf("engine: %s: %v", op, err)
	a.notices.add(Notice{Op: op, Message: genericMessage, At: timeNow()})
	return fmt.Errorf("%s: %w", op, err)
}
