// Package purge deletes tracked-site history and resets the timer.
package purge

import (
	"context"
	"fmt"
	"strings"

	"github.com/IGLOU-EU/go-wildcard"

	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/settings"
	"github.com/HendryAvila/sitesweep/internal/sites"
	"github.com/HendryAvila/sitesweep/internal/timer"
)

// DefaultMaxResults caps each per-site history search.
const DefaultMaxResults = 10000

// Trigger names what started a purge.
type Trigger string

const (
	TriggerTimer  Trigger = "timer"
	TriggerManual Trigger = "manual"
	TriggerCLI    Trigger = "cli"
)

// Store is the settings surface the executor needs.
type Store interface {
	Get(ctx context.Context) (settings.Settings, error)
	Update(ctx context.Context, fn func(*settings.Settings) error) (settings.Change, error)
	RecordRun(ctx context.Context, run settings.PurgeRun) (settings.PurgeRun, error)
}

// Options configures an Executor.
type Options struct {
	History host.HistoryStore
	// Cookies, when set, also purges cookies of tracked sites.
	Cookies    host.CookieStore
	Store      Store
	Keep       []string // wildcard URL patterns never deleted
	MaxResults int
	Logger     *logging.Logger
}

// Executor runs purges.
type Executor struct {
	history    host.HistoryStore
	cookies    host.CookieStore
	store      Store
	keep       []string
	maxResults int
	log        *logging.Logger
}

// Result summarizes one purge.
type Result struct {
	RunID          string   `json:"run_id"`
	Sites          []string `json:"sites"`
	Deleted        int      `json:"deleted"`
	Skipped        int      `json:"skipped"`
	Kept           int      `json:"kept"`
	Failed         int      `json:"failed"`
	CookiesRemoved int      `json:"cookies_removed"`
}

// New creates an Executor.
func New(opts Options) *Executor {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	return &Executor{
		history:    opts.History,
		cookies:    opts.Cookies,
		store:      opts.Store,
		keep:       opts.Keep,
		maxResults: limit,
		log:        opts.Logger,
	}
}

// Purge deletes history of every given site, then resets the timer to
// Idle and stamps lastCleanedAt, whatever was deleted.
//
// Host failures are logged and counted; they never stop the batch. The
// returned error is only set when the state reset could not be saved.
func (e *Executor) Purge(ctx context.Context, trigger Trigger, tracked []string) (Result, error) {
	started := timeNow()
	res := Result{Sites: append([]string{}, tracked...)}

	seen := make(map[string]bool)
	for _, site := range tracked {
		if ctx.Err() != nil {
			break
		}
		e.purgeSite(ctx, site, seen, &res)
	}
	if e.cookies != nil && ctx.Err() == nil {
		res.CookiesRemoved = e.purgeCookies(ctx, tracked)
	}

	finished := timeNow()
	change, err := e.store.Update(ctx, func(s *settings.Settings) error {
		timer.Disarm(s)
		s.LastCleanedAt = &finished
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("purge: reset state: %w", err)
	}

	run, err := e.store.RecordRun(ctx, settings.PurgeRun{
		Trigger:        string(trigger),
		TriggerSite:    change.Old.TriggerSite,
		Sites:          res.Sites,
		Deleted:        res.Deleted,
		Skipped:        res.Skipped,
		Kept:           res.Kept,
		Failed:         res.Failed,
		CookiesRemoved: res.CookiesRemoved,
		StartedAt:      started,
		FinishedAt:     finished,
	})
	if err != nil {
		e.log.Warnf("purge: record run: %v", err)
	} else {
		res.RunID = run.ID
	}

	e.log.Infof("purge: %s run over %d site(s): deleted %d, kept %d, skipped %d, failed %d, cookies %d",
		trigger, len(tracked), res.Deleted, res.Kept, res.Skipped, res.Failed, res.CookiesRemoved)
	return res, nil
}

// Fire purges every tracked site. It has the shape of timer.FireFunc.
func (e *Executor) Fire(ctx context.Context, triggerSite string) error {
	cur, err := e.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("purge: load settings: %w", err)
	}
	_, err = e.Purge(ctx, TriggerTimer, cur.TrackedSites)
	return err
}

func (e *Executor) purgeSite(ctx context.Context, site string, seen map[string]bool, res *Result) {
	entries, err := e.history.Search(ctx, host.Query{Text: site, MaxResults: e.maxResults})
	if err != nil {
		e.log.Errorf("purge: search history for %s: %v", site, err)
		return
	}

	for _, entry := range entries {
		if seen[entry.URL] {
			continue
		}
		domain, err := sites.ExtractDomain(entry.URL)
		if err != nil {
			e.log.Warnf("purge: skip entry: %v", err)
			seen[entry.URL] = true
			res.Skipped++
			continue
		}
		// Text search also hits titles and unrelated URLs.
		if !sites.Matches(domain, site) {
			continue
		}
		seen[entry.URL] = true
		if e.kept(entry.URL) {
			res.Kept++
			continue
		}
		if err := e.history.DeleteURL(ctx, entry.URL); err != nil {
			e.log.Errorf("purge: delete %s: %v", entry.URL, err)
			res.Failed++
			continue
		}
		res.Deleted++
	}
}

func (e *Executor) kept(rawURL string) bool {
	for _, pattern := range e.keep {
		if wildcard.Match(pattern, rawURL) {
			return true
		}
	}
	return false
}

func (e *Executor) purgeCookies(ctx context.Context, tracked []string) int {
	jar, err := e.cookies.Cookies(ctx)
	if err != nil {
		e.log.Errorf("purge: list cookies: %v", err)
		return 0
	}
	removed := 0
	for _, c := range jar {
		domain := strings.TrimPrefix(c.Domain, ".")
		if _, ok := sites.MatchAny(domain, tracked); !ok {
			continue
		}
		if err := e.cookies.RemoveCookie(ctx, c.URL(), c.Name); err != nil {
			e.log.Errorf("purge: remove cookie %s on %s: %v", c.Name, domain, err)
			continue
		}
		removed++
	}
	return removed
}
