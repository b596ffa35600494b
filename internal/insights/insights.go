// Package insights estimates per-domain browser storage and deletes
// browsing data selectively.
//
// Sizes are estimates. History is the length of each entry's title and
// URL, cookies are name plus value plus a fixed 50-byte overhead, and
// localStorage and cache come from the browser's own per-origin usage
// figures when the host can report them.
package insights

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/sites"
)

const (
	historyScanLimit = 10000
	cookieOverhead   = 50
)

// DataType names one category of browsing data.
type DataType string

const (
	TypeHistory      DataType = "history"
	TypeCache        DataType = "cache"
	TypeCookies      DataType = "cookies"
	TypeLocalStorage DataType = "localStorage"
)

// AllTypes lists every DataType.
var AllTypes = []DataType{TypeHistory, TypeCache, TypeCookies, TypeLocalStorage}

// ParseDataType accepts the canonical names and a few spellings.
func ParseDataType(s string) (DataType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "history":
		return TypeHistory, true
	case "cache":
		return TypeCache, true
	case "cookies", "cookie":
		return TypeCookies, true
	case "localstorage", "local_storage", "local-storage":
		return TypeLocalStorage, true
	}
	return "", false
}

// Metrics is the estimated storage of a domain or page, in bytes.
type Metrics struct {
	History      int64      `json:"history"`
	Cache        int64      `json:"cache"`
	Cookies      int64      `json:"cookies"`
	LocalStorage int64      `json:"local_storage"`
	Total        int64      `json:"total"`
	Items        int        `json:"items"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

func (m *Metrics) addHistory(e host.HistoryEntry) {
	size := int64(len(e.Title) + len(e.URL))
	m.History += size
	m.Total += size
	m.Items++
	if e.LastVisitTime.IsZero() {
		return
	}
	if m.LastAccessed == nil || e.LastVisitTime.After(*m.LastAccessed) {
		t := e.LastVisitTime
		m.LastAccessed = &t
	}
}

// DomainReport holds a domain's metrics and its per-URL page metrics.
type DomainReport struct {
	Metrics
	Pages map[string]*Metrics `json:"pages,omitempty"`
}

// Report maps domain to its storage estimate.
type Report map[string]*DomainReport

func (r Report) domain(name string) *DomainReport {
	d, ok := r[name]
	if !ok {
		d = &DomainReport{Pages: map[string]*Metrics{}}
		r[name] = d
	}
	return d
}

// Summary is one row of Summaries.
type Summary struct {
	Domain string `json:"domain"`
	Metrics
}

// Summaries returns domains sorted by total size, largest first, with
// ties broken by name.
func Summaries(r Report) []Summary {
	out := make([]Summary, 0, len(r))
	for name, d := range r {
		out = append(out, Summary{Domain: name, Metrics: d.Metrics})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Domain < out[j].Domain
	})
	return out
}

// Options configures an Analyzer. Every capability is optional; a
// missing one contributes nothing.
type Options struct {
	History host.HistoryStore
	Cookies host.CookieStore
	Remover host.DataRemover
	Clearer host.OriginClearer
	Usage   host.UsageEstimator
	Logger  *logging.Logger
}

// Analyzer reads browser storage through the host capabilities.
type Analyzer struct {
	history host.HistoryStore
	cookies host.CookieStore
	remover host.DataRemover
	clearer host.OriginClearer
	usage   host.UsageEstimator
	log     *logging.Logger
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	return &Analyzer{
		history: opts.History,
		cookies: opts.Cookies,
		remover: opts.Remover,
		clearer: opts.Clearer,
		usage:   opts.Usage,
		log:     opts.Logger,
	}
}

// Analyze builds a Report. Host failures are logged and the report covers
// whatever could be read.
func (a *Analyzer) Analyze(ctx context.Context) Report {
	report := Report{}

	for _, e := range a.historyEntries(ctx) {
		domain, err := sites.ExtractDomain(e.URL)
		if err != nil {
			a.log.Debugf("insights: skip entry: %v", err)
			continue
		}
		d := report.domain(domain)
		d.addHistory(e)
		page, ok := d.Pages[e.URL]
		if !ok {
			page = &Metrics{}
			d.Pages[e.URL] = page
		}
		page.addHistory(e)
	}

	for _, c := range a.cookieJar(ctx) {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "" {
			continue
		}
		size := int64(len(c.Name) + len(c.Value) + cookieOverhead)
		d := report.domain(domain)
		d.Cookies += size
		d.Total += size
	}

	if a.usage != nil {
		for domain, d := range report {
			u, err := a.usage.Usage(ctx, originOf(domain))
			if err != nil {
				a.log.Debugf("insights: usage for %s: %v", domain, err)
				continue
			}
			d.LocalStorage += u.LocalStorage
			d.Cache += u.Cache
			d.Total += u.LocalStorage + u.Cache
		}
	}
	return report
}

// DeleteOptions selects what DeleteSelective removes.
type DeleteOptions struct {
	Domain string     `json:"domain,omitempty"`
	URL    string     `json:"url,omitempty"`
	Types  []DataType `json:"types,omitempty"` // empty means all
	Since  time.Time  `json:"since,omitempty"`
}

func (o DeleteOptions) wants(t DataType) bool {
	if len(o.Types) == 0 {
		return true
	}
	for _, x := range o.Types {
		if x == t {
			return true
		}
	}
	return false
}

// DeleteSelective removes browsing data and returns the number of items
// removed. Bulk removals (cache, per-origin localStorage) count as one.
// Host failures are logged and the count covers what succeeded.
func (a *Analyzer) DeleteSelective(ctx context.Context, opts DeleteOptions) int {
	deleted := 0

	if opts.wants(TypeHistory) {
		for _, e := range a.historyEntries(ctx) {
			if !historyMatches(e, opts) {
				continue
			}
			if err := a.history.DeleteURL(ctx, e.URL); err != nil {
				a.log.Errorf("insights: delete %s: %v", e.URL, err)
				continue
			}
			deleted++
		}
	}

	if opts.wants(TypeCookies) {
		for _, c := range a.cookieJar(ctx) {
			domain := strings.TrimPrefix(c.Domain, ".")
			if domain == "" {
				continue
			}
			if opts.Domain != "" && !sites.Matches(domain, opts.Domain) {
				continue
			}
			if err := a.cookies.RemoveCookie(ctx, c.URL(), c.Name); err != nil {
				a.log.Errorf("insights: remove cookie %s on %s: %v", c.Name, domain, err)
				continue
			}
			deleted++
		}
	}

	if opts.wants(TypeCache) && a.remover != nil {
		if err := a.remover.RemoveSince(ctx, opts.Since, host.DataTypes{Cache: true}); err != nil {
			a.log.Errorf("insights: clear cache: %v", err)
		} else {
			deleted++
		}
	}

	if opts.wants(TypeLocalStorage) && opts.Domain != "" && a.clearer != nil {
		if err := a.clearer.ClearOrigin(ctx, originOf(opts.Domain), []string{host.StorageLocal}); err != nil {
			a.log.Errorf("insights: clear local storage for %s: %v", opts.Domain, err)
		} else {
			deleted++
		}
	}

	return deleted
}

func historyMatches(e host.HistoryEntry, opts DeleteOptions) bool {
	if opts.URL != "" && e.URL != opts.URL {
		return false
	}
	if opts.Domain != "" {
		domain, err := sites.ExtractDomain(e.URL)
		if err != nil || !sites.Matches(domain, opts.Domain) {
			return false
		}
	}
	if !opts.Since.IsZero() && e.LastVisitTime.Before(opts.Since) {
		return false
	}
	return true
}

func (a *Analyzer) historyEntries(ctx context.Context) []host.HistoryEntry {
	if a.history == nil {
		return nil
	}
	entries, err := a.history.Search(ctx, host.Query{MaxResults: historyScanLimit})
	if err != nil {
		a.log.Errorf("insights: read history: %v", err)
		return nil
	}
	return entries
}

func (a *Analyzer) cookieJar(ctx context.Context) []host.Cookie {
	if a.cookies == nil {
		return nil
	}
	jar, err := a.cookies.Cookies(ctx)
	if err != nil {
		a.log.Errorf("insights: read cookies: %v", err)
		return nil
	}
	return jar
}

func originOf(domain string) string {
	return "https://" + domain
}
