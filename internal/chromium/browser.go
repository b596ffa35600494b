package chromium

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/logging"
)

// Browser implements the cookie, data-removal, origin-clearing, usage
// and navigation capabilities over a DevTools connection to a running
// Chromium.
type Browser struct {
	b   *rod.Browser
	log *logging.Logger
	nav *host.Broadcaster

	mu      sync.Mutex
	lastURL map[proto.TargetTargetID]string
	cancel  context.CancelFunc
	done    chan struct{}
}

var (
	_ host.CookieStore      = (*Browser)(nil)
	_ host.DataRemover      = (*Browser)(nil)
	_ host.OriginClearer    = (*Browser)(nil)
	_ host.UsageEstimator   = (*Browser)(nil)
	_ host.NavigationSource = (*Browser)(nil)
)

// Connect attaches to the browser at controlURL. It accepts whatever
// launcher.ResolveURL does: a port, host:port, or an http/ws DevTools URL.
// Empty means 127.0.0.1:9222.
func Connect(ctx context.Context, controlURL string, logger *logging.Logger) (*Browser, error) {
	wsURL, err := launcher.ResolveURL(controlURL)
	if err != nil {
		return nil, fmt.Errorf("chromium: resolve %q: %w", controlURL, err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("chromium: connect: %w", err)
	}
	logger.Infof("chromium: connected to %s", wsURL)

	return &Browser{
		b:       b,
		log:     logger,
		nav:     host.NewBroadcaster(),
		lastURL: map[proto.TargetTargetID]string{},
	}, nil
}

// Close stops event watching and disconnects. The browser keeps running.
func (br *Browser) Close() error {
	br.mu.Lock()
	cancel, done := br.cancel, br.done
	br.cancel = nil
	br.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
	return br.b.Close()
}

// ─── Cookies ─────────────────────────────────────────────────────────────────

// Cookies lists every cookie in the default browser context.
func (br *Browser) Cookies(ctx context.Context) ([]host.Cookie, error) {
	res, err := proto.StorageGetCookies{}.Call(br.b.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("chromium: get cookies: %w", err)
	}
	return toCookies(res.Cookies), nil
}

// RemoveCookie deletes the cookie called name matching rawURL.
func (br *Browser) RemoveCookie(ctx context.Context, rawURL, name string) error {
	page, err := br.anyPage(ctx)
	if err != nil {
		return err
	}
	if err := (proto.NetworkDeleteCookies{Name: name, URL: rawURL}).Call(page); err != nil {
		return fmt.Errorf("chromium: delete cookie %s: %w", name, err)
	}
	return nil
}

func toCookies(in []*proto.NetworkCookie) []host.Cookie {
	out := make([]host.Cookie, 0, len(in))
	for _, c := range in {
		out = append(out, host.Cookie{
			Domain: c.Domain,
			Name:   c.Name,
			Value:  c.Value,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	return out
}

// ─── Bulk removal ────────────────────────────────────────────────────────────

// RemoveSince clears the HTTP cache. DevTools cannot scope the cache by
// time, so since is only logged.
func (br *Browser) RemoveSince(ctx context.Context, since time.Time, types host.DataTypes) error {
	if !types.Cache {
		return nil
	}
	if !since.IsZero() {
		br.log.Debugf("chromium: cache clear ignores since=%s", since.Format(time.RFC3339))
	}
	page, err := br.anyPage(ctx)
	if err != nil {
		return err
	}
	if err := (proto.NetworkClearBrowserCache{}).Call(page); err != nil {
		return fmt.Errorf("chromium: clear cache: %w", err)
	}
	return nil
}

// ClearOrigin clears the given storage types for origin.
func (br *Browser) ClearOrigin(ctx context.Context, origin string, types []string) error {
	req := proto.StorageClearDataForOrigin{
		Origin:       origin,
		StorageTypes: strings.Join(types, ","),
	}
	if err := req.Call(br.b.Context(ctx)); err != nil {
		return fmt.Errorf("chromium: clear %s for %s: %w", req.StorageTypes, origin, err)
	}
	return nil
}

// Usage reports the storage origin uses.
func (br *Browser) Usage(ctx context.Context, origin string) (host.OriginUsage, error) {
	res, err := proto.StorageGetUsageAndQuota{Origin: origin}.Call(br.b.Context(ctx))
	if err != nil {
		return host.OriginUsage{}, fmt.Errorf("chromium: usage for %s: %w", origin, err)
	}
	return usageOf(res), nil
}

func usageOf(res *proto.StorageGetUsageAndQuotaResult) host.OriginUsage {
	u := host.OriginUsage{Total: int64(res.Usage)}
	for _, b := range res.UsageBreakdown {
		switch b.StorageType {
		case proto.StorageStorageTypeLocalStorage:
			u.LocalStorage += int64(b.Usage)
		case proto.StorageStorageTypeCacheStorage:
			u.Cache += int64(b.Usage)
		}
	}
	return u
}

// anyPage returns a page session for Network-domain commands, which the
// browser endpoint does not serve.
func (br *Browser) anyPage(ctx context.Context) (*rod.Page, error) {
	pages, err := br.b.Context(ctx).Pages()
	if err != nil {
		return nil, fmt.Errorf("chromium: list pages: %w", err)
	}
	if pages.Empty() {
		return nil, fmt.Errorf("chromium: no open page to issue commands on")
	}
	return pages.First().Context(ctx), nil
}

// ─── Navigation ──────────────────────────────────────────────────────────────

// Subscribe registers fn for tab navigation events. Target discovery is
// started on the first call.
func (br *Browser) Subscribe(fn func(host.NavigationEvent)) func() {
	unsub := br.nav.Subscribe(fn)
	if err := br.watch(); err != nil {
		br.log.Errorf("%v", err)
	}
	return unsub
}

// CurrentTabs reports the pages open right now.
func (br *Browser) CurrentTabs(ctx context.Context) ([]host.NavigationEvent, error) {
	res, err := proto.TargetGetTargets{}.Call(br.b.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("chromium: list targets: %w", err)
	}
	now := timeNow()
	var out []host.NavigationEvent
	for _, info := range res.TargetInfos {
		if ev, ok := pageEvent(info, now); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (br *Browser) watch() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := br.b.Context(ctx)
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b); err != nil {
		cancel()
		return fmt.Errorf("chromium: discover targets: %w", err)
	}

	wait := b.EachEvent(
		func(e *proto.TargetTargetCreated) { br.onTarget(e.TargetInfo) },
		func(e *proto.TargetTargetInfoChanged) { br.onTarget(e.TargetInfo) },
		func(e *proto.TargetTargetDestroyed) { br.forget(e.TargetID) },
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wait()
	}()

	br.cancel, br.done = cancel, done
	return nil
}

// onTarget publishes a loaded event when a page target shows a new URL.
// Chromium reports several info changes per navigation; only URL changes
// are forwarded.
func (br *Browser) onTarget(info *proto.TargetTargetInfo) {
	ev, ok := pageEvent(info, timeNow())
	if !ok {
		return
	}
	br.mu.Lock()
	if br.lastURL[info.TargetID] == info.URL {
		br.mu.Unlock()
		return
	}
	br.lastURL[info.TargetID] = info.URL
	br.mu.Unlock()

	br.nav.Publish(ev)
}

func (br *Browser) forget(id proto.TargetTargetID) {
	br.mu.Lock()
	delete(br.lastURL, id)
	br.mu.Unlock()
}

func pageEvent(info *proto.TargetTargetInfo, at time.Time) (host.NavigationEvent, bool) {
	if info == nil || info.Type != proto.TargetTargetInfoTypePage || info.URL == "" {
		return host.NavigationEvent{}, false
	}
	return host.NavigationEvent{
		Kind:  host.NavigationLoaded,
		TabID: string(info.TargetID),
		URL:   info.URL,
		At:    at,
	}, true
}

var timeNow = time.Now
