// Package watcher turns tab navigation events into timer arming.
package watcher

import (
	"context"
	"net/url"

	"github.com/HendryAvila/sitesweep/internal/host"
	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/sites"
)

const queueSize = 64

// Armer arms the timer for a visited domain.
type Armer interface {
	OnVisit(ctx context.Context, domain string) (bool, error)
}

// TabLister is implemented by sources that can report the tabs already
// open, so a tracked tab open at startup arms the timer.
type TabLister interface {
	CurrentTabs(ctx context.Context) ([]host.NavigationEvent, error)
}

// Watcher consumes navigation events from a source.
type Watcher struct {
	src   host.NavigationSource
	armer Armer
	log   *logging.Logger
	queue chan host.NavigationEvent
}

// New creates a Watcher.
func New(src host.NavigationSource, armer Armer, logger *logging.Logger) *Watcher {
	return &Watcher{
		src:   src,
		armer: armer,
		log:   logger,
		queue: make(chan host.NavigationEvent, queueSize),
	}
}

// Run handles events until ctx is cancelled. Events arriving faster than
// they are handled are dropped once the queue is full.
func (w *Watcher) Run(ctx context.Context) error {
	unsubscribe := w.src.Subscribe(func(ev host.NavigationEvent) {
		select {
		case w.queue <- ev:
		default:
			w.log.Warnf("watcher: queue full, dropped %s event for %s", ev.Kind, ev.URL)
		}
	})
	defer unsubscribe()

	if lister, ok := w.src.(TabLister); ok {
		tabs, err := lister.CurrentTabs(ctx)
		if err != nil {
			w.log.Warnf("watcher: list open tabs: %v", err)
		}
		for _, ev := range tabs {
			w.Handle(ctx, ev)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.queue:
			w.Handle(ctx, ev)
		}
	}
}

// Handle processes one event and reports whether it armed the timer.
// Non-web URLs (chrome://, about:, file:) are ignored.
func (w *Watcher) Handle(ctx context.Context, ev host.NavigationEvent) bool {
	switch ev.Kind {
	case host.NavigationLoaded, host.NavigationActivated:
	default:
		w.log.Debugf("watcher: ignoring %q event", ev.Kind)
		return false
	}
	if !isWeb(ev.URL) {
		return false
	}
	domain, err := sites.ExtractDomain(ev.URL)
	if err != nil {
		w.log.Debugf("watcher: %v", err)
		return false
	}
	armed, err := w.armer.OnVisit(ctx, domain)
	if err != nil {
		w.log.Errorf("watcher: %v", err)
		return false
	}
	return armed
}

func isWeb(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
