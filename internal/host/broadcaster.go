package host

import (
	"context"
	"errors"
	"sync"
)

// Broadcaster is an in-process NavigationSource. Publish hands an event
// to every current subscriber on the caller's goroutine.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]func(NavigationEvent)
	nextID int
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]func(NavigationEvent))}
}

// Subscribe registers fn.
func (b *Broadcaster) Subscribe(fn func(NavigationEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Publish delivers ev and returns the number of subscribers reached.
func (b *Broadcaster) Publish(ev NavigationEvent) int {
	b.mu.RLock()
	fns := make([]func(NavigationEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	return len(fns)
}

// MultiSource fans in several sources.
type MultiSource []NavigationSource

// Subscribe subscribes fn to every source.
func (m MultiSource) Subscribe(fn func(NavigationEvent)) func() {
	unsubs := make([]func(), 0, len(m))
	for _, src := range m {
		if src != nil {
			unsubs = append(unsubs, src.Subscribe(fn))
		}
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// CurrentTabs collects the open tabs of every source that can list them.
// Tabs from the sources that answered are returned along with the joined
// errors of those that did not.
func (m MultiSource) CurrentTabs(ctx context.Context) ([]NavigationEvent, error) {
	var (
		tabs []NavigationEvent
		errs []error
	)
	for _, src := range m {
		lister, ok := src.(interface {
			CurrentTabs(ctx context.Context) ([]NavigationEvent, error)
		})
		if !ok {
			continue
		}
		evs, err := lister.CurrentTabs(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tabs = append(tabs, evs...)
	}
	return tabs, errors.Join(errs...)
}
