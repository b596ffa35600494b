package timer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HendryAvila/sitesweep/internal/settings"
)

// --- Helpers ---

func newTestStore(t *testing.T) *settings.SQLiteStore {
	t.Helper()
	s, err := settings.New(settings.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	_, err = s.Update(context.Background(), func(st *settings.Settings) error {
		st.Enabled = true
		st.TrackedSites = []string{"example.com"}
		st.IntervalMinutes = 5
		return nil
	})
	if err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	return s
}

// resetFire is a FireFunc that records triggers and resets state the way
// the purge executor does.
func resetFire(store settings.Store, fired *[]string, mu *sync.Mutex) FireFunc {
	return func(ctx context.Context, trigger string) error {
		mu.Lock()
		*fired = append(*fired, trigger)
		mu.Unlock()
		_, err := store.Update(ctx, func(s *settings.Settings) error {
			Disarm(s)
			now := timeNow()
			s.LastCleanedAt = &now
			return nil
		})
		return err
	}
}

func withNow(t *testing.T, at time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = orig })
}

func (c *Controller) scheduled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task != nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// --- OnVisit ---

func TestOnVisit_ArmsOnce(t *testing.T) {
	store := newTestStore(t)
	c := NewController(store, func(context.Context, string) error { return nil }, Options{})
	ctx := context.Background()

	armed, err := c.OnVisit(ctx, "www.example.com")
	if err != nil || !armed {
		t.Fatalf("first OnVisit = %v, %v; want true, nil", armed, err)
	}
	armed, err = c.OnVisit(ctx, "example.com")
	if err != nil || armed {
		t.Errorf("second OnVisit = %v, %v; want false, nil", armed, err)
	}

	s, _ := store.Get(ctx)
	if s.TriggerSite != "www.example.com" {
		t.Errorf("TriggerSite = %q, want www.example.com", s.TriggerSite)
	}
	if !s.NextFireAt.Equal(frozenNow.Add(5 * time.Minute)) {
		t.Errorf("NextFireAt = %v, want now+5m", s.NextFireAt)
	}
}

func TestOnVisit_UntrackedIsNoOp(t *testing.T) {
	store := newTestStore(t)
	c := NewController(store, nil, Options{})

	armed, err := c.OnVisit(context.Background(), "other.org")
	if err != nil || armed {
		t.Errorf("OnVisit(other.org) = %v, %v; want false, nil", armed, err)
	}
}

func TestOnVisit_ConcurrentVisitsArmOnce(t *testing.T) {
	store := newTestStore(t)
	c := NewController(store, nil, Options{})

	var armedCount int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			armed, err := c.OnVisit(context.Background(), "example.com")
			if err != nil {
				t.Errorf("OnVisit error: %v", err)
			}
			if armed {
				atomic.AddInt32(&armedCount, 1)
			}
		}()
	}
	wg.Wait()

	if armedCount != 1 {
		t.Errorf("armed %d times, want 1", armedCount)
	}
}

// --- CheckDeadline ---

func TestCheckDeadline_NotDue(t *testing.T) {
	store := newTestStore(t)
	var fired []string
	var mu sync.Mutex
	c := NewController(store, resetFire(store, &fired, &mu), Options{})
	ctx := context.Background()

	if _, err := c.OnVisit(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	withNow(t, frozenNow.Add(4*time.Minute))

	ran, err := c.CheckDeadline(ctx)
	if err != nil || ran {
		t.Errorf("CheckDeadline = %v, %v; want false, nil", ran, err)
	}
	if len(fired) != 0 {
		t.Errorf("fired = %v, want none", fired)
	}
}

func TestCheckDeadline_FiresAndResets(t *testing.T) {
	store := newTestStore(t)
	var fired []string
	var mu sync.Mutex
	c := NewController(store, resetFire(store, &fired, &mu), Options{})
	ctx := context.Background()

	if _, err := c.OnVisit(ctx, "www.example.com"); err != nil {
		t.Fatal(err)
	}
	withNow(t, frozenNow.Add(5*time.Minute))

	ran, err := c.CheckDeadline(ctx)
	if err != nil || !ran {
		t.Fatalf("CheckDeadline = %v, %v; want true, nil", ran, err)
	}
	if len(fired) != 1 || fired[0] != "www.example.com" {
		t.Errorf("fired = %v", fired)
	}

	s, _ := store.Get(ctx)
	if StateOf(&s) != StateIdle {
		t.Errorf("state after purge = %s, want idle", StateOf(&s))
	}
	if s.LastCleanedAt == nil {
		t.Error("LastCleanedAt should be stamped")
	}

	// Idempotent once reset.
	ran, _ = c.CheckDeadline(ctx)
	if ran {
		t.Error("second CheckDeadline should not fire")
	}
}

func TestCheckDeadline_OverlapIsSkipped(t *testing.T) {
	store := newTestStore(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	fire := func(ctx context.Context, trigger string) error {
		close(entered)
		<-release
		_, err := store.Update(ctx, func(s *settings.Settings) error {
			Disarm(s)
			return nil
		})
		return err
	}
	c := NewController(store, fire, Options{})
	ctx := context.Background()

	if _, err := c.OnVisit(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	withNow(t, frozenNow.Add(time.Hour))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.CheckDeadline(ctx)
	}()
	<-entered

	ran, err := c.CheckDeadline(ctx)
	if err != nil || ran {
		t.Errorf("overlapping CheckDeadline = %v, %v; want false, nil", ran, err)
	}
	if c.Exclusive(func() { t.Error("Exclusive ran during a purge") }) {
		t.Error("Exclusive should report false during a purge")
	}

	close(release)
	<-done

	if !c.Exclusive(func() {}) {
		t.Error("Exclusive should run once the purge finished")
	}
}

// --- Run ---

func TestRun_ReschedulesOnChange(t *testing.T) {
	store := newTestStore(t)
	c := NewController(store, func(context.Context, string) error { return nil }, Options{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if _, err := c.OnVisit(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "task scheduled", c.scheduled)

	if _, err := store.Update(ctx, func(s *settings.Settings) error {
		s.Enabled = false
		Disarm(s)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "task stopped", func() bool { return !c.scheduled() })

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v", err)
	}
}

func TestRun_OverdueDeadlineFiresOnStart(t *testing.T) {
	store := newTestStore(t)
	var fired []string
	var mu sync.Mutex
	c := NewController(store, resetFire(store, &fired, &mu), Options{PollInterval: 10 * time.Millisecond})

	if _, err := c.OnVisit(context.Background(), "example.com"); err != nil {
		t.Fatal(err)
	}

	orig := timeNow
	timeNow = func() time.Time { return frozenNow.Add(6 * time.Minute) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, "purge", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	})
	cancel()
	<-done
	timeNow = orig

	s, _ := store.Get(context.Background())
	if s.TimerActive {
		t.Error("timer should be idle after the purge")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Errorf("fired %d times, want 1", len(fired))
	}
}
