package settings_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/HendryAvila/sitesweep/internal/settings"
)

// newTestStore creates a store backed by a temp directory for isolation.
func newTestStore(t *testing.T) *settings.SQLiteStore {
	t.Helper()
	s, err := settings.New(settings.Config{DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ─── New / Initialization ───────────────────────────────────────────────────

func TestNew_SeedsDefaults(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Enabled {
		t.Error("Enabled should default to false")
	}
	if got.IntervalMinutes != 0 {
		t.Errorf("IntervalMinutes = %d, want 0", got.IntervalMinutes)
	}
	if got.TrackedSites == nil || len(got.TrackedSites) != 0 {
		t.Errorf("TrackedSites = %#v, want empty non-nil", got.TrackedSites)
	}
	if got.TimerActive || !got.NextFireAt.IsZero() || got.TriggerSite != "" {
		t.Errorf("timer should be idle, got %+v", got)
	}
	if got.LastCleanedAt != nil {
		t.Errorf("LastCleanedAt = %v, want nil", got.LastCleanedAt)
	}
}

func TestNew_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := settings.New(settings.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	cleaned := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fire := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	_, err = s.Update(ctx, func(st *settings.Settings) error {
		st.Enabled = true
		st.TrackedSites = []string{"example.com"}
		st.IntervalMinutes = 5
		st.TimerActive = true
		st.NextFireAt = fire
		st.TriggerSite = "www.example.com"
		st.LastCleanedAt = &cleaned
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	s.Close()

	s2, err := settings.New(settings.Config{DataDir: dir})
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !got.Enabled || got.IntervalMinutes != 5 || len(got.TrackedSites) != 1 {
		t.Errorf("reopened settings = %+v", got)
	}
	if !got.TimerActive || !got.NextFireAt.Equal(fire) || got.TriggerSite != "www.example.com" {
		t.Errorf("timer not persisted: %+v", got)
	}
	if got.LastCleanedAt == nil || !got.LastCleanedAt.Equal(cleaned) {
		t.Errorf("LastCleanedAt = %v, want %v", got.LastCleanedAt, cleaned)
	}
	if _, err := filepath.Abs(filepath.Join(dir, "settings.db")); err != nil {
		t.Fatal(err)
	}
}

// ─── Update ─────────────────────────────────────────────────────────────────

func TestUpdate_ReportsChangedKeys(t *testing.T) {
	s := newTestStore(t)

	c, err := s.Update(context.Background(), func(st *settings.Settings) error {
		st.Enabled = true
		st.IntervalMinutes = 10
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(c.Keys) != 2 || c.Keys[0] != settings.KeyEnabled || c.Keys[1] != settings.KeyIntervalMinutes {
		t.Errorf("Keys = %v, want [enabled interval_minutes]", c.Keys)
	}
	if c.Old.Enabled || !c.New.Enabled {
		t.Errorf("Old/New = %v/%v", c.Old.Enabled, c.New.Enabled)
	}
	if !c.Has(settings.KeyEnabled) || c.Has(settings.KeyTrackedSites) {
		t.Error("Has() disagrees with Keys")
	}
}

func TestUpdate_NoOpIsNotBroadcast(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	c, err := s.Update(context.Background(), func(st *settings.Settings) error { return nil })
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if len(c.Keys) != 0 {
		t.Errorf("Keys = %v, want none", c.Keys)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected broadcast: %v", got.Keys)
	default:
	}
}

func TestUpdate_FnErrorAbortsWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := s.Update(ctx, func(st *settings.Settings) error {
		st.Enabled = true
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}

	got, _ := s.Get(ctx)
	if got.Enabled {
		t.Error("aborted update should not be written")
	}
}

func TestUpdate_NormalizesBeforeCommit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.Update(ctx, func(st *settings.Settings) error {
		st.TrackedSites = []string{"Example.com", "example.com", " b.org "}
		// Interval 0 cannot keep a timer armed.
		st.TimerActive = true
		st.NextFireAt = time.Now().Add(time.Minute)
		st.TriggerSite = "example.com"
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if c.New.TimerActive {
		t.Error("timer should be normalized off with zero interval")
	}

	got, _ := s.Get(ctx)
	if len(got.TrackedSites) != 2 || got.TrackedSites[0] != "example.com" || got.TrackedSites[1] != "b.org" {
		t.Errorf("TrackedSites = %v", got.TrackedSites)
	}
	if got.TimerActive || got.TriggerSite != "" || !got.NextFireAt.IsZero() {
		t.Errorf("timer persisted while inconsistent: %+v", got)
	}
}

func TestUpdate_ConcurrentWritersSerialize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(ctx, func(st *settings.Settings) error {
				st.IntervalMinutes++
				return nil
			})
			if err != nil {
				t.Errorf("Update() error: %v", err)
			}
		}()
	}
	wg.Wait()

	got, _ := s.Get(ctx)
	if got.IntervalMinutes != n {
		t.Errorf("IntervalMinutes = %d, want %d (lost update)", got.IntervalMinutes, n)
	}
}

// ─── Subscribe ──────────────────────────────────────────────────────────────

func TestSubscribe_ReceivesCommittedChange(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	if _, err := s.Update(context.Background(), func(st *settings.Settings) error {
		st.Enabled = true
		return nil
	}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	select {
	case c := <-ch:
		if !c.New.Enabled {
			t.Errorf("broadcast New.Enabled = false")
		}
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := newTestStore(t)
	ch, cancel := s.Subscribe()
	cancel()
	cancel() // idempotent

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
}

func TestSubscribe_SlowSubscriberDoesNotBlockWriter(t *testing.T) {
	s := newTestStore(t)
	_, cancel := s.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			_, _ = s.Update(context.Background(), func(st *settings.Settings) error {
				st.Enabled = !st.Enabled
				return nil
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("writer blocked on a full subscriber")
	}
}

// ─── Purge runs ─────────────────────────────────────────────────────────────

func TestRecordRun_AssignsIDAndListsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := s.RecordRun(ctx, settings.PurgeRun{
		Trigger:    "timer",
		Sites:      []string{"a.com"},
		Deleted:    3,
		StartedAt:  base,
		FinishedAt: base.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("RecordRun() error: %v", err)
	}
	if first.ID == "" {
		t.Error("RecordRun should assign an ID")
	}

	if _, err := s.RecordRun(ctx, settings.PurgeRun{
		Trigger:    "manual",
		StartedAt:  base.Add(time.Hour),
		FinishedAt: base.Add(time.Hour),
	}); err != nil {
		t.Fatalf("RecordRun() error: %v", err)
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].Trigger != "manual" || runs[1].Trigger != "timer" {
		t.Errorf("order = %s, %s; want manual, timer", runs[0].Trigger, runs[1].Trigger)
	}
	if runs[1].Deleted != 3 || len(runs[1].Sites) != 1 || runs[1].Sites[0] != "a.com" {
		t.Errorf("run = %+v", runs[1])
	}
	if !runs[1].StartedAt.Equal(base) {
		t.Errorf("StartedAt = %v, want %v", runs[1].StartedAt, base)
	}
	if runs[0].Sites == nil {
		t.Error("Sites should decode as empty slice, not nil")
	}
}

func TestRuns_Limit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		at := time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC)
		if _, err := s.RecordRun(ctx, settings.PurgeRun{Trigger: "cli", StartedAt: at, FinishedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.Runs(ctx, 3)
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}
	if len(runs) != 3 {
		t.Errorf("len(runs) = %d, want 3", len(runs))
	}
}
