package timer

import (
	"errors"
	"testing"
	"time"

	"github.com/HendryAvila/sitesweep/internal/settings"
)

var frozenNow = time.Date(2026, 2, 23, 12, 0, 0, 0, time.UTC)

func init() {
	// Freeze time for deterministic tests.
	timeNow = func() time.Time { return frozenNow }
}

// --- Helper ---

func testSettings() *settings.Settings {
	return &settings.Settings{
		Enabled:         true,
		TrackedSites:    []string{"example.com"},
		IntervalMinutes: 5,
	}
}

// --- StateOf ---

func TestStateOf(t *testing.T) {
	s := testSettings()
	if got := StateOf(s); got != StateIdle {
		t.Errorf("StateOf(idle) = %s, want idle", got)
	}
	s.TimerActive = true
	if got := StateOf(s); got != StateArmed {
		t.Errorf("StateOf(armed) = %s, want armed", got)
	}
}

// --- CanArm ---

func TestCanArm_Refusals(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*settings.Settings)
		domain string
		want   error
	}{
		{"disabled", func(s *settings.Settings) { s.Enabled = false }, "example.com", ErrDisabled},
		{"zero interval", func(s *settings.Settings) { s.IntervalMinutes = 0 }, "example.com", ErrNoInterval},
		{"oversized interval", func(s *settings.Settings) { s.IntervalMinutes = 200000000 }, "example.com", ErrIntervalSize},
		{"no sites", func(s *settings.Settings) { s.TrackedSites = nil }, "example.com", ErrNoSites},
		{"untracked", func(s *settings.Settings) {}, "other.org", ErrNotTracked},
		{"lookalike", func(s *settings.Settings) {}, "ample.com", ErrNotTracked},
		{"armed", func(s *settings.Settings) {
			s.TimerActive = true
			s.NextFireAt = frozenNow.Add(time.Minute)
			s.TriggerSite = "example.com"
		}, "example.com", ErrAlreadyArmed},
	}
	for _, tt := range tests {
		s := testSettings()
		tt.mutate(s)
		err := CanArm(s, tt.domain)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: CanArm error = %v, want %v", tt.name, err, tt.want)
		}
		if !Skippable(err) {
			t.Errorf("%s: Skippable(%v) = false", tt.name, err)
		}
	}
}

func TestCanArm_AcceptsSubdomains(t *testing.T) {
	for _, d := range []string{"example.com", "www.example.com", "mail.example.com"} {
		if err := CanArm(testSettings(), d); err != nil {
			t.Errorf("CanArm(%s) error: %v", d, err)
		}
	}
}

// --- Arm ---

func TestArm_SetsDeadline(t *testing.T) {
	s := testSettings()
	if err := Arm(s, "www.example.com"); err != nil {
		t.Fatalf("Arm() error: %v", err)
	}
	if !s.TimerActive {
		t.Error("TimerActive should be true")
	}
	want := frozenNow.Add(300000 * time.Millisecond)
	if !s.NextFireAt.Equal(want) {
		t.Errorf("NextFireAt = %v, want %v", s.NextFireAt, want)
	}
	if s.TriggerSite != "www.example.com" {
		t.Errorf("TriggerSite = %q, want www.example.com", s.TriggerSite)
	}
}

func TestArm_SecondVisitDoesNotExtend(t *testing.T) {
	s := testSettings()
	if err := Arm(s, "example.com"); err != nil {
		t.Fatalf("Arm() error: %v", err)
	}
	before := *s

	orig := timeNow
	timeNow = func() time.Time { return frozenNow.Add(2 * time.Minute) }
	defer func() { timeNow = orig }()

	if err := Arm(s, "blog.example.com"); !errors.Is(err, ErrAlreadyArmed) {
		t.Errorf("second Arm error = %v, want ErrAlreadyArmed", err)
	}
	if !s.NextFireAt.Equal(before.NextFireAt) || s.TriggerSite != before.TriggerSite {
		t.Errorf("second visit changed state: %+v", s)
	}
}

// --- Disarm ---

func TestDisarm(t *testing.T) {
	s := testSettings()
	_ = Arm(s, "example.com")

	if !Disarm(s) {
		t.Error("Disarm of armed timer should report true")
	}
	if s.TimerActive || !s.NextFireAt.IsZero() || s.TriggerSite != "" {
		t.Errorf("Disarm left %+v", s)
	}
	if Disarm(s) {
		t.Error("Disarm of idle timer should report false")
	}
}

// --- IsDue / Remaining ---

func TestIsDueAndRemaining(t *testing.T) {
	s := testSettings()
	if IsDue(s, frozenNow) {
		t.Error("idle timer is never due")
	}
	if got := Remaining(s, frozenNow); got != 0 {
		t.Errorf("Remaining(idle) = %v, want 0", got)
	}

	_ = Arm(s, "example.com")
	if IsDue(s, frozenNow.Add(4*time.Minute)) {
		t.Error("should not be due before deadline")
	}
	if got := Remaining(s, frozenNow.Add(4*time.Minute)); got != time.Minute {
		t.Errorf("Remaining = %v, want 1m", got)
	}
	if !IsDue(s, frozenNow.Add(5*time.Minute)) {
		t.Error("should be due at deadline")
	}
	if got := Remaining(s, frozenNow.Add(10*time.Minute)); got != 0 {
		t.Errorf("Remaining past deadline = %v, want 0", got)
	}
}
