// Package timer decides when tracked-site history is purged.
//
// The state lives in settings.Settings; the functions here are pure
// transitions over that record. Controller schedules the purge for the
// armed deadline and re-aims itself whenever settings change.
package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/HendryAvila/sitesweep/internal/settings"
	"github.com/HendryAvila/sitesweep/internal/sites"
)

// State is the timer state derived from settings.
type State string

const (
	StateIdle  State = "idle"
	StateArmed State = "armed"
)

var (
	ErrDisabled     = errors.New("sweeping is disabled")
	ErrNoInterval   = errors.New("interval is zero")
	ErrIntervalSize = errors.New("interval is too long")
	ErrNoSites      = errors.New("no tracked sites")
	ErrNotTracked   = errors.New("domain is not tracked")
	ErrAlreadyArmed = errors.New("timer already armed")
)

// StateOf returns the state encoded in s.
func StateOf(s *settings.Settings) State {
	if s.TimerActive {
		return StateArmed
	}
	return StateIdle
}

// CanArm checks whether a visit to domain may arm the timer.
// The returned error wraps one of the sentinel errors above.
func CanArm(s *settings.Settings, domain string) error {
	if !s.Enabled {
		return ErrDisabled
	}
	if s.IntervalMinutes == 0 {
		return ErrNoInterval
	}
	if s.IntervalMinutes > settings.MaxIntervalMinutes {
		return fmt.Errorf("%d minutes: %w", s.IntervalMinutes, ErrIntervalSize)
	}
	if len(s.TrackedSites) == 0 {
		return ErrNoSites
	}
	if _, ok := sites.MatchAny(domain, s.TrackedSites); !ok {
		return fmt.Errorf("%q: %w", domain, ErrNotTracked)
	}
	if s.TimerActive {
		return fmt.Errorf("triggered by %q: %w", s.TriggerSite, ErrAlreadyArmed)
	}
	return nil
}

// Arm moves the timer to Armed for a visit to domain, with the deadline
// one interval from now. A visit while Armed is rejected and changes
// nothing.
func Arm(s *settings.Settings, domain string) error {
	if err := CanArm(s, domain); err != nil {
		return err
	}
	s.TimerActive = true
	s.NextFireAt = timeNow().Add(s.Interval())
	s.TriggerSite = domain
	return nil
}

// Disarm returns the timer to Idle and reports whether it was armed.
func Disarm(s *settings.Settings) bool {
	was := s.TimerActive
	s.TimerActive = false
	s.NextFireAt = time.Time{}
	s.TriggerSite = ""
	return was
}

// IsDue reports whether the armed deadline has passed at now.
func IsDue(s *settings.Settings, now time.Time) bool {
	return s.TimerActive && !s.NextFireAt.IsZero() && !now.Before(s.NextFireAt)
}

// Remaining is the time left until the deadline, zero when idle or due.
func Remaining(s *settings.Settings, now time.Time) time.Duration {
	if !s.TimerActive {
		return 0
	}
	if d := s.NextFireAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Skippable reports whether err is a CanArm refusal rather than a failure.
func Skippable(err error) bool {
	return errors.Is(err, ErrDisabled) ||
		errors.Is(err, ErrNoInterval) ||
		errors.Is(err, ErrIntervalSize) ||
		errors.Is(err, ErrNoSites) ||
		errors.Is(err, ErrNotTracked) ||
		errors.Is(err, ErrAlreadyArmed)
}
