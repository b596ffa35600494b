package timer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/settings"
)

// DefaultPollInterval is the safety re-check period.
const DefaultPollInterval = time.Second

// FireFunc runs the purge for an expired timer. It must leave the
// settings Idle before returning.
type FireFunc func(ctx context.Context, triggerSite string) error

// Options configures a Controller.
type Options struct {
	PollInterval time.Duration
	Logger       *logging.Logger
}

// Controller owns the single timer task aimed at the armed deadline.
//
// The task is re-created on every settings broadcast and stopped when the
// settings go Idle. A low-frequency poll re-checks the deadline as well,
// so a missed broadcast or a wall-clock jump delays a purge by at most one
// poll period.
type Controller struct {
	store settings.Store
	fire  FireFunc
	poll  time.Duration
	log   *logging.Logger

	mu   sync.Mutex
	task *time.Timer
	due  chan struct{}

	// firing is held for the whole purge, including its state reset.
	firing sync.Mutex
	wg     sync.WaitGroup
}

// NewController creates a Controller. Call Run to start it.
func NewController(store settings.Store, fire FireFunc, opts Options) *Controller {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Controller{
		store: store,
		fire:  fire,
		poll:  poll,
		log:   opts.Logger,
		due:   make(chan struct{}, 1),
	}
}

// Run schedules purges until ctx is cancelled or the store closes its
// change feed. An already-expired deadline (for example after a restart)
// fires immediately.
func (c *Controller) Run(ctx context.Context) error {
	changes, unsubscribe := c.store.Subscribe()
	defer unsubscribe()
	defer c.wg.Wait()
	defer c.stopTask()

	cur, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("timer: load settings: %w", err)
	}
	c.reschedule(&cur)
	c.checkAsync(ctx)

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			c.reschedule(&ch.New)
		case <-c.due:
			c.checkAsync(ctx)
		case <-ticker.C:
			c.checkAsync(ctx)
		}
	}
}

func (c *Controller) checkAsync(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.CheckDeadline(ctx); err != nil && ctx.Err() == nil {
			c.log.Errorf("%v", err)
		}
	}()
}

// CheckDeadline fires the purge if the armed deadline has passed.
// It is safe to call at any time: a check that overlaps a running purge
// is skipped and reports false.
func (c *Controller) CheckDeadline(ctx context.Context) (bool, error) {
	if !c.firing.TryLock() {
		return false, nil
	}
	defer c.firing.Unlock()

	cur, err := c.store.Get(ctx)
	if err != nil {
		return false, fmt.Errorf("timer: check deadline: %w", err)
	}
	if !IsDue(&cur, timeNow()) {
		return false, nil
	}

	c.log.Infof("timer: deadline reached (trigger %s), purging", cur.TriggerSite)
	if err := c.fire(ctx, cur.TriggerSite); err != nil {
		return true, fmt.Errorf("timer: purge: %w", err)
	}
	return true, nil
}

// Exclusive runs fn while holding the purge guard. It returns false
// without calling fn when a purge is already running.
func (c *Controller) Exclusive(fn func()) bool {
	if !c.firing.TryLock() {
		return false
	}
	defer c.firing.Unlock()
	fn()
	return true
}

// OnVisit arms the timer for a visit to domain when the settings allow
// it. The check and the write happen in one store update, so two
// simultaneous visits arm at most once. A refused visit is not an error.
func (c *Controller) OnVisit(ctx context.Context, domain string) (bool, error) {
	_, err := c.store.Update(ctx, func(s *settings.Settings) error {
		return Arm(s, domain)
	})
	if err != nil {
		if Skippable(err) {
			c.log.Debugf("timer: visit %s not armed: %v", domain, err)
			return false, nil
		}
		return false, fmt.Errorf("timer: arm: %w", err)
	}
	c.log.Infof("timer: armed by %s", domain)
	return true, nil
}

func (c *Controller) reschedule(s *settings.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
	if !s.TimerActive {
		return
	}
	c.task = time.AfterFunc(Remaining(s, timeNow()), func() {
		select {
		case c.due <- struct{}{}:
		default:
		}
	})
}

func (c *Controller) stopTask() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.task != nil {
		c.task.Stop()
		c.task = nil
	}
}
