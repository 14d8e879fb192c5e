// Package usecase contains application business logic.
package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ControllerConfig holds the session controller settings.
type ControllerConfig struct {
	Durations          domain.Durations
	ReblockLeadSeconds int
	TickInterval       time.Duration    // Defaults to one second
	Now                func() time.Time // Defaults to time.Now
}

// Controller is the session state machine: Idle, Focus and Break, each
// running state either counting down or paused, optionally driven by a
// Sequence. Hosts I/O happens synchronously inside the operation that needs
// it. Listeners are called after the state lock is released, in order.
type Controller struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex

	hosts     domain.HostsBlocker
	scheduler domain.Scheduler
	cfg       ControllerConfig
	logger    *zap.Logger

	session      domain.Session
	sequence     domain.Sequence
	cursor       int
	domains      []string
	proceedEmpty bool
	blocked      bool
	reblocked    bool
	completed    int

	timer domain.Timer
	gen   uint64

	listeners []func(domain.Event)
	pending   []domain.Event
}

// NewController creates an idle controller.
func NewController(
	hosts domain.HostsBlocker,
	scheduler domain.Scheduler,
	cfg ControllerConfig,
	logger *zap.Logger,
) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		hosts:     hosts,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
		session:   domain.Session{Phase: domain.PhaseIdle},
		cursor:    -1,
	}
}

// AddListener registers an observer. Listeners run on the goroutine that
// changed the state; they must not block and must not call back into the
// Controller.
func (c *Controller) AddListener(l func(domain.Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// StartFocus blocks domains and starts a focus session of minutes.
func (c *Controller) StartFocus(minutes int, domains []string, proceedEmpty bool) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if c.session.Running() {
		return domain.ErrAlreadyRunning
	}
	if err := domain.ValidateMinutes(domain.KindFocus, minutes); err != nil {
		return err
	}
	if len(domains) == 0 && !proceedEmpty {
		return domain.ErrEmptyBlockList
	}

	prev := c.cursor
	c.cursor = -1
	desc := domain.SessionDescriptor{Kind: domain.KindFocus}
	if err := c.beginFocusLocked(desc, minutes, domains); err != nil {
		c.cursor = prev
		return err
	}
	return nil
}

// StartBreak starts a standalone break. Blocking is left untouched.
func (c *Controller) StartBreak(kind domain.BreakKind, minutes int) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if c.session.Running() {
		return domain.ErrAlreadyRunning
	}
	sk, err := domain.KindForBreak(kind)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidSequenceEntry, err)
	}
	if err := domain.ValidateMinutes(sk, minutes); err != nil {
		return err
	}

	c.cursor = -1
	c.beginBreakLocked(domain.SessionDescriptor{Kind: sk}, minutes)
	return nil
}

// StartSequence installs seq and starts its first entry.
func (c *Controller) StartSequence(seq domain.Sequence, domains []string, proceedEmpty bool) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if c.session.Running() {
		return domain.ErrAlreadyRunning
	}
	if len(seq) == 0 {
		return domain.ErrEmptySequence
	}
	if len(domains) == 0 && !proceedEmpty && containsFocus(seq) {
		return domain.ErrEmptyBlockList
	}

	c.sequence = append(domain.Sequence(nil), seq...)
	c.domains = append([]string(nil), domains...)
	c.proceedEmpty = proceedEmpty
	c.cursor = -1
	return c.advanceLocked()
}

// SetDomains replaces the domains used by later sequence entries.
// Refused while a session runs, since the running session owns them.
func (c *Controller) SetDomains(domains []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session.Running() {
		return domain.ErrAlreadyRunning
	}
	c.domains = append([]string(nil), domains...)
	return nil
}

// Advance moves to the next sequence entry. While a session runs it skips
// that session without completion credit.
func (c *Controller) Advance() error {
	c.mu.Lock()
	defer c.unlockAndDispatch()
	return c.advanceLocked()
}

// Tick applies one elapsed second to the running, unpaused session.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if !c.session.Running() || c.session.Paused {
		return
	}
	c.tickLocked()
}

// Pause freezes the countdown. Pausing a paused session is a no-op.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if !c.session.Running() {
		return domain.ErrNotRunning
	}
	if c.session.Paused {
		return nil
	}
	c.cancelLocked()
	c.session.Paused = true
	c.emitLocked(domain.Event{Type: domain.EventPaused})
	return nil
}

// Resume restarts the countdown. Resuming a running session is a no-op.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if !c.session.Running() {
		return domain.ErrNotRunning
	}
	if !c.session.Paused {
		return nil
	}
	c.session.Paused = false
	c.armLocked()
	c.emitLocked(domain.Event{Type: domain.EventResumed})
	return nil
}

// Stop ends the running session and the sequence. When unblocking fails
// the session keeps running and the error is returned.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if !c.session.Running() {
		return domain.ErrNotRunning
	}

	c.cancelLocked()
	if err := c.unblockLocked(context.Background()); err != nil {
		if !c.session.Paused {
			c.armLocked()
		}
		return err
	}

	c.cursor = -1
	c.endLocked(domain.EndStopped)
	return nil
}

// Shutdown cancels everything and unblocks. The controller is Idle
// afterwards even if unblocking fails; the blocked set is kept then so a
// later Shutdown can retry.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	c.cancelLocked()
	err := c.unblockLocked(ctx)
	c.cursor = -1
	if c.session.Running() {
		c.endLocked(domain.EndShutdown)
	}
	return err
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Completed returns the number of focus sessions finished naturally.
func (c *Controller) Completed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// ResetCompleted zeroes the completed counter.
func (c *Controller) ResetCompleted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = 0
}

// Cursor returns the index of the current sequence entry, or -1.
func (c *Controller) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

func (c *Controller) snapshotLocked() domain.Snapshot {
	snap := domain.Snapshot{
		Session:   c.session,
		Cursor:    c.cursor,
		Sequence:  append(domain.Sequence(nil), c.sequence...),
		Completed: c.completed,
	}
	if c.blocked {
		snap.Blocked = append([]string(nil), c.domains...)
	}
	return snap
}

func (c *Controller) advanceLocked() error {
	if c.session.Running() {
		c.cancelLocked()
		if err := c.unblockLocked(context.Background()); err != nil {
			if !c.session.Paused {
				c.armLocked()
			}
			return err
		}
		c.endLocked(domain.EndSkipped)
	}

	if len(c.sequence) == 0 {
		c.cursor = -1
		return domain.ErrEmptySequence
	}

	c.cursor++
	if c.cursor >= len(c.sequence) {
		c.cursor = -1
		c.emitLocked(domain.Event{Type: domain.EventSequenceComplete})
		return nil
	}

	entry := c.sequence[c.cursor]
	if !entry.Kind.Valid() {
		c.cursor = -1
		return fmt.Errorf("%w: unknown session type %q", domain.ErrInvalidSequenceEntry, entry.Kind)
	}
	minutes := c.cfg.Durations[entry.Kind]

	if entry.Kind == domain.KindFocus {
		if len(c.domains) == 0 && !c.proceedEmpty {
			c.cursor--
			return domain.ErrEmptyBlockList
		}
		if err := c.beginFocusLocked(entry, minutes, c.domains); err != nil {
			// Retrying Advance restarts this entry
			c.cursor--
			return err
		}
		return nil
	}

	c.beginBreakLocked(entry, minutes)
	return nil
}

func (c *Controller) beginFocusLocked(desc domain.SessionDescriptor, minutes int, domains []string) error {
	if minutes <= 0 {
		return fmt.Errorf("%w: %s has no duration", domain.ErrInvalidDuration, desc.Label())
	}
	if err := c.hosts.Block(context.Background(), domains); err != nil {
		return fmt.Errorf("failed to block domains: %w", err)
	}

	c.domains = append([]string(nil), domains...)
	c.blocked = len(domains) > 0
	if c.blocked {
		c.emitLocked(domain.Event{Type: domain.EventBlocked, Domains: c.domains})
	}
	c.startLocked(desc, minutes)
	return nil
}

func (c *Controller) beginBreakLocked(desc domain.SessionDescriptor, minutes int) {
	c.startLocked(desc, minutes)
}

func (c *Controller) startLocked(desc domain.SessionDescriptor, minutes int) {
	total := minutes * 60
	c.session = domain.Session{
		Phase:     desc.Kind.Phase(),
		Break:     desc.Kind.Break(),
		Kind:      desc.Kind,
		Name:      desc.Label(),
		Total:     total,
		Remaining: total,
		StartedAt: c.cfg.Now(),
	}
	c.reblocked = false
	c.armLocked()

	c.logger.Info("session started",
		zap.String("kind", string(desc.Kind)),
		zap.String("name", c.session.Name),
		zap.Int("seconds", total),
		zap.Int("cursor", c.cursor))
	c.emitLocked(domain.Event{Type: domain.EventSessionStarted})
}

func (c *Controller) tickLocked() {
	c.cancelLocked()
	if c.session.Remaining > 0 {
		c.session.Remaining--
	}
	if c.session.Remaining == 0 {
		c.completeLocked()
		return
	}
	c.maybeReblockLocked()
	c.armLocked()
	c.emitLocked(domain.Event{Type: domain.EventTick})
}

func (c *Controller) completeLocked() {
	if c.session.Kind == domain.KindFocus {
		c.completed++
		if err := c.unblockLocked(context.Background()); err != nil {
			c.logger.Error("failed to unblock after focus", zap.Error(err))
			c.emitLocked(domain.Event{Type: domain.EventError, Err: err})
		}
	}
	c.endLocked(domain.EndCompleted)

	if c.cursor < 0 {
		return
	}
	if err := c.advanceLocked(); err != nil {
		c.logger.Error("failed to start next session", zap.Error(err))
		c.emitLocked(domain.Event{Type: domain.EventError, Err: err})
		c.abortSequenceLocked()
	}
}

// abortSequenceLocked drops the sequence after a failed handover and
// releases sites blocked ahead of it.
func (c *Controller) abortSequenceLocked() {
	c.cursor = -1
	if err := c.unblockLocked(context.Background()); err != nil {
		c.logger.Error("failed to unblock after aborted sequence", zap.Error(err))
		c.emitLocked(domain.Event{Type: domain.EventError, Err: err})
	}
}

// maybeReblockLocked blocks again shortly before a break hands over to a
// focus session, so the sites are already blocked when focus starts.
func (c *Controller) maybeReblockLocked() {
	if c.session.Phase != domain.PhaseBreak || c.reblocked || c.blocked {
		return
	}
	if c.session.Remaining > c.cfg.ReblockLeadSeconds {
		return
	}
	next := c.cursor + 1
	if c.cursor < 0 || next >= len(c.sequence) || c.sequence[next].Kind != domain.KindFocus {
		return
	}
	c.reblocked = true
	if len(c.domains) == 0 {
		return
	}

	if err := c.hosts.Block(context.Background(), c.domains); err != nil {
		c.logger.Warn("early reblock failed", zap.Error(err))
		c.emitLocked(domain.Event{Type: domain.EventError, Err: err})
		return
	}
	c.blocked = true
	c.emitLocked(domain.Event{Type: domain.EventBlocked, Domains: c.domains})
}

// unblockLocked removes the redirects this controller added, if any.
func (c *Controller) unblockLocked(ctx context.Context) error {
	if !c.blocked {
		return nil
	}
	if err := c.hosts.Unblock(ctx, c.domains); err != nil {
		return fmt.Errorf("failed to unblock domains: %w", err)
	}
	c.blocked = false
	c.emitLocked(domain.Event{Type: domain.EventUnblocked, Domains: c.domains})
	return nil
}

func (c *Controller) endLocked(reason domain.EndReason) {
	ended := c.session
	c.session = domain.Session{Phase: domain.PhaseIdle}
	c.logger.Info("session ended",
		zap.String("kind", string(ended.Kind)),
		zap.String("reason", string(reason)),
		zap.Int("remaining", ended.Remaining))
	c.emitLocked(domain.Event{Type: domain.EventSessionEnded, Session: ended, Reason: reason})
}

// armLocked schedules the next tick. Exactly one tick is armed per running
// session; the generation token invalidates callbacks of cancelled ticks.
func (c *Controller) armLocked() {
	c.cancelLocked()
	gen := c.gen
	c.timer = c.scheduler.AfterFunc(c.cfg.TickInterval, func() {
		c.onTimer(gen)
	})
}

func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

func (c *Controller) onTimer(gen uint64) {
	c.mu.Lock()
	defer c.unlockAndDispatch()

	if gen != c.gen || !c.session.Running() || c.session.Paused {
		return
	}
	c.timer = nil
	c.tickLocked()
}

// emitLocked queues an event; it is delivered by unlockAndDispatch.
func (c *Controller) emitLocked(ev domain.Event) {
	if ev.Session.Phase == "" {
		ev.Session = c.session
	}
	ev.State = c.snapshotLocked()
	if ev.At.IsZero() {
		ev.At = c.cfg.Now()
	}
	c.pending = append(c.pending, ev)
}

// unlockAndDispatch releases the state lock and delivers queued events.
// dispatchMu is taken before the state lock is released so that events
// from concurrent operations reach listeners in the order they happened.
func (c *Controller) unlockAndDispatch() {
	events := c.pending
	c.pending = nil
	listeners := append([]func(domain.Event){}, c.listeners...)

	c.dispatchMu.Lock()
	c.mu.Unlock()
	defer c.dispatchMu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			l(ev)
		}
	}
}

func containsFocus(seq domain.Sequence) bool {
	for _, d := range seq {
		if d.Kind == domain.KindFocus {
			return true
		}
	}
	return false
}
