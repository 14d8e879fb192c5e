package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// AppDeps are the collaborators of App. Only Hosts and BlockList are
// required; the rest are skipped when nil.
type AppDeps struct {
	Hosts     domain.HostsBlocker
	BlockList domain.BlockListStore
	State     domain.StateStore
	History   domain.HistoryStore
	Status    domain.StatusWriter
	Notifier  domain.Notifier
	Hook      domain.SessionHook
	Settings  domain.SettingsStore
	Processes domain.ProcessManager
}

// App owns the block list and connects controller events to persistence,
// notifications and the session hook.
type App struct {
	mu      sync.Mutex
	domains map[string]struct{}

	ctrl   *Controller
	deps   AppDeps
	logger *zap.Logger

	// Background notifications and hooks
	wg sync.WaitGroup
}

// NewApp creates the application state and subscribes to ctrl.
func NewApp(ctrl *Controller, deps AppDeps, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		domains: make(map[string]struct{}),
		ctrl:    ctrl,
		deps:    deps,
		logger:  logger,
	}
	ctrl.AddListener(a.handleEvent)
	return a
}

// Load reads the persisted block list. Entries that do not normalise are
// dropped with a warning.
func (a *App) Load() error {
	stored, err := a.deps.BlockList.Load()
	if err != nil {
		return fmt.Errorf("failed to load block list: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.domains = make(map[string]struct{}, len(stored))
	for _, raw := range stored {
		d, err := domain.Normalize(raw)
		if err != nil {
			a.logger.Warn("skipping invalid block list entry",
				zap.String("entry", raw),
				zap.Error(err))
			continue
		}
		a.domains[d] = struct{}{}
	}
	a.logger.Debug("block list loaded",
		zap.String("path", a.deps.BlockList.Path()),
		zap.Int("count", len(a.domains)))
	return nil
}

// Domains returns the block list sorted.
func (a *App) Domains() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedLocked()
}

func (a *App) sortedLocked() []string {
	out := make([]string, 0, len(a.domains))
	for d := range a.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Running reports whether a session is active.
func (a *App) Running() bool {
	return a.ctrl.Snapshot().Session.Running()
}

// AddDomain normalises raw and adds it to the block list. Returns the
// normalised domain and whether it was newly added.
func (a *App) AddDomain(raw string) (string, bool, error) {
	if a.Running() {
		return "", false, fmt.Errorf("cannot edit the block list during a session: %w", domain.ErrAlreadyRunning)
	}
	d, err := domain.Normalize(raw)
	if err != nil {
		return "", false, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.domains[d]; ok {
		return d, false, nil
	}
	a.domains[d] = struct{}{}
	if err := a.deps.BlockList.Save(a.sortedLocked()); err != nil {
		delete(a.domains, d)
		return d, false, fmt.Errorf("failed to save block list: %w", err)
	}

	a.logger.Info("domain added", zap.String("domain", d))
	return d, true, nil
}

// RemoveDomain unblocks the domain's variants and removes it from the list.
func (a *App) RemoveDomain(ctx context.Context, raw string) (string, error) {
	if a.Running() {
		return "", fmt.Errorf("cannot edit the block list during a session: %w", domain.ErrAlreadyRunning)
	}
	d, err := domain.Normalize(raw)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.domains[d]; !ok {
		return d, fmt.Errorf("%w: %s", domain.ErrDomainNotListed, d)
	}
	if err := a.deps.Hosts.Unblock(ctx, []string{d}); err != nil {
		return d, fmt.Errorf("failed to unblock %s: %w", d, err)
	}

	delete(a.domains, d)
	if err := a.deps.BlockList.Save(a.sortedLocked()); err != nil {
		a.domains[d] = struct{}{}
		return d, fmt.Errorf("failed to save block list: %w", err)
	}

	a.logger.Info("domain removed", zap.String("domain", d))
	return d, nil
}

// CleanupOnStartup removes redirects left by a previous run: every listed
// domain plus whatever the journal says was blocked. Errors are logged.
func (a *App) CleanupOnStartup(ctx context.Context) {
	targets := a.Domains()

	if a.deps.State != nil {
		j, err := a.deps.State.LoadJournal()
		if err != nil {
			a.logger.Warn("failed to read journal", zap.Error(err))
		}
		if j != nil {
			a.logger.Warn("recovering from unclean shutdown",
				zap.Int("pid", j.PID),
				zap.Time("updated_at", j.UpdatedAt),
				zap.Strings("blocked", j.Snapshot.Blocked))
			targets = mergeDomains(targets, j.Snapshot.Blocked)
		}
	}

	if err := a.deps.Hosts.Unblock(ctx, targets); err != nil {
		// Keep the journal so the next start retries its domains
		a.logger.Warn("startup cleanup failed", zap.Error(err))
		return
	}

	if a.deps.State != nil {
		if err := a.deps.State.ClearJournal(); err != nil {
			a.logger.Warn("failed to clear journal", zap.Error(err))
		}
	}
}

// StartFocus starts a focus session blocking the current list.
func (a *App) StartFocus(minutes int, proceedEmpty bool) error {
	return a.ctrl.StartFocus(minutes, a.Domains(), proceedEmpty)
}

// StartBreak starts a standalone break.
func (a *App) StartBreak(kind domain.BreakKind, minutes int) error {
	return a.ctrl.StartBreak(kind, minutes)
}

// StartSequence runs seq against the current list.
func (a *App) StartSequence(seq domain.Sequence, proceedEmpty bool) error {
	return a.ctrl.StartSequence(seq, a.Domains(), proceedEmpty)
}

// Advance skips the running session or starts the next sequence entry.
func (a *App) Advance() error {
	if !a.Running() {
		if err := a.ctrl.SetDomains(a.Domains()); err != nil {
			return err
		}
	}
	return a.ctrl.Advance()
}

// Pause freezes the running session.
func (a *App) Pause() error { return a.ctrl.Pause() }

// Resume continues a paused session.
func (a *App) Resume() error { return a.ctrl.Resume() }

// Stop ends the running session and sequence.
func (a *App) Stop() error { return a.ctrl.Stop() }

// Snapshot returns the controller state.
func (a *App) Snapshot() domain.Snapshot { return a.ctrl.Snapshot() }

// ResetCompleted zeroes the completed counter.
func (a *App) ResetCompleted() { a.ctrl.ResetCompleted() }

// Shutdown stops the controller, unblocks the whole list and persists.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := a.ctrl.Shutdown(ctx); err != nil {
		a.logger.Warn("controller shutdown", zap.Error(err))
	}

	domains := a.Domains()
	if err := a.deps.Hosts.Unblock(ctx, domains); err != nil {
		errs = append(errs, fmt.Errorf("failed to unblock: %w", err))
	}
	if err := a.deps.BlockList.Save(domains); err != nil {
		errs = append(errs, fmt.Errorf("failed to save block list: %w", err))
	}
	if a.deps.Settings != nil {
		if err := a.deps.Settings.Save(); err != nil {
			errs = append(errs, fmt.Errorf("failed to save settings: %w", err))
		}
	}

	a.waitBackground(ctx)

	// The journal must outlive a failed unblock so the next start retries it
	if len(errs) == 0 && a.deps.State != nil {
		if err := a.deps.State.ClearJournal(); err != nil {
			errs = append(errs, fmt.Errorf("failed to clear journal: %w", err))
		}
	}
	if a.deps.Status != nil {
		if err := a.deps.Status.Clear(); err != nil {
			a.logger.Warn("failed to remove status file", zap.Error(err))
		}
	}

	a.logger.Info("shutdown complete", zap.Int("domains", len(domains)))
	return errors.Join(errs...)
}

func (a *App) waitBackground(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.logger.Warn("shutdown before session hooks finished")
	}
}

// handleEvent runs on the controller's dispatch path.
func (a *App) handleEvent(ev domain.Event) {
	switch ev.Type {
	case domain.EventTick:
		return
	case domain.EventError:
		a.logger.Error("session error", zap.Error(ev.Err))
		return
	}

	a.journal(ev)
	a.writeStatus(ev)

	switch ev.Type {
	case domain.EventSessionEnded:
		a.recordHistory(ev)
		if ev.Reason == domain.EndCompleted {
			a.onCompleted(ev)
		}
	case domain.EventSequenceComplete:
		a.notify("Sequence complete", "All sessions in the sequence are done.")
	}
}

func (a *App) journal(ev domain.Event) {
	if a.deps.State == nil {
		return
	}
	pid := 0
	if a.deps.Processes != nil {
		pid = a.deps.Processes.GetCurrentPID()
	}
	j := domain.Journal{PID: pid, Snapshot: ev.State, UpdatedAt: ev.At}
	if err := a.deps.State.SaveJournal(j); err != nil {
		a.logger.Warn("failed to save journal", zap.Error(err))
	}
}

func (a *App) writeStatus(ev domain.Event) {
	if a.deps.Status == nil {
		return
	}
	pid := 0
	if a.deps.Processes != nil {
		pid = a.deps.Processes.GetCurrentPID()
	}
	if err := a.deps.Status.Write(StatusFromSnapshot(pid, ev.State, ev.At)); err != nil {
		a.logger.Warn("failed to write status", zap.Error(err))
	}
}

// StatusFromSnapshot converts controller state into the status file record.
func StatusFromSnapshot(pid int, snap domain.Snapshot, at time.Time) domain.Status {
	s := snap.Session
	st := domain.Status{
		PID:       pid,
		Phase:     s.Phase,
		Kind:      s.Kind,
		Name:      s.Name,
		Paused:    s.Paused,
		Remaining: s.Remaining,
		Cursor:    snap.Cursor,
		Length:    len(snap.Sequence),
		Completed: snap.Completed,
	}
	if s.Running() && !s.Paused {
		st.EndsAt = at.Add(time.Duration(s.Remaining) * time.Second)
	}
	return st
}

func (a *App) recordHistory(ev domain.Event) {
	if a.deps.History == nil {
		return
	}
	rec := domain.HistoryRecord{
		Kind:           ev.Session.Kind,
		Name:           ev.Session.Name,
		StartedAt:      ev.Session.StartedAt,
		EndedAt:        ev.At,
		PlannedSeconds: ev.Session.Total,
		Reason:         ev.Reason,
	}
	if _, err := a.deps.History.Record(rec); err != nil {
		a.logger.Warn("failed to record history", zap.Error(err))
	}
}

func (a *App) onCompleted(ev domain.Event) {
	if ev.Session.Kind == domain.KindFocus {
		a.notify("Focus session complete!", "Blocked sites are available again.")
		if a.deps.Settings != nil {
			if err := a.deps.Settings.RecordFocusDay(ev.At); err != nil {
				a.logger.Warn("failed to save streak", zap.Error(err))
			}
		}
	} else {
		a.notify(ev.Session.Name+" is over", "Time to get back to work.")
	}

	if a.deps.Hook == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.deps.Hook.Run(context.Background(), ev); err != nil {
			a.logger.Warn("session hook failed", zap.Error(err))
		}
	}()
}

func (a *App) notify(title, message string) {
	if a.deps.Notifier == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.deps.Notifier.Notify(title, message); err != nil {
			a.logger.Warn("notification failed", zap.Error(err))
		}
	}()
}

func mergeDomains(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))
	for _, d := range a {
		set[d] = struct{}{}
	}
	for _, d := range b {
		set[d] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
