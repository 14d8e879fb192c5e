package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// fakeHosts is a test double for domain.HostsBlocker that tracks the
// blocked domains in memory.
type fakeHosts struct {
	mu         sync.Mutex
	blocked    map[string]bool
	blockCalls [][]string
	unblocks   [][]string
	blockErr   error
	unblockErr error
}

func newFakeHosts() *fakeHosts {
	return &fakeHosts{blocked: make(map[string]bool)}
}

func (h *fakeHosts) Block(ctx context.Context, domains []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockCalls = append(h.blockCalls, append([]string(nil), domains...))
	if h.blockErr != nil {
		return h.blockErr
	}
	for _, d := range domains {
		h.blocked[d] = true
	}
	return nil
}

func (h *fakeHosts) Unblock(ctx context.Context, domains []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unblocks = append(h.unblocks, append([]string(nil), domains...))
	if h.unblockErr != nil {
		return h.unblockErr
	}
	for _, d := range domains {
		delete(h.blocked, d)
	}
	return nil
}

func (h *fakeHosts) Entries(ctx context.Context) ([]domain.HostsEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var entries []domain.HostsEntry
	for d := range h.blocked {
		entries = append(entries, domain.HostsEntry{IP: domain.RedirectIP, Hostname: d, Comment: domain.ManagedComment})
	}
	return entries, nil
}

func (h *fakeHosts) blockedDomains() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for d := range h.blocked {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (h *fakeHosts) blockCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.blockCalls)
}

func (h *fakeHosts) unblockCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.unblocks)
}

func (h *fakeHosts) setUnblockErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unblockErr = err
}

func (h *fakeHosts) setBlockErr(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockErr = err
}

// fakeTimer is a manually fired domain.Timer.
type fakeTimer struct {
	f       func()
	d       time.Duration
	stopped bool
	fired   bool
}

// fakeScheduler is a test double for domain.Scheduler. Timers only fire
// when the test calls fire.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f, d: d}
	s.timers = append(s.timers, t)
	return &fakeTimerHandle{s: s, t: t}
}

type fakeTimerHandle struct {
	s *fakeScheduler
	t *fakeTimer
}

func (h *fakeTimerHandle) Stop() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	active := !h.t.stopped && !h.t.fired
	h.t.stopped = true
	return active
}

// pending returns timers that are neither stopped nor fired.
func (s *fakeScheduler) pending() []*fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// last returns the most recently scheduled timer.
func (s *fakeScheduler) last() *fakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.timers) == 0 {
		return nil
	}
	return s.timers[len(s.timers)-1]
}

// fire runs the most recent pending timer. Returns false when none is armed.
func (s *fakeScheduler) fire() bool {
	s.mu.Lock()
	var next *fakeTimer
	for i := len(s.timers) - 1; i >= 0; i-- {
		if t := s.timers[i]; !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.f()
	return true
}

// eventRecorder collects controller events.
type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) listen(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// types returns event types, ticks excluded.
func (r *eventRecorder) types() []domain.EventType {
	var out []domain.EventType
	for _, ev := range r.all() {
		if ev.Type != domain.EventTick {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (r *eventRecorder) ofType(t domain.EventType) []domain.Event {
	var out []domain.Event
	for _, ev := range r.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *eventRecorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// mockBlockList is a test double for domain.BlockListStore.
type mockBlockList struct {
	mu      sync.Mutex
	domains []string
	saves   int
	loadErr error
	saveErr error
}

func (m *mockBlockList) Load() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]string(nil), m.domains...), nil
}

func (m *mockBlockList) Save(domains []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.domains = append([]string(nil), domains...)
	return nil
}

func (m *mockBlockList) Path() string { return "/tmp/mock-blocklist" }

func (m *mockBlockList) stored() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.domains...)
}

// mockStateStore is a test double for domain.StateStore.
type mockStateStore struct {
	mu      sync.Mutex
	journal *domain.Journal
	saves   int
	cleared int
}

func (m *mockStateStore) SaveJournal(j domain.Journal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.journal = &j
	return nil
}

func (m *mockStateStore) LoadJournal() (*domain.Journal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.journal == nil {
		return nil, nil
	}
	j := *m.journal
	return &j, nil
}

func (m *mockStateStore) ClearJournal() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
	m.journal = nil
	return nil
}

func (m *mockStateStore) Close() error { return nil }

// mockHistory is a test double for domain.HistoryStore.
type mockHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
}

func (m *mockHistory) Record(rec domain.HistoryRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return "id", nil
}

func (m *mockHistory) Since(t time.Time) ([]domain.HistoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryRecord(nil), m.records...), nil
}

func (m *mockHistory) Close() error { return nil }

func (m *mockHistory) all() []domain.HistoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryRecord(nil), m.records...)
}

// mockStatus is a test double for domain.StatusWriter.
type mockStatus struct {
	mu      sync.Mutex
	last    *domain.Status
	cleared bool
}

func (m *mockStatus) Write(s domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &s
	m.cleared = false
	return nil
}

func (m *mockStatus) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = nil
	m.cleared = true
	return nil
}

// mockNotifier is a test double for domain.Notifier.
type mockNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (m *mockNotifier) Notify(title, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	return nil
}

func (m *mockNotifier) all() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.titles...)
}

// mockHook is a test double for domain.SessionHook.
type mockHook struct {
	mu  sync.Mutex
	ran []domain.Event
}

func (m *mockHook) Run(ctx context.Context, ev domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ran = append(m.ran, ev)
	return nil
}

func (m *mockHook) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ran)
}

// mockSettings is a test double for domain.SettingsStore.
type mockSettings struct {
	mu    sync.Mutex
	days  []time.Time
	saves int
}

func (m *mockSettings) RecordFocusDay(day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.days = append(m.days, day)
	return nil
}

func (m *mockSettings) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return nil
}

func (m *mockSettings) focusDays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.days)
}

// mockProcessManager is a test double for domain.ProcessManager.
type mockProcessManager struct {
	pid int
}

func (m *mockProcessManager) IsRunning(pid int) bool { return pid == m.pid }

func (m *mockProcessManager) GetCurrentPID() int { return m.pid }

var (
	_ domain.HostsBlocker   = (*fakeHosts)(nil)
	_ domain.Scheduler      = (*fakeScheduler)(nil)
	_ domain.BlockListStore = (*mockBlockList)(nil)
	_ domain.StateStore     = (*mockStateStore)(nil)
	_ domain.HistoryStore   = (*mockHistory)(nil)
	_ domain.StatusWriter   = (*mockStatus)(nil)
	_ domain.Notifier       = (*mockNotifier)(nil)
	_ domain.SessionHook    = (*mockHook)(nil)
	_ domain.SettingsStore  = (*mockSettings)(nil)
	_ domain.ProcessManager = (*mockProcessManager)(nil)
)
