// Package runner drives an interactive sitemon session: it reads commands,
// reports controller events and shuts down cleanly on quit or signal.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

// Config holds runner settings.
type Config struct {
	Durations       domain.Durations
	Sequence        domain.Sequence
	ProceedEmpty    bool          // Start focus with an empty list without asking
	ShutdownTimeout time.Duration // Budget for unblocking on exit (default 10s)
	ProgressEvery   int           // Print the countdown every N ticks; 0 disables
}

// Runner is the interactive session loop. Commands, signals and controller
// events are handled on a single goroutine.
type Runner struct {
	app    *usecase.App
	cfg    Config
	in     io.Reader
	out    io.Writer
	logger *zap.Logger
	queue  *eventQueue

	// pendingConfirm holds the command waiting for a y/n answer
	pendingConfirm func() error
	ticks          int
}

// New creates a runner reading commands from in and writing to out.
func New(app *usecase.App, cfg Config, in io.Reader, out io.Writer, logger *zap.Logger) *Runner {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		app:    app,
		cfg:    cfg,
		in:     in,
		out:    out,
		logger: logger,
		queue:  newEventQueue(),
	}
}

// Listener returns the controller listener feeding this runner. Register it
// with Controller.AddListener before Run.
func (r *Runner) Listener() func(domain.Event) {
	return r.queue.push
}

// Run blocks until the quit command or until ctx is done.
// The app is always shut down before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	lines := make(chan string)
	go r.readLines(ctx, lines)

	r.logger.Info("runner started")
	r.printf("%s\n", pterm.Info.Sprint("Type 'help' for commands."))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping", zap.Error(ctx.Err()))
			return r.shutdown()

		case <-r.queue.ready():
			for _, ev := range r.queue.drain() {
				r.render(ev)
			}

		case line, ok := <-lines:
			if !ok {
				// Input closed; keep running until a signal arrives
				lines = nil
				continue
			}
			if quit := r.handleLine(line); quit {
				return r.shutdown()
			}
		}
	}
}

func (r *Runner) readLines(ctx context.Context, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r.in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()

	err := r.app.Shutdown(ctx)
	for _, ev := range r.queue.drain() {
		r.render(ev)
	}
	if err != nil {
		r.logger.Error("shutdown failed", zap.Error(err))
		r.printf("%s\n", pterm.Error.Sprintf("shutdown: %v", err))
		return err
	}
	r.printf("%s\n", pterm.Success.Sprint("All sites unblocked. Bye!"))
	return nil
}

// handleLine executes one command. Returns true on quit.
func (r *Runner) handleLine(line string) bool {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))

	if r.pendingConfirm != nil {
		confirm := r.pendingConfirm
		r.pendingConfirm = nil
		if len(fields) > 0 && (fields[0] == "y" || fields[0] == "yes") {
			r.report(confirm())
		} else {
			r.printf("%s\n", pterm.Info.Sprint("Cancelled."))
		}
		return false
	}

	if len(fields) == 0 {
		return false
	}

	cmd, args := fields[0], fields[1:]
	r.logger.Debug("command", zap.String("cmd", cmd), zap.Strings("args", args))

	switch cmd {
	case "quit", "q", "exit":
		return true
	case "help", "h", "?":
		r.printHelp()
	case "focus", "f":
		r.startFocus(args)
	case "break", "b":
		r.startBreak(args)
	case "sequence", "seq":
		r.startSequence()
	case "skip", "next", "n":
		r.report(r.app.Advance())
	case "pause", "p":
		r.report(r.app.Pause())
	case "resume", "r":
		r.report(r.app.Resume())
	case "stop", "s":
		r.report(r.app.Stop())
	case "status", "st":
		r.printStatus()
	case "reset":
		r.app.ResetCompleted()
		r.printf("%s\n", pterm.Info.Sprint("Completed sessions reset to 0."))
	case "list", "ls":
		r.printList()
	case "add":
		r.addDomains(args)
	case "remove", "rm":
		r.removeDomains(args)
	default:
		r.printf("%s\n", pterm.Warning.Sprintf("unknown command %q (try 'help')", cmd))
	}
	return false
}

func (r *Runner) startFocus(args []string) {
	minutes := r.cfg.Durations[domain.KindFocus]
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			r.report(fmt.Errorf("%w: %q is not a number", domain.ErrInvalidDuration, args[0]))
			return
		}
		minutes = n
	}

	start := func(proceedEmpty bool) error {
		return r.app.StartFocus(minutes, proceedEmpty)
	}
	r.withEmptyConfirm(start)
}

func (r *Runner) startBreak(args []string) {
	kind := domain.KindShortBreak
	var rest []string
	if len(args) > 0 {
		if k, err := domain.ParseSessionKind(args[0]); err == nil && k != domain.KindFocus {
			kind = k
			rest = args[1:]
		} else {
			rest = args
		}
	}

	minutes := r.cfg.Durations[kind]
	if len(rest) > 0 {
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			r.report(fmt.Errorf("%w: %q is not a number", domain.ErrInvalidDuration, rest[0]))
			return
		}
		minutes = n
	}
	r.report(r.app.StartBreak(kind.Break(), minutes))
}

func (r *Runner) startSequence() {
	start := func(proceedEmpty bool) error {
		return r.app.StartSequence(r.cfg.Sequence, proceedEmpty)
	}
	r.withEmptyConfirm(start)
}

// withEmptyConfirm runs start, asking before proceeding with an empty
// block list.
func (r *Runner) withEmptyConfirm(start func(proceedEmpty bool) error) {
	err := start(r.cfg.ProceedEmpty)
	if !errors.Is(err, domain.ErrEmptyBlockList) {
		r.report(err)
		return
	}
	r.printf("%s", pterm.Warning.Sprint("Your block list is empty. Start anyway? [y/N] "))
	r.pendingConfirm = func() error { return start(true) }
}

func (r *Runner) addDomains(args []string) {
	if len(args) == 0 {
		r.report(fmt.Errorf("%w: usage: add <domain>...", domain.ErrInvalidDomain))
		return
	}
	for _, raw := range args {
		d, added, err := r.app.AddDomain(raw)
		switch {
		case err != nil:
			r.report(err)
		case added:
			r.printf("%s\n", pterm.Success.Sprintf("added %s", d))
		default:
			r.printf("%s\n", pterm.Info.Sprintf("%s is already in the list", d))
		}
	}
}

func (r *Runner) removeDomains(args []string) {
	if len(args) == 0 {
		r.report(fmt.Errorf("%w: usage: remove <domain>...", domain.ErrInvalidDomain))
		return
	}
	for _, raw := range args {
		d, err := r.app.RemoveDomain(context.Background(), raw)
		if err != nil {
			r.report(err)
			continue
		}
		r.printf("%s\n", pterm.Success.Sprintf("removed %s", d))
	}
}

func (r *Runner) report(err error) {
	if err == nil {
		return
	}
	r.logger.Warn("command failed", zap.Error(err))
	r.printf("%s\n", pterm.Error.Sprint(err.Error()))
}

// render prints a controller event.
func (r *Runner) render(ev domain.Event) {
	s := ev.Session
	switch ev.Type {
	case domain.EventSessionStarted:
		r.ticks = 0
		r.printf("%s\n", pterm.Info.Sprintf("%s started (%s)%s", s.Name, s.Clock(), sequencePosition(ev.State)))
	case domain.EventTick:
		r.ticks++
		if r.cfg.ProgressEvery > 0 && r.ticks%r.cfg.ProgressEvery == 0 {
			r.printf("  %s %s\n", s.Name, s.Clock())
		}
	case domain.EventPaused:
		r.printf("%s\n", pterm.Info.Sprintf("paused at %s", s.Clock()))
	case domain.EventResumed:
		r.printf("%s\n", pterm.Info.Sprintf("resumed at %s", s.Clock()))
	case domain.EventSessionEnded:
		switch ev.Reason {
		case domain.EndCompleted:
			r.printf("%s\n", pterm.Success.Sprintf("%s complete! (completed focus sessions: %d)", s.Name, ev.State.Completed))
		case domain.EndShutdown:
		default:
			r.printf("%s\n", pterm.Info.Sprintf("%s %s", s.Name, ev.Reason))
		}
	case domain.EventSequenceComplete:
		r.printf("%s\n", pterm.Success.Sprint("Sequence complete."))
	case domain.EventBlocked:
		r.printf("%s\n", pterm.Info.Sprintf("blocked %d domain(s)", len(ev.Domains)))
	case domain.EventUnblocked:
		r.printf("%s\n", pterm.Info.Sprintf("unblocked %d domain(s)", len(ev.Domains)))
	case domain.EventError:
		r.printf("%s\n", pterm.Error.Sprint(ev.Err.Error()))
	}
}

func sequencePosition(snap domain.Snapshot) string {
	if snap.Cursor < 0 || len(snap.Sequence) == 0 {
		return ""
	}
	return fmt.Sprintf(" [%d/%d]", snap.Cursor+1, len(snap.Sequence))
}

func (r *Runner) printStatus() {
	snap := r.app.Snapshot()
	s := snap.Session
	if !s.Running() {
		r.printf("Idle. Completed focus sessions: %d\n", snap.Completed)
		return
	}
	state := "running"
	if s.Paused {
		state = "paused"
	}
	r.printf("%s %s (%s)%s. Completed focus sessions: %d\n",
		s.Name, s.Clock(), state, sequencePosition(snap), snap.Completed)
}

func (r *Runner) printList() {
	domains := r.app.Domains()
	if len(domains) == 0 {
		r.printf("%s\n", pterm.Info.Sprint("The block list is empty."))
		return
	}
	for _, d := range domains {
		r.printf("  %s\n", d)
	}
}

func (r *Runner) printHelp() {
	r.printf(`Commands:
  focus [minutes]                 start a focus session
  break [short|long|eating] [min] start a break
  sequence                        run the configured sequence
  skip                            skip to the next sequence entry
  pause | resume | stop           control the running session
  status                          show the running session
  reset                           reset the completed counter
  list | add <d> | remove <d>     edit the block list (idle only)
  quit                            unblock everything and exit
`)
}

func (r *Runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

// eventQueue is an unbounded FIFO so controller listeners never block.
type eventQueue struct {
	mu     sync.Mutex
	events []domain.Event
	notify chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{notify: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev domain.Event) {
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *eventQueue) ready() <-chan struct{} {
	return q.notify
}

func (q *eventQueue) drain() []domain.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	events := q.events
	q.events = nil
	return events
}
