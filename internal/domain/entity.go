// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	// RedirectIP is the loopback address blocked domains resolve to.
	RedirectIP = "127.0.0.1"

	// ManagedComment tags the hosts lines written by sitemon.
	ManagedComment = "# Added by sitemon"
)

// Phase is the coarse state of the session controller.
type Phase string

const (
	PhaseIdle  Phase = "idle"
	PhaseFocus Phase = "focus"
	PhaseBreak Phase = "break"
)

// BreakKind distinguishes the break subtypes.
type BreakKind string

const (
	BreakNone   BreakKind = ""
	BreakShort  BreakKind = "short"
	BreakLong   BreakKind = "long"
	BreakEating BreakKind = "eating"
)

// SessionKind is the closed set of session types a sequence can contain.
type SessionKind string

const (
	KindFocus       SessionKind = "focus"
	KindShortBreak  SessionKind = "short_break"
	KindLongBreak   SessionKind = "long_break"
	KindEatingBreak SessionKind = "eating_break"
)

// sessionKindAliases maps accepted spellings to kinds. Display names are
// accepted so older settings files keep loading.
var sessionKindAliases = map[string]SessionKind{
	"focus":        KindFocus,
	"work":         KindFocus,
	"short_break":  KindShortBreak,
	"short break":  KindShortBreak,
	"short":        KindShortBreak,
	"long_break":   KindLongBreak,
	"long break":   KindLongBreak,
	"long":         KindLongBreak,
	"eating_break": KindEatingBreak,
	"eating break": KindEatingBreak,
	"eating":       KindEatingBreak,
}

// ParseSessionKind resolves a kind from its configured spelling.
func ParseSessionKind(s string) (SessionKind, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if kind, ok := sessionKindAliases[key]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown session type %q", ErrInvalidSequenceEntry, s)
}

// Valid reports whether k is one of the known kinds.
func (k SessionKind) Valid() bool {
	switch k {
	case KindFocus, KindShortBreak, KindLongBreak, KindEatingBreak:
		return true
	}
	return false
}

// Phase returns the controller phase a session of this kind runs in.
func (k SessionKind) Phase() Phase {
	if k == KindFocus {
		return PhaseFocus
	}
	return PhaseBreak
}

// Break returns the break subtype for break kinds and BreakNone otherwise.
func (k SessionKind) Break() BreakKind {
	switch k {
	case KindShortBreak:
		return BreakShort
	case KindLongBreak:
		return BreakLong
	case KindEatingBreak:
		return BreakEating
	}
	return BreakNone
}

// DisplayName returns the human readable label of the kind.
func (k SessionKind) DisplayName() string {
	switch k {
	case KindFocus:
		return "Focus"
	case KindShortBreak:
		return "Short Break"
	case KindLongBreak:
		return "Long Break"
	case KindEatingBreak:
		return "Eating Break"
	}
	return string(k)
}

// KindForBreak maps a break subtype back to its session kind.
func KindForBreak(b BreakKind) (SessionKind, error) {
	switch b {
	case BreakShort:
		return KindShortBreak, nil
	case BreakLong:
		return KindLongBreak, nil
	case BreakEating:
		return KindEatingBreak, nil
	}
	return "", fmt.Errorf("unknown break kind %q", b)
}

// SessionDescriptor is one entry of a Sequence.
type SessionDescriptor struct {
	Kind SessionKind `json:"type" yaml:"type"`
	Name string      `json:"name" yaml:"name"`
}

// Label returns Name, falling back to the kind's display name.
func (d SessionDescriptor) Label() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Kind.DisplayName()
}

// Sequence is an ordered list of sessions run back to back.
type Sequence []SessionDescriptor

// Session is the live timer instance owned by the controller.
type Session struct {
	Phase     Phase       `json:"phase"`
	Break     BreakKind   `json:"break,omitempty"`
	Kind      SessionKind `json:"kind,omitempty"`
	Name      string      `json:"name,omitempty"`
	Total     int         `json:"total_seconds"`
	Remaining int         `json:"remaining_seconds"`
	Paused    bool        `json:"paused"`
	StartedAt time.Time   `json:"started_at"`
}

// Running reports whether a session is active (paused or not).
func (s Session) Running() bool {
	return s.Phase != PhaseIdle && s.Phase != ""
}

// Clock formats Remaining as MM:SS.
func (s Session) Clock() string {
	return fmt.Sprintf("%02d:%02d", s.Remaining/60, s.Remaining%60)
}

// Snapshot is a point-in-time copy of controller state.
type Snapshot struct {
	Session   Session  `json:"session"`
	Cursor    int      `json:"cursor"`
	Sequence  Sequence `json:"sequence,omitempty"`
	Completed int      `json:"completed"`
	Blocked   []string `json:"blocked,omitempty"`
}

// Journal is the crash-recovery record persisted while sitemon runs.
type Journal struct {
	PID       int       `json:"pid"`
	Snapshot  Snapshot  `json:"snapshot"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Status is the world-readable mirror of the running session used by
// `sitemon status` from another terminal.
type Status struct {
	PID       int         `json:"pid"`
	Phase     Phase       `json:"phase"`
	Kind      SessionKind `json:"kind"`
	Name      string      `json:"name"`
	Paused    bool        `json:"paused"`
	Remaining int         `json:"remaining_seconds"` // valid when paused
	EndsAt    time.Time   `json:"ends_at"`           // valid when running
	Cursor    int         `json:"cursor"`
	Length    int         `json:"sequence_length"`
	Completed int         `json:"completed"`
}

// RemainingAt returns the seconds left at the given instant.
func (s Status) RemainingAt(now time.Time) int {
	if s.Paused {
		return s.Remaining
	}
	left := int(s.EndsAt.Sub(now).Round(time.Second) / time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// HostsEntry is one parsed line of the hosts file.
type HostsEntry struct {
	IP       string
	Hostname string
	Comment  string
	Raw      string
}

// Managed reports whether the entry is a redirect for one of the variants.
func (e HostsEntry) Managed(variants map[string]struct{}) bool {
	if e.IP != RedirectIP {
		return false
	}
	_, ok := variants[e.Hostname]
	return ok
}

// EndReason records why a session left the running state.
type EndReason string

const (
	EndCompleted EndReason = "completed"
	EndStopped   EndReason = "stopped"
	EndSkipped   EndReason = "skipped"
	EndShutdown  EndReason = "shutdown"
)

// HistoryRecord is one finished session kept in the history store.
type HistoryRecord struct {
	ID             string
	Kind           SessionKind
	Name           string
	StartedAt      time.Time
	EndedAt        time.Time
	PlannedSeconds int
	Reason         EndReason
}

// Completed reports whether the session ran to its natural end.
func (r HistoryRecord) Completed() bool {
	return r.Reason == EndCompleted
}

// EventType defines the type of controller event.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventTick             EventType = "tick"
	EventPaused           EventType = "paused"
	EventResumed          EventType = "resumed"
	EventSessionEnded     EventType = "session_ended"
	EventSequenceComplete EventType = "sequence_complete"
	EventBlocked          EventType = "blocked"
	EventUnblocked        EventType = "unblocked"
	EventError            EventType = "error"
)

// Event is a controller update delivered to listeners. Session is the
// session the event is about (the ended one for EventSessionEnded); State is
// the controller state right after the change.
type Event struct {
	Type    EventType
	Session Session
	State   Snapshot
	Reason  EndReason
	Domains []string
	Err     error
	At      time.Time
}

// Durations maps each session kind to its length in minutes.
type Durations map[SessionKind]int

// Seconds returns the duration of kind in seconds.
func (d Durations) Seconds(kind SessionKind) int {
	return d[kind] * 60
}

// maxMinutes is the inclusive upper bound for each kind.
var maxMinutes = map[SessionKind]int{
	KindFocus:       180,
	KindShortBreak:  60,
	KindLongBreak:   120,
	KindEatingBreak: 180,
}

// MaxMinutes returns the longest allowed session of kind.
func MaxMinutes(kind SessionKind) int {
	return maxMinutes[kind]
}

// ValidateMinutes checks a duration for kind against its allowed range.
func ValidateMinutes(kind SessionKind, minutes int) error {
	limit, ok := maxMinutes[kind]
	if !ok {
		return fmt.Errorf("%w: unknown session kind %q", ErrInvalidSequenceEntry, kind)
	}
	if minutes <= 0 || minutes > limit {
		return fmt.Errorf("%w: %s must be between 1 and %d minutes, got %d",
			ErrInvalidDuration, kind.DisplayName(), limit, minutes)
	}
	return nil
}
