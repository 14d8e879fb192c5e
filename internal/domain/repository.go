package domain

import (
	"context"
	"time"
)

// HostsBlocker rewrites the OS hosts file.
// Implementation: infra.HostsFile.
type HostsBlocker interface {
	// Block redirects every variant of the domains to RedirectIP.
	// Idempotent: the file is only written when its content changes.
	Block(ctx context.Context, domains []string) error

	// Unblock removes the managed lines for every variant of the domains.
	Unblock(ctx context.Context, domains []string) error

	// Entries returns the parsed non-blank, non-comment lines.
	Entries(ctx context.Context) ([]HostsEntry, error)
}

// BlockListStore persists the user's block list.
// Implementation: plain text file, one domain per line.
type BlockListStore interface {
	// Load returns the stored domains. A missing file is an empty list.
	Load() ([]string, error)

	// Save writes the domains sorted and newline-terminated.
	Save(domains []string) error

	// Path returns the backing file path.
	Path() string
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the callback. Returns false if it already fired.
	Stop() bool
}

// Scheduler arms one-shot callbacks.
// Implementation: time.AfterFunc in production, manual clock in tests.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// StateStore journals the live session for crash recovery and holds the
// single-instance lock while open.
// Implementation: bbolt database in the data directory.
type StateStore interface {
	// SaveJournal replaces the stored journal.
	SaveJournal(j Journal) error

	// LoadJournal returns the stored journal, or nil when none exists.
	LoadJournal() (*Journal, error)

	// ClearJournal removes the stored journal.
	ClearJournal() error

	// Close releases the database and its lock.
	Close() error
}

// HistoryStore keeps finished sessions.
// Implementation: SQLCipher database encrypted with the KeyProvider key.
type HistoryStore interface {
	// Record appends a finished session and returns its ID.
	Record(rec HistoryRecord) (string, error)

	// Since returns records started at or after t, newest first.
	Since(t time.Time) ([]HistoryRecord, error)

	// Close releases the database connection.
	Close() error
}

// StatusWriter mirrors the running session for other processes.
type StatusWriter interface {
	// Write replaces the status file.
	Write(s Status) error

	// Clear removes the status file.
	Clear() error
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, message string) error
}

// SessionHook runs the user's post-session command.
type SessionHook interface {
	Run(ctx context.Context, ev Event) error
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// SettingsStore persists user settings that change at runtime.
// Implementation: config.Store backed by config.yml.
type SettingsStore interface {
	// RecordFocusDay updates the daily focus streak for day.
	RecordFocusDay(day time.Time) error

	// Save writes the settings file.
	Save() error
}
