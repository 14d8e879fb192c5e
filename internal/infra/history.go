package infra

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mutecomm/go-sqlcipher/v4" // registers the "sqlite3" driver

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

const (
	historyDBName = "history.db"
)

// EncryptedHistory implements domain.HistoryStore using a SQLCipher
// encrypted SQLite database.
type EncryptedHistory struct {
	db     *sql.DB
	dbPath string
}

// NewEncryptedHistory opens (or creates) the history database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func NewEncryptedHistory(dataDir string, key []byte) (*EncryptedHistory, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, historyDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Verify the key by touching the schema
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	h := &EncryptedHistory{db: db, dbPath: dbPath}
	if err := h.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return h, nil
}

func (h *EncryptedHistory) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL,
		planned_seconds INTEGER NOT NULL,
		reason TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions (started_at);
	`
	_, err := h.db.Exec(schema)
	return err
}

// Record appends a finished session and returns its ID.
func (h *EncryptedHistory) Record(rec domain.HistoryRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := h.db.Exec(`
		INSERT INTO sessions (id, kind, name, started_at, ended_at, planned_seconds, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Name,
		rec.StartedAt.Unix(), rec.EndedAt.Unix(),
		rec.PlannedSeconds, string(rec.Reason),
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Since returns records started at or after t, newest first.
func (h *EncryptedHistory) Since(t time.Time) ([]domain.HistoryRecord, error) {
	rows, err := h.db.Query(`
		SELECT id, kind, name, started_at, ended_at, planned_seconds, reason
		FROM sessions WHERE started_at >= ? ORDER BY started_at DESC`, t.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec            domain.HistoryRecord
			kind, reason   string
			started, ended int64
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.Name, &started, &ended, &rec.PlannedSeconds, &reason); err != nil {
			return nil, err
		}
		rec.Kind = domain.SessionKind(kind)
		rec.Reason = domain.EndReason(reason)
		rec.StartedAt = time.Unix(started, 0)
		rec.EndedAt = time.Unix(ended, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Path returns the database file path.
func (h *EncryptedHistory) Path() string {
	return h.dbPath
}

// Close releases the database connection.
func (h *EncryptedHistory) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}

// Ensure EncryptedHistory implements domain.HistoryStore.
var _ domain.HistoryStore = (*EncryptedHistory)(nil)
