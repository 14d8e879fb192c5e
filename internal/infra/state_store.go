package infra

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

const (
	stateDBName   = "state.db"
	journalBucket = "journal"
	journalKey    = "current"
)

// DefaultLockTimeout is how long Open waits for another instance's lock.
const DefaultLockTimeout = 1 * time.Second

// BoltStateStore implements domain.StateStore with bbolt. The database file
// lock doubles as the single-instance guard.
type BoltStateStore struct {
	db *bolt.DB
}

// OpenStateStore opens (or creates) state.db in dataDir.
// Returns domain.ErrInstanceRunning if another process holds the lock.
func OpenStateStore(dataDir string) (*BoltStateStore, error) {
	return OpenStateStoreWithTimeout(filepath.Join(dataDir, stateDBName), DefaultLockTimeout)
}

// OpenStateStoreWithTimeout opens the database at path with a custom lock
// timeout (for testing).
func OpenStateStoreWithTimeout(path string, timeout time.Duration) (*BoltStateStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, domain.ErrInstanceRunning
		}
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(journalBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStateStore{db: db}, nil
}

// SaveJournal replaces the stored journal.
func (s *BoltStateStore) SaveJournal(j domain.Journal) error {
	value, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(journalBucket)).Put([]byte(journalKey), value)
	})
}

// LoadJournal returns the stored journal, or nil when none exists.
func (s *BoltStateStore) LoadJournal() (*domain.Journal, error) {
	var j *domain.Journal
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(journalBucket)).Get([]byte(journalKey))
		if len(value) == 0 {
			return nil
		}
		j = &domain.Journal{}
		return json.Unmarshal(value, j)
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ClearJournal removes the stored journal.
func (s *BoltStateStore) ClearJournal() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(journalBucket)).Delete([]byte(journalKey))
	})
}

// Path returns the database file path.
func (s *BoltStateStore) Path() string {
	return s.db.Path()
}

// Close releases the database and its lock.
func (s *BoltStateStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure BoltStateStore implements domain.StateStore.
var _ domain.StateStore = (*BoltStateStore)(nil)
