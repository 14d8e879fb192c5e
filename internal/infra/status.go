package infra

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

const statusFileName = "status.json"

// StatusFile implements domain.StatusWriter as a JSON file that other
// sitemon processes read to report the running session.
type StatusFile struct {
	path string
}

// NewStatusFile creates the status file handle for dataDir.
func NewStatusFile(dataDir string) *StatusFile {
	return NewStatusFileWithPath(filepath.Join(dataDir, statusFileName))
}

// NewStatusFileWithPath creates a StatusFile with custom path (for testing).
func NewStatusFileWithPath(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Path returns the status file path.
func (s *StatusFile) Path() string {
	return s.path
}

// Write replaces the status file.
func (s *StatusFile) Write(st domain.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	return WriteFileAtomic(s.path, data, 0644)
}

// Read returns the last written status, or nil when there is none.
func (s *StatusFile) Read() (*domain.Status, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st domain.Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Clear removes the status file.
func (s *StatusFile) Clear() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Ensure StatusFile implements domain.StatusWriter.
var _ domain.StatusWriter = (*StatusFile)(nil)
