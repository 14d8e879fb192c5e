package infra

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManagerWithHome creates a filesystem manager that expands ~
// to home. Under sudo that is the invoking user's home, not $HOME.
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Stat(fm.ExpandHome(path))
	return err == nil
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// WriteFileAtomic writes data to a temp file next to path, fsyncs it, applies
// perm and renames it over path. When the directory does not accept a temp
// file or the rename fails (bind mounts, cross-device), the buffer is written
// in place with a single WriteFile.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := writeViaRename(path, data, perm); err != nil {
		if werr := os.WriteFile(path, data, perm); werr != nil {
			return werr
		}
	}
	return nil
}

func writeViaRename(path string, data []byte, perm os.FileMode) error {
	// Unique per process to avoid racing another writer's temp file
	tmp, err := os.CreateTemp(filepath.Dir(path), fmt.Sprintf(".%s.%d.*.tmp", filepath.Base(path), os.Getpid()))
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// fileModeOr returns the mode of path, or def if it cannot be stat'ed.
func fileModeOr(path string, def os.FileMode) os.FileMode {
	info, err := os.Stat(path)
	if err != nil {
		return def
	}
	return info.Mode().Perm()
}

// newFileAccessError classifies an I/O error for callers using errors.Is.
func newFileAccessError(op, path string, err error) error {
	kind := domain.FileErrorOther
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = domain.FileErrorNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = domain.FileErrorPermissionDenied
	}
	return &domain.FileAccessError{Op: op, Path: path, Kind: kind, Err: err}
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
