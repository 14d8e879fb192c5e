package infra

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DefaultBlockListName is the block list file kept in the user's home.
const DefaultBlockListName = ".website_blocker_list.txt"

// FileBlockList implements domain.BlockListStore as a text file with one
// domain per line.
type FileBlockList struct {
	path string
}

// NewFileBlockList creates a block list in the real user's home directory.
func NewFileBlockList() *FileBlockList {
	return NewFileBlockListWithPath(filepath.Join(GetRealUserHome(), DefaultBlockListName))
}

// NewFileBlockListWithPath creates a block list with custom path (for testing).
func NewFileBlockListWithPath(path string) *FileBlockList {
	return &FileBlockList{path: path}
}

// Path returns the block list file path.
func (b *FileBlockList) Path() string {
	return b.path
}

// Load returns the stored domains, skipping blank lines.
func (b *FileBlockList) Load() ([]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, newFileAccessError("read", b.path, err)
	}

	var domains []string
	for _, line := range strings.Split(string(data), "\n") {
		if d := strings.TrimSpace(line); d != "" {
			domains = append(domains, d)
		}
	}
	return domains, nil
}

// Save writes domains sorted, one per line, newline-terminated.
func (b *FileBlockList) Save(domains []string) error {
	sorted := append([]string(nil), domains...)
	sort.Strings(sorted)

	var sb strings.Builder
	for _, d := range sorted {
		sb.WriteString(d)
		sb.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return newFileAccessError("mkdir", filepath.Dir(b.path), err)
	}
	if err := WriteFileAtomic(b.path, []byte(sb.String()), fileModeOr(b.path, 0644)); err != nil {
		return newFileAccessError("write", b.path, err)
	}
	_ = ChownToRealUser(b.path)
	return nil
}

// Ensure FileBlockList implements domain.BlockListStore.
var _ domain.BlockListStore = (*FileBlockList)(nil)
