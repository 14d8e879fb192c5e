package infra

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// history.db is opened with a raw SQLCipher key, which is always 32 bytes.
const (
	keyFileName = "history.key"
	keySize     = 32
)

// FileKeyProvider keeps the history.db key base64-encoded in an owner-only
// file in the data directory.
type FileKeyProvider struct {
	path string
}

func NewFileKeyProvider(dataDir string) *FileKeyProvider {
	return NewFileKeyProviderWithPath(filepath.Join(dataDir, keyFileName))
}

func NewFileKeyProviderWithPath(path string) *FileKeyProvider {
	return &FileKeyProvider{path: path}
}

func (p *FileKeyProvider) Path() string { return p.path }

func (p *FileKeyProvider) GetKey() ([]byte, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history key %s: %w", p.path, err)
	}
	return decodeKey(raw)
}

// StoreKey replaces the key file. Any history.db written with the old key
// becomes unreadable.
func (p *FileKeyProvider) StoreKey(key []byte) error {
	if err := checkKeySize(key); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := WriteFileAtomic(p.path, encodeKey(key), 0600); err != nil {
		return fmt.Errorf("failed to write history key %s: %w", p.path, err)
	}
	return nil
}

func (p *FileKeyProvider) KeyExists() bool {
	_, err := os.Stat(p.path)
	return err == nil
}

// encodeKey adds a trailing newline so the file survives editors.
func encodeKey(key []byte) []byte {
	return []byte(base64.StdEncoding.EncodeToString(key) + "\n")
}

func decodeKey(raw []byte) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("history key is not base64: %w", err)
	}
	if err := checkKeySize(key); err != nil {
		return nil, err
	}
	return key, nil
}

func checkKeySize(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}
	return nil
}

// GenerateKey returns keySize bytes from crypto/rand.
func GenerateKey() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate history key: %w", err)
	}
	return key, nil
}

// EnsureKey loads the history key, creating it the first time history is
// opened. An existing key is never replaced.
func EnsureKey(provider domain.KeyProvider) ([]byte, error) {
	if provider.KeyExists() {
		return provider.GetKey()
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err := provider.StoreKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

var _ domain.KeyProvider = (*FileKeyProvider)(nil)
