package infra

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKeyProvider(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, provider *FileKeyProvider)
	}{
		{
			name: "no key before first store",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				assert.False(t, provider.KeyExists())
				_, err := provider.GetKey()
				assert.Error(t, err)
			},
		},
		{
			name: "stored key reads back owner-only",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				key, err := GenerateKey()
				require.NoError(t, err)
				require.NoError(t, provider.StoreKey(key))

				got, err := provider.GetKey()
				require.NoError(t, err)
				assert.Equal(t, key, got)

				info, err := os.Stat(provider.Path())
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
			},
		},
		{
			name: "short key is refused",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				err := provider.StoreKey([]byte("tooshort"))
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
				assert.False(t, provider.KeyExists())
			},
		},
		{
			name: "short key on disk is refused",
			testFn: func(t *testing.T, provider *FileKeyProvider) {
				encoded := base64.StdEncoding.EncodeToString([]byte("tooshort"))
				require.NoError(t, os.WriteFile(provider.Path(), []byte(encoded), 0600))

				_, err := provider.GetKey()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "invalid key size")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFn(t, NewFileKeyProvider(t.TempDir()))
		})
	}
}

func TestFileKeyProvider_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "share", "sitemon")
	provider := NewFileKeyProvider(dataDir)

	key, err := EnsureKey(provider)
	require.NoError(t, err)
	assert.Len(t, key, keySize)
	assert.Equal(t, filepath.Join(dataDir, keyFileName), provider.Path())

	info, err := os.Stat(dataDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestFileKeyProvider_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), keyFileName)
	provider := NewFileKeyProviderWithPath(path)

	key, err := GenerateKey()
	require.NoError(t, err)
	require.NoError(t, provider.StoreKey(key))

	// Stored as base64 with a trailing newline so it can be edited by hand
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, base64.StdEncoding.EncodeToString(key)+"\n", string(data))

	// Surrounding whitespace is tolerated
	require.NoError(t, os.WriteFile(path, []byte("  "+base64.StdEncoding.EncodeToString(key)+"\r\n\n"), 0600))
	got, err := provider.GetKey()
	require.NoError(t, err)
	assert.Equal(t, key, got)

	require.NoError(t, os.WriteFile(path, []byte("not base64!"), 0600))
	_, err = provider.GetKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not base64")
}

func TestFileKeyProvider_MissingKeyNamesPath(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	_, err := provider.GetKey()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), provider.Path())
	assert.Equal(t, "history.key", filepath.Base(provider.Path()))
}

func TestEnsureKey_KeepsExistingKey(t *testing.T) {
	provider := NewFileKeyProvider(t.TempDir())

	first, err := EnsureKey(provider)
	require.NoError(t, err)
	second, err := EnsureKey(provider)
	require.NoError(t, err)

	// Rotating the key would make history.db unreadable
	assert.Equal(t, first, second)
}

func TestGenerateKey_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		key, err := GenerateKey()
		require.NoError(t, err)
		require.Len(t, key, keySize)
		_, dup := seen[string(key)]
		require.False(t, dup, "duplicate key generated")
		seen[string(key)] = struct{}{}
	}
}
