package infra

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func TestFileSystemManager_ExpandHome(t *testing.T) {
	fm := NewFileSystemManagerWithHome("/home/alex")

	tests := []struct {
		input string
		want  string
	}{
		{"~", "/home/alex"},
		{"~/blocklist.txt", "/home/alex/blocklist.txt"},
		{"/etc/hosts", "/etc/hosts"},
		{"relative/path", "relative/path"},
		{"~other/file", "~other/file"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, fm.ExpandHome(tt.input))
		})
	}
}

func TestFileSystemManager_Exists(t *testing.T) {
	home := t.TempDir()
	fm := NewFileSystemManagerWithHome(home)

	assert.False(t, fm.Exists("~/list.txt"))
	require.NoError(t, WriteFileAtomic(fm.ExpandHome("~/list.txt"), []byte("example.com\n"), 0600))
	assert.True(t, fm.Exists("~/list.txt"))
	assert.True(t, fm.Exists(filepath.Join(home, "list.txt")))
}

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name   string
		testFn func(t *testing.T, dir string)
	}{
		{
			name: "creates file",
			testFn: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "hosts")
				require.NoError(t, WriteFileAtomic(path, []byte("a\n"), 0644))

				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "a\n", string(data))
			},
		},
		{
			name: "replaces content and leaves no temp files",
			testFn: func(t *testing.T, dir string) {
				path := filepath.Join(dir, "hosts")
				require.NoError(t, os.WriteFile(path, []byte("old content that is longer\n"), 0644))
				require.NoError(t, WriteFileAtomic(path, []byte("new\n"), 0644))

				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "new\n", string(data))

				entries, err := os.ReadDir(dir)
				require.NoError(t, err)
				assert.Len(t, entries, 1)
			},
		},
		{
			name: "falls back to in-place write when directory is read-only",
			testFn: func(t *testing.T, dir string) {
				if os.Geteuid() == 0 {
					t.Skip("root bypasses file permissions")
				}
				path := filepath.Join(dir, "hosts")
				require.NoError(t, os.WriteFile(path, []byte("old\n"), 0644))
				require.NoError(t, os.Chmod(dir, 0555))
				t.Cleanup(func() { _ = os.Chmod(dir, 0755) })

				require.NoError(t, WriteFileAtomic(path, []byte("new\n"), 0644))

				data, err := os.ReadFile(path)
				require.NoError(t, err)
				assert.Equal(t, "new\n", string(data))
			},
		},
		{
			name: "missing directory fails",
			testFn: func(t *testing.T, dir string) {
				err := WriteFileAtomic(filepath.Join(dir, "nope", "hosts"), []byte("x"), 0644)
				assert.True(t, errors.Is(err, fs.ErrNotExist))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.testFn(t, t.TempDir())
		})
	}
}

func TestNewFileAccessError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind domain.FileErrorKind
	}{
		{"not found", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, domain.FileErrorNotFound},
		{"permission", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission}, domain.FileErrorPermissionDenied},
		{"other", errors.New("disk on fire"), domain.FileErrorOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newFileAccessError("read", "/x", tt.err)

			var fae *domain.FileAccessError
			require.True(t, errors.As(err, &fae))
			assert.Equal(t, tt.kind, fae.Kind)
			assert.Equal(t, "/x", fae.Path)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
