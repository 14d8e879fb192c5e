package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

func TestDetectExecMode(t *testing.T) {
	config := DetectExecMode()

	if os.Geteuid() == 0 {
		assert.Equal(t, ExecModeSystem, config.Mode)
		assert.True(t, config.IsRoot)
	} else {
		assert.Equal(t, ExecModeUser, config.Mode)
		assert.False(t, config.IsRoot)
	}
	assert.Equal(t, GetRealUserHome(), config.HomeDir)
}

func TestExecMode_String(t *testing.T) {
	tests := []struct {
		mode     ExecMode
		expected string
	}{
		{ExecModeUser, "user (non-root)"},
		{ExecModeSystem, "system (root)"},
		{ExecMode("invalid"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mode.String())
		})
	}
}

func TestGetRealUserHome_WithoutSudo(t *testing.T) {
	t.Setenv("SUDO_USER", "")
	home, _ := os.UserHomeDir()
	assert.Equal(t, home, GetRealUserHome())
}

func TestRequirePrivileges(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Run("root always passes", func(t *testing.T) {
			assert.NoError(t, RequirePrivileges("/nonexistent/hosts"))
		})
		return
	}

	dir := t.TempDir()

	writable := filepath.Join(dir, "hosts")
	require.NoError(t, os.WriteFile(writable, []byte("127.0.0.1 localhost\n"), 0644))
	assert.NoError(t, RequirePrivileges(writable))

	readOnly := filepath.Join(dir, "hosts.ro")
	require.NoError(t, os.WriteFile(readOnly, []byte("127.0.0.1 localhost\n"), 0444))
	assert.ErrorIs(t, RequirePrivileges(readOnly), domain.ErrInsufficientPrivileges)

	assert.ErrorIs(t, RequirePrivileges(filepath.Join(dir, "missing")), domain.ErrInsufficientPrivileges)
}

func TestChownToRealUser_NoopWithoutRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("chown is real under root")
	}
	// Path does not exist; a real chown would fail
	assert.NoError(t, ChownToRealUser(filepath.Join(t.TempDir(), "missing")))
}
