// Package infra implements infrastructure concerns (hosts file, stores, process).
package infra

import (
	"fmt"
	"os"
	"os/user"
	"strconv"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ExecMode represents how much of the system the process may touch.
type ExecMode string

const (
	// ExecModeUser runs without root; the hosts file must be user-writable.
	ExecModeUser ExecMode = "user"
	// ExecModeSystem runs as root (directly or via sudo).
	ExecModeSystem ExecMode = "system"
)

// ExecModeConfig describes the detected execution environment.
type ExecModeConfig struct {
	Mode     ExecMode
	IsRoot   bool
	SudoUser string // Invoking user when running under sudo
	HomeDir  string // Real user's home, used for the block list
}

// DetectExecMode determines the execution mode based on effective UID.
func DetectExecMode() *ExecModeConfig {
	isRoot := os.Geteuid() == 0
	cfg := &ExecModeConfig{
		Mode:     ExecModeUser,
		IsRoot:   isRoot,
		SudoUser: os.Getenv("SUDO_USER"),
		HomeDir:  GetRealUserHome(),
	}
	if isRoot {
		cfg.Mode = ExecModeSystem
	}
	return cfg
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	// Check if running under sudo
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	// Fall back to default
	home, _ := os.UserHomeDir()
	return home
}

// RequirePrivileges succeeds when the process is root or can open the hosts
// file for writing.
func RequirePrivileges(hostsPath string) error {
	if os.Geteuid() == 0 {
		return nil
	}
	f, err := os.OpenFile(hostsPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s (run with sudo): %v", domain.ErrInsufficientPrivileges, hostsPath, err)
	}
	f.Close()
	return nil
}

// ChownToRealUser hands a file created under sudo back to the invoking user.
// It is a no-op when not running under sudo.
func ChownToRealUser(path string) error {
	if os.Geteuid() != 0 {
		return nil
	}
	uid, err := strconv.Atoi(os.Getenv("SUDO_UID"))
	if err != nil {
		return nil
	}
	gid, err := strconv.Atoi(os.Getenv("SUDO_GID"))
	if err != nil {
		return nil
	}
	return os.Chown(path, uid, gid)
}
