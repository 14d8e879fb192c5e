package infra

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// ShellSessionHook implements domain.SessionHook by running session_cmd
// after a session ends naturally. Session details are passed as
// SITEMON_* environment variables.
type ShellSessionHook struct {
	command string
}

// NewShellSessionHook creates a hook for the given command line.
func NewShellSessionHook(command string) *ShellSessionHook {
	return &ShellSessionHook{command: command}
}

// Command parses the configured command line.
// Returns nil when no command is configured.
func (h *ShellSessionHook) Command(ctx context.Context, ev domain.Event) (*exec.Cmd, error) {
	if h.command == "" {
		return nil, nil
	}

	cmdSlice, err := shellquote.Split(h.command)
	if err != nil {
		return nil, fmt.Errorf("unable to parse session_cmd option: %w", err)
	}
	if len(cmdSlice) == 0 {
		return nil, nil
	}

	cmd := exec.CommandContext(ctx, cmdSlice[0], cmdSlice[1:]...)
	cmd.Env = append(os.Environ(),
		"SITEMON_KIND="+string(ev.Session.Kind),
		"SITEMON_NAME="+ev.Session.Name,
		"SITEMON_REASON="+string(ev.Reason),
		"SITEMON_SECONDS="+strconv.Itoa(ev.Session.Total),
	)
	return cmd, nil
}

// Run executes the command and waits for it.
func (h *ShellSessionHook) Run(ctx context.Context, ev domain.Event) error {
	cmd, err := h.Command(ctx, ev)
	if err != nil || cmd == nil {
		return err
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("session_cmd failed: %w: %s", err, out)
	}
	return nil
}

// Ensure ShellSessionHook implements domain.SessionHook.
var _ domain.SessionHook = (*ShellSessionHook)(nil)
