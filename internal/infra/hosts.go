package infra

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// HostsFile implements domain.HostsBlocker on top of the OS hosts file.
// It never caches domains: every call re-reads the file.
type HostsFile struct {
	path   string
	logger *zap.Logger
}

// NewHostsFile creates a HostsFile for the platform hosts path.
func NewHostsFile(logger *zap.Logger) *HostsFile {
	return NewHostsFileWithPath(DefaultHostsPath(), logger)
}

// NewHostsFileWithPath creates a HostsFile with custom path (for testing).
func NewHostsFileWithPath(path string, logger *zap.Logger) *HostsFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostsFile{path: path, logger: logger}
}

// DefaultHostsPath returns the hosts file location for the current OS.
func DefaultHostsPath() string {
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		return filepath.Join(root, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}

// Path returns the hosts file path.
func (h *HostsFile) Path() string {
	return h.path
}

// Block redirects every variant of domains to domain.RedirectIP.
func (h *HostsFile) Block(ctx context.Context, domains []string) error {
	if len(domains) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	variants := domain.ExpandAll(domains)
	set := domain.VariantSet(domains)

	original, err := h.read()
	if err != nil {
		return err
	}

	kept, _ := filterManaged(original, set)
	for _, v := range variants {
		kept = append(kept, domain.RedirectIP+"\t"+v+"\t"+domain.ManagedComment)
	}

	content := joinLines(kept)
	if content == original {
		h.logger.Debug("hosts file already blocks domains", zap.Strings("domains", domains))
		return nil
	}
	if err := h.write(content); err != nil {
		return err
	}

	h.logger.Info("blocked domains",
		zap.String("path", h.path),
		zap.Strings("variants", variants))
	return nil
}

// Unblock removes the managed redirect for every variant of domains.
func (h *HostsFile) Unblock(ctx context.Context, domains []string) error {
	if len(domains) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	original, err := h.read()
	if err != nil {
		return err
	}

	kept, removed := filterManaged(original, domain.VariantSet(domains))
	if removed == 0 {
		h.logger.Debug("no managed entries to remove", zap.Strings("domains", domains))
		return nil
	}
	if err := h.write(joinLines(kept)); err != nil {
		return err
	}

	h.logger.Info("unblocked domains",
		zap.String("path", h.path),
		zap.Strings("domains", domains),
		zap.Int("removed", removed))
	return nil
}

// Entries returns every host mapping line, comments and blanks excluded.
func (h *HostsFile) Entries(ctx context.Context) ([]domain.HostsEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := h.read()
	if err != nil {
		return nil, err
	}

	var entries []domain.HostsEntry
	for _, line := range splitLines(content) {
		if entry, ok := ParseHostsLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (h *HostsFile) read() (string, error) {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return "", newFileAccessError("read", h.path, err)
	}
	return string(data), nil
}

func (h *HostsFile) write(content string) error {
	if err := WriteFileAtomic(h.path, []byte(content), fileModeOr(h.path, 0644)); err != nil {
		return newFileAccessError("write", h.path, err)
	}
	return nil
}

// ParseHostsLine splits a hosts line into IP, hostname and the remainder.
// Returns false for blank and comment-only lines.
func ParseHostsLine(line string) (domain.HostsEntry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return domain.HostsEntry{}, false
	}
	ip, rest := cutField(trimmed)
	host, rest := cutField(rest)
	return domain.HostsEntry{IP: ip, Hostname: host, Comment: rest, Raw: line}, true
}

func cutField(s string) (string, string) {
	s = strings.TrimLeft(s, " \t")
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeft(s[i:], " \t")
}

// filterManaged drops blank lines and lines managed for set, keeping the
// rest byte-for-byte and in order.
func filterManaged(content string, set map[string]struct{}) ([]string, int) {
	var kept []string
	removed := 0
	for _, line := range splitLines(content) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entry, ok := ParseHostsLine(line); ok && entry.Managed(set) {
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return kept, removed
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Ensure HostsFile implements domain.HostsBlocker.
var _ domain.HostsBlocker = (*HostsFile)(nil)
