// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// DefaultHostsContent mimics a stock hosts file with one user entry.
const DefaultHostsContent = `##
# Host Database
#
# localhost is used to configure the loopback interface
##
127.0.0.1	localhost
255.255.255.255	broadcasthost
::1	localhost
10.0.0.5	nas.home
`

// FakeHosts is a hosts file in a temporary directory.
type FakeHosts struct {
	Dir  string
	Path string
}

// NewFakeHosts creates dir/hosts with content.
func NewFakeHosts(dir, content string) (*FakeHosts, error) {
	path := filepath.Join(dir, "hosts")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, err
	}
	return &FakeHosts{Dir: dir, Path: path}, nil
}

// Content returns the current file content.
func (f *FakeHosts) Content() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ManagedHosts returns the hostnames redirected by sitemon lines, in file order.
func (f *FakeHosts) ManagedHosts() ([]string, error) {
	content, err := f.Content()
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasSuffix(line, domain.ManagedComment) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == domain.RedirectIP {
			hosts = append(hosts, fields[1])
		}
	}
	return hosts, nil
}

// ManualScheduler is a domain.Scheduler whose timers fire only on Fire.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	active := !t.stopped
	t.stopped = true
	return active
}

// AfterFunc records f; d is ignored.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) domain.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, f: f}
	s.pending = append(s.pending, t)
	return t
}

// Fire runs the armed timer up to n times, stopping early once nothing is
// armed. Returns the number of callbacks run.
func (s *ManualScheduler) Fire(n int) int {
	ran := 0
	for i := 0; i < n; i++ {
		s.mu.Lock()
		var next *manualTimer
		for _, t := range s.pending {
			if !t.stopped {
				next = t
			}
		}
		s.pending = nil
		if next != nil {
			next.stopped = true
		}
		s.mu.Unlock()

		if next == nil {
			return ran
		}
		next.f()
		ran++
	}
	return ran
}

// Ensure ManualScheduler implements domain.Scheduler.
var _ domain.Scheduler = (*ManualScheduler)(nil)
