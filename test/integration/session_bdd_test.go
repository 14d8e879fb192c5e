//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/site_mon/test/fixtures"
)

var durations = domain.Durations{
	domain.KindFocus:       1,
	domain.KindShortBreak:  1,
	domain.KindLongBreak:   1,
	domain.KindEatingBreak: 1,
}

// session wires the real file-backed stores around a manually ticked controller.
type session struct {
	ctrl   *usecase.Controller
	app    *usecase.App
	sched  *fixtures.ManualScheduler
	state  *infra.BoltStateStore
	status *infra.StatusFile
}

func openSession(hosts *fixtures.FakeHosts, dataDir string) *session {
	state, err := infra.OpenStateStoreWithTimeout(filepath.Join(dataDir, "state.db"), 100*time.Millisecond)
	Expect(err).NotTo(HaveOccurred())

	s := &session{
		sched:  &fixtures.ManualScheduler{},
		state:  state,
		status: infra.NewStatusFile(dataDir),
	}
	hostsFile := infra.NewHostsFileWithPath(hosts.Path, nil)
	s.ctrl = usecase.NewController(hostsFile, s.sched, usecase.ControllerConfig{
		Durations:          durations,
		ReblockLeadSeconds: 3,
	}, nil)
	s.app = usecase.NewApp(s.ctrl, usecase.AppDeps{
		Hosts:     hostsFile,
		BlockList: infra.NewFileBlockListWithPath(filepath.Join(dataDir, "blocklist")),
		State:     state,
		Status:    s.status,
		Processes: infra.NewProcessManager(),
	}, nil)
	Expect(s.app.Load()).To(Succeed())
	return s
}

var _ = Describe("Site blocking session", func() {
	var (
		tmpDir  string
		dataDir string
		hosts   *fixtures.FakeHosts
		s       *session
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "sitemon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		dataDir = filepath.Join(tmpDir, "data")
		hosts, err = fixtures.NewFakeHosts(tmpDir, fixtures.DefaultHostsContent)
		Expect(err).NotTo(HaveOccurred())

		s = openSession(hosts, dataDir)
		_, _, err = s.app.AddDomain("reddit.com")
		Expect(err).NotTo(HaveOccurred())
		_, _, err = s.app.AddDomain("https://www.youtube.com/")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if s != nil {
			s.state.Close()
		}
		os.RemoveAll(tmpDir)
	})

	Describe("Focus session", func() {
		Context("when it runs to completion", func() {
			It("should block both variants and restore the hosts file afterwards", func() {
				Expect(s.app.StartFocus(1, false)).To(Succeed())

				managed, err := hosts.ManagedHosts()
				Expect(err).NotTo(HaveOccurred())
				Expect(managed).To(ConsistOf("reddit.com", "www.reddit.com", "www.youtube.com", "youtube.com"))

				st, err := s.status.Read()
				Expect(err).NotTo(HaveOccurred())
				Expect(st).NotTo(BeNil())
				Expect(st.Phase).To(Equal(domain.PhaseFocus))

				Expect(s.sched.Fire(60)).To(Equal(60))

				content, err := hosts.Content()
				Expect(err).NotTo(HaveOccurred())
				Expect(content).To(Equal(fixtures.DefaultHostsContent))
				Expect(s.ctrl.Completed()).To(Equal(1))
			})
		})

		Context("when blocking twice", func() {
			It("should not duplicate entries", func() {
				Expect(s.app.StartFocus(5, false)).To(Succeed())
				Expect(s.app.Stop()).To(Succeed())
				Expect(s.app.StartFocus(5, false)).To(Succeed())

				hostsFile := infra.NewHostsFileWithPath(hosts.Path, nil)
				Expect(hostsFile.Block(context.Background(), []string{"reddit.com"})).To(Succeed())

				managed, err := hosts.ManagedHosts()
				Expect(err).NotTo(HaveOccurred())
				Expect(managed).To(HaveLen(4))
			})
		})
	})

	Describe("Sequence", func() {
		It("should unblock for the break and block again just before the next focus", func() {
			seq := domain.Sequence{
				{Kind: domain.KindFocus},
				{Kind: domain.KindShortBreak},
				{Kind: domain.KindFocus},
			}
			Expect(s.app.StartSequence(seq, false)).To(Succeed())

			Expect(s.sched.Fire(60)).To(Equal(60))
			managed, err := hosts.ManagedHosts()
			Expect(err).NotTo(HaveOccurred())
			Expect(managed).To(BeEmpty())

			Expect(s.sched.Fire(57)).To(Equal(57))
			Expect(s.app.Snapshot().Session.Phase).To(Equal(domain.PhaseBreak))
			managed, err = hosts.ManagedHosts()
			Expect(err).NotTo(HaveOccurred())
			Expect(managed).To(HaveLen(4))

			Expect(s.sched.Fire(1000)).To(Equal(63))
			snap := s.app.Snapshot()
			Expect(snap.Session.Phase).To(Equal(domain.PhaseIdle))
			Expect(snap.Cursor).To(Equal(-1))
			Expect(snap.Completed).To(Equal(2))

			content, err := hosts.Content()
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(fixtures.DefaultHostsContent))
		})
	})

	Describe("Crash recovery", func() {
		It("should remove stale entries on the next start", func() {
			Expect(s.app.StartFocus(25, false)).To(Succeed())

			// Simulate a crash: the lock is released but nothing is cleaned up
			Expect(s.state.Close()).To(Succeed())
			s = nil

			managed, err := hosts.ManagedHosts()
			Expect(err).NotTo(HaveOccurred())
			Expect(managed).To(HaveLen(4))

			s = openSession(hosts, dataDir)
			j, err := s.state.LoadJournal()
			Expect(err).NotTo(HaveOccurred())
			Expect(j).NotTo(BeNil())
			Expect(j.Snapshot.Blocked).To(ConsistOf("reddit.com", "www.youtube.com"))

			s.app.CleanupOnStartup(context.Background())

			content, err := hosts.Content()
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(fixtures.DefaultHostsContent))

			j, err = s.state.LoadJournal()
			Expect(err).NotTo(HaveOccurred())
			Expect(j).To(BeNil())
		})
	})

	Describe("Single instance", func() {
		It("should refuse a second session on the same data directory", func() {
			_, err := infra.OpenStateStoreWithTimeout(filepath.Join(dataDir, "state.db"), 100*time.Millisecond)
			Expect(err).To(MatchError(domain.ErrInstanceRunning))
		})
	})

	Describe("Shutdown", func() {
		It("should unblock everything and leave no journal or status behind", func() {
			Expect(s.app.StartFocus(25, false)).To(Succeed())
			Expect(s.app.Shutdown(context.Background())).To(Succeed())

			content, err := hosts.Content()
			Expect(err).NotTo(HaveOccurred())
			Expect(content).To(Equal(fixtures.DefaultHostsContent))

			j, err := s.state.LoadJournal()
			Expect(err).NotTo(HaveOccurred())
			Expect(j).To(BeNil())

			st, err := s.status.Read()
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(BeNil())
		})
	})
})
