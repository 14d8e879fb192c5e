// Package main is the CLI entry point for sitemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/runner"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitemon",
	Short: "Focus timer that blocks distracting websites",
	Long: `sitemon is a pomodoro timer that blocks a list of websites in the
hosts file while you focus and unblocks them during breaks.

Editing the hosts file needs root, so most commands are run with sudo.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start an interactive session",
	Long: `Starts the interactive session loop. Type 'help' at the prompt for
commands. Quitting, Ctrl-C and SIGTERM unblock every listed site before exit.`,
	RunE: runRun,
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage the block list",
}

var blockAddCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the block list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockAdd,
}

var blockRemoveCmd = &cobra.Command{
	Use:   "remove <domain>...",
	Short: "Unblock domains and remove them from the block list",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockRemove,
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the block list",
	RunE:  runBlockList,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove every redirect sitemon left in the hosts file",
	Long: `Unblocks every listed domain plus any domain a crashed session left
blocked. The same cleanup runs automatically at the start of 'sitemon run'.`,
	RunE: runCleanup,
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Show the hosts file entries",
	RunE:  runHosts,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running session",
	Long:  `Reports the session of a 'sitemon run' in another terminal.`,
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sessions",
	RunE:  runHistory,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings and file locations",
	RunE:  runConfigShow,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	debug         bool
	hostsFileFlag string
	blockListFlag string
	jsonOutput    bool

	runSequence bool
	runFocus    int
	runBreak    string
	assumeYes   bool
	progress    int

	historyDays int
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&hostsFileFlag, "hosts-file", "", "Hosts file to manage (default: OS hosts file)")
	rootCmd.PersistentFlags().StringVar(&blockListFlag, "block-list", "", "Block list file (default: ~/"+infra.DefaultBlockListName+")")

	runCmd.Flags().BoolVar(&runSequence, "sequence", false, "Start the configured sequence immediately")
	runCmd.Flags().IntVar(&runFocus, "focus", 0, "Start a focus session of N minutes immediately")
	runCmd.Flags().StringVar(&runBreak, "break", "", "Start a break immediately (short, long, eating)")
	runCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Start focus even if the block list is empty")
	runCmd.Flags().IntVar(&progress, "progress", 60, "Print the countdown every N seconds (0 disables)")

	historyCmd.Flags().IntVar(&historyDays, "days", 7, "Number of days to show")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	blockCmd.AddCommand(blockAddCmd, blockRemoveCmd, blockListCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if err := infra.RequirePrivileges(env.hosts.Path()); err != nil {
		return err
	}

	app, ctrl, err := env.openApp(true)
	if err != nil {
		return err
	}

	s := env.store.Settings()
	r := runner.New(app, runner.Config{
		Durations:     s.Durations(),
		Sequence:      s.Sequence,
		ProceedEmpty:  assumeYes,
		ProgressEvery: progress,
	}, os.Stdin, os.Stdout, env.logger)
	ctrl.AddListener(r.Listener())

	if err := app.Load(); err != nil {
		return err
	}
	app.CleanupOnStartup(cmd.Context())

	pterm.Info.Printfln("Execution mode: %s", env.mode.Mode)
	pterm.Info.Printfln("Blocking %d domain(s) during focus (hosts file: %s)", len(app.Domains()), env.hosts.Path())

	if err := startInitial(app, s.Sequence, s.Durations()); err != nil {
		pterm.Error.Println(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return r.Run(ctx)
}

func startInitial(app *usecase.App, seq domain.Sequence, durations domain.Durations) error {
	switch {
	case runSequence:
		return app.StartSequence(seq, assumeYes)
	case runFocus > 0:
		return app.StartFocus(runFocus, assumeYes)
	case runBreak != "":
		kind, err := domain.ParseSessionKind(runBreak)
		if err != nil {
			return err
		}
		if kind == domain.KindFocus {
			return fmt.Errorf("%w: %q is not a break", domain.ErrInvalidSequenceEntry, runBreak)
		}
		return app.StartBreak(kind.Break(), durations[kind])
	}
	return nil
}

func runBlockAdd(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	app, _, err := env.openApp(false)
	if err != nil {
		return err
	}
	if err := app.Load(); err != nil {
		return err
	}

	for _, raw := range args {
		d, added, err := app.AddDomain(raw)
		switch {
		case err != nil:
			return err
		case added:
			pterm.Success.Printfln("added %s", d)
		default:
			pterm.Info.Printfln("%s is already in the block list", d)
		}
	}
	return nil
}

func runBlockRemove(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if err := infra.RequirePrivileges(env.hosts.Path()); err != nil {
		return err
	}

	app, _, err := env.openApp(false)
	if err != nil {
		return err
	}
	if err := app.Load(); err != nil {
		return err
	}

	for _, raw := range args {
		d, err := app.RemoveDomain(cmd.Context(), raw)
		if err != nil {
			if errors.Is(err, domain.ErrDomainNotListed) {
				pterm.Warning.Println(err)
				continue
			}
			return err
		}
		pterm.Success.Printfln("removed %s", d)
	}
	return nil
}

func runBlockList(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	stored, err := env.blockList.Load()
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		pterm.Info.Println("The block list is empty. Add sites with 'sitemon block add <domain>'.")
		return nil
	}

	data := [][]string{{"DOMAIN", "HOSTS ENTRIES"}}
	for _, d := range stored {
		data = append(data, []string{d, fmt.Sprint(domain.Variants(d))})
	}
	return printTable(data)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	if err := infra.RequirePrivileges(env.hosts.Path()); err != nil {
		return err
	}

	app, _, err := env.openApp(false)
	if err != nil {
		return err
	}
	if err := app.Load(); err != nil {
		return err
	}
	app.CleanupOnStartup(cmd.Context())

	pterm.Success.Printfln("Removed sitemon entries for %d domain(s)", len(app.Domains()))
	return nil
}

func runHosts(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	entries, err := env.hosts.Entries(cmd.Context())
	if err != nil {
		return err
	}
	list, err := env.blockList.Load()
	if err != nil {
		return err
	}
	return printTable(hostsTable(entries, list))
}

// hostsTable renders hosts entries. A row is managed when it redirects a
// variant of a block list domain.
func hostsTable(entries []domain.HostsEntry, list []string) [][]string {
	variants := domain.VariantSet(list)
	data := [][]string{{"IP", "HOSTNAME", "MANAGED"}}
	for _, e := range entries {
		managed := ""
		if e.Managed(variants) {
			managed = "yes"
		}
		data = append(data, []string{e.IP, e.Hostname, managed})
	}
	return data
}

func runStatus(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	pm := infra.NewProcessManager()
	st, err := infra.NewStatusFileWithPath(env.paths.StatusFile).Read()
	if err != nil {
		return err
	}

	fmt.Println("\n=== sitemon Status ===")
	if st == nil || !pm.IsRunning(st.PID) {
		fmt.Println("Status: NOT RUNNING")
		fmt.Println("\nRun 'sudo sitemon run' to start a session.")
		return nil
	}

	fmt.Printf("PID: %d\n", st.PID)
	if st.Phase == domain.PhaseIdle {
		fmt.Println("Status: IDLE")
	} else {
		left := st.RemainingAt(time.Now())
		state := "running"
		if st.Paused {
			state = "paused"
		}
		fmt.Printf("Status: %s (%s)\n", st.Name, state)
		fmt.Printf("Remaining: %02d:%02d\n", left/60, left%60)
		if st.Cursor >= 0 && st.Length > 0 {
			fmt.Printf("Sequence: %d/%d\n", st.Cursor+1, st.Length)
		}
	}
	fmt.Printf("Completed focus sessions: %d\n", st.Completed)
	fmt.Println("======================")
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	history, err := env.openHistory()
	if err != nil {
		return err
	}

	to := time.Now()
	from := to.AddDate(0, 0, -historyDays)
	records, err := history.Since(from)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		pterm.Info.Printfln("No sessions in the last %d day(s).", historyDays)
		return nil
	}

	data := [][]string{{"STARTED", "SESSION", "PLANNED", "RESULT"}}
	for _, r := range records {
		data = append(data, []string{
			r.StartedAt.Format("Jan 02 15:04"),
			r.Name,
			(time.Duration(r.PlannedSeconds) * time.Second).String(),
			string(r.Reason),
		})
	}
	if err := printTable(data); err != nil {
		return err
	}

	sum := usecase.Summarize(records, from, to)
	for _, k := range sum.Kinds {
		fmt.Printf("%-13s %d/%d completed, %s\n", k.Kind.DisplayName()+":", k.Completed, k.Sessions,
			(time.Duration(k.Seconds) * time.Second).String())
	}
	streak := env.store.Settings().Streak
	fmt.Printf("Focus time: %s over %d day(s). Streak: %d (best %d)\n",
		(time.Duration(sum.FocusSeconds) * time.Second).String(), sum.CompletedDays,
		streak.Active(to), streak.Best)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.close()

	s := env.store.Settings()
	out, err := yaml.Marshal(&s)
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n%s\n", env.paths.ConfigFile, out)
	fmt.Printf("hosts file:  %s\n", env.hosts.Path())
	fmt.Printf("block list:  %s\n", env.blockList.Path())
	fmt.Printf("data dir:    %s\n", env.paths.DataDir)
	fmt.Printf("log file:    %s\n", env.paths.LogFile)
	return nil
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		out, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(out))
	} else {
		fmt.Printf("sitemon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

func printTable(data [][]string) error {
	str, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Println(str)
	return nil
}

// logFields is used in debug output of the resolved environment.
func logFields(env *environment) []zap.Field {
	return []zap.Field{
		zap.String("config", env.paths.ConfigFile),
		zap.String("data_dir", env.paths.DataDir),
		zap.String("hosts_file", env.hosts.Path()),
		zap.String("block_list", env.blockList.Path()),
		zap.String("mode", env.mode.Mode.String()),
		zap.String("uid", strconv.Itoa(os.Geteuid())),
	}
}
