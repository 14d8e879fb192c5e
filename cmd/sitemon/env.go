package main

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/config"
	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
	"github.com/eliteGoblin/focusd/site_mon/internal/usecase"
)

// environment is the resolved configuration shared by every command.
type environment struct {
	paths     config.Paths
	store     *config.Store
	mode      *infra.ExecModeConfig
	logger    *zap.Logger
	hosts     *infra.HostsFile
	blockList *infra.FileBlockList

	state   *infra.BoltStateStore
	history *infra.EncryptedHistory
}

// loadEnv resolves paths, logging and settings. Flags override settings.
func loadEnv() (*environment, error) {
	mode := infra.DetectExecMode()

	paths, err := config.ResolvePaths(mode.HomeDir)
	if err != nil {
		return nil, err
	}

	logger := infra.NewLogger(infra.LoggerOptions{
		Path:  paths.LogFile,
		Debug: debug,
	})
	_ = infra.ChownToRealUser(paths.LogFile)

	settings, err := config.Load(paths.ConfigFile, logger)
	if err != nil {
		return nil, err
	}

	fs := infra.NewFileSystemManagerWithHome(mode.HomeDir)
	hostsPath := fs.ExpandHome(firstNonEmpty(hostsFileFlag, settings.HostsFile, infra.DefaultHostsPath()))
	if !fs.Exists(hostsPath) {
		logger.Warn("hosts file does not exist", zap.String("path", hostsPath))
	}
	blockList := infra.NewFileBlockList()
	if p := firstNonEmpty(blockListFlag, settings.BlockListFile); p != "" {
		blockList = infra.NewFileBlockListWithPath(fs.ExpandHome(p))
	}

	env := &environment{
		paths:     paths,
		store:     config.NewStore(paths.ConfigFile, settings, logger),
		mode:      mode,
		logger:    logger,
		hosts:     infra.NewHostsFileWithPath(hostsPath, logger),
		blockList: blockList,
	}
	logger.Debug("environment resolved", logFields(env)...)
	return env, nil
}

// openApp builds the controller and app. It takes the single-instance lock,
// so it fails with domain.ErrInstanceRunning while 'sitemon run' is active.
// History, notifications and the session hook are only wired for a session.
func (e *environment) openApp(session bool) (*usecase.App, *usecase.Controller, error) {
	state, err := infra.OpenStateStore(e.paths.DataDir)
	if err != nil {
		if errors.Is(err, domain.ErrInstanceRunning) {
			return nil, nil, fmt.Errorf("%w: use the prompt of the running session, or quit it first", err)
		}
		return nil, nil, err
	}
	e.state = state
	for _, p := range []string{e.paths.DataDir, state.Path()} {
		_ = infra.ChownToRealUser(p)
	}

	s := e.store.Settings()
	ctrl := usecase.NewController(e.hosts, infra.NewTimeScheduler(), usecase.ControllerConfig{
		Durations:          s.Durations(),
		ReblockLeadSeconds: s.ReblockLeadSeconds,
	}, e.logger)

	deps := usecase.AppDeps{
		Hosts:     e.hosts,
		BlockList: e.blockList,
		State:     state,
		Processes: infra.NewProcessManager(),
	}

	if session {
		status := infra.NewStatusFileWithPath(e.paths.StatusFile)
		deps.Status = status
		deps.Settings = e.store
		deps.Notifier = infra.NewDesktopNotifier(s.Notifications, e.logger)
		if s.SessionCmd != "" {
			deps.Hook = infra.NewShellSessionHook(s.SessionCmd)
		}

		history, err := e.openHistory()
		if err != nil {
			e.logger.Warn("session history disabled", zap.Error(err))
		} else {
			deps.History = history
		}
	}

	return usecase.NewApp(ctrl, deps, e.logger), ctrl, nil
}

// openHistory opens the encrypted history, creating its key on first use.
func (e *environment) openHistory() (*infra.EncryptedHistory, error) {
	provider := infra.NewFileKeyProvider(e.paths.DataDir)
	key, err := infra.EnsureKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load history key: %w", err)
	}
	_ = infra.ChownToRealUser(provider.Path())

	history, err := infra.NewEncryptedHistory(e.paths.DataDir, key)
	if err != nil {
		return nil, err
	}
	_ = infra.ChownToRealUser(history.Path())
	e.history = history
	return history, nil
}

func (e *environment) close() {
	if e.history != nil {
		if err := e.history.Close(); err != nil {
			e.logger.Warn("failed to close history", zap.Error(err))
		}
	}
	if e.state != nil {
		if err := e.state.Close(); err != nil {
			e.logger.Warn("failed to close state store", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
