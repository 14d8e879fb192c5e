package config

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// Store owns the loaded settings and writes runtime changes back to
// config.yml.
type Store struct {
	mu       sync.Mutex
	path     string
	settings *Settings
	logger   *zap.Logger
}

// NewStore wraps settings loaded from path.
func NewStore(path string, settings *Settings, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, settings: settings, logger: logger}
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.settings
	cp.Sequence = append(domain.Sequence(nil), s.settings.Sequence...)
	return cp
}

// RecordFocusDay updates the streak and saves when it changed.
func (s *Store) RecordFocusDay(day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.settings.Streak.Record(day) {
		return nil
	}
	s.logger.Info("focus streak updated",
		zap.Int("current", s.settings.Streak.Current),
		zap.Int("best", s.settings.Streak.Best))
	return Save(s.path, s.settings)
}

// Save writes the settings file.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Save(s.path, s.settings)
}

// Ensure Store implements domain.SettingsStore.
var _ domain.SettingsStore = (*Store)(nil)
