package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
	"github.com/eliteGoblin/focusd/site_mon/internal/infra"
)

const (
	DefaultFocusMinutes       = 25
	DefaultShortBreakMinutes  = 5
	DefaultLongBreakMinutes   = 15
	DefaultEatingBreakMinutes = 30
	DefaultReblockLeadSeconds = 3
)

const (
	keyFocusMinutes       = "focus_minutes"
	keyShortBreakMinutes  = "short_break_minutes"
	keyLongBreakMinutes   = "long_break_minutes"
	keyEatingBreakMinutes = "eating_break_minutes"
	keySequence           = "sequence"
	keyStreak             = "streak"
	keyReblockLeadSeconds = "reblock_lead_seconds"
	keyNotifications      = "notifications"
	keySessionCmd         = "session_cmd"
	keyHostsFile          = "hosts_file"
	keyBlockListFile      = "block_list_file"
)

// MaxReblockLeadSeconds bounds reblock_lead_seconds.
const MaxReblockLeadSeconds = 60

// Streak tracks consecutive days with at least one completed focus session.
type Streak struct {
	Current int    `yaml:"current" mapstructure:"current"`
	Best    int    `yaml:"best" mapstructure:"best"`
	LastDay string `yaml:"last_day" mapstructure:"last_day"` // YYYY-MM-DD
}

// Settings is the validated configuration.
type Settings struct {
	FocusMinutes       int             `yaml:"focus_minutes"`
	ShortBreakMinutes  int             `yaml:"short_break_minutes"`
	LongBreakMinutes   int             `yaml:"long_break_minutes"`
	EatingBreakMinutes int             `yaml:"eating_break_minutes"`
	Sequence           domain.Sequence `yaml:"sequence"`
	Streak             Streak          `yaml:"streak"`
	ReblockLeadSeconds int             `yaml:"reblock_lead_seconds"`
	Notifications      bool            `yaml:"notifications"`
	SessionCmd         string          `yaml:"session_cmd"`
	HostsFile          string          `yaml:"hosts_file,omitempty"`
	BlockListFile      string          `yaml:"block_list_file,omitempty"`
}

// rawSequenceEntry is a sequence entry before its kind is checked.
type rawSequenceEntry struct {
	Type string `mapstructure:"type"`
	Name string `mapstructure:"name"`
}

// rawSettings mirrors the file as written by the user.
type rawSettings struct {
	FocusMinutes       int                `mapstructure:"focus_minutes"`
	ShortBreakMinutes  int                `mapstructure:"short_break_minutes"`
	LongBreakMinutes   int                `mapstructure:"long_break_minutes"`
	EatingBreakMinutes int                `mapstructure:"eating_break_minutes"`
	Sequence           []rawSequenceEntry `mapstructure:"sequence"`
	Streak             Streak             `mapstructure:"streak"`
	ReblockLeadSeconds int                `mapstructure:"reblock_lead_seconds"`
	Notifications      bool               `mapstructure:"notifications"`
	SessionCmd         string             `mapstructure:"session_cmd"`
	HostsFile          string             `mapstructure:"hosts_file"`
	BlockListFile      string             `mapstructure:"block_list_file"`
}

// DefaultSequence is four focus sessions with short breaks between them
// and a long break at the end.
func DefaultSequence() domain.Sequence {
	f := domain.SessionDescriptor{Kind: domain.KindFocus, Name: "Focus"}
	s := domain.SessionDescriptor{Kind: domain.KindShortBreak, Name: "Short Break"}
	l := domain.SessionDescriptor{Kind: domain.KindLongBreak, Name: "Long Break"}
	return domain.Sequence{f, s, f, s, f, s, f, l}
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		FocusMinutes:       DefaultFocusMinutes,
		ShortBreakMinutes:  DefaultShortBreakMinutes,
		LongBreakMinutes:   DefaultLongBreakMinutes,
		EatingBreakMinutes: DefaultEatingBreakMinutes,
		Sequence:           DefaultSequence(),
		ReblockLeadSeconds: DefaultReblockLeadSeconds,
		Notifications:      true,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(keyFocusMinutes, d.FocusMinutes)
	v.SetDefault(keyShortBreakMinutes, d.ShortBreakMinutes)
	v.SetDefault(keyLongBreakMinutes, d.LongBreakMinutes)
	v.SetDefault(keyEatingBreakMinutes, d.EatingBreakMinutes)
	v.SetDefault(keyReblockLeadSeconds, d.ReblockLeadSeconds)
	v.SetDefault(keyNotifications, d.Notifications)
	v.SetDefault(keySessionCmd, "")
	v.SetDefault(keyHostsFile, "")
	v.SetDefault(keyBlockListFile, "")
}

// Load reads settings from path, creating the file with defaults when it
// does not exist. SITEMON_<KEY> environment variables override file values.
// Invalid values are replaced by defaults and logged; they never fail Load.
func Load(path string, logger *zap.Logger) (*Settings, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		s := Default()
		if err := Save(path, s); err != nil {
			return nil, fmt.Errorf("failed to write default settings: %w", err)
		}
		logger.Info("created default settings", zap.String("path", path))
		return s, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SITEMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	var raw rawSettings
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}

	return normalize(raw, v.IsSet(keySequence), logger), nil
}

// normalize validates raw values, substituting defaults for anything out
// of range.
func normalize(raw rawSettings, sequenceSet bool, logger *zap.Logger) *Settings {
	d := Default()
	s := &Settings{
		FocusMinutes:       checkMinutes(keyFocusMinutes, domain.KindFocus, raw.FocusMinutes, d.FocusMinutes, logger),
		ShortBreakMinutes:  checkMinutes(keyShortBreakMinutes, domain.KindShortBreak, raw.ShortBreakMinutes, d.ShortBreakMinutes, logger),
		LongBreakMinutes:   checkMinutes(keyLongBreakMinutes, domain.KindLongBreak, raw.LongBreakMinutes, d.LongBreakMinutes, logger),
		EatingBreakMinutes: checkMinutes(keyEatingBreakMinutes, domain.KindEatingBreak, raw.EatingBreakMinutes, d.EatingBreakMinutes, logger),
		Streak:             raw.Streak,
		ReblockLeadSeconds: raw.ReblockLeadSeconds,
		Notifications:      raw.Notifications,
		SessionCmd:         raw.SessionCmd,
		HostsFile:          raw.HostsFile,
		BlockListFile:      raw.BlockListFile,
	}

	if s.ReblockLeadSeconds < 0 || s.ReblockLeadSeconds > MaxReblockLeadSeconds {
		logger.Warn("setting out of range, using default",
			zap.String("key", keyReblockLeadSeconds),
			zap.Int("value", s.ReblockLeadSeconds),
			zap.Int("default", d.ReblockLeadSeconds))
		s.ReblockLeadSeconds = d.ReblockLeadSeconds
	}

	if s.Streak.Current < 0 {
		s.Streak.Current = 0
	}
	if s.Streak.Best < s.Streak.Current {
		s.Streak.Best = s.Streak.Current
	}

	for i, entry := range raw.Sequence {
		kind, err := domain.ParseSessionKind(entry.Type)
		if err != nil {
			logger.Warn("dropping sequence entry",
				zap.Int("index", i),
				zap.String("type", entry.Type),
				zap.Error(err))
			continue
		}
		s.Sequence = append(s.Sequence, domain.SessionDescriptor{Kind: kind, Name: entry.Name})
	}
	if len(s.Sequence) == 0 {
		if sequenceSet {
			logger.Warn("sequence has no valid entries, using default")
		}
		s.Sequence = d.Sequence
	}

	return s
}

func checkMinutes(key string, kind domain.SessionKind, value, def int, logger *zap.Logger) int {
	if err := domain.ValidateMinutes(kind, value); err != nil {
		logger.Warn("setting out of range, using default",
			zap.String("key", key),
			zap.Int("value", value),
			zap.Int("default", def))
		return def
	}
	return value
}

// Save writes settings as YAML, replacing the file atomically.
func Save(path string, s *Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := infra.WriteFileAtomic(path, data, 0644); err != nil {
		return err
	}
	_ = infra.ChownToRealUser(path)
	return nil
}

// Durations returns the configured length of every session kind.
func (s *Settings) Durations() domain.Durations {
	return domain.Durations{
		domain.KindFocus:       s.FocusMinutes,
		domain.KindShortBreak:  s.ShortBreakMinutes,
		domain.KindLongBreak:   s.LongBreakMinutes,
		domain.KindEatingBreak: s.EatingBreakMinutes,
	}
}
