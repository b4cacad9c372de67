package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Configuration keys read by SettingsFrom.
const (
	KeyCheckpointDirectory = "channel.checkpoint.directory"
	KeyCancelTimeout       = "channel.checkpoint.cancel_timeout"
	KeyPollInterval        = "channel.checkpoint.poll_interval"
	KeyHistoryPath         = "channel.checkpoint.history"
	KeyTelemetry           = "channel.checkpoint.telemetry"
)

// DefaultPollInterval is how often a partial replay re-checks for the
// next segment.
const DefaultPollInterval = 100 * time.Millisecond

// Settings is the resolved configuration of a replay manager.
type Settings struct {
	// CheckpointDirectory holds every checkpoint artifact.
	CheckpointDirectory string `env:"CHANREPLAY_CHECKPOINT_DIR" json:"checkpoint_directory" yaml:"checkpoint_directory"`

	// CancelTimeout bounds the wait for a superseded replay to stop.
	// Zero waits indefinitely.
	CancelTimeout time.Duration `env:"CHANREPLAY_CANCEL_TIMEOUT" json:"cancel_timeout" yaml:"cancel_timeout"`

	// PollInterval is how often a partial replay re-checks for new segments.
	PollInterval time.Duration `env:"CHANREPLAY_POLL_INTERVAL" json:"poll_interval" yaml:"poll_interval"`

	// HistoryPath is the SQLite file for replay history. Empty keeps
	// history in memory for the lifetime of the manager.
	HistoryPath string `env:"CHANREPLAY_HISTORY_PATH" json:"history_path" yaml:"history_path"`

	// Telemetry enables OpenTelemetry metrics and spans.
	Telemetry bool `env:"CHANREPLAY_TELEMETRY" json:"telemetry" yaml:"telemetry"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{
		CheckpointDirectory: os.TempDir(),
		PollInterval:        DefaultPollInterval,
	}
}

// SettingsFrom extracts Settings from c, falling back to defaults.
func SettingsFrom(c Config) Settings {
	d := DefaultSettings()
	return Settings{
		CheckpointDirectory: c.String(KeyCheckpointDirectory, d.CheckpointDirectory),
		CancelTimeout:       c.Duration(KeyCancelTimeout, d.CancelTimeout),
		PollInterval:        c.Duration(KeyPollInterval, d.PollInterval),
		HistoryPath:         c.String(KeyHistoryPath, d.HistoryPath),
		Telemetry:           c.Bool(KeyTelemetry, d.Telemetry),
	}
}

// ApplyEnv overrides fields of s from CHANREPLAY_* environment variables.
// Unset variables leave the corresponding field unchanged.
func ApplyEnv(s *Settings) error {
	if err := env.Parse(s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load resolves Settings from defaults, then the optional file at path,
// then the environment.
func Load(path string) (Settings, error) {
	c := New(nil)
	if path != "" {
		var err error
		if c, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}

	s := SettingsFrom(c)
	if err := ApplyEnv(&s); err != nil {
		return Settings{}, err
	}
	if s.CheckpointDirectory == "" {
		s.CheckpointDirectory = os.TempDir()
	}
	if s.PollInterval <= 0 {
		s.PollInterval = DefaultPollInterval
	}
	return s, nil
}
