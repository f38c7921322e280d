// Package config loads mdboard settings.
//
// Settings are merged from, lowest to highest precedence: built-in defaults,
// the user file (~/.config/mdboard/config.yaml), the board file
// (<root>/.mdboard/config.yaml), MDBOARD_* environment variables and
// command-line flags that were explicitly set.
package config

import (
	"fmt"
	"time"

	"github.com/mschirtzinger/mdboard/internal/watcher"
)

// Sync provider names.
const (
	ProviderAuto = "auto"
	ProviderGit  = "git"
	ProviderNone = "none"
)

// Config is the merged configuration.
type Config struct {
	Watch     WatchConfig     `mapstructure:"watch"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Index     IndexConfig     `mapstructure:"index"`
	Log       LogConfig       `mapstructure:"log"`
}

// WatchConfig selects and tunes the change watcher.
type WatchConfig struct {
	Backend      string        `mapstructure:"backend"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Debounce     time.Duration `mapstructure:"debounce"`
}

// SyncConfig configures sync status tracking.
type SyncConfig struct {
	Provider string        `mapstructure:"provider"`
	Interval time.Duration `mapstructure:"interval"`
	// Fetch lets the git provider contact the remote before each scan.
	Fetch bool `mapstructure:"fetch"`
}

// DashboardConfig configures the live WebSocket feed. Port 0 disables it.
type DashboardConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// IndexConfig configures the SQLite query cache.
type IndexConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig configures logging. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Backend:      string(watcher.KindAuto),
			PollInterval: watcher.DefaultPollInterval,
			Debounce:     watcher.DefaultDebounce,
		},
		Sync: SyncConfig{
			Provider: ProviderAuto,
			Interval: 30 * time.Second,
			Fetch:    true,
		},
		Dashboard: DashboardConfig{
			Host: "127.0.0.1",
		},
		Index: IndexConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// WatcherKind returns the configured watcher backend.
func (c *Config) WatcherKind() watcher.Kind {
	kind, _ := watcher.ParseKind(c.Watch.Backend)
	return kind
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if _, err := watcher.ParseKind(c.Watch.Backend); err != nil {
		return fmt.Errorf("watch.backend: %w", err)
	}
	if c.Watch.PollInterval <= 0 {
		return fmt.Errorf("watch.poll_interval must be positive (got %s)", c.Watch.PollInterval)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative (got %s)", c.Watch.Debounce)
	}
	switch c.Sync.Provider {
	case ProviderAuto, ProviderGit, ProviderNone:
	default:
		return fmt.Errorf("sync.provider must be one of auto, git, none (got %q)", c.Sync.Provider)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive (got %s)", c.Sync.Interval)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port out of range (got %d)", c.Dashboard.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", c.Log.Level)
	}
	return nil
}
