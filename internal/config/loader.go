package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/mdboard/internal/layout"
)

// EnvPrefix prefixes every environment override, e.g. MDBOARD_WATCH_BACKEND.
const EnvPrefix = "MDBOARD"

// Option configures Load.
type Option func(*loader)

type loader struct {
	globalPath string
	flags      map[string]*pflag.Flag
}

// WithGlobalFile replaces the user config path. An empty path skips it.
func WithGlobalFile(path string) Option {
	return func(l *loader) { l.globalPath = path }
}

// WithFlag binds a command-line flag to a config key. The flag only wins
// when it was set explicitly.
func WithFlag(key string, flag *pflag.Flag) Option {
	return func(l *loader) {
		if flag != nil {
			l.flags[key] = flag
		}
	}
}

// Load merges every configuration source for the board at root. Missing
// files are skipped; malformed ones are an error.
func Load(root string, opts ...Option) (*Config, error) {
	l := &loader{
		globalPath: GlobalConfigPath(),
		flags:      make(map[string]*pflag.Flag),
	}
	for _, opt := range opts {
		opt(l)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, DefaultConfig())

	// Load global config first, then the board's own file on top of it.
	for _, path := range []string{l.globalPath, ProjectConfigPath(root)} {
		if err := mergeFile(v, path); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range l.flags {
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// setDefaults registers every key so environment variables are seen by
// Unmarshal even when no file mentions the key.
func setDefaults(v *viper.Viper, d *Config) {
	for key, value := range d.values() {
		v.SetDefault(key, value)
	}
}

func (c *Config) values() map[string]any {
	return map[string]any{
		"watch.backend":       c.Watch.Backend,
		"watch.poll_interval": c.Watch.PollInterval,
		"watch.debounce":      c.Watch.Debounce,
		"sync.provider":       c.Sync.Provider,
		"sync.interval":       c.Sync.Interval,
		"sync.fetch":          c.Sync.Fetch,
		"dashboard.host":      c.Dashboard.Host,
		"dashboard.port":      c.Dashboard.Port,
		"index.enabled":       c.Index.Enabled,
		"log.level":           c.Log.Level,
		"log.file":            c.Log.File,
		"log.max_size_mb":     c.Log.MaxSizeMB,
		"log.max_backups":     c.Log.MaxBackups,
	}
}

// WriteDefault writes the default settings to path as YAML. It refuses to
// overwrite an existing file.
func WriteDefault(path string) error {
	d := DefaultConfig()
	doc := map[string]any{
		"watch": map[string]any{
			"backend":       d.Watch.Backend,
			"poll_interval": d.Watch.PollInterval.String(),
			"debounce":      d.Watch.Debounce.String(),
		},
		"sync": map[string]any{
			"provider": d.Sync.Provider,
			"interval": d.Sync.Interval.String(),
			"fetch":    d.Sync.Fetch,
		},
		"dashboard": map[string]any{
			"host": d.Dashboard.Host,
			"port": d.Dashboard.Port,
		},
		"index": map[string]any{
			"enabled": d.Index.Enabled,
		},
		"log": map[string]any{
			"level": d.Log.Level,
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}

// GlobalConfigPath returns the user config file, or "" if the user config
// directory is unknown.
func GlobalConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "mdboard", "config.yaml")
}

// ProjectConfigPath returns the board's own config file.
func ProjectConfigPath(root string) string {
	return layout.New(root).ConfigPath()
}
