// Package config loads the sitesweep daemon configuration from YAML.
//
// Settings that the user changes at runtime (enabled flag, tracked sites,
// interval) live in the settings store, not here. This file holds what
// the process needs to start: where data lives, how to reach the
// browser, and how to log.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HendryAvila/sitesweep/internal/logging"
	"github.com/HendryAvila/sitesweep/internal/purge"
	"github.com/HendryAvila/sitesweep/internal/timer"
)

// EnvPath overrides the config file location.
const EnvPath = "SITESWEEP_CONFIG"

// DefaultListen is the loopback address of the HTTP API.
const DefaultListen = "127.0.0.1:7717"

// Config is the top-level configuration.
type Config struct {
	DataDir string       `yaml:"data_dir"`
	Chrome  ChromeConfig `yaml:"chrome"`
	API     APIConfig    `yaml:"api"`
	Purge   PurgeConfig  `yaml:"purge"`
	Timer   TimerConfig  `yaml:"timer"`
	Log     LogConfig    `yaml:"log"`
}

// ChromeConfig locates the browser.
type ChromeConfig struct {
	HistoryPath string `yaml:"history_path"` // empty: default profile
	ControlURL  string `yaml:"control_url"`  // DevTools endpoint; empty disables CDP
}

// APIConfig controls the HTTP API.
type APIConfig struct {
	Listen string `yaml:"listen"` // empty disables the API
}

// PurgeConfig tunes the purge executor.
type PurgeConfig struct {
	Keep       []string `yaml:"keep"` // wildcard URL patterns never purged
	Cookies    bool     `yaml:"cookies"`
	MaxResults int      `yaml:"max_results"`
}

// TimerConfig tunes the timer controller.
type TimerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LogConfig configures logging.
type LogConfig struct {
	File       string `yaml:"file"`
	Level      string `yaml:"level"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxAgeDays int    `yaml:"max_age_days"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		API:     APIConfig{Listen: DefaultListen},
		Purge:   PurgeConfig{MaxResults: purge.DefaultMaxResults},
		Timer:   TimerConfig{PollInterval: timer.DefaultPollInterval},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxAgeDays: 28,
			MaxBackups: 3,
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sitesweep"
	}
	return filepath.Join(home, ".sitesweep")
}

// Path returns the config file location: $SITESWEEP_CONFIG, or
// config.yaml in the default data directory.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// Load reads the file at path over the defaults. A missing file is not
// an error. Keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.DataDir = expandHome(cfg.DataDir)
	cfg.Chrome.HistoryPath = expandHome(cfg.Chrome.HistoryPath)
	cfg.Log.File = expandHome(cfg.Log.File)
	if cfg.Timer.PollInterval <= 0 {
		cfg.Timer.PollInterval = timer.DefaultPollInterval
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Purge.MaxResults <= 0 {
		return fmt.Errorf("config: purge.max_results must be positive, got %d", c.Purge.MaxResults)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	for name, v := range map[string]int{
		"log.max_size_mb":  c.Log.MaxSizeMB,
		"log.max_age_days": c.Log.MaxAgeDays,
		"log.max_backups":  c.Log.MaxBackups,
	} {
		if v < 0 {
			return fmt.Errorf("config: %s must not be negative, got %d", name, v)
		}
	}
	return nil
}

// LogOptions maps the log section onto logging.Options.
func (c Config) LogOptions() logging.Options {
	return logging.Options{
		File:       c.Log.File,
		Level:      c.Log.Level,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxAgeDays: c.Log.MaxAgeDays,
		MaxBackups: c.Log.MaxBackups,
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
