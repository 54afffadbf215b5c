// Package config loads the optional .jacls.toml workspace settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the settings file looked up at the workspace root.
const FileName = ".jacls.toml"

// Config holds workspace settings. Zero values are replaced by defaults on
// load, so a missing file and an empty file behave the same.
type Config struct {
	// ShowWarnings publishes warning diagnostics alongside errors.
	ShowWarnings bool `toml:"show_warnings"`

	// Exclude lists gitignore-style patterns skipped by workspace discovery.
	Exclude []string `toml:"exclude"`

	// ScriptsDir overrides the embedded lint scripts with a directory on disk.
	ScriptsDir string `toml:"scripts_dir"`

	// Workers bounds parallel extraction during the workspace scan.
	Workers int `toml:"workers"`

	LogLevel string `toml:"log_level"`

	// Watch enables the disk watcher in serve mode.
	Watch bool `toml:"watch"`

	DebounceMS int `toml:"debounce_ms"`
}

// Default returns the settings used when no file is present.
func Default() *Config {
	return &Config{
		ShowWarnings: true,
		Workers:      runtime.NumCPU(),
		LogLevel:     "info",
		DebounceMS:   200,
	}
}

// Load reads FileName from root. A missing file yields the defaults.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile decodes a TOML settings file on top of the defaults and validates
// the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	fillDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func fillDefaults(cfg *Config) {
	defaults := Default()
	if cfg.Workers <= 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.DebounceMS <= 0 {
		cfg.DebounceMS = defaults.DebounceMS
	}
}

// Debounce returns the watcher quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// Level maps LogLevel to a slog level.
func (c *Config) Level() slog.Level {
	lvl, _ := ParseLevel(c.LogLevel)
	return lvl
}

// ParseLevel accepts debug, info, warn or error, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// ValidationError names one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid setting of one file.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the settings and returns ValidateErrors when any is invalid.
func (c *Config) Validate() error {
	var errs ValidateErrors
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, ValidationError{Field: "log_level", Message: err.Error()})
	}
	for _, p := range c.Exclude {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, ValidationError{Field: "exclude", Message: "empty pattern"})
			break
		}
	}
	if c.ScriptsDir != "" {
		if info, err := os.Stat(c.ScriptsDir); err != nil || !info.IsDir() {
			errs = append(errs, ValidationError{
				Field:   "scripts_dir",
				Message: fmt.Sprintf("%q is not a directory", c.ScriptsDir),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
