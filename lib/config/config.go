// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is not given.
const EnvironmentVariable = "ROOMLINE_CONFIG"

// Config is the complete roomline configuration.
type Config struct {
	// HomeserverURL overrides the homeserver derived from the user ID's
	// server name. Empty means derive.
	HomeserverURL string `yaml:"homeserver_url"`

	// SessionFile overrides the session file location. Empty means
	// sessionstore.DefaultPath.
	SessionFile string `yaml:"session_file"`

	// Sync configures the long-poll loop.
	Sync SyncConfig `yaml:"sync"`

	// Timeline configures the active room view.
	Timeline TimelineConfig `yaml:"timeline"`

	// ShutdownGrace bounds how long shutdown waits for background work
	// after cancellation.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// Log configures the file logger.
	Log LogConfig `yaml:"log"`
}

// SyncConfig configures the sync loop.
type SyncConfig struct {
	// Timeout is the server-side long-poll timeout. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxBackoff caps the retry delay after a failed sync. Default: 30s.
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// LazyLoadMembers enables lazy loading of membership events.
	// Default: true.
	LazyLoadMembers bool `yaml:"lazy_load_members"`
}

// TimelineConfig configures the active room timeline.
type TimelineConfig struct {
	// PageSize is the number of events requested per backward
	// pagination. Default: 25.
	PageSize int `yaml:"page_size"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`

	// File receives the log. The terminal belongs to the UI, so logs
	// never go to stderr while it runs. Empty disables logging.
	File string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Sync: SyncConfig{
			Timeout:         30 * time.Second,
			MaxBackoff:      30 * time.Second,
			LazyLoadMembers: true,
		},
		Timeline: TimelineConfig{
			PageSize: 25,
		},
		ShutdownGrace: 2 * time.Second,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads the file named by ROOMLINE_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path over the
// defaults and expands variables in path fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.SessionFile = expandVars(c.SessionFile, vars)
	c.Log.File = expandVars(c.Log.File, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.HomeserverURL != "" {
		parsed, err := url.Parse(c.HomeserverURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			errs = append(errs, fmt.Errorf("homeserver_url %q must be an http or https URL", c.HomeserverURL))
		}
	}
	if c.Sync.Timeout < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must not be negative"))
	}
	if c.Sync.MaxBackoff < time.Second {
		errs = append(errs, fmt.Errorf("sync.max_backoff must be at least 1s"))
	}
	if c.Timeline.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("timeline.page_size must be positive"))
	}
	if c.ShutdownGrace < 0 {
		errs = append(errs, fmt.Errorf("shutdown_grace must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q must be one of debug, info, warn, error", l.Level)
	}
	return level, nil
}
