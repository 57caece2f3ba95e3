// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sync.Timeout != 30*time.Second {
		t.Errorf("expected sync.timeout=30s, got %s", cfg.Sync.Timeout)
	}
	if cfg.Sync.MaxBackoff != 30*time.Second {
		t.Errorf("expected sync.max_backoff=30s, got %s", cfg.Sync.MaxBackoff)
	}
	if !cfg.Sync.LazyLoadMembers {
		t.Error("expected lazy_load_members=true")
	}
	if cfg.Timeline.PageSize != 25 {
		t.Errorf("expected timeline.page_size=25, got %d", cfg.Timeline.PageSize)
	}
	if cfg.ShutdownGrace != 2*time.Second {
		t.Errorf("expected shutdown_grace=2s, got %s", cfg.ShutdownGrace)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestLoadWithoutEnvironmentReturnsDefault(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Timeline.PageSize != 25 {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "roomline.yaml")
	if err := os.WriteFile(configPath, []byte("timeline:\n  page_size: 50\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv(EnvironmentVariable, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Timeline.PageSize != 50 {
		t.Errorf("expected page_size=50, got %d", cfg.Timeline.PageSize)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "roomline.yaml")
	configContent := `
homeserver_url: https://matrix.example.org
session_file: ${HOME}/sessions/roomline.json

sync:
  timeout: 10s
  max_backoff: 1m
  lazy_load_members: false

shutdown_grace: 500ms

log:
  level: debug
  file: ${ROOMLINE_TEST_LOGDIR:-/tmp}/roomline.log
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("HOME", "/home/alice")

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.HomeserverURL != "https://matrix.example.org" {
		t.Errorf("homeserver_url = %q", cfg.HomeserverURL)
	}
	if cfg.SessionFile != "/home/alice/sessions/roomline.json" {
		t.Errorf("session_file = %q", cfg.SessionFile)
	}
	if cfg.Sync.Timeout != 10*time.Second || cfg.Sync.MaxBackoff != time.Minute {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.Sync.LazyLoadMembers {
		t.Error("lazy_load_members should be overridden to false")
	}
	if cfg.Timeline.PageSize != 25 {
		t.Errorf("page_size should keep its default, got %d", cfg.Timeline.PageSize)
	}
	if cfg.ShutdownGrace != 500*time.Millisecond {
		t.Errorf("shutdown_grace = %s", cfg.ShutdownGrace)
	}
	if cfg.Log.File != "/tmp/roomline.log" {
		t.Errorf("log.file = %q", cfg.Log.File)
	}
	level, err := cfg.Log.SlogLevel()
	if err != nil || level != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, %v", level, err)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(configPath, []byte("sync: [unclosed"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("ROOMLINE_TEST_SET", "/from/env")

	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{"${HOME}/x", map[string]string{"HOME": "/home/bob"}, "/home/bob/x"},
		{"${ROOMLINE_TEST_SET}/y", nil, "/from/env/y"},
		{"${ROOMLINE_TEST_UNSET:-/fallback}/z", nil, "/fallback/z"},
		{"plain", nil, "plain"},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"bad homeserver", func(c *Config) { c.HomeserverURL = "matrix.example.org" }, "homeserver_url"},
		{"negative timeout", func(c *Config) { c.Sync.Timeout = -time.Second }, "sync.timeout"},
		{"tiny backoff", func(c *Config) { c.Sync.MaxBackoff = time.Millisecond }, "sync.max_backoff"},
		{"zero page size", func(c *Config) { c.Timeline.PageSize = 0 }, "timeline.page_size"},
		{"negative grace", func(c *Config) { c.ShutdownGrace = -1 }, "shutdown_grace"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
