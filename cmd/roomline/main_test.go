// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/roomline/lib/config"
)

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	path := filepath.Join(t.TempDir(), "roomline.yaml")
	contents := "session_file: /from/config.json\nsync:\n  timeout: 10s\nlog:\n  file: /from/config.log\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(options{
		configPath:    path,
		logFile:       "/from/flag.log",
		homeserverURL: "https://matrix.example.org",
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.SessionFile != "/from/config.json" {
		t.Errorf("session file = %q", cfg.SessionFile)
	}
	if cfg.Log.File != "/from/flag.log" {
		t.Errorf("log file = %q, want the flag value", cfg.Log.File)
	}
	if cfg.HomeserverURL != "https://matrix.example.org" {
		t.Errorf("homeserver = %q", cfg.HomeserverURL)
	}
	if cfg.Sync.Timeout != 10*time.Second {
		t.Errorf("sync timeout = %v", cfg.Sync.Timeout)
	}
}

func TestLoadConfigRejectsBadHomeserver(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	if _, err := loadConfig(options{homeserverURL: "matrix.example.org"}); err == nil {
		t.Fatal("homeserver without a scheme was accepted")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(config.EnvironmentVariable, "")
	cfg, err := loadConfig(options{sessionFile: "/tmp/session.json"})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.SessionFile != "/tmp/session.json" || cfg.ShutdownGrace != 2*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}
