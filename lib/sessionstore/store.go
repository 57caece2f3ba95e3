// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionstore persists the logged-in session: homeserver,
// user and device IDs, access token, and the last sync cursor.
//
// The file is a single JSON object with a "session" key. It is read
// through a JSONC filter so a hand-edited file with comments or trailing
// commas still loads. Writes go to a temporary file in the same
// directory and are renamed into place, so a crash mid-write leaves the
// previous session intact. The file is created 0600 in a 0700 directory
// because it holds an access token.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/secret"
)

// PathEnvironmentVariable overrides the session file location.
const PathEnvironmentVariable = "ROOMLINE_SESSION_FILE"

// ErrNoSession is returned by SaveCursor before any record has been
// loaded or saved.
var ErrNoSession = errors.New("sessionstore: no session to update")

// Record is one persisted session.
type Record struct {
	// HomeserverURL is the base URL the session was created against.
	HomeserverURL string `json:"homeserver_url"`

	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id"`

	// AccessToken authenticates every request of the session.
	AccessToken string `json:"access_token"`

	// RefreshToken is stored when the server issued one. The client does
	// not refresh tokens yet.
	RefreshToken string `json:"refresh_token,omitempty"`

	// SyncCursor is the next_batch token of the last /sync response
	// whose events were handed to the dispatcher. Empty means an
	// initial sync.
	SyncCursor string `json:"sync_cursor,omitempty"`
}

type fileContents struct {
	Session *Record `json:"session,omitempty"`
}

// DefaultPath returns $ROOMLINE_SESSION_FILE if set, else
// $XDG_DATA_HOME/roomline/session.json, else
// ~/.local/share/roomline/session.json.
func DefaultPath() string {
	if envPath := os.Getenv(PathEnvironmentVariable); envPath != "" {
		return envPath
	}

	dataDirectory := os.Getenv("XDG_DATA_HOME")
	if dataDirectory == "" {
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "roomline-session.json")
		}
		dataDirectory = filepath.Join(homeDirectory, ".local", "share")
	}
	return filepath.Join(dataDirectory, "roomline", "session.json")
}

// Store reads and writes one session file. It is the only writer of
// that file; all methods are safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	current *Record
}

// New returns a Store for the file at path. A nil logger uses
// slog.Default().
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the session file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the session file. A missing file, or a file without a
// "session" key, yields (nil, nil). Any other failure is an error the
// caller should treat as fatal: silently discarding a corrupt session
// would log the user out without explanation.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sessionstore: reading %s: %w", s.path, err)
	}
	defer secret.Zero(data)

	stripped := jsonc.ToJSON(data)
	defer secret.Zero(stripped)

	var contents fileContents
	if err := json.Unmarshal(stripped, &contents); err != nil {
		return nil, fmt.Errorf("sessionstore: parsing %s: %w", s.path, err)
	}
	if contents.Session == nil {
		return nil, nil
	}

	record := contents.Session
	if record.UserID.IsZero() {
		return nil, fmt.Errorf("sessionstore: %s has no user_id", s.path)
	}
	if record.AccessToken == "" {
		return nil, fmt.Errorf("sessionstore: %s has no access_token", s.path)
	}

	s.mu.Lock()
	stored := *record
	s.current = &stored
	s.mu.Unlock()

	loaded := *record
	return &loaded, nil
}

// Save replaces the stored session with record.
func (s *Store) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeLocked(&record); err != nil {
		s.logger.Error("saving session failed", "path", s.path, "error", err)
		return err
	}
	s.current = &record
	return nil
}

// SaveCursor updates only the sync cursor of the current session.
func (s *Store) SaveCursor(cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return ErrNoSession
	}
	updated := *s.current
	updated.SyncCursor = cursor
	if err := s.writeLocked(&updated); err != nil {
		s.logger.Warn("saving sync cursor failed", "path", s.path, "error", err)
		return err
	}
	s.current = &updated
	return nil
}

func (s *Store) writeLocked(record *Record) error {
	data, err := json.MarshalIndent(fileContents{Session: record}, "", "  ")
	if err != nil {
		return fmt.Errorf("sessionstore: marshaling session: %w", err)
	}
	data = append(data, '\n')
	defer secret.Zero(data)

	directory := filepath.Dir(s.path)
	if err := os.MkdirAll(directory, 0700); err != nil {
		return fmt.Errorf("sessionstore: creating directory %s: %w", directory, err)
	}

	// CreateTemp opens with mode 0600.
	temporary, err := os.CreateTemp(directory, ".session-*.json")
	if err != nil {
		return fmt.Errorf("sessionstore: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("sessionstore: writing %s: %w", temporaryPath, err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("sessionstore: syncing %s: %w", temporaryPath, err)
	}
	if err := temporary.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("sessionstore: closing %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("sessionstore: replacing %s: %w", s.path, err)
	}
	return nil
}
