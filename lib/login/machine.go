// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/secret"
	"github.com/bureau-foundation/roomline/lib/sessionstore"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/messaging"
)

// ErrInvalidUserID is returned by Submit when the user ID is not a
// well-formed Matrix user ID. No request is made.
var ErrInvalidUserID = errors.New("login: invalid user ID")

// ErrLoggedIn is returned by Submit after a session has been
// established.
var ErrLoggedIn = errors.New("login: already logged in")

// State is the lifecycle stage of a Machine.
type State int

const (
	LoggedOut State = iota
	LoggingIn
	LoggedIn
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case LoggingIn:
		return "logging_in"
	case LoggedIn:
		return "logged_in"
	default:
		return "unknown"
	}
}

// Credentials is one login attempt from the form.
type Credentials struct {
	// UserID is the text typed by the user, e.g. "@alice:example.org".
	UserID string

	// Password is owned by the Machine once submitted and closed after
	// the attempt.
	Password *secret.Buffer
}

// Store persists sessions. *sessionstore.Store satisfies it.
type Store interface {
	Load() (*sessionstore.Record, error)
	Save(record sessionstore.Record) error
}

// Config configures a Machine.
type Config struct {
	// HomeserverURL overrides homeserver discovery. When empty the
	// homeserver is https://<server name of the user ID>.
	HomeserverURL string

	// HTTPClient is passed to every messaging.Client. Nil uses
	// http.DefaultClient.
	HTTPClient *http.Client

	// UserAgent is sent with every homeserver request.
	UserAgent string

	Store Store
	Sink  sink.Sink

	// OnLoggedIn is invoked once, from the goroutine that completed the
	// login, when the machine first reaches LoggedIn.
	OnLoggedIn func(ctx context.Context, session *messaging.DirectSession)

	Logger *slog.Logger
}

// Machine is the login state machine. It is safe for concurrent use, but
// only one login attempt runs at a time.
type Machine struct {
	config Config
	logger *slog.Logger

	// attempt serialises Submit and Restore.
	attempt sync.Mutex

	mu      sync.Mutex
	state   State
	session *messaging.DirectSession
}

// New returns a Machine in the LoggedOut state.
func New(config Config) *Machine {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{config: config, logger: logger}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns the established session, or nil before LoggedIn.
func (m *Machine) Session() *messaging.DirectSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Restore enters LoggedIn from the persisted session, if there is one,
// without a credential round trip. It reports whether a session was
// restored. A stored token the server rejects leaves the machine
// LoggedOut; a server that cannot be reached does not, since the sync
// loop retries on its own.
//
// A malformed session file is returned as an error.
func (m *Machine) Restore(ctx context.Context) (bool, error) {
	m.attempt.Lock()
	defer m.attempt.Unlock()
	if m.State() == LoggedIn {
		return true, nil
	}

	record, err := m.config.Store.Load()
	if err != nil {
		return false, fmt.Errorf("login: loading session: %w", err)
	}
	if record == nil {
		return false, nil
	}

	homeserverURL := record.HomeserverURL
	if homeserverURL == "" {
		homeserverURL = m.homeserverFor(record.UserID)
	}
	client, err := m.newClient(homeserverURL)
	if err != nil {
		m.logger.Warn("stored session has an unusable homeserver", "homeserver", homeserverURL, "error", err)
		return false, nil
	}
	session, err := client.SessionFromToken(record.UserID, record.DeviceID, record.AccessToken)
	if err != nil {
		return false, fmt.Errorf("login: restoring session: %w", err)
	}

	if _, err := session.WhoAmI(ctx); err != nil {
		if messaging.IsAuthError(err) {
			m.logger.Warn("stored session was rejected", "user_id", record.UserID, "error", err)
			session.Close()
			return false, nil
		}
		m.logger.Warn("could not verify stored session, continuing offline", "user_id", record.UserID, "error", err)
	}

	m.logger.Info("restored session", "user_id", record.UserID, "device_id", record.DeviceID)
	m.finish(ctx, session)
	return true, nil
}

// Submit attempts a password login. The user ID is validated before any
// request; an invalid one returns ErrInvalidUserID and the state stays
// LoggedOut. A rejected login returns to LoggedOut, emits
// sink.LoginFailed, and returns the error. On success the session is
// saved before the machine enters LoggedIn. Submit closes
// credentials.Password.
func (m *Machine) Submit(ctx context.Context, credentials Credentials) error {
	if credentials.Password != nil {
		defer credentials.Password.Close()
	}

	m.attempt.Lock()
	defer m.attempt.Unlock()
	if m.State() == LoggedIn {
		return ErrLoggedIn
	}

	userID, err := ref.ParseUserID(credentials.UserID)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidUserID, err)
		m.emit(ctx, sink.LoginFailed{Err: err})
		return err
	}
	if credentials.Password == nil || credentials.Password.Len() == 0 {
		err := errors.New("login: password is required")
		m.emit(ctx, sink.LoginFailed{Err: err})
		return err
	}

	m.setState(LoggingIn)
	session, auth, err := m.login(ctx, userID, credentials.Password)
	if err != nil {
		m.setState(LoggedOut)
		m.logger.Warn("login failed", "user_id", userID, "error", err)
		m.emit(ctx, sink.LoginFailed{Err: err})
		return err
	}

	record := sessionstore.Record{
		HomeserverURL: session.HomeserverURL(),
		UserID:        auth.UserID,
		DeviceID:      auth.DeviceID,
		AccessToken:   auth.AccessToken,
		RefreshToken:  auth.RefreshToken,
	}
	// A session that cannot be saved still works for this run.
	if err := m.config.Store.Save(record); err != nil {
		m.logger.Error("saving session failed", "error", err)
	}

	m.finish(ctx, session)
	return nil
}

// Run submits credentials from the channel until a login succeeds, the
// channel is closed, or ctx is done. It returns the session, or nil with
// the reason it stopped.
func (m *Machine) Run(ctx context.Context, credentials <-chan Credentials) (*messaging.DirectSession, error) {
	for {
		if session := m.Session(); session != nil {
			return session, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case attempt, ok := <-credentials:
			if !ok {
				return nil, errors.New("login: credential channel closed")
			}
			// Failures are already logged and emitted; wait for the
			// next attempt.
			m.Submit(ctx, attempt)
		}
	}
}

func (m *Machine) login(ctx context.Context, userID ref.UserID, password *secret.Buffer) (*messaging.DirectSession, *messaging.AuthResponse, error) {
	client, err := m.newClient(m.homeserverFor(userID))
	if err != nil {
		return nil, nil, fmt.Errorf("login: %w", err)
	}
	return client.Login(ctx, userID, password)
}

func (m *Machine) homeserverFor(userID ref.UserID) string {
	if m.config.HomeserverURL != "" {
		return m.config.HomeserverURL
	}
	return userID.Server().HomeserverURL()
}

func (m *Machine) newClient(homeserverURL string) (*messaging.Client, error) {
	return messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: homeserverURL,
		HTTPClient:    m.config.HTTPClient,
		Logger:        m.logger,
		UserAgent:     m.config.UserAgent,
	})
}

// finish enters LoggedIn. Callers hold m.attempt, so the transition and
// the OnLoggedIn call happen once.
func (m *Machine) finish(ctx context.Context, session *messaging.DirectSession) {
	m.mu.Lock()
	m.state = LoggedIn
	m.session = session
	m.mu.Unlock()

	m.emit(ctx, sink.FinishLogin{UserID: session.UserID()})
	if m.config.OnLoggedIn != nil {
		m.config.OnLoggedIn(ctx, session)
	}
}

func (m *Machine) setState(state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
}

func (m *Machine) emit(ctx context.Context, command sink.Command) {
	if m.config.Sink != nil {
		sink.Emit(ctx, m.logger, m.config.Sink, command)
	}
}
