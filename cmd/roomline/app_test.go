// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/roomline/lib/config"
	"github.com/bureau-foundation/roomline/lib/login"
	"github.com/bureau-foundation/roomline/lib/secret"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/testutil"
	"github.com/bureau-foundation/roomline/lib/view"
)

// recordingUI stands in for the tea.Program.
type recordingUI struct {
	messages chan tea.Msg
}

func newRecordingUI() *recordingUI {
	return &recordingUI{messages: make(chan tea.Msg, 16)}
}

func (ui *recordingUI) Send(message tea.Msg) {
	ui.messages <- message
}

func testApplication(t *testing.T, homeserver *testutil.Homeserver) (*application, *recordingUI) {
	t.Helper()
	cfg := config.Default()
	cfg.HomeserverURL = homeserver.URL()
	cfg.SessionFile = filepath.Join(t.TempDir(), "session.json")
	ui := newRecordingUI()
	return newApplication(cfg, slog.New(slog.DiscardHandler), ui), ui
}

func testPassword(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating password buffer: %v", err)
	}
	return buffer
}

// runLogin starts app.login the way runApplication does.
func runLogin(ctx context.Context, app *application, credentials <-chan login.Credentials, userID string, password *secret.Buffer) {
	app.background.Add(1)
	go func() {
		defer app.background.Done()
		app.login(ctx, credentials, userID, password)
	}()
}

func requireControllerReady(t *testing.T, ui *recordingUI) {
	t.Helper()
	message := testutil.RequireReceive(t, ui.messages, 5*time.Second, "waiting for ControllerReady")
	ready, ok := message.(view.ControllerReady)
	if !ok || ready.Controller == nil {
		t.Fatalf("UI message = %#v, want ControllerReady", message)
	}
}

func requireFinishLogin(t *testing.T, commands []sink.Command) {
	t.Helper()
	for _, command := range commands {
		if _, ok := command.(sink.FinishLogin); ok {
			return
		}
	}
	t.Fatalf("no FinishLogin among %d commands", len(commands))
}

func TestScriptedLoginStartsClient(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	homeserver.SetPassword("self", "hunter2")
	app, ui := testApplication(t, homeserver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runLogin(ctx, app, nil, "@self:example.org", testPassword(t, "hunter2"))
	requireControllerReady(t, ui)

	cancel()
	app.shutdown()

	if err := app.fatalError(); err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	record, err := app.store.Load()
	if err != nil || record == nil {
		t.Fatalf("session not saved: record %v, error %v", record, err)
	}
	if record.UserID.String() != "@self:example.org" {
		t.Errorf("saved user = %s", record.UserID)
	}
	requireFinishLogin(t, app.queue.Drain())
}

func TestRejectedScriptedLoginFallsBackToForm(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	homeserver.SetPassword("self", "hunter2")
	app, ui := testApplication(t, homeserver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	credentials := make(chan login.Credentials)
	runLogin(ctx, app, credentials, "@self:example.org", testPassword(t, "wrong"))

	testutil.RequireSend(t, credentials, login.Credentials{
		UserID:   "@self:example.org",
		Password: testPassword(t, "hunter2"),
	}, 5*time.Second, "submitting the form")
	requireControllerReady(t, ui)

	cancel()
	app.shutdown()
	if err := app.fatalError(); err != nil {
		t.Fatalf("fatal error: %v", err)
	}
}

func TestMalformedSessionFileIsFatal(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	app, ui := testApplication(t, homeserver)
	if err := os.WriteFile(app.cfg.SessionFile, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runLogin(ctx, app, nil, "", nil)

	message := testutil.RequireReceive(t, ui.messages, 5*time.Second, "waiting for quit")
	if _, ok := message.(tea.QuitMsg); !ok {
		t.Fatalf("UI message = %#v, want QuitMsg", message)
	}
	cancel()
	app.shutdown()
	if app.fatalError() == nil {
		t.Fatal("malformed session file was not fatal")
	}
}

func TestShutdownWithoutLogin(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	app, ui := testApplication(t, homeserver)

	ctx, cancel := context.WithCancel(context.Background())
	runLogin(ctx, app, make(chan login.Credentials), "", nil)
	testutil.RequireNoReceive(t, ui.messages, 50*time.Millisecond, "UI message without a session")
	cancel()
	app.shutdown()

	if err := app.fatalError(); err != nil {
		t.Fatalf("cancelled login reported %v", err)
	}
	if err := app.queue.Submit(sink.FinishLogin{}); err != sink.ErrClosed {
		t.Fatalf("queue still open after shutdown: %v", err)
	}
}
