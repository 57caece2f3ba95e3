// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/bureau-foundation/roomline/lib/client"
	"github.com/bureau-foundation/roomline/lib/config"
	"github.com/bureau-foundation/roomline/lib/login"
	"github.com/bureau-foundation/roomline/lib/secret"
	"github.com/bureau-foundation/roomline/lib/sessionstore"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/syncloop"
	"github.com/bureau-foundation/roomline/lib/version"
	"github.com/bureau-foundation/roomline/lib/view"
	"github.com/bureau-foundation/roomline/messaging"
)

// application wires the login machine, the client, the sync loop, and
// the UI for one run of the program.
type application struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sessionstore.Store
	queue   *sink.Queue
	machine *login.Machine

	// ui receives ControllerReady and the quit message on a fatal
	// error. It is the tea.Program outside of tests.
	ui view.MessageSender

	// background tracks the login goroutine and the sync loop.
	background sync.WaitGroup

	mu     sync.Mutex
	client *client.Client
	fatal  error
}

func newApplication(cfg *config.Config, logger *slog.Logger, ui view.MessageSender) *application {
	sessionPath := cfg.SessionFile
	if sessionPath == "" {
		sessionPath = sessionstore.DefaultPath()
	}
	app := &application{
		cfg:    cfg,
		logger: logger,
		store:  sessionstore.New(sessionPath, logger.With("component", "sessionstore")),
		queue:  sink.NewQueue(),
		ui:     ui,
	}
	app.machine = login.New(login.Config{
		HomeserverURL: cfg.HomeserverURL,
		UserAgent:     version.UserAgent(),
		Store:         app.store,
		Sink:          app.queue,
		OnLoggedIn:    app.start,
		Logger:        logger.With("component", "login"),
	})
	return app
}

func runApplication(ctx context.Context, cfg *config.Config, opts options) error {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}

	uiHandler := view.NewLogHandler(slog.LevelWarn)
	var handler slog.Handler = uiHandler
	if cfg.Log.File != "" {
		fileHandler, closeFile, err := openFileLogHandler(cfg.Log.File, level)
		if err != nil {
			return fmt.Errorf("opening log file %s: %w", cfg.Log.File, err)
		}
		defer closeFile()
		handler = fanoutHandler{uiHandler, fileHandler}
	}
	logger := slog.New(handler)

	// The password is read before the UI takes over the terminal, since
	// "-" reads it from stdin.
	var password *secret.Buffer
	if opts.passwordFile != "" {
		password, err = secret.ReadFromPath(opts.passwordFile)
		if err != nil {
			return fmt.Errorf("reading password from %s: %w", opts.passwordFile, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	credentials := make(chan login.Credentials)
	programOptions := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		programOptions = append(programOptions, tea.WithInputTTY())
	}

	// The program and the application refer to each other: the model
	// needs the queue, and the application sends to the program.
	var program *tea.Program
	ui := programSender{program: &program}
	app := newApplication(cfg, logger, ui)

	model := view.NewModel(view.Config{
		Context:     ctx,
		Queue:       app.queue,
		Credentials: credentials,
		Logger:      logger.With("component", "ui"),
	})
	program = tea.NewProgram(model, programOptions...)
	uiHandler.SetProgram(program)

	app.background.Add(1)
	go func() {
		defer app.background.Done()
		app.login(ctx, credentials, opts.userID, password)
	}()

	_, runErr := program.Run()
	cancel()
	app.shutdown()

	if fatal := app.fatalError(); fatal != nil {
		return fatal
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return runErr
	}
	return nil
}

// programSender forwards to the tea.Program once it exists.
type programSender struct {
	program **tea.Program
}

func (sender programSender) Send(message tea.Msg) {
	if program := *sender.program; program != nil {
		program.Send(message)
	}
}

// login restores the saved session, or logs in with the scripted
// credentials, or falls back to the login form. password may be nil and
// is always closed.
func (app *application) login(ctx context.Context, credentials <-chan login.Credentials, userID string, password *secret.Buffer) {
	restored, err := app.machine.Restore(ctx)
	if err != nil || restored {
		if password != nil {
			password.Close()
		}
		if err != nil {
			app.fail(err)
		}
		return
	}

	if password != nil {
		err := app.machine.Submit(ctx, login.Credentials{UserID: userID, Password: password})
		if err == nil {
			return
		}
		app.logger.Warn("scripted login failed, showing the login form", "user_id", userID, "error", err)
	}

	if _, err := app.machine.Run(ctx, credentials); err != nil && ctx.Err() == nil {
		app.fail(err)
	}
}

// start runs once the machine reaches LoggedIn: it creates the client,
// hands it to the UI, lists the joined rooms and, when resuming, the
// pending invites, then starts the sync loop.
func (app *application) start(ctx context.Context, session *messaging.DirectSession) {
	roomClient := client.New(client.Config{
		Session:         session,
		Sink:            app.queue,
		PageSize:        app.cfg.Timeline.PageSize,
		LazyLoadMembers: app.cfg.Sync.LazyLoadMembers,
		Logger:          app.logger.With("component", "client"),
	})
	app.mu.Lock()
	app.client = roomClient
	app.mu.Unlock()
	app.ui.Send(view.ControllerReady{Controller: roomClient})

	cursor := ""
	record, err := app.store.Load()
	if err != nil {
		app.logger.Warn("reading sync cursor failed, starting a full sync", "error", err)
	} else if record != nil {
		cursor = record.SyncCursor
	}

	driver := syncloop.New(syncloop.Config{
		Session:  session,
		Store:    app.store,
		Handlers: roomClient.Handlers(),
		Cursor:   cursor,
		Filter: messaging.BuildSyncFilter(messaging.SyncFilter{
			LazyLoadMembers: app.cfg.Sync.LazyLoadMembers,
		}),
		Timeout:    app.cfg.Sync.Timeout,
		MaxBackoff: app.cfg.Sync.MaxBackoff,
		Logger:     app.logger.With("component", "sync"),
	})

	app.background.Add(1)
	go func() {
		defer app.background.Done()
		if err := roomClient.PopulateRooms(ctx); err != nil && ctx.Err() == nil {
			app.logger.Warn("listing joined rooms failed", "error", err)
		}
		// An initial sync reports every pending invite itself.
		if cursor != "" {
			if err := roomClient.ScanInvites(ctx); err != nil && ctx.Err() == nil {
				app.logger.Warn("listing pending invites failed", "error", err)
			}
		}
		driver.Run(ctx)
	}()
}

// fail records a fatal error and stops the UI.
func (app *application) fail(err error) {
	app.mu.Lock()
	if app.fatal == nil {
		app.fatal = err
	}
	app.mu.Unlock()
	app.ui.Send(tea.Quit())
}

func (app *application) fatalError() error {
	app.mu.Lock()
	defer app.mu.Unlock()
	return app.fatal
}

// shutdown waits for the login goroutine, the sync loop, and the
// client's background requests, bounded by the configured grace period.
// The caller has already cancelled their context. Work still running
// when the grace period ends is abandoned.
func (app *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGrace)
	defer cancel()
	defer app.queue.Close()

	done := make(chan struct{})
	go func() {
		app.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		app.logger.Warn("sync loop did not stop in time", "grace", app.cfg.ShutdownGrace)
		return
	}

	app.mu.Lock()
	roomClient := app.client
	app.mu.Unlock()
	if roomClient != nil {
		roomClient.Close()
		if err := roomClient.Wait(ctx); err != nil {
			app.logger.Warn("background requests did not stop in time", "grace", app.cfg.ShutdownGrace, "error", err)
		}
	}
	if session := app.machine.Session(); session != nil {
		session.Close()
	}
}
