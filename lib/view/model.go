// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/roomline/lib/client"
	"github.com/bureau-foundation/roomline/lib/login"
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/secret"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

// Controller is the part of the client the UI drives. *client.Client
// implements it.
type Controller interface {
	SelectRoom(ctx context.Context, roomID ref.RoomID) error
	SetComposer(text string) error
	Send(ctx context.Context, body string) (ref.TransactionID, error)
	Paginate(ctx context.Context) error
}

var _ Controller = (*client.Client)(nil)

// ControllerReady hands the model its controller once a session
// exists. Deliver it with tea.Program.Send.
type ControllerReady struct {
	Controller Controller
}

// commandMsg carries one sink command into Update.
type commandMsg struct {
	command sink.Command
}

// queueClosedMsg reports that the command queue was closed and drained.
type queueClosedMsg struct{}

// actionErrorMsg reports a failed controller call.
type actionErrorMsg struct {
	action string
	err    error
}

// credentialsSentMsg reports that the login form's credentials were
// handed to the login machine.
type credentialsSentMsg struct{}

// focusRegion identifies which widget receives keyboard input.
type focusRegion int

const (
	focusUser focusRegion = iota
	focusPassword
	focusRooms
	focusFilter
	focusComposer
)

// Config holds the model's collaborators.
type Config struct {
	// Context bounds every controller call and the command listener.
	Context context.Context

	// Queue is the sink the client core submits commands to.
	Queue *sink.Queue

	// Credentials receives login form submissions. The login machine
	// reads it in login.Machine.Run.
	Credentials chan<- login.Credentials

	// Controller may be nil until ControllerReady arrives.
	Controller Controller

	Theme  *Theme
	Keys   *KeyMap
	Logger *slog.Logger
}

// Model is the bubbletea model for the client.
type Model struct {
	ctx         context.Context
	state       *State
	queue       *sink.Queue
	credentials chan<- login.Credentials
	controller  Controller
	theme       Theme
	keys        KeyMap
	logger      *slog.Logger

	focus        focusRegion
	loginPending bool

	userInput     textinput.Model
	passwordInput textinput.Model
	composer      textinput.Model
	filterInput   textinput.Model
	timelinePane  viewport.Model

	// roomCursor indexes visibleRooms, not the full registry.
	roomCursor int
	filterSlab *util.Slab

	width  int
	height int
	ready  bool

	status       string
	statusLevel  slog.Level
	statusSerial int
}

// NewModel creates the model. The login form is shown until a
// FinishLogin command arrives.
func NewModel(config Config) Model {
	ctx := config.Context
	if ctx == nil {
		ctx = context.Background()
	}
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	keys := DefaultKeyMap
	if config.Keys != nil {
		keys = *config.Keys
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	userInput := textinput.New()
	userInput.Placeholder = "@alice:example.org"
	userInput.Prompt = "user id:  "
	userInput.Focus()

	passwordInput := textinput.New()
	passwordInput.Prompt = "password: "
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'

	composer := textinput.New()
	composer.Prompt = "> "
	composer.Placeholder = "message"

	filterInput := textinput.New()
	filterInput.Prompt = "/"

	return Model{
		ctx:           ctx,
		state:         NewState(),
		queue:         config.Queue,
		credentials:   config.Credentials,
		controller:    config.Controller,
		theme:         theme,
		keys:          keys,
		logger:        logger,
		focus:         focusUser,
		userInput:     userInput,
		passwordInput: passwordInput,
		composer:      composer,
		filterInput:   filterInput,
		timelinePane:  viewport.New(0, 0),
		filterSlab:    util.MakeSlab(100*1024, 2048),
	}
}

// State returns the model's view of the client.
func (model Model) State() *State {
	return model.state
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, listenForCommand(model.ctx, model.queue))
}

// listenForCommand returns a tea.Cmd that blocks until the queue yields
// a command, then delivers it as a commandMsg.
func listenForCommand(ctx context.Context, queue *sink.Queue) tea.Cmd {
	if queue == nil {
		return nil
	}
	return func() tea.Msg {
		command, err := queue.Next(ctx)
		if err != nil {
			return queueClosedMsg{}
		}
		return commandMsg{command: command}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		model.refreshTimeline(false)
		return model, nil

	case tea.KeyMsg:
		return model.handleKey(message)

	case commandMsg:
		cmd := model.applyCommand(message.command)
		return model, tea.Batch(cmd, listenForCommand(model.ctx, model.queue))

	case queueClosedMsg:
		return model, tea.Quit

	case ControllerReady:
		model.controller = message.Controller
		return model, nil

	case credentialsSentMsg:
		return model, nil

	case actionErrorMsg:
		model.logger.Warn(message.action+" failed", "error", message.err)
		return model, nil

	case logRecordMsg:
		model.statusSerial++
		model.status = message.Summary
		model.statusLevel = message.Level
		serial := model.statusSerial
		return model, tea.Tick(statusFadeDelay, func(_ time.Time) tea.Msg {
			return statusFadeMsg{serial: serial}
		})

	case statusFadeMsg:
		if message.serial == model.statusSerial {
			model.status = ""
		}
		return model, nil
	}

	return model.updateFocused(message)
}

// applyCommand folds a sink command into the state and adjusts focus
// and widgets that mirror it.
func (model *Model) applyCommand(command sink.Command) tea.Cmd {
	atBottom := model.timelinePane.AtBottom()
	linesBefore := model.timelinePane.TotalLineCount()

	changed := model.state.Apply(command)

	switch command := command.(type) {
	case sink.FinishLogin:
		model.loginPending = false
		model.passwordInput.Reset()
		model.setFocus(focusRooms)

	case sink.LoginFailed:
		model.loginPending = false
		model.passwordInput.Reset()
		model.setFocus(focusPassword)

	case sink.AddOrUpdateRoom:
		model.clampRoomCursor()
		if model.focus == focusComposer && (model.state.Active == nil || !model.state.Active.HasComposer) {
			model.setFocus(focusRooms)
		}

	case sink.SetActiveRoom:
		model.composer.SetValue(command.State.Composer)
		model.refreshTimeline(true)
		if command.State.HasComposer {
			model.setFocus(focusComposer)
		}
		if len(command.State.Groups) == 0 {
			return model.paginate()
		}
		return nil

	case sink.PrependEvent:
		if changed {
			model.refreshTimeline(false)
			// Keep the lines the user was reading in place.
			added := model.timelinePane.TotalLineCount() - linesBefore
			model.timelinePane.SetYOffset(model.timelinePane.YOffset + added)
		}
		return nil
	}

	if changed {
		model.refreshTimeline(atBottom)
	}
	return nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if model.focus == focusFilter && key.Matches(message, model.keys.Cancel) {
		model.filterInput.Reset()
		model.roomCursor = 0
		model.setFocus(focusRooms)
		return model, nil
	}
	if key.Matches(message, model.keys.Quit) {
		return model, tea.Quit
	}

	switch model.focus {
	case focusUser, focusPassword:
		switch {
		case key.Matches(message, model.keys.FocusToggle):
			if model.focus == focusUser {
				model.setFocus(focusPassword)
			} else {
				model.setFocus(focusUser)
			}
			return model, nil
		case key.Matches(message, model.keys.Submit):
			return model.submitLogin()
		}

	case focusRooms, focusFilter:
		switch {
		case key.Matches(message, model.keys.FocusToggle):
			if model.state.Active != nil && model.state.Active.HasComposer {
				model.setFocus(focusComposer)
			} else {
				model.setFocus(focusRooms)
			}
			return model, nil
		case model.focus == focusRooms && key.Matches(message, model.keys.Filter):
			model.setFocus(focusFilter)
			return model, nil
		case key.Matches(message, model.keys.Up):
			if model.roomCursor > 0 {
				model.roomCursor--
			}
			return model, nil
		case key.Matches(message, model.keys.Down):
			model.roomCursor++
			model.clampRoomCursor()
			return model, nil
		case key.Matches(message, model.keys.Submit):
			if model.focus == focusFilter {
				model.setFocus(focusRooms)
			}
			return model, model.selectRoom()
		}

	case focusComposer:
		switch {
		case key.Matches(message, model.keys.FocusToggle):
			model.setFocus(focusRooms)
			return model, nil
		case key.Matches(message, model.keys.Submit):
			return model, model.send()
		}
	}

	switch {
	case key.Matches(message, model.keys.PageUp):
		model.timelinePane.HalfViewUp()
		if model.timelinePane.AtTop() {
			return model, model.paginate()
		}
		return model, nil
	case key.Matches(message, model.keys.PageDown):
		model.timelinePane.HalfViewDown()
		return model, nil
	case key.Matches(message, model.keys.History):
		return model, model.paginate()
	}

	return model.updateFocused(message)
}

// updateFocused passes a message to the focused text input and mirrors
// composer edits into the client.
func (model Model) updateFocused(message tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch model.focus {
	case focusUser:
		model.userInput, cmd = model.userInput.Update(message)
	case focusPassword:
		model.passwordInput, cmd = model.passwordInput.Update(message)
	case focusFilter:
		before := model.filterInput.Value()
		model.filterInput, cmd = model.filterInput.Update(message)
		if model.filterInput.Value() != before {
			model.roomCursor = 0
		}
	case focusComposer:
		before := model.composer.Value()
		model.composer, cmd = model.composer.Update(message)
		if after := model.composer.Value(); after != before && model.state.Active != nil {
			model.state.Active.Composer = after
			if model.controller != nil {
				if err := model.controller.SetComposer(after); err != nil {
					model.logger.Debug("storing draft failed", "error", err)
				}
			}
		}
	}
	return model, cmd
}

// submitLogin hands the form contents to the login machine. The password
// is copied into a protected buffer and wiped from the input.
func (model Model) submitLogin() (tea.Model, tea.Cmd) {
	if model.loginPending || model.credentials == nil {
		return model, nil
	}
	userID := strings.TrimSpace(model.userInput.Value())
	if userID == "" {
		model.setFocus(focusUser)
		return model, nil
	}
	if model.passwordInput.Value() == "" {
		model.setFocus(focusPassword)
		return model, nil
	}

	password, err := secret.NewFromString(model.passwordInput.Value())
	model.passwordInput.Reset()
	if err != nil {
		model.logger.Error("protecting password failed", "error", err)
		return model, nil
	}

	model.loginPending = true
	model.state.LoginError = nil
	credentials := login.Credentials{UserID: userID, Password: password}
	channel := model.credentials
	ctx := model.ctx
	return model, func() tea.Msg {
		select {
		case channel <- credentials:
		case <-ctx.Done():
			password.Close()
		}
		return credentialsSentMsg{}
	}
}

func (model Model) selectRoom() tea.Cmd {
	if model.controller == nil {
		return nil
	}
	list := model.visibleRooms()
	if model.roomCursor >= len(list) {
		return nil
	}
	controller, ctx, roomID := model.controller, model.ctx, list[model.roomCursor].RoomID
	return func() tea.Msg {
		if err := controller.SelectRoom(ctx, roomID); err != nil {
			return actionErrorMsg{action: "opening room", err: err}
		}
		return nil
	}
}

// send clears the composer and sends its text in the background. The
// optimistic entry arrives as an AppendEvent command.
func (model *Model) send() tea.Cmd {
	if model.controller == nil || model.state.Active == nil || !model.state.Active.HasComposer {
		return nil
	}
	body := model.composer.Value()
	if strings.TrimSpace(body) == "" {
		return nil
	}
	model.composer.Reset()
	model.state.Active.Composer = ""

	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		if _, err := controller.Send(ctx, body); err != nil && !errors.Is(err, client.ErrEmptyMessage) {
			return actionErrorMsg{action: "sending message", err: err}
		}
		return nil
	}
}

// paginate requests older history for the active room. Requests while
// one is in flight, or after the start of the room, are dropped.
func (model Model) paginate() tea.Cmd {
	if model.controller == nil || model.state.Active == nil || model.state.Active.Paginating {
		return nil
	}
	controller, ctx := model.controller, model.ctx
	return func() tea.Msg {
		err := controller.Paginate(ctx)
		if err == nil ||
			errors.Is(err, timeline.ErrPaginationInFlight) ||
			errors.Is(err, timeline.ErrHistoryExhausted) ||
			errors.Is(err, client.ErrNoActiveRoom) {
			return nil
		}
		return actionErrorMsg{action: "loading history", err: err}
	}
}

func (model *Model) setFocus(focus focusRegion) {
	model.focus = focus
	model.userInput.Blur()
	model.passwordInput.Blur()
	model.composer.Blur()
	model.filterInput.Blur()
	switch focus {
	case focusUser:
		model.userInput.Focus()
	case focusPassword:
		model.passwordInput.Focus()
	case focusComposer:
		model.composer.Focus()
	case focusFilter:
		model.filterInput.Focus()
	}
}

// visibleRooms is the room list after the fuzzy filter.
func (model Model) visibleRooms() []rooms.Summary {
	return filterRooms(model.state.Rooms.List(), model.filterInput.Value(), model.filterSlab)
}

func (model *Model) clampRoomCursor() {
	count := len(model.visibleRooms())
	if model.roomCursor >= count {
		model.roomCursor = count - 1
	}
	if model.roomCursor < 0 {
		model.roomCursor = 0
	}
}
