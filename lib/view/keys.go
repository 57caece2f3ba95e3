// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the terminal UI.
type KeyMap struct {
	// Room list movement.
	Up   key.Binding
	Down key.Binding

	// Timeline scrolling. PageUp at the top of the timeline loads older
	// history.
	PageUp   key.Binding
	PageDown key.Binding
	History  key.Binding

	// Enter submits the login form, opens the selected room, or sends
	// the composer text depending on focus.
	Submit key.Binding

	// FocusToggle moves between the room list and the composer, or
	// between the login form fields.
	FocusToggle key.Binding

	// Filter starts fuzzy filtering of the room list; Cancel clears the
	// filter. Cancel is checked before Quit while the filter has focus.
	Filter key.Binding
	Cancel key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in key binding set. Letter keys are left
// to the composer, so movement uses arrows and control chords.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
		key.WithHelp("↓", "down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("C-u", "page up"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("C-d", "page down"),
	),
	History: key.NewBinding(
		key.WithKeys("ctrl+b"),
		key.WithHelp("C-b", "older"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open/send"),
	),
	FocusToggle: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "focus"),
	),
	Filter: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "filter"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "clear filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}
