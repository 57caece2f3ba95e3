// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package view is the terminal front end. [State] applies sink commands
// to a plain in-memory picture of the client: login status, the room
// list, and the active room's timeline. [Model] is the bubbletea program
// that renders that picture and forwards user input to a [Controller].
//
// The client core never touches the terminal. Everything it wants shown
// arrives as a [sink.Command] on a [sink.Queue], and the model drains
// the queue one command at a time with [listenForCommand].
//
// Confirmed message bodies are rendered as markdown: goldmark parses,
// chroma highlights fenced code, and x/ansi wraps to the pane width.
package view
