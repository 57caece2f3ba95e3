// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sink

import (
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

// Command is one state change for the user interface.
type Command interface {
	command()
}

// FinishLogin reports that a session is established.
type FinishLogin struct {
	UserID ref.UserID
}

// LoginFailed reports a rejected login attempt. The form stays open.
type LoginFailed struct {
	Err error
}

// AddOrUpdateRoom inserts or replaces a room-list row.
type AddOrUpdateRoom struct {
	Summary rooms.Summary
}

// ActiveRoomState is everything shown for the selected room. It replaces
// the previous active room wholesale.
type ActiveRoomState struct {
	RoomID      ref.RoomID
	DisplayName string
	Icon        string
	Groups      []timeline.Group

	// Composer is the draft text. Only joined rooms have a composer;
	// HasComposer is false for invited and left rooms.
	Composer    string
	HasComposer bool

	Paginating bool
}

// SetActiveRoom switches the displayed room.
type SetActiveRoom struct {
	State ActiveRoomState
}

// AppendEvent adds an entry at the end of the active room's timeline.
type AppendEvent struct {
	RoomID ref.RoomID
	Sender ref.UserID
	Entry  timeline.Entry
}

// PrependEvent adds an older entry at the start of the active room's
// timeline.
type PrependEvent struct {
	RoomID ref.RoomID
	Sender ref.UserID
	Entry  timeline.Entry
}

// RemoveEvent removes the entry with ID from the active room's timeline.
type RemoveEvent struct {
	ID ref.EventIdentity
}

// MarkFailed flags an optimistic send that the server did not accept.
type MarkFailed struct {
	ID ref.TransactionID
}

// SetPaginating shows or hides the history-loading indicator.
type SetPaginating struct {
	RoomID     ref.RoomID
	Paginating bool
}

// SetDisplayName updates the label shown for a sender in the active
// room.
type SetDisplayName struct {
	RoomID      ref.RoomID
	UserID      ref.UserID
	DisplayName string
}

func (FinishLogin) command()     {}
func (LoginFailed) command()     {}
func (AddOrUpdateRoom) command() {}
func (SetActiveRoom) command()   {}
func (AppendEvent) command()     {}
func (PrependEvent) command()    {}
func (RemoveEvent) command()     {}
func (MarkFailed) command()      {}
func (SetPaginating) command()   {}
func (SetDisplayName) command()  {}
