// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"fmt"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

// ActiveRoom is the room currently shown in the timeline pane.
type ActiveRoom struct {
	RoomID      ref.RoomID
	DisplayName string
	Icon        string
	Timeline    *timeline.Timeline
	Composer    string
	HasComposer bool
	Paginating  bool
}

// State is the UI's copy of the client state, built only from sink
// commands. It is not safe for concurrent use; the bubbletea model owns
// it.
type State struct {
	LoggedIn   bool
	UserID     ref.UserID
	LoginError error

	Rooms  *rooms.Registry
	Active *ActiveRoom
}

// NewState returns a logged-out state with no rooms.
func NewState() *State {
	return &State{Rooms: rooms.NewRegistry()}
}

// Apply folds command into the state. It returns false when the command
// changed nothing visible, for example an event for a room that is no
// longer active.
func (s *State) Apply(command sink.Command) bool {
	switch command := command.(type) {
	case sink.FinishLogin:
		s.LoggedIn = true
		s.UserID = command.UserID
		s.LoginError = nil
		return true

	case sink.LoginFailed:
		s.LoggedIn = false
		s.LoginError = command.Err
		return true

	case sink.AddOrUpdateRoom:
		if !s.Rooms.Upsert(command.Summary) {
			return false
		}
		if s.Active != nil && s.Active.RoomID == command.Summary.RoomID {
			s.Active.DisplayName = command.Summary.DisplayName
			s.Active.Icon = command.Summary.Icon
			s.Active.HasComposer = command.Summary.Kind == rooms.Joined
		}
		return true

	case sink.SetActiveRoom:
		state := command.State
		s.Active = &ActiveRoom{
			RoomID:      state.RoomID,
			DisplayName: state.DisplayName,
			Icon:        state.Icon,
			Timeline:    timeline.FromGroups(state.RoomID, state.Groups),
			Composer:    state.Composer,
			HasComposer: state.HasComposer,
			Paginating:  state.Paginating,
		}
		return true

	case sink.AppendEvent:
		if !s.isActive(command.RoomID) {
			return false
		}
		return s.Active.Timeline.Append(command.RoomID, withSender(command.Entry, command.Sender))

	case sink.PrependEvent:
		if !s.isActive(command.RoomID) {
			return false
		}
		return s.Active.Timeline.Prepend(command.RoomID, withSender(command.Entry, command.Sender))

	case sink.RemoveEvent:
		if s.Active == nil {
			return false
		}
		return s.Active.Timeline.Remove(command.ID)

	case sink.MarkFailed:
		if s.Active == nil {
			return false
		}
		return s.Active.Timeline.MarkFailed(command.ID)

	case sink.SetPaginating:
		if !s.isActive(command.RoomID) || s.Active.Paginating == command.Paginating {
			return false
		}
		s.Active.Paginating = command.Paginating
		return true

	case sink.SetDisplayName:
		if !s.isActive(command.RoomID) {
			return false
		}
		s.Active.Timeline.SetDisplayName(command.UserID, command.DisplayName)
		return true

	default:
		panic(fmt.Sprintf("view: unhandled command %T", command))
	}
}

func (s *State) isActive(roomID ref.RoomID) bool {
	return s.Active != nil && s.Active.RoomID == roomID
}

// withSender fills in the entry's sender from the command when the
// producer left it out.
func withSender(entry timeline.Entry, sender ref.UserID) timeline.Entry {
	if entry.Sender.IsZero() {
		entry.Sender = sender
	}
	return entry
}
