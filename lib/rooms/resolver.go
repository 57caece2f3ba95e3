// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/schema"
	"github.com/bureau-foundation/roomline/messaging"
)

// ErrorDisplayName is shown for rooms whose state could not be fetched.
const ErrorDisplayName = "<error>"

// EmptyRoomDisplayName is shown for rooms with no name, alias, or other
// members.
const EmptyRoomDisplayName = "Empty room"

// StateSource is the subset of a Matrix session the resolver reads.
// *messaging.DirectSession satisfies it.
type StateSource interface {
	UserID() ref.UserID
	GetRoomState(ctx context.Context, roomID ref.RoomID) ([]messaging.Event, error)
	GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]messaging.RoomMember, error)
}

// Resolution is the outcome of resolving one room.
type Resolution struct {
	Summary Summary

	// Tombstoned is set when the room has been replaced by an upgrade.
	Tombstoned bool

	// Tracked is false for rooms whose create event carries a type
	// other than a space.
	Tracked bool

	// Err is the lookup failure, if any. Summary.DisplayName is then
	// ErrorDisplayName.
	Err error
}

// Resolver computes room summaries from room state. Concurrent
// resolutions of the same room share one set of requests.
type Resolver struct {
	source StateSource
	logger *slog.Logger
	group  singleflight.Group
}

// NewResolver returns a Resolver reading from source. A nil logger uses
// slog.Default().
func NewResolver(source StateSource, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, logger: logger}
}

// Summarize returns the summary of roomID. Lookup failures are logged
// and produce ErrorDisplayName.
func (r *Resolver) Summarize(ctx context.Context, roomID ref.RoomID, kind Kind) Summary {
	return r.Resolve(ctx, roomID, kind).Summary
}

// Resolve fetches the state of roomID and derives its summary.
func (r *Resolver) Resolve(ctx context.Context, roomID ref.RoomID, kind Kind) Resolution {
	value, err, _ := r.group.Do(roomID.String(), func() (any, error) {
		return r.fetch(ctx, roomID)
	})
	if err != nil {
		r.logger.Warn("resolving room failed", "room_id", roomID, "error", err)
		return Resolution{
			Summary: Summary{RoomID: roomID, DisplayName: ErrorDisplayName, Kind: kind},
			Tracked: true,
			Err:     err,
		}
	}

	return value.(roomState).resolution(roomID, kind)
}

// ShouldTrackCreate reports whether a room announced by an m.room.create
// event with this content belongs in the room list.
func ShouldTrackCreate(content map[string]any) bool {
	create, err := schema.DecodeContent[schema.RoomCreateContent](content)
	if err != nil {
		return false
	}
	return create.IsTracked()
}

// roomState is the part of a room's state the summary is built from.
type roomState struct {
	displayName string
	icon        string
	create      schema.RoomCreateContent
	tombstoned  bool
}

func (state roomState) resolution(roomID ref.RoomID, kind Kind) Resolution {
	return Resolution{
		Summary: Summary{
			RoomID:      roomID,
			DisplayName: state.displayName,
			Icon:        state.icon,
			Kind:        kind,
			IsSpace:     state.create.Type == schema.RoomTypeSpace,
		},
		Tombstoned: state.tombstoned,
		Tracked:    state.create.IsTracked(),
	}
}

func (r *Resolver) fetch(ctx context.Context, roomID ref.RoomID) (roomState, error) {
	events, err := r.source.GetRoomState(ctx, roomID)
	if err != nil {
		return roomState{}, fmt.Errorf("fetching state of %s: %w", roomID, err)
	}

	state := scanState(events)
	if state.displayName == "" {
		members, err := r.source.GetRoomMembers(ctx, roomID)
		if err != nil {
			return roomState{}, fmt.Errorf("fetching members of %s: %w", roomID, err)
		}
		state.displayName = nameFromMembers(r.source.UserID(), members)
	}
	return state, nil
}

// scanState reads the room-level state events. displayName is left
// empty when the room has neither a name nor a canonical alias; the
// caller names it after its members.
func scanState(events []messaging.Event) roomState {
	var state roomState
	var name, alias string
	for _, event := range events {
		if !event.IsState() || *event.StateKey != "" {
			continue
		}
		switch event.Type {
		case schema.EventTypeRoomName:
			content, err := schema.DecodeContent[schema.RoomNameContent](event.Content)
			if err == nil {
				name = content.Name
			}
		case schema.EventTypeCanonicalAlias:
			content, err := schema.DecodeContent[schema.CanonicalAliasContent](event.Content)
			if err == nil {
				alias = content.Alias
			}
		case schema.EventTypeRoomAvatar:
			content, err := schema.DecodeContent[schema.RoomAvatarContent](event.Content)
			if err == nil {
				state.icon = content.URL
			}
		case schema.EventTypeRoomCreate:
			content, err := schema.DecodeContent[schema.RoomCreateContent](event.Content)
			if err == nil {
				state.create = content
			}
		case schema.EventTypeRoomTombstone:
			content, err := schema.DecodeContent[schema.TombstoneContent](event.Content)
			if err == nil && content.ReplacementRoom != "" {
				state.tombstoned = true
			}
		}
	}
	if name != "" {
		state.displayName = name
	} else {
		state.displayName = alias
	}
	return state
}

// nameFromMembers names a room after its other joined or invited
// members, sorted by user ID: "Alice", "Alice and Bob", or
// "Alice and 3 others".
func nameFromMembers(self ref.UserID, members []messaging.RoomMember) string {
	var others []messaging.RoomMember
	for _, member := range members {
		if member.UserID == self {
			continue
		}
		if member.Membership != schema.MembershipJoin && member.Membership != schema.MembershipInvite {
			continue
		}
		others = append(others, member)
	}
	slices.SortFunc(others, func(a, b messaging.RoomMember) int {
		return a.UserID.Compare(b.UserID)
	})

	label := func(member messaging.RoomMember) string {
		if name := strings.TrimSpace(member.DisplayName); name != "" {
			return name
		}
		return member.UserID.String()
	}

	switch len(others) {
	case 0:
		return EmptyRoomDisplayName
	case 1:
		return label(others[0])
	case 2:
		return label(others[0]) + " and " + label(others[1])
	default:
		return fmt.Sprintf("%s and %d others", label(others[0]), len(others)-1)
	}
}
