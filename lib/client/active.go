// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

// activeRoom is the selected room. It is replaced, never reused, when
// another room is selected.
type activeRoom struct {
	summary    rooms.Summary
	timeline   *timeline.Timeline
	composer   string
	paginator  *timeline.Paginator
	paginating bool
}

func (a *activeRoom) state() sink.ActiveRoomState {
	return sink.ActiveRoomState{
		RoomID:      a.summary.RoomID,
		DisplayName: a.summary.DisplayName,
		Icon:        a.summary.Icon,
		Groups:      a.timeline.Groups(),
		Composer:    a.composer,
		HasComposer: a.summary.Kind == rooms.Joined,
		Paginating:  a.paginating,
	}
}

// SelectRoom makes roomID the active room with an empty timeline and
// emits SetActiveRoom. The previous active room is discarded and its
// history request cancelled. History requests of the new room run under
// ctx.
func (c *Client) SelectRoom(ctx context.Context, roomID ref.RoomID) error {
	summary, ok := c.registry.Get(roomID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.paginator.Close()
	}
	active := &activeRoom{
		summary:  summary,
		timeline: timeline.New(roomID),
	}
	active.paginator = timeline.NewPaginator(ctx, "", c.pageSize, c.fetchHistory(roomID))
	for userID, name := range c.displayNames {
		active.timeline.SetDisplayName(userID, name)
	}
	c.active = active

	c.logger.Debug("selected room", "room_id", roomID)
	c.emit(ctx, sink.SetActiveRoom{State: active.state()})
	return nil
}

// ActiveRoom returns a snapshot of the active room.
func (c *Client) ActiveRoom() (sink.ActiveRoomState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return sink.ActiveRoomState{}, false
	}
	return c.active.state(), true
}

// SetComposer stores the draft text of the active room.
func (c *Client) SetComposer(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ErrNoActiveRoom
	}
	c.active.composer = text
	return nil
}

// isActive reports whether roomID is the active room. Caller holds c.mu.
func (c *Client) isActive(roomID ref.RoomID) bool {
	return c.active != nil && c.active.summary.RoomID == roomID
}
