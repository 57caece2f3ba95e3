// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"time"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/schema"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/syncloop"
	"github.com/bureau-foundation/roomline/lib/timeline"
	"github.com/bureau-foundation/roomline/messaging"
)

// handleMembership runs once per room in every batch. Invites are
// summarized from their stripped state. Known rooms in the join and
// leave sections take that section's membership; unknown ones are left
// to handleCreate.
func (c *Client) handleMembership(ctx context.Context, room syncloop.Context, state []messaging.Event) {
	if room.Membership == rooms.Invited {
		c.addInvite(ctx, room.RoomID, state)
		return
	}
	if _, known := c.registry.Get(room.RoomID); known {
		c.noteMembership(ctx, room)
	}
}

// addInvite adds or updates an invited room summarized from its
// invite_state.
func (c *Client) addInvite(ctx context.Context, roomID ref.RoomID, state []messaging.Event) {
	resolution := rooms.SummarizeInvite(c.session.UserID(), roomID, state)
	if resolution.Tombstoned || !resolution.Tracked {
		c.logger.Debug("ignoring invite", "room_id", roomID, "tombstoned", resolution.Tombstoned)
		return
	}
	if c.registry.Upsert(resolution.Summary) {
		c.emit(ctx, sink.AddOrUpdateRoom{Summary: resolution.Summary})
		c.refreshActive(resolution.Summary)
	}
}

// handleCreate adds a newly seen room to the registry. Rooms of
// untracked types and tombstoned rooms are skipped, as at startup.
// Invites are summarized by handleMembership instead: their state
// cannot be fetched before joining.
func (c *Client) handleCreate(ctx context.Context, room syncloop.Context, event messaging.Event) {
	if room.Membership == rooms.Invited {
		return
	}
	if !rooms.ShouldTrackCreate(event.Content) {
		c.logger.Debug("ignoring room of untracked type", "room_id", room.RoomID)
		return
	}
	resolution := c.resolver.Resolve(ctx, room.RoomID, room.Membership)
	if resolution.Tombstoned || !resolution.Tracked {
		return
	}
	if c.registry.Upsert(resolution.Summary) {
		c.emit(ctx, sink.AddOrUpdateRoom{Summary: resolution.Summary})
		c.refreshActive(resolution.Summary)
	}
}

// handleRename applies m.room.name and m.room.avatar to a known room.
// Removing the name falls back to the computed display name.
func (c *Client) handleRename(ctx context.Context, room syncloop.Context, event messaging.Event) {
	// handleMembership already summarized the whole invite_state.
	if room.Membership == rooms.Invited {
		return
	}
	if _, known := c.registry.Get(room.RoomID); !known {
		return
	}

	var modify func(*rooms.Summary)
	switch event.Type {
	case schema.EventTypeRoomName:
		content, err := schema.DecodeContent[schema.RoomNameContent](event.Content)
		if err != nil {
			c.logger.Debug("malformed room name", "room_id", room.RoomID, "error", err)
			return
		}
		name := content.Name
		if name == "" {
			name = c.resolver.Summarize(ctx, room.RoomID, room.Membership).DisplayName
		}
		modify = func(summary *rooms.Summary) { summary.DisplayName = name }
	case schema.EventTypeRoomAvatar:
		content, err := schema.DecodeContent[schema.RoomAvatarContent](event.Content)
		if err != nil {
			c.logger.Debug("malformed room avatar", "room_id", room.RoomID, "error", err)
			return
		}
		modify = func(summary *rooms.Summary) { summary.Icon = content.URL }
	default:
		return
	}

	summary, changed := c.registry.Update(room.RoomID, func(summary *rooms.Summary) {
		modify(summary)
		summary.Kind = room.Membership
	})
	if changed {
		c.emit(ctx, sink.AddOrUpdateRoom{Summary: summary})
		c.refreshActive(summary)
	}
}

// handleMessage appends messages for the active room. The echo of a
// local send replaces its pending entry.
func (c *Client) handleMessage(ctx context.Context, room syncloop.Context, event messaging.Event) {
	entry, ok := entryFromEvent(event)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isActive(room.RoomID) {
		return
	}
	active := c.active

	// Older history starts where this batch's timeline begins.
	if active.timeline.Len() == 0 {
		active.paginator.Seed(room.PrevBatch)
	}

	if event.Sender == c.session.UserID() {
		if transactionID, err := ref.ParseTransactionID(event.TransactionID()); err == nil {
			local := ref.TransactionIdentity(transactionID)
			hadLocal := active.timeline.Contains(local)
			appended := active.timeline.Reconcile(transactionID, entry)
			if hadLocal {
				c.emit(ctx, sink.RemoveEvent{ID: local})
			}
			if appended {
				c.emit(ctx, sink.AppendEvent{RoomID: room.RoomID, Sender: entry.Sender, Entry: entry})
			}
			return
		}
	}

	if active.timeline.Append(room.RoomID, entry) {
		c.emit(ctx, sink.AppendEvent{RoomID: room.RoomID, Sender: entry.Sender, Entry: entry})
		c.requestDisplayNameLocked(ctx, entry.Sender)
	}
}

// noteMembership updates a known room whose membership changed, such as
// an invite that was accepted or a room left from another device. The
// active room is refreshed too, which closes its composer on leave.
func (c *Client) noteMembership(ctx context.Context, room syncloop.Context) {
	summary, changed := c.registry.Update(room.RoomID, func(summary *rooms.Summary) {
		summary.Kind = room.Membership
	})
	if changed {
		c.emit(ctx, sink.AddOrUpdateRoom{Summary: summary})
		c.refreshActive(summary)
	}
}

// refreshActive copies summary into the active room if it is that room.
func (c *Client) refreshActive(summary rooms.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isActive(summary.RoomID) {
		c.active.summary = summary
	}
}

// entryFromEvent converts an m.room.message event into a confirmed
// timeline entry. Redacted messages have no body and are skipped.
func entryFromEvent(event messaging.Event) (timeline.Entry, bool) {
	if event.Type != schema.EventTypeRoomMessage || event.EventID.IsZero() {
		return timeline.Entry{}, false
	}
	content, err := schema.DecodeContent[schema.MessageContent](event.Content)
	if err != nil || content.Body == "" {
		return timeline.Entry{}, false
	}

	entry := timeline.Entry{
		ID:     ref.ServerIdentity(event.EventID),
		Sender: event.Sender,
		Body:   content.Body,
		Status: timeline.StatusConfirmed,
	}
	if content.Format == schema.FormatHTML {
		entry.FormattedBody = content.FormattedBody
	}
	if event.OriginServerTS > 0 {
		entry.Timestamp = time.UnixMilli(event.OriginServerTS)
	}
	return entry, true
}
