// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
	"github.com/bureau-foundation/roomline/messaging"
)

// Paginate requests one page of older history for the active room. It
// returns timeline.ErrPaginationInFlight while a page is loading and
// timeline.ErrHistoryExhausted at the start of the room; neither starts
// a request. The page is applied in the background, each new entry
// emitted as PrependEvent between SetPaginating true and false.
func (c *Client) Paginate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ErrNoActiveRoom
	}

	active := c.active
	if err := active.paginator.TryStart(); err != nil {
		return err
	}
	roomID := active.summary.RoomID
	active.paginating = true
	c.emit(ctx, sink.SetPaginating{RoomID: roomID, Paginating: true})

	c.goTask(func() {
		page, err := active.paginator.Fetch()

		c.mu.Lock()
		defer c.mu.Unlock()
		// A room switch discarded this room; its state is gone.
		if c.active != active {
			return
		}
		active.paginating = false
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Warn("loading history failed", "room_id", roomID, "error", err)
			}
		} else {
			for _, entry := range page.Entries {
				if active.timeline.Prepend(roomID, entry) {
					c.emit(ctx, sink.PrependEvent{RoomID: roomID, Sender: entry.Sender, Entry: entry})
					c.requestDisplayNameLocked(ctx, entry.Sender)
				}
			}
		}
		c.emit(ctx, sink.SetPaginating{RoomID: roomID, Paginating: false})
	})
	return nil
}

// fetchHistory returns the paginator's request function for roomID.
func (c *Client) fetchHistory(roomID ref.RoomID) timeline.FetchFunc {
	filter := messaging.BuildMessagesFilter(c.lazy)
	return func(ctx context.Context, from string, limit int) (timeline.Page, error) {
		response, err := c.session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
			From:      from,
			Direction: "b",
			Limit:     limit,
			Filter:    filter,
		})
		if err != nil {
			return timeline.Page{}, fmt.Errorf("client: history of %s: %w", roomID, err)
		}

		page := timeline.Page{End: response.End}
		for _, event := range response.Chunk {
			if entry, ok := entryFromEvent(event); ok {
				page.Entries = append(page.Entries, entry)
			}
		}
		return page, nil
	}
}
