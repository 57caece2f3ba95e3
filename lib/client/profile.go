// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"strings"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/sink"
)

// requestDisplayNameLocked looks up the display name of userID in the
// background the first time the user is seen. Failed lookups are cached
// as empty so the user ID is shown instead. Caller holds c.mu.
func (c *Client) requestDisplayNameLocked(ctx context.Context, userID ref.UserID) {
	if _, known := c.displayNames[userID]; known || c.lookups[userID] {
		return
	}
	c.lookups[userID] = true

	c.goTask(func() {
		name, err := c.session.GetDisplayName(ctx, userID)
		if err != nil {
			c.logger.Debug("display name lookup failed", "user_id", userID, "error", err)
			name = ""
		}
		name = strings.TrimSpace(name)

		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.lookups, userID)
		c.displayNames[userID] = name
		if name == "" || c.active == nil {
			return
		}
		c.active.timeline.SetDisplayName(userID, name)
		c.emit(ctx, sink.SetDisplayName{RoomID: c.active.summary.RoomID, UserID: userID, DisplayName: name})
	})
}

// DisplayName returns the cached display name of userID, or "" when it
// is unknown.
func (c *Client) DisplayName(userID ref.UserID) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayNames[userID]
}
