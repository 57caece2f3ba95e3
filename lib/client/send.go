// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/schema"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
	"github.com/bureau-foundation/roomline/messaging"
)

// markdown renders composer text to the HTML carried in formatted_body.
// Raw HTML in the input is dropped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

// renderMessage builds the content for body. Markdown that renders to a
// single paragraph without markup is sent as plain text.
func renderMessage(body string) messaging.MessageContent {
	content := messaging.NewTextMessage(body)

	var rendered bytes.Buffer
	if err := markdown.Convert([]byte(body), &rendered); err != nil {
		return content
	}
	formatted := strings.TrimSpace(rendered.String())
	if inner, ok := strings.CutPrefix(formatted, "<p>"); ok {
		if inner, ok := strings.CutSuffix(inner, "</p>"); ok && !strings.Contains(inner, "<p>") {
			formatted = inner
		}
	}
	if !strings.Contains(formatted, "<") {
		return content
	}
	content.Format = schema.FormatHTML
	content.FormattedBody = formatted
	return content
}

// Send posts body to the active room. The pending entry is appended and
// emitted before Send returns; the request runs in the background under
// ctx. The returned transaction ID identifies the pending entry.
func (c *Client) Send(ctx context.Context, body string) (ref.TransactionID, error) {
	if strings.TrimSpace(body) == "" {
		return ref.TransactionID{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.active == nil {
		c.mu.Unlock()
		return ref.TransactionID{}, ErrNoActiveRoom
	}
	if c.active.summary.Kind != rooms.Joined {
		c.mu.Unlock()
		return ref.TransactionID{}, ErrNotJoined
	}

	roomID := c.active.summary.RoomID
	transactionID := ref.NewTransactionID()
	content := renderMessage(body)
	entry := timeline.Entry{
		ID:            ref.TransactionIdentity(transactionID),
		Sender:        c.session.UserID(),
		Body:          content.Body,
		FormattedBody: content.FormattedBody,
		Timestamp:     c.clock.Now(),
		Status:        timeline.StatusPending,
	}
	c.active.timeline.Append(roomID, entry)
	c.active.composer = ""
	c.emit(ctx, sink.AppendEvent{RoomID: roomID, Sender: entry.Sender, Entry: entry})
	c.requestDisplayNameLocked(ctx, entry.Sender)
	c.mu.Unlock()

	c.goTask(func() {
		eventID, err := c.session.SendMessage(ctx, roomID, transactionID, content)
		if err == nil {
			c.logger.Debug("message sent", "room_id", roomID, "event_id", eventID, "transaction_id", transactionID)
			return
		}
		c.logger.Warn("sending message failed", "room_id", roomID, "transaction_id", transactionID, "error", err)

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.isActive(roomID) && c.active.timeline.MarkFailed(transactionID) {
			c.emit(ctx, sink.MarkFailed{ID: transactionID})
		}
	})
	return transactionID, nil
}
