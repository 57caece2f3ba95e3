// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package syncloop drives the Matrix /sync long-poll loop for a logged-in
// session.
//
// A [Driver] issues one /sync request at a time, starting from the
// persisted cursor. After each successful batch it advances the cursor,
// persists it through a [CursorStore], and only then dispatches the
// batch's events to [Handlers] by event type. Failed requests are
// retried forever with exponential backoff; the cursor is not advanced
// past a batch that was never received.
//
// Within a batch, rooms are visited join, invite, then leave, each
// section in room ID order. Every room is first reported to
// RoomMembership, then its state events are dispatched before its
// timeline events.
package syncloop
