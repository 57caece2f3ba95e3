// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline holds the active room's message timeline and its
// backward pagination cursor.
//
// A [Timeline] is an ordered list of [Group]s. Consecutive entries from
// the same sender share a group, and no two adjacent groups share a
// sender. Every entry has an [ref.EventIdentity]: a server event ID for
// confirmed events, or a transaction ID for optimistic local sends.
// Operations are keyed by identity and idempotent, so duplicate /sync
// deliveries and reordering between the sync loop and background sends
// converge on the same timeline. Echo reconciliation removes the
// transaction-identified entry and appends the server-identified one;
// either order yields the same set of identities.
//
// A [Paginator] is a resumable cursor over older history. At most one
// page request runs at a time: a second Next while one is in flight
// fails with [ErrPaginationInFlight] without touching the network.
//
// Timeline is not safe for concurrent use; its owner serializes access.
// Paginator is safe for concurrent use.
package timeline
