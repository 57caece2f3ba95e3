// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable identity references for
// Matrix entities: rooms, events, users, server names, and the
// client-generated transaction IDs that correlate an outgoing message with
// its server echo.
//
// All constructors validate their inputs and return errors for malformed
// identifiers. Once constructed, a ref is immutable and comparable, so it
// can be used directly as a map key. Ordering is structural on the
// canonical string (see the Compare methods).
//
// [EventIdentity] is the sum of a server-assigned [EventID] and a
// client-generated [TransactionID]. The two are disjoint: an optimistic
// entry keyed by a transaction ID and the confirmed entry keyed by the
// server's event ID are different identities, linked only when the
// timeline reconciles the echo.
//
// The canonical serialization form is the full Matrix identifier
// (!room:server, $event, @user:server). JSON marshaling uses this form via
// encoding.TextMarshaler.
package ref
