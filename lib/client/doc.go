// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package client ties the room registry, the active room's timeline, and
// the sync handlers together for one logged-in session.
//
// Every visible change is mirrored to a [sink.Sink] in the order it was
// applied. The [Client] holds the authoritative state: the registry of
// rooms and the active room with its timeline, composer text, and
// history cursor. Selecting another room discards the previous active
// room wholesale and cancels its history request.
//
// Sends are optimistic. [Client.Send] appends a pending entry under a
// fresh transaction ID at once and performs the request in the
// background. When the server's echo of that transaction arrives through
// /sync, the pending entry is removed and the confirmed one appended
// where the echo arrived. A send the server rejects is marked failed.
package client
