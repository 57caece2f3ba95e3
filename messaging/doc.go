// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API primitives the
// client core is built on: password login, session restoration from a
// stored access token, /sync long-polling with inline filters, message
// sending with caller-chosen transaction IDs, backward pagination via
// /messages, and the room state and profile reads needed to compute
// room display names.
//
// [Client] is unauthenticated: it holds the homeserver URL, the HTTP
// transport, and the logger. [Client.Login] and [Client.SessionFromToken]
// return a [DirectSession], which adds the access token. The token lives
// in a secret.Buffer (mmap-backed, locked against swap, excluded from
// core dumps); callers must call Close to release it.
//
// A DirectSession is safe for concurrent use: the sync loop, message
// sends, and pagination requests share one session across goroutines.
// [Session] is the interface the rest of the client programs against, so
// tests can substitute fakes.
//
// All API errors are returned as [*MatrixError] with the standard Matrix
// error code (M_FORBIDDEN, M_UNKNOWN_TOKEN, ...) and HTTP status code.
// [IsMatrixError] tests for a specific code. Request URLs are built by
// string concatenation with url.PathEscape on each path segment.
package messaging
