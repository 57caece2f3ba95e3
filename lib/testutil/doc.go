// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// The Require helpers wrap channel operations in a select with a
// time.After fallback, so individual tests never call time.After
// themselves. They are the only place in the test suite where real
// wall-clock timeouts are used.
//
// [Homeserver] is an in-process fake Matrix homeserver covering the
// client-server endpoints the client uses: login, whoami, long-poll
// /sync fed from a queue, room state and members, profile display names,
// backward /messages pages, and event sends. Every request after login
// must carry a token the fake issued or was given with AddToken.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
