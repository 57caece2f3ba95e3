// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package login owns the session lifecycle: LoggedOut, LoggingIn, and
// LoggedIn. There is no logout.
//
// A [Machine] either restores a persisted session from its
// [sessionstore.Store] or waits for credentials on an injected channel.
// A successful login is saved before the machine advances to LoggedIn.
// Reaching LoggedIn emits [sink.FinishLogin] and invokes the OnLoggedIn
// callback exactly once; the callback is what starts the sync loop.
package login
