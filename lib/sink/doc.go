// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sink carries state changes from the client core to the user
// interface.
//
// Every change is one [Command] from a closed set: the unexported
// marker method keeps other packages from adding commands, so a
// consumer's type switch over the types in this package is exhaustive.
//
// A [Queue] accepts commands from any goroutine without blocking the
// producer and hands them to a single consumer in submission order.
// Submitting to a closed queue returns [ErrClosed]; producers log and
// drop it through [Emit].
package sink
