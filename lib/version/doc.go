// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which roomline build is running, for
// --version output and the User-Agent sent to homeservers.
//
// GitCommit, GitDirty, BuildTime, and Version are injected with
// -ldflags -X. Builds without them report the VCS revision recorded by
// the Go toolchain, or "unknown".
package version
