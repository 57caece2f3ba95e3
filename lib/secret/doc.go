// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds passwords and access tokens outside the Go heap.
//
// A [Buffer] is an anonymous mmap region locked into RAM and excluded
// from core dumps. Close zeroes and unmaps it. The login form's password
// and every live session's access token are kept in Buffers; they are
// converted to strings only at the JSON or HTTP header boundary.
//
// [Zero] wipes ordinary byte slices that briefly held secret material,
// such as the raw bytes of the session file after parsing.
package secret
