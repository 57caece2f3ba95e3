// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O and connection error helpers for the
// Matrix client.
//
// ReadResponse bounds response body reads at MaxResponseSize so a
// misbehaving homeserver or reverse proxy cannot exhaust memory. Truncate
// shortens unparseable bodies before they are embedded in error messages.
// IsConnectionError classifies transport failures that warrant dropping
// pooled connections before the next attempt.
package netutil

import (
	"io"
	"unicode/utf8"
)

// MaxResponseSize is the bound on JSON API response body reads: 256 MB. An
// initial /sync for a large account is the biggest legitimate response and
// stays well under this.
const MaxResponseSize int64 = 256 << 20

// ReadResponse reads a JSON API response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// Truncate returns data as a string of at most limit bytes, cut on a rune
// boundary and suffixed with "..." when shortened.
func Truncate(data []byte, limit int) string {
	if len(data) <= limit {
		return string(data)
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut]) + "..."
}
