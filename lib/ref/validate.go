// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"errors"
	"fmt"
	"strings"
)

// maxUserIDLength is the Matrix limit on a full user ID, sigil and
// server included, in bytes.
const maxUserIDLength = 255

var (
	errMissingSigil  = errors.New("must start with '@'")
	errMissingServer = errors.New("missing :server")
	errEmptyLocal    = errors.New("empty localpart")
	errEmptyServer   = errors.New("empty server name")
)

// validateServer rejects empty server names and any containing
// whitespace, control characters, or Matrix sigils.
func validateServer(server string) error {
	if server == "" {
		return errEmptyServer
	}
	if index := strings.IndexFunc(server, func(r rune) bool {
		return r <= ' ' || strings.ContainsRune("@#!$", r)
	}); index >= 0 {
		return fmt.Errorf("server name %q: invalid character at position %d", server, index)
	}
	return nil
}

// splitUserID splits "@localpart:server" at the first colon. Server
// names may carry a port, so everything after that colon is the server.
func splitUserID(raw string) (localpart, server string, err error) {
	rest, ok := strings.CutPrefix(raw, "@")
	if !ok {
		return "", "", errMissingSigil
	}
	localpart, server, ok = strings.Cut(rest, ":")
	switch {
	case !ok:
		return "", "", errMissingServer
	case localpart == "":
		return "", "", errEmptyLocal
	case server == "":
		return "", "", errEmptyServer
	}
	return localpart, server, nil
}

// validateUserID checks the whole user ID: shape, length, a localpart
// free of whitespace, and a valid server name.
func validateUserID(raw string) error {
	localpart, server, err := splitUserID(raw)
	if err != nil {
		return err
	}
	if len(raw) > maxUserIDLength {
		return fmt.Errorf("longer than %d bytes", maxUserIDLength)
	}
	if strings.IndexFunc(localpart, func(r rune) bool { return r <= ' ' }) >= 0 {
		return fmt.Errorf("localpart %q contains whitespace or control characters", localpart)
	}
	return validateServer(server)
}
