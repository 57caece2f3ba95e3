// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"
)

// EventID is a server-assigned event ID such as "$abc123xyz" (room
// version 4 and later) or "$abc:server" (older rooms). The body after the
// sigil is opaque. A confirmed timeline entry is keyed by its EventID;
// until the server assigns one, the entry is keyed by its TransactionID.
type EventID struct {
	id string
}

// ParseEventID accepts "$" followed by at least one character and no
// whitespace.
func ParseEventID(raw string) (EventID, error) {
	body, ok := strings.CutPrefix(raw, "$")
	switch {
	case !ok:
		return EventID{}, fmt.Errorf("event ID %q: must start with '$'", raw)
	case body == "":
		return EventID{}, fmt.Errorf("event ID %q: nothing after '$'", raw)
	case strings.ContainsFunc(body, func(r rune) bool { return r <= ' ' }):
		return EventID{}, fmt.Errorf("event ID %q: contains whitespace or control characters", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID is like ParseEventID but panics on error.
func MustParseEventID(raw string) EventID {
	e, err := ParseEventID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseEventID(%q): %v", raw, err))
	}
	return e
}

func (e EventID) String() string { return e.id }

// IsZero reports whether e is unset.
func (e EventID) IsZero() bool { return e.id == "" }

// Compare is a total order on the raw strings. It says nothing about
// timeline position.
func (e EventID) Compare(other EventID) int { return strings.Compare(e.id, other.id) }

// MarshalText encodes the zero value as an empty string.
func (e EventID) MarshalText() ([]byte, error) { return []byte(e.id), nil }

// UnmarshalText decodes an empty string to the zero value and validates
// anything else.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
