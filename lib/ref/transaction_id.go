// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TransactionID is a client-generated correlation token for an outgoing
// event. It travels in the PUT /send path and comes back in the echo's
// unsigned.transaction_id, which is how an optimistic timeline entry is
// matched with its confirmed counterpart.
//
// Transaction IDs are only meaningful until the echo arrives. Unlike the
// other refs they have no sigil; any non-empty string without '/' is
// accepted so that echoes of sends made by other clients of the same
// account still parse.
type TransactionID struct {
	id string
}

// NewTransactionID returns a fresh random (UUID v4) transaction ID.
func NewTransactionID() TransactionID {
	return TransactionID{id: uuid.NewString()}
}

// ParseTransactionID validates and wraps a raw transaction ID.
func ParseTransactionID(raw string) (TransactionID, error) {
	if raw == "" {
		return TransactionID{}, fmt.Errorf("empty transaction ID")
	}
	if strings.ContainsRune(raw, '/') {
		return TransactionID{}, fmt.Errorf("transaction ID must not contain '/': %q", raw)
	}
	return TransactionID{id: raw}, nil
}

// MustParseTransactionID is like ParseTransactionID but panics on error.
func MustParseTransactionID(raw string) TransactionID {
	t, err := ParseTransactionID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseTransactionID(%q): %v", raw, err))
	}
	return t
}

// String returns the raw transaction ID.
func (t TransactionID) String() string { return t.id }

// IsZero reports whether the TransactionID is the zero value.
func (t TransactionID) IsZero() bool { return t.id == "" }

// Compare orders transaction IDs by their raw string.
func (t TransactionID) Compare(other TransactionID) int { return strings.Compare(t.id, other.id) }
