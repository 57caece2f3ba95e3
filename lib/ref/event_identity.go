// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "strings"

// IdentityKind discriminates the two arms of an EventIdentity.
type IdentityKind uint8

const (
	// KindServer identifies an event by its server-assigned EventID.
	KindServer IdentityKind = iota + 1
	// KindTransaction identifies a local, unconfirmed send by its
	// TransactionID.
	KindTransaction
)

// EventIdentity names a timeline entry: either a server-confirmed event
// or a local send awaiting its echo. The two arms are disjoint tags, so
// an EventIdentity built from TransactionID "x" never equals one built
// from an EventID, whatever the strings.
//
// EventIdentity is comparable and usable as a map key. The zero value
// identifies nothing.
type EventIdentity struct {
	kind IdentityKind
	id   string
}

// ServerIdentity returns the identity of a server-confirmed event.
func ServerIdentity(eventID EventID) EventIdentity {
	return EventIdentity{kind: KindServer, id: eventID.id}
}

// TransactionIdentity returns the identity of a local send.
func TransactionIdentity(transactionID TransactionID) EventIdentity {
	return EventIdentity{kind: KindTransaction, id: transactionID.id}
}

// Kind reports which arm the identity holds. Zero for the zero value.
func (i EventIdentity) Kind() IdentityKind { return i.kind }

// IsZero reports whether the identity is the zero value.
func (i EventIdentity) IsZero() bool { return i.kind == 0 }

// EventID returns the server event ID and true when the identity is a
// server identity.
func (i EventIdentity) EventID() (EventID, bool) {
	if i.kind != KindServer {
		return EventID{}, false
	}
	return EventID{id: i.id}, true
}

// TransactionID returns the transaction ID and true when the identity is
// a local send.
func (i EventIdentity) TransactionID() (TransactionID, bool) {
	if i.kind != KindTransaction {
		return TransactionID{}, false
	}
	return TransactionID{id: i.id}, true
}

// IsLocal reports whether the identity is an unconfirmed local send.
func (i EventIdentity) IsLocal() bool { return i.kind == KindTransaction }

// Compare gives a total order: server identities sort before
// transaction identities, then by the underlying string.
func (i EventIdentity) Compare(other EventIdentity) int {
	if i.kind != other.kind {
		if i.kind < other.kind {
			return -1
		}
		return 1
	}
	return strings.Compare(i.id, other.id)
}

// String renders the canonical protocol form. Transaction identities are
// prefixed with "txn:" so that log lines cannot confuse the two arms.
func (i EventIdentity) String() string {
	switch i.kind {
	case KindServer:
		return i.id
	case KindTransaction:
		return "txn:" + i.id
	default:
		return ""
	}
}
