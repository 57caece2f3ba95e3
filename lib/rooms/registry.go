// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rooms tracks the rooms the account belongs to.
//
// A [Registry] maps room IDs to [Summary] values. Rooms are inserted on
// first sight and updated in place; they are never removed. Upsert is
// idempotent, so replaying a /sync batch leaves the registry unchanged.
//
// A [Resolver] computes a room's summary from its current state: the
// display name (m.room.name, then the canonical alias, then the names of
// other members), the avatar, whether it is a space, and whether it has
// been tombstoned. Failed lookups yield the [ErrorDisplayName]
// placeholder instead of an error.
//
// [Populate] fills a registry at startup, skipping tombstoned rooms and
// rooms of untracked types.
package rooms

import (
	"cmp"
	"slices"
	"sync"

	"github.com/bureau-foundation/roomline/lib/ref"
)

// Kind is the account's membership in a room.
type Kind int

const (
	Joined Kind = iota
	Invited
	Left
)

func (k Kind) String() string {
	switch k {
	case Joined:
		return "joined"
	case Invited:
		return "invited"
	case Left:
		return "left"
	default:
		return "unknown"
	}
}

// Summary is what the room list shows for one room.
type Summary struct {
	RoomID      ref.RoomID
	DisplayName string

	// Icon is the room avatar's mxc:// URI, or empty.
	Icon string

	Kind    Kind
	IsSpace bool
}

// Registry is the set of known rooms. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[ref.RoomID]Summary
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[ref.RoomID]Summary)}
}

// Upsert inserts summary or replaces the summary with the same room ID.
// It returns false when the registry already held an identical summary.
func (r *Registry) Upsert(summary Summary) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.rooms[summary.RoomID]; ok && existing == summary {
		return false
	}
	r.rooms[summary.RoomID] = summary
	return true
}

// Update applies modify to the summary for roomID and stores the result.
// It returns the new summary and whether anything changed. Unknown rooms
// are left alone.
func (r *Registry) Update(roomID ref.RoomID, modify func(*Summary)) (Summary, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rooms[roomID]
	if !ok {
		return Summary{}, false
	}
	updated := existing
	modify(&updated)
	updated.RoomID = roomID
	if updated == existing {
		return existing, false
	}
	r.rooms[roomID] = updated
	return updated, true
}

// Get returns the summary for roomID.
func (r *Registry) Get(roomID ref.RoomID) (Summary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	summary, ok := r.rooms[roomID]
	return summary, ok
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// List returns every room sorted by display name, then room ID.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	summaries := make([]Summary, 0, len(r.rooms))
	for _, summary := range r.rooms {
		summaries = append(summaries, summary)
	}
	r.mu.RUnlock()

	slices.SortFunc(summaries, func(a, b Summary) int {
		return cmp.Or(
			cmp.Compare(a.DisplayName, b.DisplayName),
			a.RoomID.Compare(b.RoomID),
		)
	})
	return summaries
}
