// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"time"

	"github.com/bureau-foundation/roomline/lib/ref"
)

// Status is the delivery state of an entry.
type Status int

const (
	// StatusConfirmed entries came from the server.
	StatusConfirmed Status = iota

	// StatusPending entries are optimistic local sends awaiting their
	// echo.
	StatusPending

	// StatusFailed entries are local sends the server rejected or that
	// never reached it. They stay in place until removed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusPending:
		return "pending"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Entry is one message in the timeline.
type Entry struct {
	ID            ref.EventIdentity
	Sender        ref.UserID
	Body          string
	FormattedBody string
	Timestamp     time.Time
	Status        Status
}

// Group is a run of consecutive entries from one sender.
type Group struct {
	Sender            ref.UserID
	SenderDisplayName string
	Entries           []Entry
}

// Timeline is the grouped message list of one room.
type Timeline struct {
	roomID       ref.RoomID
	groups       []Group
	present      map[ref.EventIdentity]struct{}
	displayNames map[ref.UserID]string
}

// New returns an empty timeline for roomID.
func New(roomID ref.RoomID) *Timeline {
	return &Timeline{
		roomID:       roomID,
		present:      make(map[ref.EventIdentity]struct{}),
		displayNames: make(map[ref.UserID]string),
	}
}

// FromGroups rebuilds a timeline from groups as returned by Groups.
// Entries with a zero or repeated identity are skipped, and adjacent
// groups from one sender are merged.
func FromGroups(roomID ref.RoomID, groups []Group) *Timeline {
	t := New(roomID)
	for _, group := range groups {
		if group.SenderDisplayName != "" {
			t.displayNames[group.Sender] = group.SenderDisplayName
		}
		for _, entry := range group.Entries {
			entry.Sender = group.Sender
			t.Append(roomID, entry)
		}
	}
	return t
}

// RoomID returns the room this timeline belongs to.
func (t *Timeline) RoomID() ref.RoomID {
	return t.roomID
}

// Len returns the number of entries.
func (t *Timeline) Len() int {
	return len(t.present)
}

// Contains reports whether an entry with id is present.
func (t *Timeline) Contains(id ref.EventIdentity) bool {
	_, ok := t.present[id]
	return ok
}

// Append adds entry after the newest entry. It returns false without
// changing anything when roomID is not this timeline's room or when an
// entry with the same identity is already present.
func (t *Timeline) Append(roomID ref.RoomID, entry Entry) bool {
	if !t.accepts(roomID, entry) {
		return false
	}
	t.present[entry.ID] = struct{}{}

	if last := len(t.groups) - 1; last >= 0 && t.groups[last].Sender == entry.Sender {
		t.groups[last].Entries = append(t.groups[last].Entries, entry)
		return true
	}
	t.groups = append(t.groups, t.newGroup(entry))
	return true
}

// Prepend adds entry before the oldest entry. Backward pagination calls
// it once per event, newest first, so the result stays chronological.
func (t *Timeline) Prepend(roomID ref.RoomID, entry Entry) bool {
	if !t.accepts(roomID, entry) {
		return false
	}
	t.present[entry.ID] = struct{}{}

	if len(t.groups) > 0 && t.groups[0].Sender == entry.Sender {
		t.groups[0].Entries = append([]Entry{entry}, t.groups[0].Entries...)
		return true
	}
	t.groups = append([]Group{t.newGroup(entry)}, t.groups...)
	return true
}

// Remove deletes the entry with id. A group left empty is dropped, and
// if that brings two groups from the same sender together they are
// merged. Removing an absent identity is a no-op that returns false.
func (t *Timeline) Remove(id ref.EventIdentity) bool {
	if _, ok := t.present[id]; !ok {
		return false
	}
	delete(t.present, id)

	for groupIndex := range t.groups {
		entries := t.groups[groupIndex].Entries
		for entryIndex := range entries {
			if entries[entryIndex].ID != id {
				continue
			}
			t.groups[groupIndex].Entries = append(entries[:entryIndex:entryIndex], entries[entryIndex+1:]...)
			if len(t.groups[groupIndex].Entries) == 0 {
				t.dropGroup(groupIndex)
			}
			return true
		}
	}
	return true
}

// Reconcile replaces the optimistic entry for transactionID with the
// server-confirmed entry: the local entry is removed first, then the
// confirmed one is appended, so the message is never shown twice and
// lands where the confirmation arrived. A missing local entry is not an
// error. It returns whether the confirmed entry was appended.
func (t *Timeline) Reconcile(transactionID ref.TransactionID, confirmed Entry) bool {
	t.Remove(ref.TransactionIdentity(transactionID))
	return t.Append(t.roomID, confirmed)
}

// MarkFailed sets the status of the local entry for transactionID to
// StatusFailed. It returns false when no such entry exists.
func (t *Timeline) MarkFailed(transactionID ref.TransactionID) bool {
	id := ref.TransactionIdentity(transactionID)
	if _, ok := t.present[id]; !ok {
		return false
	}
	for groupIndex := range t.groups {
		for entryIndex := range t.groups[groupIndex].Entries {
			if t.groups[groupIndex].Entries[entryIndex].ID == id {
				t.groups[groupIndex].Entries[entryIndex].Status = StatusFailed
				return true
			}
		}
	}
	return false
}

// SetDisplayName records the display name of sender and applies it to
// the sender's existing groups.
func (t *Timeline) SetDisplayName(sender ref.UserID, name string) {
	t.displayNames[sender] = name
	for index := range t.groups {
		if t.groups[index].Sender == sender {
			t.groups[index].SenderDisplayName = name
		}
	}
}

// Groups returns a copy of the groups, oldest first.
func (t *Timeline) Groups() []Group {
	groups := make([]Group, len(t.groups))
	for index, group := range t.groups {
		groups[index] = group
		groups[index].Entries = append([]Entry(nil), group.Entries...)
	}
	return groups
}

// Identities returns the entry identities in timeline order.
func (t *Timeline) Identities() []ref.EventIdentity {
	identities := make([]ref.EventIdentity, 0, len(t.present))
	for _, group := range t.groups {
		for _, entry := range group.Entries {
			identities = append(identities, entry.ID)
		}
	}
	return identities
}

func (t *Timeline) accepts(roomID ref.RoomID, entry Entry) bool {
	if roomID != t.roomID || entry.ID.IsZero() {
		return false
	}
	_, duplicate := t.present[entry.ID]
	return !duplicate
}

func (t *Timeline) newGroup(entry Entry) Group {
	return Group{
		Sender:            entry.Sender,
		SenderDisplayName: t.displayNames[entry.Sender],
		Entries:           []Entry{entry},
	}
}

// dropGroup removes the group at index and merges its neighbours when
// they share a sender.
func (t *Timeline) dropGroup(index int) {
	t.groups = append(t.groups[:index], t.groups[index+1:]...)
	if index == 0 || index >= len(t.groups) {
		return
	}
	before, after := &t.groups[index-1], t.groups[index]
	if before.Sender != after.Sender {
		return
	}
	before.Entries = append(before.Entries, after.Entries...)
	t.groups = append(t.groups[:index], t.groups[index+1:]...)
}
