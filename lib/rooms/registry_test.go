// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"testing"

	"github.com/bureau-foundation/roomline/lib/ref"
)

func TestUpsertIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	summary := Summary{
		RoomID:      ref.MustParseRoomID("!abc:example.org"),
		DisplayName: "Lobby",
		Kind:        Joined,
	}

	if !registry.Upsert(summary) {
		t.Fatal("first Upsert reported no change")
	}
	before := registry.List()

	if registry.Upsert(summary) {
		t.Fatal("identical Upsert reported a change")
	}
	after := registry.List()

	if len(before) != 1 || len(after) != 1 || before[0] != after[0] {
		t.Fatalf("registry changed: before %v, after %v", before, after)
	}
}

func TestUpsertReplaces(t *testing.T) {
	registry := NewRegistry()
	roomID := ref.MustParseRoomID("!abc:example.org")
	registry.Upsert(Summary{RoomID: roomID, DisplayName: "Lobby"})

	if !registry.Upsert(Summary{RoomID: roomID, DisplayName: "Foyer", Icon: "mxc://example.org/icon"}) {
		t.Fatal("changed Upsert reported no change")
	}
	got, ok := registry.Get(roomID)
	if !ok || got.DisplayName != "Foyer" || got.Icon != "mxc://example.org/icon" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}
	if registry.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", registry.Len())
	}
}

func TestUpdate(t *testing.T) {
	registry := NewRegistry()
	roomID := ref.MustParseRoomID("!abc:example.org")

	if _, changed := registry.Update(roomID, func(s *Summary) { s.DisplayName = "x" }); changed {
		t.Fatal("Update of an unknown room reported a change")
	}
	if registry.Len() != 0 {
		t.Fatal("Update inserted an unknown room")
	}

	registry.Upsert(Summary{RoomID: roomID, DisplayName: "Lobby"})
	updated, changed := registry.Update(roomID, func(s *Summary) { s.DisplayName = "Foyer" })
	if !changed || updated.DisplayName != "Foyer" {
		t.Fatalf("Update() = %+v, %v", updated, changed)
	}
	if _, changed := registry.Update(roomID, func(s *Summary) { s.DisplayName = "Foyer" }); changed {
		t.Fatal("no-op Update reported a change")
	}
}

func TestListOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Upsert(Summary{RoomID: ref.MustParseRoomID("!c:example.org"), DisplayName: "Beta"})
	registry.Upsert(Summary{RoomID: ref.MustParseRoomID("!b:example.org"), DisplayName: "Alpha"})
	registry.Upsert(Summary{RoomID: ref.MustParseRoomID("!a:example.org"), DisplayName: "Beta"})

	var got []string
	for _, summary := range registry.List() {
		got = append(got, summary.RoomID.String())
	}
	want := []string{"!b:example.org", "!a:example.org", "!c:example.org"}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("List() order = %v, want %v", got, want)
		}
	}
}

func TestKindString(t *testing.T) {
	for kind, want := range map[Kind]string{Joined: "joined", Invited: "invited", Left: "left", Kind(9): "unknown"} {
		if kind.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, kind.String(), want)
		}
	}
}
