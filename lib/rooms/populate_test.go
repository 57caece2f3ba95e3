// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"context"
	"testing"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/testutil"
	"github.com/bureau-foundation/roomline/messaging"
)

func TestPopulateExcludesTombstonedRooms(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	homeserver.AddToken("syt_self", "@self:example.org")

	homeserver.SetRoomState("!lobby:example.org",
		testutil.StateEvent("m.room.create", "", "@self:example.org", map[string]any{}),
		testutil.StateEvent("m.room.name", "", "@self:example.org", map[string]any{"name": "Lobby"}),
	)
	homeserver.SetRoomState("!old:example.org",
		testutil.StateEvent("m.room.create", "", "@self:example.org", map[string]any{}),
		testutil.StateEvent("m.room.name", "", "@self:example.org", map[string]any{"name": "Old lobby"}),
		testutil.StateEvent("m.room.tombstone", "", "@self:example.org", map[string]any{
			"body":             "upgraded",
			"replacement_room": "!lobby:example.org",
		}),
	)
	homeserver.SetRoomState("!call:example.org",
		testutil.StateEvent("m.room.create", "", "@self:example.org", map[string]any{"type": "org.example.call"}),
	)
	homeserver.SetRoomState("!dm:example.org",
		testutil.StateEvent("m.room.create", "", "@self:example.org", map[string]any{}),
	)
	homeserver.SetMembers("!dm:example.org",
		testutil.Member{UserID: "@self:example.org", DisplayName: "Self", Membership: "join"},
		testutil.Member{UserID: "@alice:example.org", DisplayName: "Alice", Membership: "join"},
	)

	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: homeserver.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@self:example.org"), "DEV", "syt_self")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	defer session.Close()

	registry := NewRegistry()
	changed := Populate(context.Background(), registry, NewResolver(session, nil), map[Kind][]ref.RoomID{
		Joined: {
			ref.MustParseRoomID("!lobby:example.org"),
			ref.MustParseRoomID("!old:example.org"),
			ref.MustParseRoomID("!call:example.org"),
		},
		Invited: {ref.MustParseRoomID("!dm:example.org")},
	})

	if len(changed) != 2 {
		t.Fatalf("Populate changed %d rooms, want 2: %v", len(changed), changed)
	}
	if _, ok := registry.Get(ref.MustParseRoomID("!old:example.org")); ok {
		t.Error("tombstoned room was enumerated")
	}
	if _, ok := registry.Get(ref.MustParseRoomID("!call:example.org")); ok {
		t.Error("room of an untracked type was enumerated")
	}
	dm, ok := registry.Get(ref.MustParseRoomID("!dm:example.org"))
	if !ok || dm.DisplayName != "Alice" || dm.Kind != Invited {
		t.Errorf("dm = %+v, %v", dm, ok)
	}

	// A second population with the same state changes nothing.
	again := Populate(context.Background(), registry, NewResolver(session, nil), map[Kind][]ref.RoomID{
		Joined: {ref.MustParseRoomID("!lobby:example.org")},
	})
	if len(again) != 0 || registry.Len() != 2 {
		t.Fatalf("repeat Populate changed %v; registry has %d rooms", again, registry.Len())
	}
}
