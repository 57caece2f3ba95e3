// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

var (
	roomABC   = ref.MustParseRoomID("!abc:example.org")
	roomOther = ref.MustParseRoomID("!other:example.org")
	alice     = ref.MustParseUserID("@alice:example.org")
	self      = ref.MustParseUserID("@self:example.org")
)

func serverEntry(eventID string, sender ref.UserID, body string) timeline.Entry {
	return timeline.Entry{
		ID:     ref.ServerIdentity(ref.MustParseEventID(eventID)),
		Sender: sender,
		Body:   body,
	}
}

func localEntry(transactionID string, sender ref.UserID, body string) timeline.Entry {
	return timeline.Entry{
		ID:     ref.TransactionIdentity(ref.MustParseTransactionID(transactionID)),
		Sender: sender,
		Body:   body,
		Status: timeline.StatusPending,
	}
}

func activeState(roomID ref.RoomID, name string) sink.SetActiveRoom {
	return sink.SetActiveRoom{State: sink.ActiveRoomState{
		RoomID:      roomID,
		DisplayName: name,
		HasComposer: true,
	}}
}

// identities lists the active timeline's entry identities as strings.
func identities(state *State) []string {
	var result []string
	for _, id := range state.Active.Timeline.Identities() {
		result = append(result, id.String())
	}
	return result
}

func requireIdentities(t *testing.T, state *State, want ...string) {
	t.Helper()
	got := identities(state)
	if len(got) != len(want) {
		t.Fatalf("timeline = %v, want %v", got, want)
	}
	for index := range got {
		if got[index] != want[index] {
			t.Fatalf("timeline = %v, want %v", got, want)
		}
	}
}

func TestApplyLogin(t *testing.T) {
	state := NewState()

	failure := errors.New("forbidden")
	if !state.Apply(sink.LoginFailed{Err: failure}) {
		t.Fatal("LoginFailed reported no change")
	}
	if state.LoggedIn || state.LoginError != failure {
		t.Fatalf("after LoginFailed: logged in %v, error %v", state.LoggedIn, state.LoginError)
	}

	state.Apply(sink.FinishLogin{UserID: self})
	if !state.LoggedIn || state.UserID != self || state.LoginError != nil {
		t.Fatalf("after FinishLogin: logged in %v, user %s, error %v", state.LoggedIn, state.UserID, state.LoginError)
	}
}

func TestApplyRoomUpdates(t *testing.T) {
	state := NewState()
	summary := rooms.Summary{RoomID: roomABC, DisplayName: "ABC", Kind: rooms.Joined}

	if !state.Apply(sink.AddOrUpdateRoom{Summary: summary}) {
		t.Fatal("first AddOrUpdateRoom reported no change")
	}
	if state.Apply(sink.AddOrUpdateRoom{Summary: summary}) {
		t.Fatal("identical AddOrUpdateRoom reported a change")
	}
	if state.Rooms.Len() != 1 {
		t.Fatalf("room count = %d, want 1", state.Rooms.Len())
	}

	// A rename of the active room updates its header.
	state.Apply(activeState(roomABC, "ABC"))
	summary.DisplayName = "Renamed"
	summary.Icon = "mxc://example.org/icon"
	state.Apply(sink.AddOrUpdateRoom{Summary: summary})
	if state.Active.DisplayName != "Renamed" || state.Active.Icon != "mxc://example.org/icon" {
		t.Fatalf("active header = %q %q", state.Active.DisplayName, state.Active.Icon)
	}

	// Leaving the active room closes its composer.
	summary.Kind = rooms.Left
	state.Apply(sink.AddOrUpdateRoom{Summary: summary})
	if state.Active.HasComposer {
		t.Fatal("left room kept its composer")
	}
}

func TestApplyConcreteScenario(t *testing.T) {
	state := NewState()
	state.Apply(sink.FinishLogin{UserID: self})
	state.Apply(activeState(roomABC, "ABC"))

	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: alice, Entry: serverEntry("$E1", alice, "hi")})
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: self, Entry: localEntry("tx1", self, "yo")})
	requireIdentities(t, state, "$E1", "txn:tx1")

	// The echo replaces the local entry.
	state.Apply(sink.RemoveEvent{ID: ref.TransactionIdentity(ref.MustParseTransactionID("tx1"))})
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: self, Entry: serverEntry("$E2", self, "yo")})
	requireIdentities(t, state, "$E1", "$E2")

	groups := state.Active.Timeline.Groups()
	if len(groups) != 2 || groups[0].Sender != alice || groups[1].Sender != self {
		t.Fatalf("groups = %+v", groups)
	}
}

func TestApplyIgnoresOtherRooms(t *testing.T) {
	state := NewState()

	// Nothing is active yet.
	if state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: alice, Entry: serverEntry("$E1", alice, "hi")}) {
		t.Fatal("AppendEvent with no active room reported a change")
	}

	state.Apply(activeState(roomABC, "ABC"))
	commands := []sink.Command{
		sink.AppendEvent{RoomID: roomOther, Sender: alice, Entry: serverEntry("$E1", alice, "hi")},
		sink.PrependEvent{RoomID: roomOther, Sender: alice, Entry: serverEntry("$E0", alice, "old")},
		sink.SetPaginating{RoomID: roomOther, Paginating: true},
		sink.SetDisplayName{RoomID: roomOther, UserID: alice, DisplayName: "Alice"},
	}
	for _, command := range commands {
		if state.Apply(command) {
			t.Errorf("%T for another room reported a change", command)
		}
	}
	if state.Active.Timeline.Len() != 0 || state.Active.Paginating {
		t.Fatal("commands for another room changed the active room")
	}
}

func TestApplySetActiveRoomReplacesTimeline(t *testing.T) {
	state := NewState()
	state.Apply(activeState(roomABC, "ABC"))
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: alice, Entry: serverEntry("$E1", alice, "hi")})

	state.Apply(sink.SetActiveRoom{State: sink.ActiveRoomState{
		RoomID:      roomOther,
		DisplayName: "Other",
		Groups: []timeline.Group{{
			Sender:            alice,
			SenderDisplayName: "Alice",
			Entries:           []timeline.Entry{serverEntry("$O1", alice, "there")},
		}},
		Composer:   "draft",
		Paginating: true,
	}})

	if state.Active.RoomID != roomOther || state.Active.Composer != "draft" || !state.Active.Paginating || state.Active.HasComposer {
		t.Fatalf("active = %+v", state.Active)
	}
	requireIdentities(t, state, "$O1")
	if name := state.Active.Timeline.Groups()[0].SenderDisplayName; name != "Alice" {
		t.Fatalf("display name = %q, want Alice", name)
	}
}

func TestApplyPrependAndPagination(t *testing.T) {
	state := NewState()
	state.Apply(activeState(roomABC, "ABC"))
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: alice, Entry: serverEntry("$E3", alice, "three")})

	if !state.Apply(sink.SetPaginating{RoomID: roomABC, Paginating: true}) {
		t.Fatal("SetPaginating(true) reported no change")
	}
	if state.Apply(sink.SetPaginating{RoomID: roomABC, Paginating: true}) {
		t.Fatal("repeated SetPaginating(true) reported a change")
	}

	// Pagination delivers newest first.
	state.Apply(sink.PrependEvent{RoomID: roomABC, Sender: alice, Entry: serverEntry("$E2", alice, "two")})
	state.Apply(sink.PrependEvent{RoomID: roomABC, Sender: self, Entry: serverEntry("$E1", self, "one")})
	state.Apply(sink.SetPaginating{RoomID: roomABC, Paginating: false})

	requireIdentities(t, state, "$E1", "$E2", "$E3")
	if state.Active.Paginating {
		t.Fatal("still paginating")
	}
	if groups := state.Active.Timeline.Groups(); len(groups) != 2 {
		t.Fatalf("group count = %d, want 2", len(groups))
	}
}

func TestApplyMarkFailedAndDisplayName(t *testing.T) {
	state := NewState()
	state.Apply(activeState(roomABC, "ABC"))
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: self, Entry: localEntry("tx1", self, "yo")})

	if !state.Apply(sink.MarkFailed{ID: ref.MustParseTransactionID("tx1")}) {
		t.Fatal("MarkFailed reported no change")
	}
	if status := state.Active.Timeline.Groups()[0].Entries[0].Status; status != timeline.StatusFailed {
		t.Fatalf("status = %v, want failed", status)
	}
	if state.Apply(sink.MarkFailed{ID: ref.MustParseTransactionID("tx2")}) {
		t.Fatal("MarkFailed of an unknown send reported a change")
	}

	state.Apply(sink.SetDisplayName{RoomID: roomABC, UserID: self, DisplayName: "Me"})
	if name := state.Active.Timeline.Groups()[0].SenderDisplayName; name != "Me" {
		t.Fatalf("display name = %q, want Me", name)
	}
}

func TestApplyFillsMissingSender(t *testing.T) {
	state := NewState()
	state.Apply(activeState(roomABC, "ABC"))

	entry := serverEntry("$E1", alice, "hi")
	entry.Sender = ref.UserID{}
	state.Apply(sink.AppendEvent{RoomID: roomABC, Sender: alice, Entry: entry})
	if sender := state.Active.Timeline.Groups()[0].Sender; sender != alice {
		t.Fatalf("sender = %s, want %s", sender, alice)
	}
}
