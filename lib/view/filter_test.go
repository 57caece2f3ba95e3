// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"testing"

	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
)

func TestFilterRooms(t *testing.T) {
	list := []rooms.Summary{
		{RoomID: ref.MustParseRoomID("!general:example.org"), DisplayName: "General"},
		{RoomID: ref.MustParseRoomID("!random:example.org"), DisplayName: "Random"},
		{RoomID: ref.MustParseRoomID("!ops:example.org"), DisplayName: "Operations"},
	}
	slab := util.MakeSlab(100*1024, 2048)

	names := func(summaries []rooms.Summary) []string {
		var out []string
		for _, summary := range summaries {
			out = append(out, summary.DisplayName)
		}
		return out
	}

	if got := filterRooms(list, "  ", slab); len(got) != len(list) {
		t.Fatalf("blank pattern kept %v", names(got))
	}
	if got := names(filterRooms(list, "RAND", slab)); len(got) != 1 || got[0] != "Random" {
		t.Fatalf("RAND matched %v, want [Random]", got)
	}
	if got := names(filterRooms(list, "ops", slab)); len(got) != 1 || got[0] != "Operations" {
		t.Fatalf("ops matched %v, want [Operations]", got)
	}
	if got := filterRooms(list, "zzz", slab); len(got) != 0 {
		t.Fatalf("zzz matched %v", names(got))
	}
}
