// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/schema"
	"github.com/bureau-foundation/roomline/messaging"
)

// SummarizeInvite derives the summary of an invited room from the
// stripped state delivered with the invite. Homeservers refuse state
// lookups from non-members, so nothing is fetched.
//
// Unnamed invites are named after the members the stripped state lists,
// usually the inviter, and otherwise after the sender of the invite.
func SummarizeInvite(self ref.UserID, roomID ref.RoomID, events []messaging.Event) Resolution {
	state := scanState(events)
	if state.displayName == "" {
		state.displayName = nameFromMembers(self, strippedMembers(self, events))
	}
	return state.resolution(roomID, Invited)
}

// strippedMembers collects the m.room.member events of a stripped state
// list. The invite of self contributes its sender when the sender has no
// member event of its own.
func strippedMembers(self ref.UserID, events []messaging.Event) []messaging.RoomMember {
	var members []messaging.RoomMember
	seen := make(map[ref.UserID]bool)
	var inviter ref.UserID
	for _, event := range events {
		if event.Type != schema.EventTypeRoomMember || !event.IsState() {
			continue
		}
		userID, err := ref.ParseUserID(*event.StateKey)
		if err != nil {
			continue
		}
		content, err := schema.DecodeContent[schema.RoomMemberContent](event.Content)
		if err != nil {
			continue
		}
		if userID == self {
			if content.Membership == schema.MembershipInvite && !event.Sender.IsZero() {
				inviter = event.Sender
			}
			continue
		}
		if seen[userID] {
			continue
		}
		seen[userID] = true
		members = append(members, messaging.RoomMember{
			UserID:      userID,
			DisplayName: content.DisplayName,
			Membership:  content.Membership,
		})
	}
	if !inviter.IsZero() && inviter != self && !seen[inviter] {
		members = append(members, messaging.RoomMember{UserID: inviter, Membership: schema.MembershipJoin})
	}
	return members
}
