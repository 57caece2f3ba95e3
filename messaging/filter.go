// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "encoding/json"

// SyncFilter configures the inline /sync filter built by
// BuildSyncFilter.
type SyncFilter struct {
	// LazyLoadMembers asks the server to omit membership events for
	// users who have not sent anything in the returned timeline. The
	// room summary's heroes still let clients name unnamed rooms.
	LazyLoadMembers bool

	// TimelineLimit caps the number of timeline events per room per
	// /sync response. Zero means the server default.
	TimelineLimit int

	// TimelineTypes restricts timeline events to these Matrix event
	// types. An empty slice means all types.
	TimelineTypes []string

	// InvitesOnly drops the timeline, state, ephemeral, and account
	// data of every room. Invites still carry their invite_state,
	// which room filters do not apply to.
	InvitesOnly bool
}

// BuildSyncFilter constructs the inline JSON filter string for /sync.
// Presence and global account data are always excluded: the client never
// renders them.
func BuildSyncFilter(filter SyncFilter) string {
	stateFilter := map[string]any{}
	timelineFilter := map[string]any{}
	if filter.LazyLoadMembers {
		stateFilter["lazy_load_members"] = true
		timelineFilter["lazy_load_members"] = true
	}
	if filter.TimelineLimit > 0 {
		timelineFilter["limit"] = filter.TimelineLimit
	}
	if len(filter.TimelineTypes) > 0 {
		timelineFilter["types"] = filter.TimelineTypes
	}

	roomFilter := map[string]any{
		"state":    stateFilter,
		"timeline": timelineFilter,
	}
	if filter.InvitesOnly {
		none := []string{}
		stateFilter["types"] = none
		timelineFilter["limit"] = 0
		timelineFilter["types"] = none
		roomFilter["ephemeral"] = map[string]any{"types": none}
		roomFilter["account_data"] = map[string]any{"types": none}
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}

// BuildMessagesFilter constructs the RoomEventFilter used with /messages.
// Lazy-loading members makes the server return only the membership
// events for senders in the returned chunk.
func BuildMessagesFilter(lazyLoadMembers bool) string {
	if !lazyLoadMembers {
		return ""
	}
	data, _ := json.Marshal(map[string]any{"lazy_load_members": true})
	return string(data)
}
