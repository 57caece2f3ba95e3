// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/roomline/lib/ref"
)

// Standard Matrix event types handled by the client.
const (
	EventTypeRoomCreate     ref.EventType = "m.room.create"
	EventTypeRoomName       ref.EventType = "m.room.name"
	EventTypeRoomAvatar     ref.EventType = "m.room.avatar"
	EventTypeCanonicalAlias ref.EventType = "m.room.canonical_alias"
	EventTypeRoomMember     ref.EventType = "m.room.member"
	EventTypeRoomTombstone  ref.EventType = "m.room.tombstone"
	EventTypeRoomMessage    ref.EventType = "m.room.message"
)

// RoomTypeSpace is the m.room.create "type" of a space container. Rooms
// with no type are ordinary chat rooms. Any other type is a specialised
// room the client does not track.
const RoomTypeSpace = "m.space"

// Message msgtypes and body formats.
const (
	MsgTypeText   = "m.text"
	MsgTypeNotice = "m.notice"
	MsgTypeEmote  = "m.emote"

	// FormatHTML is the only formatted_body format defined by the
	// Matrix spec.
	FormatHTML = "org.matrix.custom.html"
)

// Membership values of m.room.member content.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
)

// RoomCreateContent is the content of m.room.create.
type RoomCreateContent struct {
	Creator     string `json:"creator,omitempty"`
	RoomVersion string `json:"room_version,omitempty"`
	// Type classifies the room. Empty for chat rooms, RoomTypeSpace
	// for spaces.
	Type string `json:"type,omitempty"`
}

// IsTracked reports whether a room with this create content belongs in
// the room list: plain chat rooms and spaces. Other room types
// (bridged call rooms, policy lists, ...) are skipped.
func (c RoomCreateContent) IsTracked() bool {
	return c.Type == "" || c.Type == RoomTypeSpace
}

// RoomNameContent is the content of m.room.name.
type RoomNameContent struct {
	Name string `json:"name"`
}

// RoomAvatarContent is the content of m.room.avatar. URL is an mxc://
// URI; it is carried as-is and never downloaded.
type RoomAvatarContent struct {
	URL string `json:"url,omitempty"`
}

// CanonicalAliasContent is the content of m.room.canonical_alias.
type CanonicalAliasContent struct {
	Alias string `json:"alias,omitempty"`
}

// RoomMemberContent is the content of m.room.member.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// TombstoneContent is the content of m.room.tombstone. A room with a
// tombstone whose ReplacementRoom is set has been upgraded.
type TombstoneContent struct {
	Body            string `json:"body,omitempty"`
	ReplacementRoom string `json:"replacement_room,omitempty"`
}

// MessageContent is the content of m.room.message as received. Sends use
// messaging.MessageContent.
type MessageContent struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
}

// DecodeContent converts a generic event content map into T.
func DecodeContent[T any](content map[string]any) (T, error) {
	var result T
	data, err := json.Marshal(content)
	if err != nil {
		return result, fmt.Errorf("re-encoding event content: %w", err)
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("decoding event content into %T: %w", result, err)
	}
	return result, nil
}
