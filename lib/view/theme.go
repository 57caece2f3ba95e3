// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"hash/fnv"

	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

// Theme defines the color palette for the terminal UI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected room row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Sender names. Other users get a stable color picked from
	// SenderColors by user ID; the local user always gets OwnSender.
	SenderColors []lipgloss.Color
	OwnSender    lipgloss.Color

	// Delivery status of timeline entries.
	PendingText lipgloss.Color
	FailedText  lipgloss.Color

	// Room list membership markers.
	InvitedRoom lipgloss.Color
	LeftRoom    lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Status bar log records.
	WarnText  lipgloss.Color
	ErrorText lipgloss.Color
}

// SenderColor returns the name color for sender. self is the logged-in
// user.
func (theme Theme) SenderColor(sender, self ref.UserID) lipgloss.Color {
	if sender == self || len(theme.SenderColors) == 0 {
		return theme.OwnSender
	}
	hash := fnv.New32a()
	hash.Write([]byte(sender.String()))
	return theme.SenderColors[hash.Sum32()%uint32(len(theme.SenderColors))]
}

// EntryColor returns the body color for an entry with status.
func (theme Theme) EntryColor(status timeline.Status) lipgloss.Color {
	switch status {
	case timeline.StatusPending:
		return theme.PendingText
	case timeline.StatusFailed:
		return theme.FailedText
	default:
		return theme.NormalText
	}
}

// RoomColor returns the room list color for a membership kind.
func (theme Theme) RoomColor(kind rooms.Kind) lipgloss.Color {
	switch kind {
	case rooms.Invited:
		return theme.InvitedRoom
	case rooms.Left:
		return theme.LeftRoom
	default:
		return theme.NormalText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	SenderColors: []lipgloss.Color{
		lipgloss.Color("75"),  // blue
		lipgloss.Color("114"), // green
		lipgloss.Color("141"), // light purple
		lipgloss.Color("208"), // orange
		lipgloss.Color("176"), // pink
		lipgloss.Color("80"),  // teal
	},
	OwnSender: lipgloss.Color("220"), // amber

	PendingText: lipgloss.Color("245"),
	FailedText:  lipgloss.Color("196"),

	InvitedRoom: lipgloss.Color("114"),
	LeftRoom:    lipgloss.Color("240"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	WarnText:  lipgloss.Color("220"),
	ErrorText: lipgloss.Color("196"),
}
