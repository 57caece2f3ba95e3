// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/timeline"
)

const (
	// maxRoomListWidth caps the room list pane; the timeline gets the
	// rest of the terminal.
	maxRoomListWidth = 28

	// chromeHeight is the header, separator, composer, and status lines.
	chromeHeight = 4

	// timestampWidth is "15:04" plus a space.
	timestampWidth = 6
)

// layout sizes the widgets for the current terminal dimensions.
func (model *Model) layout() {
	timelineWidth := max(model.width-model.roomListWidth()-1, 1)
	model.timelinePane.Width = timelineWidth
	model.timelinePane.Height = max(model.height-chromeHeight, 1)
	model.composer.Width = max(timelineWidth-len(model.composer.Prompt)-1, 1)
}

func (model Model) roomListWidth() int {
	return min(maxRoomListWidth, model.width/3)
}

// refreshTimeline re-renders the active room into the viewport. With
// gotoBottom the newest entries are scrolled into view.
func (model *Model) refreshTimeline(gotoBottom bool) {
	active := model.state.Active
	if active == nil {
		model.timelinePane.SetContent("")
		return
	}
	content := renderTimeline(active.Timeline.Groups(), active.Paginating,
		model.state.UserID, model.timelinePane.Width, model.theme)
	model.timelinePane.SetContent(content)
	if gotoBottom {
		model.timelinePane.GotoBottom()
	}
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	if !model.state.LoggedIn {
		return model.renderLogin()
	}

	contentHeight := max(model.height-chromeHeight, 1)
	listView := lipgloss.NewStyle().
		Width(model.roomListWidth()).
		Height(contentHeight).
		MaxHeight(contentHeight).
		Render(model.renderRoomList(contentHeight))
	divider := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.TrimSuffix(strings.Repeat("│\n", contentHeight), "\n"))
	contentArea := lipgloss.JoinHorizontal(lipgloss.Top, listView, divider, model.timelinePane.View())

	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))

	sections := []string{
		model.renderHeader(),
		contentArea,
		separator,
		model.renderComposer(),
		model.renderStatus(),
	}
	return strings.Join(sections, "\n")
}

func (model Model) renderLogin() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(model.theme.HeaderForeground).
		Render("Sign in to Matrix")

	lines := []string{
		title,
		"",
		model.userInput.View(),
		model.passwordInput.View(),
		"",
	}
	switch {
	case model.loginPending:
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render("signing in..."))
	case model.state.LoginError != nil:
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.ErrorText).Render(model.state.LoginError.Error()))
	default:
		lines = append(lines, lipgloss.NewStyle().Foreground(model.theme.HelpText).Render("tab: next field  enter: sign in  esc: quit"))
	}

	form := strings.Join(lines, "\n")
	return lipgloss.Place(model.width, model.height, lipgloss.Center, lipgloss.Center, form)
}

func (model Model) renderHeader() string {
	style := lipgloss.NewStyle().Bold(true).Foreground(model.theme.HeaderForeground)
	title := model.state.UserID.String()
	if active := model.state.Active; active != nil {
		title = active.DisplayName + "  " +
			lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(active.RoomID.String())
	}
	return style.Render(title)
}

// renderRoomList renders at most height rows, scrolled so the cursor is
// visible.
func (model Model) renderRoomList(height int) string {
	var rows []string
	width := model.roomListWidth()
	if model.focus == focusFilter || model.filterInput.Value() != "" {
		rows = append(rows, truncate(model.filterInput.View(), width))
		height = max(height-1, 1)
	}

	list := model.visibleRooms()
	if len(list) == 0 {
		empty := "no rooms"
		if model.filterInput.Value() != "" {
			empty = "no matches"
		}
		rows = append(rows, lipgloss.NewStyle().Foreground(model.theme.FaintText).Render(empty))
		return strings.Join(rows, "\n")
	}

	first := 0
	if model.roomCursor >= height {
		first = model.roomCursor - height + 1
	}

	for index := first; index < len(list) && index-first < height; index++ {
		summary := list[index]
		active := model.state.Active != nil && model.state.Active.RoomID == summary.RoomID
		row := renderRoomRow(summary, active, width)

		style := lipgloss.NewStyle().Foreground(model.theme.RoomColor(summary.Kind))
		if index == model.roomCursor && (model.focus == focusRooms || model.focus == focusFilter) {
			style = style.
				Background(model.theme.SelectedBackground).
				Foreground(model.theme.SelectedForeground)
		}
		rows = append(rows, style.Width(width).Render(row))
	}
	return strings.Join(rows, "\n")
}

// renderRoomRow formats one room-list row: an active marker, a
// membership marker, and the display name cut to width.
func renderRoomRow(summary rooms.Summary, active bool, width int) string {
	marker := " "
	if active {
		marker = "●"
	}
	kind := " "
	switch {
	case summary.IsSpace:
		kind = "▸"
	case summary.Kind == rooms.Invited:
		kind = "+"
	case summary.Kind == rooms.Left:
		kind = "-"
	}
	return truncate(marker+kind+" "+summary.DisplayName, width)
}

func (model Model) renderComposer() string {
	active := model.state.Active
	switch {
	case active == nil:
		return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render("select a room")
	case !active.HasComposer:
		summary, _ := model.state.Rooms.Get(active.RoomID)
		return lipgloss.NewStyle().Foreground(model.theme.HelpText).
			Render(fmt.Sprintf("read only: %s", summary.Kind))
	}
	return model.composer.View()
}

// renderStatus shows the latest log record, or the key help when none
// is pending.
func (model Model) renderStatus() string {
	if model.status != "" {
		color := model.theme.FaintText
		switch {
		case model.statusLevel >= slog.LevelError:
			color = model.theme.ErrorText
		case model.statusLevel >= slog.LevelWarn:
			color = model.theme.WarnText
		}
		return lipgloss.NewStyle().Foreground(color).Render(truncate(model.status, model.width))
	}

	bindings := []struct{ keys, help string }{
		{model.keys.FocusToggle.Help().Key, model.keys.FocusToggle.Help().Desc},
		{model.keys.Filter.Help().Key, model.keys.Filter.Help().Desc},
		{model.keys.Submit.Help().Key, model.keys.Submit.Help().Desc},
		{model.keys.PageUp.Help().Key, model.keys.PageUp.Help().Desc},
		{model.keys.History.Help().Key, model.keys.History.Help().Desc},
		{model.keys.Quit.Help().Key, model.keys.Quit.Help().Desc},
	}
	var parts []string
	for _, binding := range bindings {
		parts = append(parts, binding.keys+": "+binding.help)
	}
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(truncate(strings.Join(parts, "  "), model.width))
}

// renderTimeline renders groups oldest first: one name line per group,
// then each entry prefixed with its time. Confirmed bodies are rendered
// as markdown; local entries show the typed text until their echo
// arrives. Long bodies wrap under the timestamp column.
func renderTimeline(groups []timeline.Group, paginating bool, self ref.UserID, width int, theme Theme) string {
	var lines []string
	if paginating {
		lines = append(lines, lipgloss.NewStyle().Foreground(theme.FaintText).Render("loading older messages..."))
	}

	bodyWidth := max(width-timestampWidth, 1)
	for _, group := range groups {
		name := group.SenderDisplayName
		if name == "" {
			name = group.Sender.String()
		}
		lines = append(lines, lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.SenderColor(group.Sender, self)).
			Render(name))

		for _, entry := range group.Entries {
			stamp := strings.Repeat(" ", timestampWidth)
			if !entry.Timestamp.IsZero() {
				stamp = entry.Timestamp.Local().Format("15:04") + " "
			}
			var wrapped string
			switch entry.Status {
			case timeline.StatusConfirmed:
				wrapped = renderBody(entry.Body, theme, bodyWidth)
			default:
				body := entry.Body
				if entry.Status == timeline.StatusFailed {
					body += " (not sent)"
				}
				wrapped = lipgloss.NewStyle().
					Width(bodyWidth).
					Foreground(theme.EntryColor(entry.Status)).
					Render(body)
			}
			for index, line := range strings.Split(wrapped, "\n") {
				prefix := strings.Repeat(" ", timestampWidth)
				if index == 0 {
					prefix = lipgloss.NewStyle().Foreground(theme.FaintText).Render(stamp)
				}
				lines = append(lines, prefix+line)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// truncate cuts text to width terminal cells, marking the cut with an
// ellipsis. Wide runes and styling escapes are measured by x/ansi.
func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(text, width, "…")
}
