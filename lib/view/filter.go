// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"cmp"
	"slices"
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/roomline/lib/rooms"
)

// filterRooms keeps the rooms whose display name or room ID fuzzy-match
// pattern, best score first. Equal scores keep list order. A blank
// pattern keeps every room. Matching ignores case.
func filterRooms(list []rooms.Summary, pattern string, slab *util.Slab) []rooms.Summary {
	needle := []rune(strings.ToLower(strings.TrimSpace(pattern)))
	if len(needle) == 0 {
		return list
	}

	type match struct {
		summary rooms.Summary
		score   int
	}
	var matches []match
	for _, summary := range list {
		best, found := 0, false
		for _, candidate := range []string{summary.DisplayName, summary.RoomID.String()} {
			chars := util.ToChars([]byte(candidate))
			result, _ := algo.FuzzyMatchV2(false, false, true, &chars, needle, false, slab)
			if result.Start >= 0 && (!found || result.Score > best) {
				best, found = result.Score, true
			}
		}
		if found {
			matches = append(matches, match{summary: summary, score: best})
		}
	}
	slices.SortStableFunc(matches, func(a, b match) int { return cmp.Compare(b.score, a.score) })

	filtered := make([]rooms.Summary, len(matches))
	for index, match := range matches {
		filtered[index] = match.summary
	}
	return filtered
}
