// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rooms

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/roomline/lib/ref"
)

// populateConcurrency bounds the number of rooms resolved at once.
const populateConcurrency = 8

// Populate resolves every room in roomIDs and upserts it into registry.
// Tombstoned rooms and rooms of untracked types are skipped; room
// upgrades are not followed. Rooms whose state cannot be fetched are
// still inserted with ErrorDisplayName. It returns the summaries that
// changed the registry, in no particular order.
func Populate(ctx context.Context, registry *Registry, resolver *Resolver, roomIDs map[Kind][]ref.RoomID) []Summary {
	var (
		mu      sync.Mutex
		changed []Summary
	)

	group, groupContext := errgroup.WithContext(ctx)
	group.SetLimit(populateConcurrency)
	for kind, ids := range roomIDs {
		for _, roomID := range ids {
			group.Go(func() error {
				resolution := resolver.Resolve(groupContext, roomID, kind)
				if resolution.Tombstoned || !resolution.Tracked {
					resolver.logger.Debug("skipping room",
						"room_id", roomID,
						"tombstoned", resolution.Tombstoned,
						"tracked", resolution.Tracked,
					)
					return nil
				}
				if registry.Upsert(resolution.Summary) {
					mu.Lock()
					changed = append(changed, resolution.Summary)
					mu.Unlock()
				}
				return nil
			})
		}
	}
	group.Wait()
	return changed
}
