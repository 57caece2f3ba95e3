// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncloop

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/bureau-foundation/roomline/lib/clock"
	"github.com/bureau-foundation/roomline/lib/netutil"
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/schema"
	"github.com/bureau-foundation/roomline/messaging"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxBackoff = 30 * time.Second
	initialBackoff    = time.Second
)

// Session is the part of a Matrix session the driver uses.
// *messaging.DirectSession satisfies it.
type Session interface {
	Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error)
	CloseIdleConnections()
}

// CursorStore persists the sync cursor. *sessionstore.Store satisfies it.
type CursorStore interface {
	SaveCursor(cursor string) error
}

// Context describes the room an event arrived in.
type Context struct {
	RoomID     ref.RoomID
	Membership rooms.Kind

	// PrevBatch is the room's timeline prev_batch token from this
	// batch, for paginating backwards past the delivered events.
	// Empty for invited rooms.
	PrevBatch string
}

// Handler processes one event.
type Handler func(ctx context.Context, room Context, event messaging.Event)

// MembershipHandler receives every room of a batch once, before its
// events, with the room's state section. For invites that is the
// stripped invite_state.
type MembershipHandler func(ctx context.Context, room Context, state []messaging.Event)

// Handlers are the per-type event callbacks. A nil handler drops the
// events it would receive.
type Handlers struct {
	// RoomMembership receives each room in the join, invite, and leave
	// sections, including rooms whose section carries no other events.
	RoomMembership MembershipHandler

	// RoomCreate receives m.room.create.
	RoomCreate Handler

	// RoomRename receives m.room.name and m.room.avatar.
	RoomRename Handler

	// RoomMessage receives m.room.message.
	RoomMessage Handler
}

// Config configures a Driver.
type Config struct {
	Session  Session
	Store    CursorStore
	Handlers Handlers

	// Cursor is the next_batch token to resume from. Empty performs an
	// initial sync.
	Cursor string

	// Filter is the inline /sync filter (see messaging.BuildSyncFilter).
	Filter string

	// Timeout is the long-poll timeout. Default: 30 seconds.
	Timeout time.Duration

	// MaxBackoff caps the retry delay after failed requests. The delay
	// starts at one second and doubles. Default: 30 seconds.
	MaxBackoff time.Duration

	// OnBatch, if set, is called after each batch has been dispatched.
	OnBatch func(ctx context.Context, response *messaging.SyncResponse)

	Clock  clock.Clock
	Logger *slog.Logger
}

// Driver runs the sync loop. Create with New.
type Driver struct {
	session    Session
	store      CursorStore
	handlers   Handlers
	filter     string
	timeout    time.Duration
	maxBackoff time.Duration
	onBatch    func(context.Context, *messaging.SyncResponse)
	clock      clock.Clock
	logger     *slog.Logger

	cursor string
}

// New returns a Driver for config.
func New(config Config) *Driver {
	driver := &Driver{
		session:    config.Session,
		store:      config.Store,
		handlers:   config.Handlers,
		filter:     config.Filter,
		timeout:    config.Timeout,
		maxBackoff: config.MaxBackoff,
		onBatch:    config.OnBatch,
		clock:      config.Clock,
		logger:     config.Logger,
		cursor:     config.Cursor,
	}
	if driver.timeout <= 0 {
		driver.timeout = defaultTimeout
	}
	if driver.maxBackoff <= 0 {
		driver.maxBackoff = defaultMaxBackoff
	}
	if driver.clock == nil {
		driver.clock = clock.Real()
	}
	if driver.logger == nil {
		driver.logger = slog.Default()
	}
	return driver
}

// Cursor returns the next_batch token of the last batch received. Only
// call it from the goroutine running Run or after Run has returned.
func (d *Driver) Cursor() string {
	return d.cursor
}

// Run polls until ctx is cancelled and then returns ctx.Err(). Request
// failures never end the loop.
func (d *Driver) Run(ctx context.Context) error {
	backoff := initialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		response, err := d.session.Sync(ctx, messaging.SyncOptions{
			Since:      d.cursor,
			Timeout:    int(d.timeout / time.Millisecond),
			SetTimeout: true,
			Filter:     d.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("sync failed, retrying",
				"error", err,
				"backoff", backoff,
				"connection_error", netutil.IsConnectionError(err),
			)
			// A stale pooled connection would fail the retry the same
			// way.
			d.session.CloseIdleConnections()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-d.clock.After(backoff):
			}
			backoff = min(backoff*2, d.maxBackoff)
			continue
		}
		backoff = initialBackoff

		d.cursor = response.NextBatch
		if d.store != nil {
			if err := d.store.SaveCursor(d.cursor); err != nil {
				d.logger.Warn("persisting sync cursor failed", "error", err)
			}
		}

		d.dispatch(ctx, response)
		if d.onBatch != nil {
			d.onBatch(ctx, response)
		}
	}
}

func (d *Driver) dispatch(ctx context.Context, response *messaging.SyncResponse) {
	sections := response.Rooms

	for _, roomID := range sortedRoomIDs(sections.Join) {
		room := sections.Join[roomID]
		roomContext := Context{RoomID: roomID, Membership: rooms.Joined, PrevBatch: room.Timeline.PrevBatch}
		d.noteMembership(ctx, roomContext, room.State.Events)
		d.dispatchEvents(ctx, roomContext, room.State.Events)
		d.dispatchEvents(ctx, roomContext, room.Timeline.Events)
	}
	for _, roomID := range sortedRoomIDs(sections.Invite) {
		roomContext := Context{RoomID: roomID, Membership: rooms.Invited}
		inviteState := sections.Invite[roomID].InviteState.Events
		d.noteMembership(ctx, roomContext, inviteState)
		d.dispatchEvents(ctx, roomContext, inviteState)
	}
	for _, roomID := range sortedRoomIDs(sections.Leave) {
		room := sections.Leave[roomID]
		roomContext := Context{RoomID: roomID, Membership: rooms.Left, PrevBatch: room.Timeline.PrevBatch}
		d.noteMembership(ctx, roomContext, room.State.Events)
		d.dispatchEvents(ctx, roomContext, room.State.Events)
		d.dispatchEvents(ctx, roomContext, room.Timeline.Events)
	}
}

func (d *Driver) noteMembership(ctx context.Context, room Context, state []messaging.Event) {
	if d.handlers.RoomMembership != nil {
		d.handlers.RoomMembership(ctx, room, state)
	}
}

func (d *Driver) dispatchEvents(ctx context.Context, room Context, events []messaging.Event) {
	for _, event := range events {
		var handler Handler
		switch event.Type {
		case schema.EventTypeRoomCreate:
			handler = d.handlers.RoomCreate
		case schema.EventTypeRoomName, schema.EventTypeRoomAvatar:
			handler = d.handlers.RoomRename
		case schema.EventTypeRoomMessage:
			handler = d.handlers.RoomMessage
		}
		if handler != nil {
			handler(ctx, room, event)
		}
	}
}

func sortedRoomIDs[V any](section map[ref.RoomID]V) []ref.RoomID {
	return slices.SortedFunc(maps.Keys(section), func(a, b ref.RoomID) int {
		return a.Compare(b)
	})
}
