// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/bureau-foundation/roomline/lib/clock"
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/sink"
	"github.com/bureau-foundation/roomline/lib/syncloop"
	"github.com/bureau-foundation/roomline/messaging"
)

// DefaultPageSize is the number of events requested per history page.
const DefaultPageSize = 25

var (
	// ErrNoActiveRoom is returned by operations that need a selected
	// room.
	ErrNoActiveRoom = errors.New("client: no active room")

	// ErrUnknownRoom is returned by SelectRoom for rooms not in the
	// registry.
	ErrUnknownRoom = errors.New("client: unknown room")

	// ErrNotJoined is returned by Send when the active room is an
	// invite or a room the account has left.
	ErrNotJoined = errors.New("client: not joined to the active room")

	// ErrEmptyMessage is returned by Send for blank messages.
	ErrEmptyMessage = errors.New("client: empty message")
)

// Session is the part of a Matrix session the client uses.
// *messaging.DirectSession satisfies it.
type Session interface {
	rooms.StateSource
	JoinedRooms(ctx context.Context) ([]ref.RoomID, error)
	GetDisplayName(ctx context.Context, userID ref.UserID) (string, error)
	SendMessage(ctx context.Context, roomID ref.RoomID, transactionID ref.TransactionID, content messaging.MessageContent) (ref.EventID, error)
	RoomMessages(ctx context.Context, roomID ref.RoomID, options messaging.RoomMessagesOptions) (*messaging.RoomMessagesResponse, error)
	Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error)
}

// Config configures a Client.
type Config struct {
	Session Session
	Sink    sink.Sink

	// PageSize is the number of events per history page. Default:
	// DefaultPageSize.
	PageSize int

	// LazyLoadMembers asks /messages to include only the membership
	// events of the returned senders.
	LazyLoadMembers bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Client is the state of one logged-in session. It is safe for
// concurrent use: sync handlers, UI actions, and background requests all
// go through it.
type Client struct {
	session  Session
	sink     sink.Sink
	registry *rooms.Registry
	resolver *rooms.Resolver
	pageSize int
	lazy     bool
	clock    clock.Clock
	logger   *slog.Logger

	// tasks tracks background sends, history requests, and profile
	// lookups.
	tasks sync.WaitGroup

	mu           sync.Mutex
	active       *activeRoom
	displayNames map[ref.UserID]string
	lookups      map[ref.UserID]bool
}

// New returns a Client for a logged-in session.
func New(config Config) *Client {
	client := &Client{
		session:      config.Session,
		sink:         config.Sink,
		registry:     rooms.NewRegistry(),
		pageSize:     config.PageSize,
		lazy:         config.LazyLoadMembers,
		clock:        config.Clock,
		logger:       config.Logger,
		displayNames: make(map[ref.UserID]string),
		lookups:      make(map[ref.UserID]bool),
	}
	if client.pageSize <= 0 {
		client.pageSize = DefaultPageSize
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.logger == nil {
		client.logger = slog.Default()
	}
	client.resolver = rooms.NewResolver(config.Session, client.logger)
	return client
}

// UserID returns the logged-in user.
func (c *Client) UserID() ref.UserID {
	return c.session.UserID()
}

// Rooms returns the known rooms sorted for display.
func (c *Client) Rooms() []rooms.Summary {
	return c.registry.List()
}

// Room returns the summary of roomID.
func (c *Client) Room(roomID ref.RoomID) (rooms.Summary, bool) {
	return c.registry.Get(roomID)
}

// Handlers returns the sync handlers that feed this client.
func (c *Client) Handlers() syncloop.Handlers {
	return syncloop.Handlers{
		RoomMembership: c.handleMembership,
		RoomCreate:     c.handleCreate,
		RoomRename:     c.handleRename,
		RoomMessage:    c.handleMessage,
	}
}

// PopulateRooms enumerates the joined rooms at startup. Tombstoned rooms
// and rooms of untracked types are left out. Each room added is emitted
// as AddOrUpdateRoom.
func (c *Client) PopulateRooms(ctx context.Context) error {
	roomIDs, err := c.session.JoinedRooms(ctx)
	if err != nil {
		return fmt.Errorf("client: listing joined rooms: %w", err)
	}
	changed := rooms.Populate(ctx, c.registry, c.resolver, map[rooms.Kind][]ref.RoomID{rooms.Joined: roomIDs})
	for _, summary := range changed {
		c.emit(ctx, sink.AddOrUpdateRoom{Summary: summary})
	}
	c.logger.Info("enumerated rooms", "joined", len(roomIDs), "listed", len(changed))
	return nil
}

// ScanInvites lists the pending invites with one non-blocking initial
// /sync whose filter drops all joined-room data. A sync loop resuming
// from a saved cursor only reports invites received since then, so
// without this scan invites from before a restart would never show.
func (c *Client) ScanInvites(ctx context.Context) error {
	response, err := c.session.Sync(ctx, messaging.SyncOptions{
		SetTimeout: true,
		Filter:     messaging.BuildSyncFilter(messaging.SyncFilter{InvitesOnly: true}),
	})
	if err != nil {
		return fmt.Errorf("client: listing invites: %w", err)
	}
	roomIDs := slices.SortedFunc(maps.Keys(response.Rooms.Invite), ref.RoomID.Compare)
	for _, roomID := range roomIDs {
		room := syncloop.Context{RoomID: roomID, Membership: rooms.Invited}
		c.handleMembership(ctx, room, response.Rooms.Invite[roomID].InviteState.Events)
	}
	c.logger.Info("listed pending invites", "invites", len(roomIDs))
	return nil
}

// Wait blocks until background requests have finished or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.tasks.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the active room's history request.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		c.active.paginator.Close()
	}
}

// goTask runs fn in the background and tracks it for Wait.
func (c *Client) goTask(fn func()) {
	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()
		fn()
	}()
}

func (c *Client) emit(ctx context.Context, command sink.Command) {
	if c.sink != nil {
		sink.Emit(ctx, c.logger, c.sink, command)
	}
}
