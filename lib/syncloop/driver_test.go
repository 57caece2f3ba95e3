// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package syncloop

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/bureau-foundation/roomline/lib/clock"
	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/rooms"
	"github.com/bureau-foundation/roomline/lib/sessionstore"
	"github.com/bureau-foundation/roomline/lib/testutil"
	"github.com/bureau-foundation/roomline/messaging"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testUser = "@self:example.org"

func newSession(t *testing.T, homeserver *testutil.Homeserver) *messaging.DirectSession {
	t.Helper()
	homeserver.AddToken("syt_self", testUser)
	client, err := messaging.NewClient(messaging.ClientConfig{HomeserverURL: homeserver.URL()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID(testUser), "DEV", "syt_self")
	if err != nil {
		t.Fatalf("SessionFromToken: %v", err)
	}
	t.Cleanup(func() {
		session.CloseIdleConnections()
		session.Close()
	})
	return session
}

// runDriver starts driver and returns a function that stops it and
// waits for Run to return.
func runDriver(t *testing.T, driver *Driver) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()
	return func() {
		cancel()
		err := testutil.RequireReceive(t, done, 5*time.Second, "driver shutdown")
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	}
}

// call records one handler invocation.
type call struct {
	handler string
	room    Context
	event   string
}

type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) handler(name string) Handler {
	return func(_ context.Context, room Context, event messaging.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, call{handler: name, room: room, event: event.EventID.String()})
	}
}

func (r *recorder) membership(_ context.Context, room Context, _ []messaging.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{handler: "membership", room: room})
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		RoomMembership: r.membership,
		RoomCreate:  r.handler("create"),
		RoomRename:  r.handler("rename"),
		RoomMessage: r.handler("message"),
	}
}

func (r *recorder) snapshot() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func withID(event map[string]any, eventID string) map[string]any {
	event["event_id"] = eventID
	return event
}

// cursorLog records SaveCursor calls.
type cursorLog struct {
	mu      sync.Mutex
	cursors []string
}

func (c *cursorLog) SaveCursor(cursor string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursors = append(c.cursors, cursor)
	return nil
}

func (c *cursorLog) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cursors) == 0 {
		return ""
	}
	return c.cursors[len(c.cursors)-1]
}

func TestDispatchClassifiesEvents(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)

	homeserver.QueueSync("s1", testutil.Sections{
		Join: map[string]testutil.RoomUpdate{
			"!b:example.org": {
				State: []map[string]any{
					withID(testutil.StateEvent("m.room.create", "", testUser, map[string]any{}), "$create-b"),
					withID(testutil.StateEvent("m.room.member", testUser, testUser, map[string]any{"membership": "join"}), "$member-b"),
				},
				Timeline: []map[string]any{
					withID(testutil.StateEvent("m.room.name", "", testUser, map[string]any{"name": "Bee"}), "$name-b"),
					testutil.MessageEvent("$msg-b", testUser, "hello", ""),
					withID(testutil.StateEvent("m.room.topic", "", testUser, map[string]any{"topic": "x"}), "$topic-b"),
				},
				PrevBatch: "p-b",
			},
			"!a:example.org": {
				Timeline: []map[string]any{
					withID(testutil.StateEvent("m.room.avatar", "", testUser, map[string]any{"url": "mxc://example.org/a"}), "$avatar-a"),
				},
				PrevBatch: "p-a",
			},
		},
		Invite: map[string]testutil.RoomUpdate{
			"!c:example.org": {
				State: []map[string]any{
					withID(testutil.StateEvent("m.room.create", "", "@alice:example.org", map[string]any{}), "$create-c"),
				},
			},
		},
		Leave: map[string]testutil.RoomUpdate{
			"!d:example.org": {
				Timeline: []map[string]any{testutil.MessageEvent("$msg-d", "@alice:example.org", "bye", "")},
			},
		},
	})

	var events recorder
	batches := make(chan string, 4)
	driver := New(Config{
		Session:  session,
		Handlers: events.handlers(),
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) {
			batches <- response.NextBatch
		},
	})
	stop := runDriver(t, driver)
	if batch := testutil.RequireReceive(t, batches, 5*time.Second, "first batch"); batch != "s1" {
		t.Fatalf("batch = %q, want s1", batch)
	}
	stop()

	want := []call{
		{"membership", Context{ref.MustParseRoomID("!a:example.org"), rooms.Joined, "p-a"}, ""},
		{"rename", Context{ref.MustParseRoomID("!a:example.org"), rooms.Joined, "p-a"}, "$avatar-a"},
		{"membership", Context{ref.MustParseRoomID("!b:example.org"), rooms.Joined, "p-b"}, ""},
		{"create", Context{ref.MustParseRoomID("!b:example.org"), rooms.Joined, "p-b"}, "$create-b"},
		{"rename", Context{ref.MustParseRoomID("!b:example.org"), rooms.Joined, "p-b"}, "$name-b"},
		{"message", Context{ref.MustParseRoomID("!b:example.org"), rooms.Joined, "p-b"}, "$msg-b"},
		{"membership", Context{ref.MustParseRoomID("!c:example.org"), rooms.Invited, ""}, ""},
		{"create", Context{ref.MustParseRoomID("!c:example.org"), rooms.Invited, ""}, "$create-c"},
		{"membership", Context{ref.MustParseRoomID("!d:example.org"), rooms.Left, ""}, ""},
		{"message", Context{ref.MustParseRoomID("!d:example.org"), rooms.Left, ""}, "$msg-d"},
	}
	got := events.snapshot()
	if len(got) != len(want) {
		t.Fatalf("dispatched %d events, want %d: %+v", len(got), len(want), got)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Errorf("call %d = %+v, want %+v", index, got[index], want[index])
		}
	}
	if driver.Cursor() != "s1" {
		t.Errorf("Cursor() = %q, want s1", driver.Cursor())
	}
}

func TestLeaveWithoutMessagesReachesMembershipHandler(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)

	// Leaving from another device typically yields only the leave
	// membership event.
	homeserver.QueueSync("s1", testutil.Sections{
		Leave: map[string]testutil.RoomUpdate{
			"!abc:example.org": {
				Timeline: []map[string]any{
					withID(testutil.StateEvent("m.room.member", testUser, testUser, map[string]any{"membership": "leave"}), "$leave"),
				},
				PrevBatch: "p-leave",
			},
		},
	})

	var events recorder
	batches := make(chan string, 4)
	driver := New(Config{
		Session:  session,
		Handlers: events.handlers(),
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) {
			batches <- response.NextBatch
		},
	})
	stop := runDriver(t, driver)
	testutil.RequireReceive(t, batches, 5*time.Second, "leave batch")
	stop()

	got := events.snapshot()
	want := call{"membership", Context{ref.MustParseRoomID("!abc:example.org"), rooms.Left, "p-leave"}, ""}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("calls = %+v, want [%+v]", got, want)
	}
}

func TestCursorPersistedBeforeDispatch(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)
	homeserver.QueueSync("s1", testutil.Sections{
		Join: map[string]testutil.RoomUpdate{
			"!a:example.org": {Timeline: []map[string]any{testutil.MessageEvent("$m1", testUser, "hi", "")}},
		},
	})
	homeserver.QueueSync("s2", testutil.Sections{})

	store := &cursorLog{}
	seenAtDispatch := make(chan string, 1)
	batches := make(chan string, 4)
	driver := New(Config{
		Session: session,
		Store:   store,
		Handlers: Handlers{RoomMessage: func(context.Context, Context, messaging.Event) {
			seenAtDispatch <- store.last()
		}},
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) {
			batches <- response.NextBatch
		},
	})
	stop := runDriver(t, driver)
	testutil.RequireReceive(t, batches, 5*time.Second, "first batch")
	testutil.RequireReceive(t, batches, 5*time.Second, "second batch")
	stop()

	if cursor := testutil.RequireReceive(t, seenAtDispatch, time.Second, "dispatch"); cursor != "s1" {
		t.Fatalf("cursor at dispatch = %q, want s1", cursor)
	}

	requests := homeserver.SyncRequests()
	if len(requests) < 3 {
		t.Fatalf("got %d sync requests, want at least 3", len(requests))
	}
	for index, want := range []string{"", "s1", "s2"} {
		if requests[index].Since != want {
			t.Errorf("request %d since = %q, want %q", index, requests[index].Since, want)
		}
	}
}

func TestFailedSyncBacksOff(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)
	homeserver.FailSyncs(2)

	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	batches := make(chan string, 1)
	driver := New(Config{
		Session:    session,
		Cursor:     "s0",
		MaxBackoff: 90 * time.Second,
		Clock:      fakeClock,
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) {
			batches <- response.NextBatch
		},
	})
	stop := runDriver(t, driver)
	defer stop()

	// First failure waits one second.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)

	// Second failure waits two.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(time.Second)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("second retry fired after one second")
	}
	homeserver.QueueSync("s1", testutil.Sections{})
	fakeClock.Advance(time.Second)

	if batch := testutil.RequireReceive(t, batches, 5*time.Second, "batch after retries"); batch != "s1" {
		t.Fatalf("batch = %q, want s1", batch)
	}
	for index, request := range homeserver.SyncRequests()[:3] {
		if request.Since != "s0" {
			t.Errorf("request %d since = %q, want the unchanged cursor s0", index, request.Since)
		}
	}
}

func TestBackoffIsCapped(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)
	homeserver.FailSyncs(4)

	fakeClock := clock.Fake(time.Unix(1_700_000_000, 0))
	batches := make(chan string, 1)
	driver := New(Config{
		Session:    session,
		MaxBackoff: 3 * time.Second,
		Clock:      fakeClock,
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) {
			batches <- response.NextBatch
		},
	})
	stop := runDriver(t, driver)
	defer stop()

	homeserver.QueueSync("s1", testutil.Sections{})
	// Delays: 1s, 2s, 3s (capped), 3s.
	for _, delay := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second} {
		fakeClock.WaitForTimers(1)
		fakeClock.Advance(delay)
	}
	testutil.RequireReceive(t, batches, 5*time.Second, "batch after capped retries")
}

func TestCursorSurvivesRestart(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)
	path := filepath.Join(t.TempDir(), "session.json")

	store := sessionstore.New(path, nil)
	if err := store.Save(sessionstore.Record{
		HomeserverURL: homeserver.URL(),
		UserID:        ref.MustParseUserID(testUser),
		DeviceID:      "DEV",
		AccessToken:   "syt_self",
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	homeserver.QueueSync("s1", testutil.Sections{})
	batches := make(chan string, 1)
	stop := runDriver(t, New(Config{
		Session: session,
		Store:   store,
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) { batches <- response.NextBatch },
	}))
	testutil.RequireReceive(t, batches, 5*time.Second, "first run batch")
	stop()

	restarted := sessionstore.New(path, nil)
	record, err := restarted.Load()
	if err != nil || record == nil {
		t.Fatalf("Load() = %v, %v", record, err)
	}
	if record.SyncCursor != "s1" {
		t.Fatalf("persisted cursor = %q, want s1", record.SyncCursor)
	}

	homeserver.QueueSync("s2", testutil.Sections{})
	stop = runDriver(t, New(Config{
		Session: session,
		Store:   restarted,
		Cursor:  record.SyncCursor,
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) { batches <- response.NextBatch },
	}))
	testutil.RequireReceive(t, batches, 5*time.Second, "second run batch")
	stop()

	requests := homeserver.SyncRequests()
	var resumed bool
	for _, request := range requests[1:] {
		if request.Since == "s1" {
			resumed = true
		}
	}
	if !resumed {
		t.Fatalf("restarted driver did not resume from s1: %+v", requests)
	}
}

func TestSyncSendsFilterAndTimeout(t *testing.T) {
	homeserver := testutil.NewHomeserver(t)
	session := newSession(t, homeserver)
	homeserver.QueueSync("s1", testutil.Sections{})

	filter := messaging.BuildSyncFilter(messaging.SyncFilter{LazyLoadMembers: true})
	batches := make(chan string, 1)
	stop := runDriver(t, New(Config{
		Session: session,
		Filter:  filter,
		OnBatch: func(_ context.Context, response *messaging.SyncResponse) { batches <- response.NextBatch },
	}))
	testutil.RequireReceive(t, batches, 5*time.Second, "batch")
	stop()

	if got := homeserver.SyncRequests()[0].Filter; got != filter {
		t.Fatalf("filter = %q, want %q", got, filter)
	}
}
