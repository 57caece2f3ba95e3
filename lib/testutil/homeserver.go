// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// Homeserver is a fake Matrix homeserver backed by httptest. It is safe
// for concurrent use: tests configure it from the test goroutine while
// the code under test issues requests.
type Homeserver struct {
	// ServerName is the server part of every user ID the fake issues.
	ServerName string

	server *httptest.Server
	done   chan struct{}

	mu           sync.Mutex
	passwords    map[string]string
	tokens       map[string]string
	syncQueue    []any
	syncWake     chan struct{}
	syncFailures int
	syncRequests []SyncRequest
	roomStates   map[string][]map[string]any
	members      map[string][]Member
	displayNames map[string]string
	joinedRooms  []string
	pages        map[string]any
	messagesGate chan struct{}
	sendStatus   int

	messagesRequests chan MessagesRequest
	sent             chan SentEvent

	issued atomic.Uint64
}

// issue returns prefix-N with N increasing per fake server, so event
// IDs, access tokens, and device IDs never collide within a test.
func (h *Homeserver) issue(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, h.issued.Add(1))
}

// SyncRequest records the query of one /sync call.
type SyncRequest struct {
	Since  string
	Filter string
}

// MessagesRequest records the query of one /messages call.
type MessagesRequest struct {
	RoomID string
	From   string
	Limit  int
}

// SentEvent records one PUT /rooms/{roomId}/send/{eventType}/{txnId}.
type SentEvent struct {
	RoomID        string
	EventType     string
	TransactionID string
	EventID       string
	Content       map[string]any
}

// Member is a room member returned by /members.
type Member struct {
	UserID      string
	DisplayName string
	Membership  string
}

// RoomUpdate is one room's section in a queued /sync response. For
// invited rooms State is sent as invite_state.
type RoomUpdate struct {
	State     []map[string]any
	Timeline  []map[string]any
	PrevBatch string
	Heroes    []string
}

// Sections groups room updates by membership for QueueSync.
type Sections struct {
	Join   map[string]RoomUpdate
	Invite map[string]RoomUpdate
	Leave  map[string]RoomUpdate
}

// NewHomeserver starts a fake homeserver for server name "example.org".
// It is shut down when the test completes.
func NewHomeserver(t testing.TB) *Homeserver {
	t.Helper()
	homeserver := &Homeserver{
		ServerName:       "example.org",
		done:             make(chan struct{}),
		passwords:        make(map[string]string),
		tokens:           make(map[string]string),
		syncWake:         make(chan struct{}),
		roomStates:       make(map[string][]map[string]any),
		members:          make(map[string][]Member),
		displayNames:     make(map[string]string),
		pages:            make(map[string]any),
		messagesRequests: make(chan MessagesRequest, 64),
		sent:             make(chan SentEvent, 64),
	}
	homeserver.server = httptest.NewServer(homeserver.handler())
	// Cleanups run last-in first-out: release blocked long polls before
	// Close waits for outstanding requests.
	t.Cleanup(homeserver.server.Close)
	t.Cleanup(func() { close(homeserver.done) })
	return homeserver
}

// URL returns the base URL of the fake.
func (h *Homeserver) URL() string {
	return h.server.URL
}

// SetPassword registers an account that /login accepts.
func (h *Homeserver) SetPassword(localpart, password string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.passwords[localpart] = password
}

// AddToken makes token valid for userID, as if issued by an earlier
// login.
func (h *Homeserver) AddToken(token, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tokens[token] = userID
}

// RevokeTokens invalidates every issued token.
func (h *Homeserver) RevokeTokens() {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.tokens)
}

// QueueSync appends a /sync response. Long polls with an empty queue
// block until something is queued or the request is cancelled.
func (h *Homeserver) QueueSync(nextBatch string, sections Sections) {
	rooms := map[string]any{}
	if len(sections.Join) > 0 {
		rooms["join"] = joinedSection(sections.Join)
	}
	if len(sections.Leave) > 0 {
		rooms["leave"] = joinedSection(sections.Leave)
	}
	if len(sections.Invite) > 0 {
		invite := map[string]any{}
		for roomID, update := range sections.Invite {
			invite[roomID] = map[string]any{
				"invite_state": map[string]any{"events": orEmpty(update.State)},
			}
		}
		rooms["invite"] = invite
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncQueue = append(h.syncQueue, map[string]any{"next_batch": nextBatch, "rooms": rooms})
	close(h.syncWake)
	h.syncWake = make(chan struct{})
}

// FailSyncs makes the next n /sync calls fail with a 500 M_UNKNOWN.
func (h *Homeserver) FailSyncs(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncFailures = n
}

// SyncRequests returns every /sync call received so far.
func (h *Homeserver) SyncRequests() []SyncRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]SyncRequest(nil), h.syncRequests...)
}

// SetRoomState sets the full state returned by /rooms/{roomId}/state.
func (h *Homeserver) SetRoomState(roomID string, events ...map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.roomStates[roomID] = events
}

// SetMembers sets the members returned by /rooms/{roomId}/members.
func (h *Homeserver) SetMembers(roomID string, members ...Member) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.members[roomID] = members
}

// SetDisplayName sets a profile display name.
func (h *Homeserver) SetDisplayName(userID, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.displayNames[userID] = name
}

// SetJoinedRooms sets the /joined_rooms response.
func (h *Homeserver) SetJoinedRooms(roomIDs ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinedRooms = roomIDs
}

// SetMessagesPage sets the /messages response for a room and from token.
// chunk is newest first, as the server sends it for dir=b. An empty end
// marks the start of the room.
func (h *Homeserver) SetMessagesPage(roomID, from, end string, chunk ...map[string]any) {
	page := map[string]any{"start": from, "chunk": orEmpty(chunk)}
	if end != "" {
		page["end"] = end
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pages[roomID+"\x00"+from] = page
}

// HoldMessages makes /messages calls block after they are recorded until
// the returned release function is called.
func (h *Homeserver) HoldMessages() (release func()) {
	gate := make(chan struct{})
	h.mu.Lock()
	h.messagesGate = gate
	h.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// MessagesRequests delivers each /messages call as it arrives.
func (h *Homeserver) MessagesRequests() <-chan MessagesRequest {
	return h.messagesRequests
}

// FailSends makes every subsequent send fail with the given HTTP status.
// Zero restores success.
func (h *Homeserver) FailSends(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendStatus = status
}

// Sent delivers each accepted or rejected send as it arrives.
func (h *Homeserver) Sent() <-chan SentEvent {
	return h.sent
}

// MessageEvent builds an m.room.message timeline event. A non-empty
// transactionID is placed in unsigned.transaction_id, as the server does
// for the sending device's own echoes.
func MessageEvent(eventID, sender, body, transactionID string) map[string]any {
	event := map[string]any{
		"event_id":         eventID,
		"type":             "m.room.message",
		"sender":           sender,
		"origin_server_ts": 1700000000000,
		"content":          map[string]any{"msgtype": "m.text", "body": body},
	}
	if transactionID != "" {
		event["unsigned"] = map[string]any{"transaction_id": transactionID}
	}
	return event
}

var stateEvents atomic.Uint64

// StateEvent builds a state event with a fresh event ID.
func StateEvent(eventType, stateKey, sender string, content map[string]any) map[string]any {
	return map[string]any{
		"event_id":  fmt.Sprintf("$state-%d", stateEvents.Add(1)),
		"type":      eventType,
		"state_key": stateKey,
		"sender":    sender,
		"content":   content,
	}
}

func joinedSection(updates map[string]RoomUpdate) map[string]any {
	section := map[string]any{}
	for roomID, update := range updates {
		room := map[string]any{
			"state": map[string]any{"events": orEmpty(update.State)},
			"timeline": map[string]any{
				"events":     orEmpty(update.Timeline),
				"prev_batch": update.PrevBatch,
			},
		}
		if len(update.Heroes) > 0 {
			room["summary"] = map[string]any{"m.heroes": update.Heroes}
		}
		section[roomID] = room
	}
	return section
}

func orEmpty(events []map[string]any) []map[string]any {
	if events == nil {
		return []map[string]any{}
	}
	return events
}

func (h *Homeserver) handler() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		// Room IDs arrive percent-encoded; split on the raw path and
		// decode each segment.
		rawPath := request.URL.RawPath
		if rawPath == "" {
			rawPath = request.URL.Path
		}
		const prefix = "/_matrix/client/v3/"
		if !strings.HasPrefix(rawPath, prefix) {
			http.NotFound(writer, request)
			return
		}
		segments := strings.Split(strings.TrimPrefix(rawPath, prefix), "/")
		for index, segment := range segments {
			segments[index], _ = url.PathUnescape(segment)
		}

		if segments[0] == "login" && request.Method == http.MethodPost {
			h.handleLogin(writer, request)
			return
		}

		userID, ok := h.authenticate(request)
		if !ok {
			writeMatrixError(writer, http.StatusUnauthorized, "M_UNKNOWN_TOKEN", "unknown token")
			return
		}

		switch {
		case len(segments) == 2 && segments[0] == "account" && segments[1] == "whoami":
			writeJSON(writer, map[string]string{"user_id": userID})
		case len(segments) == 1 && segments[0] == "sync":
			h.handleSync(writer, request)
		case len(segments) == 1 && segments[0] == "joined_rooms":
			h.mu.Lock()
			rooms := append([]string{}, h.joinedRooms...)
			h.mu.Unlock()
			writeJSON(writer, map[string]any{"joined_rooms": rooms})
		case len(segments) == 3 && segments[0] == "profile" && segments[2] == "displayname":
			h.handleDisplayName(writer, segments[1])
		case len(segments) >= 3 && segments[0] == "rooms":
			h.handleRoom(writer, request, segments[1], segments[2:])
		default:
			writeMatrixError(writer, http.StatusNotFound, "M_UNRECOGNIZED", "unrecognized request")
		}
	})
}

func (h *Homeserver) authenticate(request *http.Request) (string, bool) {
	token, ok := strings.CutPrefix(request.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	userID, ok := h.tokens[token]
	return userID, ok
}

func (h *Homeserver) handleLogin(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Identifier struct {
			User string `json:"user"`
		} `json:"identifier"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		writeMatrixError(writer, http.StatusBadRequest, "M_NOT_JSON", err.Error())
		return
	}

	h.mu.Lock()
	password, known := h.passwords[body.Identifier.User]
	if !known || password != body.Password {
		h.mu.Unlock()
		writeMatrixError(writer, http.StatusForbidden, "M_FORBIDDEN", "Invalid username or password")
		return
	}
	userID := "@" + body.Identifier.User + ":" + h.ServerName
	token := h.issue("syt_" + body.Identifier.User)
	h.tokens[token] = userID
	h.mu.Unlock()

	writeJSON(writer, map[string]string{
		"user_id":      userID,
		"access_token": token,
		"device_id":    h.issue("DEVICE"),
	})
}

func (h *Homeserver) handleSync(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()
	h.mu.Lock()
	h.syncRequests = append(h.syncRequests, SyncRequest{Since: query.Get("since"), Filter: query.Get("filter")})
	if h.syncFailures > 0 {
		h.syncFailures--
		h.mu.Unlock()
		writeMatrixError(writer, http.StatusInternalServerError, "M_UNKNOWN", "sync failed")
		return
	}
	h.mu.Unlock()

	for {
		h.mu.Lock()
		if len(h.syncQueue) > 0 {
			response := h.syncQueue[0]
			h.syncQueue = h.syncQueue[1:]
			h.mu.Unlock()
			writeJSON(writer, response)
			return
		}
		wake := h.syncWake
		h.mu.Unlock()

		select {
		case <-wake:
		case <-request.Context().Done():
			return
		case <-h.done:
			return
		}
	}
}

func (h *Homeserver) handleDisplayName(writer http.ResponseWriter, userID string) {
	h.mu.Lock()
	name, ok := h.displayNames[userID]
	h.mu.Unlock()
	if !ok {
		writeMatrixError(writer, http.StatusNotFound, "M_NOT_FOUND", "profile not found")
		return
	}
	writeJSON(writer, map[string]string{"displayname": name})
}

func (h *Homeserver) handleRoom(writer http.ResponseWriter, request *http.Request, roomID string, rest []string) {
	switch {
	case rest[0] == "state" && len(rest) == 1:
		h.mu.Lock()
		events := orEmpty(h.roomStates[roomID])
		h.mu.Unlock()
		writeJSON(writer, events)

	case rest[0] == "members":
		h.mu.Lock()
		members := h.members[roomID]
		h.mu.Unlock()
		chunk := []map[string]any{}
		for _, member := range members {
			chunk = append(chunk, map[string]any{
				"type":      "m.room.member",
				"state_key": member.UserID,
				"sender":    member.UserID,
				"content": map[string]any{
					"membership":  member.Membership,
					"displayname": member.DisplayName,
				},
			})
		}
		writeJSON(writer, map[string]any{"chunk": chunk})

	case rest[0] == "messages":
		h.handleMessages(writer, request, roomID)

	case rest[0] == "send" && len(rest) == 3 && request.Method == http.MethodPut:
		h.handleSend(writer, request, roomID, rest[1], rest[2])

	default:
		writeMatrixError(writer, http.StatusNotFound, "M_UNRECOGNIZED", "unrecognized room request")
	}
}

func (h *Homeserver) handleMessages(writer http.ResponseWriter, request *http.Request, roomID string) {
	query := request.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	from := query.Get("from")

	h.mu.Lock()
	gate := h.messagesGate
	page, ok := h.pages[roomID+"\x00"+from]
	h.mu.Unlock()

	select {
	case h.messagesRequests <- MessagesRequest{RoomID: roomID, From: from, Limit: limit}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-request.Context().Done():
			return
		case <-h.done:
			return
		}
	}

	if !ok {
		page = map[string]any{"start": from, "chunk": []any{}}
	}
	writeJSON(writer, page)
}

func (h *Homeserver) handleSend(writer http.ResponseWriter, request *http.Request, roomID, eventType, transactionID string) {
	var content map[string]any
	if err := json.NewDecoder(request.Body).Decode(&content); err != nil {
		writeMatrixError(writer, http.StatusBadRequest, "M_NOT_JSON", err.Error())
		return
	}

	h.mu.Lock()
	status := h.sendStatus
	h.mu.Unlock()

	event := SentEvent{
		RoomID:        roomID,
		EventType:     eventType,
		TransactionID: transactionID,
		Content:       content,
	}
	if status == 0 {
		event.EventID = h.issue("$sent")
	}
	select {
	case h.sent <- event:
	default:
	}

	if status != 0 {
		writeMatrixError(writer, status, "M_UNKNOWN", "send rejected")
		return
	}
	writeJSON(writer, map[string]string{"event_id": event.EventID})
}

func writeMatrixError(writer http.ResponseWriter, status int, code, message string) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(map[string]string{"errcode": code, "error": message})
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}
