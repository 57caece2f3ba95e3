// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/secret"
)

const clientAPI = "/_matrix/client/v3"

// DirectSession is a logged-in Matrix session: a Client plus the access
// token, held in a secret.Buffer so it stays out of swap and core
// dumps. Call Close to release the token.
type DirectSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID
	deviceID    string
}

func (s *DirectSession) UserID() ref.UserID { return s.userID }

func (s *DirectSession) DeviceID() string { return s.deviceID }

func (s *DirectSession) HomeserverURL() string { return s.client.HomeserverURL() }

// AccessToken copies the token onto the heap. The session file writer is
// the only caller that should need it.
func (s *DirectSession) AccessToken() string { return s.accessToken.String() }

// CloseIdleConnections drops pooled connections so the request after a
// transport failure dials fresh.
func (s *DirectSession) CloseIdleConnections() { s.client.CloseIdleConnections() }

// Close zeroes and unmaps the access token. It is idempotent.
func (s *DirectSession) Close() error {
	if s.accessToken == nil {
		return nil
	}
	return s.accessToken.Close()
}

// call performs one authenticated request and decodes the JSON reply
// into T. what names the operation in wrapped errors.
func call[T any](ctx context.Context, s *DirectSession, what, method, path string, body any, query url.Values) (T, error) {
	var response T
	raw, err := s.client.doRequest(ctx, method, clientAPI+path, s.accessToken, body, query)
	if err != nil {
		return response, fmt.Errorf("messaging: %s: %w", what, err)
	}
	if err := json.Unmarshal(raw, &response); err != nil {
		return response, fmt.Errorf("messaging: %s: decoding response: %w", what, err)
	}
	return response, nil
}

func roomPath(roomID ref.RoomID, parts ...string) string {
	path := "/rooms/" + url.PathEscape(roomID.String())
	for _, part := range parts {
		path += "/" + url.PathEscape(part)
	}
	return path
}

// WhoAmI returns the user the access token belongs to. Session restore
// uses it to find out whether a stored token is still accepted.
func (s *DirectSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	response, err := call[WhoAmIResponse](ctx, s, "whoami", http.MethodGet, "/account/whoami", nil, nil)
	return response.UserID, err
}

// SendMessage sends an m.room.message under the caller's transaction ID,
// which comes back in the /sync echo's unsigned.transaction_id.
func (s *DirectSession) SendMessage(ctx context.Context, roomID ref.RoomID, transactionID ref.TransactionID, content MessageContent) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, "m.room.message", transactionID, content)
}

// SendEvent uses PUT /send/{type}/{txnId}, so retrying with the same
// transaction ID never duplicates the event. A zero transaction ID is
// replaced with a fresh one.
func (s *DirectSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, transactionID ref.TransactionID, content any) (ref.EventID, error) {
	if transactionID.IsZero() {
		transactionID = ref.NewTransactionID()
	}
	path := roomPath(roomID, "send", eventType.String(), transactionID.String())
	response, err := call[SendEventResponse](ctx, s, "send to "+roomID.String(), http.MethodPut, path, content, nil)
	return response.EventID, err
}

// GetRoomState returns every current state event of a room.
func (s *DirectSession) GetRoomState(ctx context.Context, roomID ref.RoomID) ([]Event, error) {
	return call[[]Event](ctx, s, "room state of "+roomID.String(), http.MethodGet, roomPath(roomID, "state"), nil, nil)
}

// RoomMessages fetches one page of a room's timeline. Direction defaults
// to backward.
func (s *DirectSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b"
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	response, err := call[RoomMessagesResponse](ctx, s, "messages of "+roomID.String(), http.MethodGet, roomPath(roomID, "messages"), nil, query)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

// Sync long-polls /sync. Leave Since empty for the initial sync.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}
	response, err := call[SyncResponse](ctx, s, "sync", http.MethodGet, "/sync", nil, query)
	if err != nil {
		return nil, err
	}
	return &response, nil
}

func (s *DirectSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	response, err := call[JoinedRoomsResponse](ctx, s, "joined rooms", http.MethodGet, "/joined_rooms", nil, nil)
	return response.JoinedRooms, err
}

// GetRoomMembers flattens the m.room.member events of a room.
func (s *DirectSession) GetRoomMembers(ctx context.Context, roomID ref.RoomID) ([]RoomMember, error) {
	response, err := call[RoomMembersResponse](ctx, s, "members of "+roomID.String(), http.MethodGet, roomPath(roomID, "members"), nil, nil)
	if err != nil {
		return nil, err
	}
	members := make([]RoomMember, len(response.Chunk))
	for index, event := range response.Chunk {
		members[index] = RoomMember{
			UserID:      event.StateKey,
			DisplayName: event.Content.DisplayName,
			Membership:  event.Content.Membership,
			AvatarURL:   event.Content.AvatarURL,
		}
	}
	return members, nil
}

// GetDisplayName returns "" without error when the profile has no
// display name.
func (s *DirectSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	path := "/profile/" + url.PathEscape(userID.String()) + "/displayname"
	response, err := call[DisplayNameResponse](ctx, s, "display name of "+userID.String(), http.MethodGet, path, nil, nil)
	return response.DisplayName, err
}
