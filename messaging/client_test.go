// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/roomline/lib/ref"
	"github.com/bureau-foundation/roomline/lib/secret"
)

// testBuffer creates a secret.Buffer from a string for testing. The buffer
// is automatically closed when the test completes.
func testBuffer(t *testing.T, value string) *secret.Buffer {
	t.Helper()
	buffer, err := secret.NewFromString(value)
	if err != nil {
		t.Fatalf("creating test buffer: %v", err)
	}
	t.Cleanup(func() { buffer.Close() })
	return buffer
}

func TestNewClient(t *testing.T) {
	t.Run("valid URL", func(t *testing.T) {
		client, err := NewClient(ClientConfig{HomeserverURL: "https://matrix.example.org/"})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}
		if client.HomeserverURL() != "https://matrix.example.org" {
			t.Errorf("HomeserverURL() = %q, want trailing slash stripped", client.HomeserverURL())
		}
	})

	t.Run("empty URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{}); err == nil {
			t.Fatal("expected error for empty URL")
		}
	})

	t.Run("invalid URL", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "://invalid"}); err == nil {
			t.Fatal("expected error for invalid URL")
		}
	})

	t.Run("non-http scheme", func(t *testing.T) {
		if _, err := NewClient(ClientConfig{HomeserverURL: "ftp://example.org"}); err == nil {
			t.Fatal("expected error for ftp scheme")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path != "/_matrix/client/v3/login" {
				t.Errorf("unexpected path: %s", request.URL.Path)
				writer.WriteHeader(http.StatusNotFound)
				return
			}
			if request.Header.Get("Authorization") != "" {
				t.Error("login must not send an Authorization header")
			}

			var body LoginRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode request body: %v", err)
			}
			if body.Type != "m.login.password" {
				t.Errorf("unexpected login type: %s", body.Type)
			}
			if body.Identifier.Type != "m.id.user" || body.Identifier.User != "bob" {
				t.Errorf("unexpected identifier: %+v", body.Identifier)
			}
			if body.Password != "secret" {
				t.Errorf("unexpected password: %s", body.Password)
			}
			if body.InitialDeviceDisplayName != DeviceDisplayName {
				t.Errorf("unexpected device display name: %s", body.InitialDeviceDisplayName)
			}

			writeJSON(writer, map[string]string{
				"user_id":      "@bob:example.org",
				"access_token": "syt_bob_token",
				"device_id":    "DEVICE2",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		session, auth, err := client.Login(context.Background(), ref.MustParseUserID("@bob:example.org"), testBuffer(t, "secret"))
		if err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		defer session.Close()

		if session.UserID().String() != "@bob:example.org" {
			t.Errorf("unexpected user ID: %s", session.UserID())
		}
		if session.AccessToken() != "syt_bob_token" {
			t.Errorf("unexpected access token: %s", session.AccessToken())
		}
		if session.DeviceID() != "DEVICE2" || auth.DeviceID != "DEVICE2" {
			t.Errorf("unexpected device ID: %s / %s", session.DeviceID(), auth.DeviceID)
		}
	})

	t.Run("invalid credentials", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusForbidden)
			json.NewEncoder(writer).Encode(MatrixError{
				Code:    ErrCodeForbidden,
				Message: "Invalid password",
			})
		}))
		defer server.Close()

		client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
		if err != nil {
			t.Fatalf("NewClient failed: %v", err)
		}

		_, _, err = client.Login(context.Background(), ref.MustParseUserID("@bob:example.org"), testBuffer(t, "wrong"))
		if err == nil {
			t.Fatal("expected error for invalid credentials")
		}
		if !IsMatrixError(err, ErrCodeForbidden) {
			t.Errorf("expected M_FORBIDDEN error, got: %v", err)
		}
	})

	t.Run("validation errors", func(t *testing.T) {
		client, _ := NewClient(ClientConfig{HomeserverURL: "http://localhost:1"})

		if _, _, err := client.Login(context.Background(), ref.UserID{}, testBuffer(t, "password")); err == nil {
			t.Fatal("expected error for zero user ID")
		}
		if _, _, err := client.Login(context.Background(), ref.MustParseUserID("@alice:example.org"), nil); err == nil {
			t.Fatal("expected error for nil password")
		}
	})
}

func TestSessionFromToken(t *testing.T) {
	client, err := NewClient(ClientConfig{HomeserverURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	session, err := client.SessionFromToken(ref.MustParseUserID("@alice:example.org"), "DEVICE1", "syt_token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	defer session.Close()

	if session.AccessToken() != "syt_token" {
		t.Errorf("unexpected access token: %s", session.AccessToken())
	}
	if session.DeviceID() != "DEVICE1" {
		t.Errorf("unexpected device ID: %s", session.DeviceID())
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestUserAgentHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		got = request.Header.Get("User-Agent")
		json.NewEncoder(writer).Encode(map[string]any{"user_id": "@alice:example.org"})
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL, UserAgent: "roomline/test"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@alice:example.org"), "DEVICE1", "syt_token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	defer session.Close()

	if _, err := session.WhoAmI(context.Background()); err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if got != "roomline/test" {
		t.Errorf("User-Agent = %q, want roomline/test", got)
	}
}

func TestMatrixError(t *testing.T) {
	t.Run("error message format", func(t *testing.T) {
		err := &MatrixError{Code: ErrCodeForbidden, Message: "Access denied", StatusCode: 403}
		expected := "matrix: M_FORBIDDEN (403): Access denied"
		if err.Error() != expected {
			t.Errorf("unexpected error message: %s", err.Error())
		}
	})

	t.Run("auth errors", func(t *testing.T) {
		if !IsAuthError(&MatrixError{Code: ErrCodeUnknownToken}) {
			t.Error("M_UNKNOWN_TOKEN should be an auth error")
		}
		if IsAuthError(&MatrixError{Code: ErrCodeLimitExceeded}) {
			t.Error("M_LIMIT_EXCEEDED should not be an auth error")
		}
		if IsMatrixError(context.Canceled, ErrCodeNotFound) {
			t.Error("IsMatrixError should return false for non-matrix errors")
		}
	})

	t.Run("non-JSON error body", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.WriteHeader(http.StatusBadGateway)
			writer.Write([]byte("<html>bad gateway</html>"))
		}))
		_, err := session.WhoAmI(context.Background())
		if err == nil || !strings.Contains(err.Error(), "unexpected 502") {
			t.Fatalf("WhoAmI error = %v, want unexpected 502", err)
		}
	})
}
