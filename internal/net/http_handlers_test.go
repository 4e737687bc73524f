package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"playroom/server"
	"playroom/server/internal/leaderboard"
	"playroom/server/internal/model"
)

func postJoin(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/join", bytes.NewBufferString(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp
}

func TestHTTPJoinReturnsSnapshot(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	resp := postJoin(t, handler, `{"room":"lobby","mode":"hub","nickname":"ada"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d body=%s", resp.Code, resp.Body.String())
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode join payload: %v", err)
	}
	if id, ok := payload["userId"].(string); !ok || id == "" {
		t.Fatalf("expected user id in join payload, got %v", payload["userId"])
	}
	snapshot, ok := payload["snapshot"].(map[string]any)
	if !ok {
		t.Fatalf("expected snapshot object, got %T", payload["snapshot"])
	}
	users, ok := snapshot["users"].([]any)
	if !ok || len(users) != 1 {
		t.Fatalf("expected one user in snapshot, got %v", snapshot["users"])
	}
}

func TestHTTPJoinRejectsWrongMethod(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/join", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
}

func TestHTTPJoinRejectsInvalidPayload(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	resp := postJoin(t, handler, "{")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestHTTPJoinReportsCapacityConflict(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	for i := 0; i < 4; i++ {
		resp := postJoin(t, handler, `{"room":"game","mode":"platformer","nickname":"p"}`)
		if resp.Code != http.StatusOK {
			t.Fatalf("join %d failed with %d", i, resp.Code)
		}
	}

	resp := postJoin(t, handler, `{"room":"game","mode":"platformer","nickname":"late"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409 for full room, got %d", resp.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode reject payload: %v", err)
	}
	if payload["reason"] != model.RejectCapacity {
		t.Fatalf("expected capacity reason, got %v", payload["reason"])
	}
}

func TestHTTPHealth(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || resp.Body.String() != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.Code, resp.Body.String())
	}
}

func TestHTTPDiagnosticsIncludesTelemetry(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	postJoin(t, handler, `{"room":"lobby","mode":"hub","nickname":"ada"}`)

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}

	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics payload: %v", err)
	}
	users, ok := payload["users"].([]any)
	if !ok || len(users) != 1 {
		t.Fatalf("expected one diagnostics user, got %v", payload["users"])
	}
	telemetry, ok := payload["telemetry"].(map[string]any)
	if !ok {
		t.Fatalf("expected telemetry object, got %T", payload["telemetry"])
	}
	applied, ok := telemetry["eventsApplied"].(float64)
	if !ok || applied < 1 {
		t.Fatalf("expected applied events in telemetry, got %v", telemetry["eventsApplied"])
	}
}

func TestHTTPLeaderboardRequiresMode(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without mode, got %d", resp.Code)
	}
}

func TestHTTPLeaderboardReturnsEntries(t *testing.T) {
	scores := leaderboard.NewMemory()
	scores.RecordScore(context.Background(), "platformer", "u1", "ada", 150)

	cfg := server.DefaultHubConfig()
	cfg.Leaderboard = scores
	hub := server.NewHubWithConfig(cfg, nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/leaderboard?mode=platformer&limit=5", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 OK, got %d", resp.Code)
	}
	var payload struct {
		Mode    string              `json:"mode"`
		Entries []leaderboard.Entry `json:"entries"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode leaderboard payload: %v", err)
	}
	if len(payload.Entries) != 1 || payload.Entries[0].Score != 150 {
		t.Fatalf("unexpected leaderboard entries %+v", payload.Entries)
	}
}

func TestHTTPAuthRejectsMissingToken(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{AuthSecret: "secret"})

	resp := postJoin(t, handler, `{"room":"lobby","mode":"hub","nickname":"ada"}`)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 without token, got %d", resp.Code)
	}
}

func TestHTTPAuthAcceptsValidToken(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{AuthSecret: "secret"})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "ada"}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/join", bytes.NewBufferString(`{"room":"lobby","mode":"hub","nickname":"ada"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200 with valid token, got %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestHTTPAuthRejectsBadSignature(t *testing.T) {
	hub := server.NewHub(nil)
	handler := NewHTTPHandler(hub, HTTPHandlerConfig{AuthSecret: "secret"})

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "ada"}).SignedString([]byte("wrong"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/join", bytes.NewBufferString(`{"room":"lobby","mode":"hub","nickname":"ada"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 with bad signature, got %d", resp.Code)
	}
}
