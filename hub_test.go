package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"playroom/server/internal/events"
	"playroom/server/internal/model"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(nil)
}

func joinUser(t *testing.T, h *Hub, room string, mode model.Mode, nickname string) string {
	t.Helper()
	resp, reason := h.Join(room, mode, nickname)
	if reason != "" {
		t.Fatalf("join %s rejected: %s", nickname, reason)
	}
	if resp.UserID == "" {
		t.Fatalf("join %s returned empty user id", nickname)
	}
	return resp.UserID
}

func textPayload(t *testing.T, text string) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(events.SendMessagePayload{Text: text})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func TestJoinReturnsSnapshotWithUser(t *testing.T) {
	h := newTestHub(t)
	resp, reason := h.Join("lobby", model.ModeHub, "ada")
	if reason != "" {
		t.Fatalf("join rejected: %s", reason)
	}
	if resp.Room != "lobby" || resp.Mode != model.ModeHub {
		t.Fatalf("unexpected join response %+v", resp)
	}
	if resp.Seq == 0 {
		t.Fatalf("expected join event to advance the sequence")
	}
	if len(resp.Snapshot.Users) != 1 || resp.Snapshot.Users[0].Nickname != "ada" {
		t.Fatalf("expected snapshot to contain the joined user, got %+v", resp.Snapshot.Users)
	}
	if len(resp.Snapshot.Activity) != 1 {
		t.Fatalf("expected a join activity entry, got %d", len(resp.Snapshot.Activity))
	}
}

func TestJoinModeMismatchRejected(t *testing.T) {
	h := newTestHub(t)
	joinUser(t, h, "room-a", model.ModeHub, "ada")
	if _, reason := h.Join("room-a", model.ModeChat, "lin"); reason != RejectModeMismatch {
		t.Fatalf("expected mode mismatch, got %q", reason)
	}
}

func TestJoinInvalidModeRejected(t *testing.T) {
	h := newTestHub(t)
	if _, reason := h.Join("lobby", model.Mode("quiz"), "ada"); reason != RejectInvalidMode {
		t.Fatalf("expected invalid mode reject, got %q", reason)
	}
}

func TestJoinEnforcesRoomCapacity(t *testing.T) {
	h := newTestHub(t)
	for i := 0; i < 4; i++ {
		joinUser(t, h, "game", model.ModePlatformer, "player")
	}
	if _, reason := h.Join("game", model.ModePlatformer, "late"); reason != model.RejectCapacity {
		t.Fatalf("expected capacity reject for fifth player, got %q", reason)
	}
}

func TestApplyEventIsIdempotentPerID(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	env := events.Envelope{
		ID:      "evt-fixed-1",
		Type:    events.TypeSendMessage,
		ActorID: userID,
		Payload: textPayload(t, "hello"),
	}
	outcome, seq := h.ApplyEvent(userID, env)
	if !outcome.Applied || seq == 0 {
		t.Fatalf("first apply failed: %+v seq=%d", outcome, seq)
	}

	outcome, _ = h.ApplyEvent(userID, env)
	if outcome.Applied || outcome.Reason != model.RejectDuplicate {
		t.Fatalf("expected duplicate no-op, got %+v", outcome)
	}

	room, _ := h.Room("lobby")
	snapshot, _ := room.Snapshot()
	if len(snapshot.Messages) != 1 {
		t.Fatalf("expected one stored message, got %d", len(snapshot.Messages))
	}
}

func TestApplyEventRejectsActorMismatch(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	env := events.Envelope{
		ID:      "evt-1",
		Type:    events.TypeSendMessage,
		ActorID: "someone-else",
		Payload: textPayload(t, "hi"),
	}
	outcome, _ := h.ApplyEvent(userID, env)
	if outcome.Applied || outcome.Reason != RejectActorMismatch {
		t.Fatalf("expected actor mismatch reject, got %+v", outcome)
	}
}

func TestApplyEventUnknownUser(t *testing.T) {
	h := newTestHub(t)
	outcome, _ := h.ApplyEvent("ghost", events.Envelope{ID: "evt-1", Type: events.TypeSendMessage})
	if outcome.Applied || outcome.Reason != RejectUnknownUser {
		t.Fatalf("expected unknown user reject, got %+v", outcome)
	}
}

func TestApplyEventFillsEnvelopeDefaults(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	outcome, seq := h.ApplyEvent(userID, events.Envelope{
		Type:    events.TypeSendMessage,
		Payload: textPayload(t, "no id supplied"),
	})
	if !outcome.Applied || seq == 0 {
		t.Fatalf("expected apply with server-assigned id, got %+v", outcome)
	}
}

func TestDisconnectAppliesLeave(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	if !h.Disconnect(userID, "closed") {
		t.Fatalf("disconnect reported unknown user")
	}

	room, _ := h.Room("lobby")
	snapshot, _ := room.Snapshot()
	for _, user := range snapshot.Users {
		if user.UserID == userID && user.IsOnline {
			t.Fatalf("expected user offline after disconnect")
		}
	}
	if outcome, _ := h.ApplyEvent(userID, events.Envelope{ID: "evt-x", Type: events.TypeSendMessage, Payload: textPayload(t, "hi")}); outcome.Applied {
		t.Fatalf("expected events from disconnected user to be rejected")
	}
}

func TestEvictStaleDisconnectsSilentUsers(t *testing.T) {
	base := time.Now()
	now := base
	h := NewHubWithConfig(HubConfig{Clock: func() time.Time { return now }}, nil)

	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	h.evictStale(base.Add(disconnectAfter / 2))
	if _, ok := h.users[userID]; !ok {
		t.Fatalf("user evicted before heartbeat deadline")
	}

	h.evictStale(base.Add(disconnectAfter + time.Second))
	if _, ok := h.users[userID]; ok {
		t.Fatalf("expected stale user to be evicted")
	}
	if h.TelemetrySnapshot().HeartbeatDisconnects != 1 {
		t.Fatalf("expected heartbeat disconnect counter to advance")
	}
}

func TestHeartbeatUpdatesRTT(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	received := time.Now()
	rtt, ok := h.UpdateHeartbeat(userID, received, received.Add(-40*time.Millisecond).UnixMilli())
	if !ok {
		t.Fatalf("heartbeat rejected for known user")
	}
	if rtt <= 0 {
		t.Fatalf("expected positive rtt, got %s", rtt)
	}
	if _, ok := h.UpdateHeartbeat("ghost", received, 0); ok {
		t.Fatalf("heartbeat accepted for unknown user")
	}
}

func TestKeyframeRequestRoundTrip(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")
	room, _ := h.Room("lobby")
	room.RecordKeyframe(1)
	_, seq := room.Snapshot()

	frame, nack, ok := h.HandleKeyframeRequest(userID, seq)
	if !ok || nack != nil {
		t.Fatalf("expected keyframe hit, got nack=%+v ok=%v", nack, ok)
	}
	if frame.Seq != seq || len(frame.Snapshot.Users) != 1 {
		t.Fatalf("unexpected keyframe %+v", frame)
	}

	_, nack, ok = h.HandleKeyframeRequest(userID, seq+100)
	if !ok || nack == nil {
		t.Fatalf("expected nack for unknown sequence")
	}
	if nack.Reason != "expired" || !nack.Resync {
		t.Fatalf("unexpected nack %+v", nack)
	}
}

func TestCatchUpReturnsEventsAfterSequence(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "lobby", model.ModeHub, "ada")

	_, joinSeq := h.ApplyEvent(userID, events.Envelope{ID: "m1", Type: events.TypeSendMessage, Payload: textPayload(t, "one")})
	h.ApplyEvent(userID, events.Envelope{ID: "m2", Type: events.TypeSendMessage, Payload: textPayload(t, "two")})

	msgs, ok := h.CatchUp(userID, joinSeq)
	if !ok {
		t.Fatalf("expected catch-up to succeed")
	}
	if len(msgs) != 1 || msgs[0].Event.ID != "m2" {
		t.Fatalf("unexpected catch-up result %+v", msgs)
	}
}

func TestSetKeyframeIntervalClamps(t *testing.T) {
	h := newTestHub(t)
	if applied := h.SetKeyframeInterval(0); applied != defaultKeyframeInterval {
		t.Fatalf("expected default cadence, got %d", applied)
	}
	if applied := h.SetKeyframeInterval(100000); applied != maxKeyframeInterval {
		t.Fatalf("expected clamp to max, got %d", applied)
	}
	if h.KeyframeInterval() != maxKeyframeInterval {
		t.Fatalf("expected stored cadence to match")
	}
}

func TestRecordScoreFeedsLeaderboard(t *testing.T) {
	h := newTestHub(t)
	userID := joinUser(t, h, "game", model.ModePlatformer, "ada")

	payload, _ := json.Marshal(events.PlayerActionPayload{Action: events.ActionCollectStar})
	outcome, _ := h.ApplyEvent(userID, events.Envelope{ID: "a1", Type: events.TypePlayerAction, Payload: payload})
	if !outcome.Applied {
		t.Fatalf("player action rejected: %+v", outcome)
	}

	deadline := time.Now().Add(time.Second)
	for {
		top, err := h.TopScores(context.Background(), "platformer", 5)
		if err != nil {
			t.Fatalf("leaderboard read failed: %v", err)
		}
		if len(top) == 1 && top[0].UserID == userID && top[0].Score == 10 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("leaderboard never recorded the score, got %+v", top)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
