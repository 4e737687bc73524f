package lifecycle

import (
	"context"

	"playroom/server/logging"
)

const (
	// EventUserJoined is emitted when a user joins a room.
	EventUserJoined logging.EventType = "lifecycle.user_joined"
	// EventUserLeft is emitted when a user leaves a room.
	EventUserLeft logging.EventType = "lifecycle.user_left"
	// EventJoinRejected is emitted when a join is refused.
	EventJoinRejected logging.EventType = "lifecycle.join_rejected"
)

// UserJoinedPayload captures the nickname and room mode for a new user.
type UserJoinedPayload struct {
	Nickname string `json:"nickname"`
	Mode     string `json:"mode"`
}

// UserLeftPayload captures the reason a user left.
type UserLeftPayload struct {
	Reason string `json:"reason"`
}

// JoinRejectedPayload captures why a join did not apply.
type JoinRejectedPayload struct {
	Reason     string `json:"reason"`
	MaxPlayers int    `json:"maxPlayers,omitempty"`
}

// UserJoined publishes a user join event.
func UserJoined(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload UserJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventUserJoined,
		Seq:      seq,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// UserLeft publishes a user leave event.
func UserLeft(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload UserLeftPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventUserLeft,
		Seq:      seq,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// JoinRejected publishes a refused join.
func JoinRejected(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload JoinRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventJoinRejected,
		Seq:      seq,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPresence,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
