package game

import (
	"context"

	"playroom/server/logging"
)

const (
	// EventPlayerAction is emitted for scored or state-changing game actions.
	EventPlayerAction logging.EventType = "game.player_action"
	// EventLevelCompleted is emitted when a player finishes a level.
	EventLevelCompleted logging.EventType = "game.level_completed"
	// EventSessionReset is emitted when a room's game session resets.
	EventSessionReset logging.EventType = "game.session_reset"
)

// PlayerActionPayload captures the action and the resulting score.
type PlayerActionPayload struct {
	Action string `json:"action"`
	Score  int    `json:"score"`
	Lives  int    `json:"lives"`
}

// LevelCompletedPayload captures the new level.
type LevelCompletedPayload struct {
	Level int `json:"level"`
	Score int `json:"score"`
}

// SessionResetPayload captures how many players were carried through a reset.
type SessionResetPayload struct {
	Players int `json:"players"`
}

// PlayerAction publishes a game action.
func PlayerAction(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload PlayerActionPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerAction, logging.SeverityDebug, room, seq, actor, payload, extra)
}

// LevelCompleted publishes a level completion.
func LevelCompleted(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload LevelCompletedPayload, extra map[string]any) {
	publish(ctx, pub, EventLevelCompleted, logging.SeverityInfo, room, seq, actor, payload, extra)
}

// SessionReset publishes a session reset.
func SessionReset(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload SessionResetPayload, extra map[string]any) {
	publish(ctx, pub, EventSessionReset, logging.SeverityInfo, room, seq, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, severity logging.Severity, room string, seq uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     kind,
		Seq:      seq,
		Room:     room,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryGame,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
