package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type identifies one kind of broadcast event. The set is closed: payloads
// are decoded against the matching struct and anything else is rejected at
// the handler boundary.
type Type string

const (
	TypeUserJoin       Type = "user-join"
	TypeUserLeave      Type = "user-leave"
	TypeSendMessage    Type = "send-message"
	TypeCreatePost     Type = "create-post"
	TypeLikePost       Type = "like-post"
	TypeAddReaction    Type = "add-reaction"
	TypeUserTyping     Type = "user-typing"
	TypeUserStopTyping Type = "user-stop-typing"
	TypeSetNickname    Type = "set-nickname"
	TypePlayerUpdate   Type = "player-update"
	TypePlayerAction   Type = "player-action"
	TypeResetGame      Type = "reset-game"
)

// Action tags the recognized player actions for game rooms.
type Action string

const (
	ActionJump           Action = "jump"
	ActionLand           Action = "land"
	ActionCollectStar    Action = "collect-star"
	ActionDefeatEnemy    Action = "defeat-enemy"
	ActionLevelComplete  Action = "level-complete"
	ActionPlayerDeath    Action = "player-death"
	ActionPowerupCollect Action = "powerup-collect"
)

// MessageKind distinguishes chat message flavors.
type MessageKind string

const (
	MessageText   MessageKind = "text"
	MessageSystem MessageKind = "system"
	MessageEmoji  MessageKind = "emoji"
)

var (
	ErrUnknownType    = errors.New("events: unknown event type")
	ErrMissingActor   = errors.New("events: missing actor id")
	ErrEmptyBody      = errors.New("events: empty body")
	ErrMissingTarget  = errors.New("events: missing target id")
	ErrUnknownAction  = errors.New("events: unrecognized action")
	ErrMalformedEvent = errors.New("events: malformed payload")
)

// Envelope is the wire form of a broadcast event. Payload stays raw until
// Decode validates it against the closed union.
type Envelope struct {
	Ver     int             `json:"ver,omitempty"`
	ID      string          `json:"id"`
	Type    Type            `json:"type"`
	ActorID string          `json:"actorId"`
	SentAt  int64           `json:"sentAt,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// UserJoinPayload carries the identity presented on join.
type UserJoinPayload struct {
	Nickname string `json:"nickname"`
}

// UserLeavePayload carries an optional reason for diagnostics.
type UserLeavePayload struct {
	Reason string `json:"reason,omitempty"`
}

// SendMessagePayload carries one chat message.
type SendMessagePayload struct {
	Text string      `json:"text"`
	Kind MessageKind `json:"kind,omitempty"`
}

// CreatePostPayload carries one social post.
type CreatePostPayload struct {
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
	Media   string   `json:"media,omitempty"`
}

// LikePostPayload toggles the actor's like on a post.
type LikePostPayload struct {
	PostID string `json:"postId"`
}

// AddReactionPayload toggles the actor's emoji reaction on a post.
type AddReactionPayload struct {
	PostID string `json:"postId"`
	Emoji  string `json:"emoji"`
}

// SetNicknamePayload renames the actor going forward. Historical entries
// keep their creation-time snapshot.
type SetNicknamePayload struct {
	Nickname string `json:"nickname"`
}

// PlayerUpdatePayload overwrites the actor's transient movement fields.
type PlayerUpdatePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	VX    float64 `json:"vx"`
	VY    float64 `json:"vy"`
	State string  `json:"state,omitempty"`
}

// PlayerActionPayload applies a discrete game action.
type PlayerActionPayload struct {
	Action  Action `json:"action"`
	Powerup string `json:"powerup,omitempty"`
	Value   int    `json:"value,omitempty"`
}

// Decoded is the validated form of an envelope: exactly one payload field
// is set, matching Type.
type Decoded struct {
	Envelope Envelope

	UserJoin     *UserJoinPayload
	UserLeave    *UserLeavePayload
	SendMessage  *SendMessagePayload
	CreatePost   *CreatePostPayload
	LikePost     *LikePostPayload
	AddReaction  *AddReactionPayload
	SetNickname  *SetNicknamePayload
	PlayerUpdate *PlayerUpdatePayload
	PlayerAction *PlayerActionPayload
}

func recognizedAction(a Action) bool {
	switch a {
	case ActionJump, ActionLand, ActionCollectStar, ActionDefeatEnemy,
		ActionLevelComplete, ActionPlayerDeath, ActionPowerupCollect:
		return true
	}
	return false
}

// Decode validates the envelope against the closed union. Validation here
// keeps the session model handlers free of duck typing: a handler only ever
// sees a well-formed payload for its event type.
func Decode(env Envelope) (Decoded, error) {
	if env.ActorID == "" {
		return Decoded{}, ErrMissingActor
	}
	decoded := Decoded{Envelope: env}

	unmarshal := func(dst any) error {
		if len(env.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return nil
	}

	switch env.Type {
	case TypeUserJoin:
		payload := UserJoinPayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		payload.Nickname = strings.TrimSpace(payload.Nickname)
		decoded.UserJoin = &payload
	case TypeUserLeave:
		payload := UserLeavePayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		decoded.UserLeave = &payload
	case TypeSendMessage:
		payload := SendMessagePayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		payload.Text = strings.TrimSpace(payload.Text)
		if payload.Text == "" {
			return Decoded{}, ErrEmptyBody
		}
		if payload.Kind == "" {
			payload.Kind = MessageText
		}
		decoded.SendMessage = &payload
	case TypeCreatePost:
		payload := CreatePostPayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		payload.Content = strings.TrimSpace(payload.Content)
		if payload.Content == "" {
			return Decoded{}, ErrEmptyBody
		}
		decoded.CreatePost = &payload
	case TypeLikePost:
		payload := LikePostPayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		if payload.PostID == "" {
			return Decoded{}, ErrMissingTarget
		}
		decoded.LikePost = &payload
	case TypeAddReaction:
		payload := AddReactionPayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		if payload.PostID == "" {
			return Decoded{}, ErrMissingTarget
		}
		if payload.Emoji == "" {
			return Decoded{}, ErrEmptyBody
		}
		decoded.AddReaction = &payload
	case TypeUserTyping, TypeUserStopTyping, TypeResetGame:
		// No payload beyond the actor.
	case TypeSetNickname:
		payload := SetNicknamePayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		payload.Nickname = strings.TrimSpace(payload.Nickname)
		if payload.Nickname == "" {
			return Decoded{}, ErrEmptyBody
		}
		decoded.SetNickname = &payload
	case TypePlayerUpdate:
		payload := PlayerUpdatePayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		decoded.PlayerUpdate = &payload
	case TypePlayerAction:
		payload := PlayerActionPayload{}
		if err := unmarshal(&payload); err != nil {
			return Decoded{}, err
		}
		if !recognizedAction(payload.Action) {
			return Decoded{}, ErrUnknownAction
		}
		decoded.PlayerAction = &payload
	default:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	return decoded, nil
}
