package social

import (
	"context"

	"playroom/server/logging"
)

const (
	// EventMessageSent is emitted when a chat message lands in a feed.
	EventMessageSent logging.EventType = "social.message_sent"
	// EventPostCreated is emitted when a post is added to the community feed.
	EventPostCreated logging.EventType = "social.post_created"
	// EventPostLiked is emitted when a like toggles on.
	EventPostLiked logging.EventType = "social.post_liked"
	// EventReactionToggled is emitted when a message reaction flips.
	EventReactionToggled logging.EventType = "social.reaction_toggled"
)

// MessageSentPayload captures the stored message id and kind.
type MessageSentPayload struct {
	MessageID string `json:"messageId"`
	Kind      string `json:"kind"`
	Length    int    `json:"length"`
}

// PostCreatedPayload captures the stored post id.
type PostCreatedPayload struct {
	PostID string `json:"postId"`
	Length int    `json:"length"`
}

// PostLikedPayload captures the like toggle result.
type PostLikedPayload struct {
	PostID string `json:"postId"`
	Liked  bool   `json:"liked"`
	Likes  int    `json:"likes"`
}

// ReactionToggledPayload captures the reaction toggle result.
type ReactionToggledPayload struct {
	PostID string `json:"postId"`
	Emoji  string `json:"emoji"`
	Added  bool   `json:"added"`
}

// MessageSent publishes a stored chat message.
func MessageSent(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload MessageSentPayload, extra map[string]any) {
	publish(ctx, pub, EventMessageSent, room, seq, actor, payload, extra)
}

// PostCreated publishes a stored post.
func PostCreated(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload PostCreatedPayload, extra map[string]any) {
	publish(ctx, pub, EventPostCreated, room, seq, actor, payload, extra)
}

// PostLiked publishes a like toggle.
func PostLiked(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload PostLikedPayload, extra map[string]any) {
	publish(ctx, pub, EventPostLiked, room, seq, actor, payload, extra)
}

// ReactionToggled publishes a reaction flip.
func ReactionToggled(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload ReactionToggledPayload, extra map[string]any) {
	publish(ctx, pub, EventReactionToggled, room, seq, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, kind logging.EventType, room string, seq uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     kind,
		Seq:      seq,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySocial,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
