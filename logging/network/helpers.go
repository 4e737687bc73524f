package network

import (
	"context"

	"playroom/server/logging"
)

const (
	// EventClientDisconnected is emitted when a socket closes or times out.
	EventClientDisconnected logging.EventType = "network.client_disconnected"
	// EventEventRejected is emitted when an inbound envelope fails to apply.
	EventEventRejected logging.EventType = "network.event_rejected"
	// EventResyncScheduled is emitted when a client is flagged for a full snapshot.
	EventResyncScheduled logging.EventType = "network.resync_scheduled"
	// EventBroadcastFailed is emitted when a write to a subscriber fails.
	EventBroadcastFailed logging.EventType = "network.broadcast_failed"
)

// DisconnectPayload captures why a client was dropped.
type DisconnectPayload struct {
	Reason   string  `json:"reason"`
	RTTMilli float64 `json:"rttMs,omitempty"`
}

// RejectPayload captures the rejected envelope.
type RejectPayload struct {
	EventType string `json:"eventType"`
	Reason    string `json:"reason"`
}

// ResyncPayload captures the drop statistics that forced a resync.
type ResyncPayload struct {
	DroppedEvents uint64 `json:"droppedEvents"`
	TotalEvents   uint64 `json:"totalEvents"`
	Detail        string `json:"detail,omitempty"`
}

// BroadcastFailurePayload captures the failed write.
type BroadcastFailurePayload struct {
	MessageType string `json:"messageType"`
	Error       string `json:"error"`
}

// ClientDisconnected publishes a disconnect.
func ClientDisconnected(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload DisconnectPayload, extra map[string]any) {
	publish(ctx, pub, EventClientDisconnected, logging.SeverityInfo, room, seq, actor, payload, extra)
}

// EventRejected publishes a rejected inbound envelope.
func EventRejected(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload RejectPayload, extra map[string]any) {
	publish(ctx, pub, EventEventRejected, logging.SeverityWarn, room, seq, actor, payload, extra)
}

// ResyncScheduled publishes a pending full resync.
func ResyncScheduled(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload ResyncPayload, extra map[string]any) {
	publish(ctx, pub, EventResyncScheduled, logging.SeverityWarn, room, seq, actor, payload, extra)
}

// BroadcastFailed publishes a failed subscriber write.
func BroadcastFailed(ctx context.Context, pub logging.Publisher, room string, seq uint64, actor logging.EntityRef, payload BroadcastFailurePayload, extra map[string]any) {
	publish(ctx, pub, EventBroadcastFailed, logging.SeverityWarn, room, seq, actor, payload, extra)
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
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
