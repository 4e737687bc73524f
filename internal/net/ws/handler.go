package ws

import (
	"encoding/json"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"playroom/server"
	"playroom/server/internal/events"
	"playroom/server/internal/model"
)

type subscription interface {
	WriteMessage(messageType int, data []byte) error
	LastCommandSeq() uint64
	StoreLastCommandSeq(seq uint64)
}

type HandlerConfig struct {
	Logger *log.Logger
}

type Handler struct {
	hub      *server.Hub
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	userID := r.URL.Query().Get("id")
	if userID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", userID, err)
		return
	}

	sub, initial, ok := h.hub.Subscribe(userID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown user")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	session := subscription(sub)

	data, err := json.Marshal(initial)
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", userID, err)
		h.hub.Disconnect(userID, "marshal-failed")
		return
	}
	if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Disconnect(userID, "write-failed")
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(userID, "read-failed")
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", userID, err)
			continue
		}

		normalizedSeq := uint64(0)
		if msg.CommandSeq != nil && *msg.CommandSeq > 0 {
			normalizedSeq = *msg.CommandSeq
		}

		writeJSON := func(payload any) bool {
			data, err := json.Marshal(payload)
			if err != nil {
				h.logger.Printf("failed to marshal response for %s: %v", userID, err)
				return true
			}
			if err := session.WriteMessage(websocket.TextMessage, data); err != nil {
				h.hub.Disconnect(userID, "write-failed")
				return false
			}
			return true
		}

		switch msg.Type {
		case "event":
			if msg.Event == nil {
				continue
			}
			if normalizedSeq > 0 {
				if last := session.LastCommandSeq(); last > 0 && normalizedSeq <= last {
					ack := eventAckMessage{Ver: server.ProtocolVersion, Type: "eventAck", EventID: msg.Event.ID}
					if !writeJSON(ack) {
						return
					}
					continue
				}
			}

			outcome, seq := h.hub.ApplyEvent(userID, *msg.Event)
			if outcome.Applied || outcome.Reason == model.RejectDuplicate {
				ack := eventAckMessage{Ver: server.ProtocolVersion, Type: "eventAck", EventID: msg.Event.ID, Seq: seq}
				if !writeJSON(ack) {
					return
				}
				if normalizedSeq > 0 {
					session.StoreLastCommandSeq(normalizedSeq)
				}
				continue
			}

			reject := eventRejectMessage{
				Ver:     server.ProtocolVersion,
				Type:    "eventReject",
				EventID: msg.Event.ID,
				Reason:  outcome.Reason,
			}
			if !writeJSON(reject) {
				return
			}

		case "heartbeat":
			now := time.Now()
			rtt, ok := h.hub.UpdateHeartbeat(userID, now, msg.SentAt)
			if !ok {
				continue
			}
			ack := heartbeatAckMessage{
				Ver:        server.ProtocolVersion,
				Type:       "heartbeat",
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			}
			if !writeJSON(ack) {
				return
			}

		case "catchup":
			if msg.Since == nil {
				continue
			}
			entries, ok := h.hub.CatchUp(userID, *msg.Since)
			if !ok {
				state, found := h.hub.StateFor(userID, true)
				if !found {
					continue
				}
				if !writeJSON(state) {
					return
				}
				continue
			}
			stalled := false
			for _, entry := range entries {
				if !writeJSON(entry) {
					stalled = true
					break
				}
			}
			if stalled {
				return
			}

		case "keyframeRequest":
			if msg.KeyframeSeq == nil {
				continue
			}
			frame, nack, ok := h.hub.HandleKeyframeRequest(userID, *msg.KeyframeSeq)
			if !ok {
				continue
			}
			if nack != nil {
				if !writeJSON(nack) {
					return
				}
				continue
			}
			if !writeJSON(frame) {
				return
			}

		case "keyframeCadence":
			requested := 0
			if msg.KeyframeInterval != nil {
				requested = *msg.KeyframeInterval
			}
			applied := h.hub.SetKeyframeInterval(requested)
			h.logger.Printf("[keyframe] user=%s requested cadence=%d", userID, applied)

		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, userID)
		}
	}
}

type clientMessage struct {
	Ver              int              `json:"ver,omitempty"`
	Type             string           `json:"type"`
	SentAt           int64            `json:"sentAt,omitempty"`
	Event            *events.Envelope `json:"event,omitempty"`
	Since            *uint64          `json:"since,omitempty"`
	KeyframeSeq      *uint64          `json:"keyframeSeq,omitempty"`
	KeyframeInterval *int             `json:"keyframeInterval,omitempty"`
	CommandSeq       *uint64          `json:"seq,omitempty"`
}

type eventAckMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	EventID string `json:"eventId"`
	Seq     uint64 `json:"seq,omitempty"`
}

type eventRejectMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	EventID string `json:"eventId"`
	Reason  string `json:"reason"`
}

type heartbeatAckMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}
