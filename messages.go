package server

import (
	"playroom/server/internal/events"
	"playroom/server/internal/model"
)

// Reject reasons reported on the wire in addition to the ones the document
// produces.
const (
	RejectInvalidMode   = "invalid-mode"
	RejectModeMismatch  = "mode-mismatch"
	RejectUnknownUser   = "unknown-user"
	RejectActorMismatch = "actor-mismatch"
	RejectMalformed     = "malformed-event"
)

type joinResponse struct {
	Ver              int            `json:"ver"`
	UserID           string         `json:"userId"`
	Room             string         `json:"room"`
	Mode             model.Mode     `json:"mode"`
	Seq              uint64         `json:"seq"`
	Snapshot         model.Snapshot `json:"snapshot"`
	KeyframeInterval int            `json:"keyframeInterval,omitempty"`
	Resync           bool           `json:"resync"`
}

type stateMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Room       string         `json:"room"`
	Seq        uint64         `json:"seq"`
	Snapshot   model.Snapshot `json:"snapshot"`
	ServerTime int64          `json:"serverTime"`
	Resync     bool           `json:"resync,omitempty"`
}

type eventMessage struct {
	Ver        int             `json:"ver"`
	Type       string          `json:"type"`
	Room       string          `json:"room"`
	Seq        uint64          `json:"seq"`
	Event      events.Envelope `json:"event"`
	ServerTime int64           `json:"serverTime"`
}

type keyframeMessage struct {
	Ver      int            `json:"ver"`
	Type     string         `json:"type"`
	Room     string         `json:"room"`
	Seq      uint64         `json:"seq"`
	Snapshot model.Snapshot `json:"snapshot"`
}

type keyframeNackMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Resync bool   `json:"resync,omitempty"`
}

type diagnosticsUser struct {
	Ver           int    `json:"ver"`
	ID            string `json:"id"`
	Room          string `json:"room"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rttMillis"`
}
