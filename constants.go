package server

import "time"

const (
	ProtocolVersion = 1

	writeWait         = 10 * time.Second
	tickRate          = 4 // housekeeping ticks per second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	journalHistoryLimit     = 512
	keyframeCapacity        = 32
	keyframeMaxAge          = 5 * time.Minute
	defaultKeyframeInterval = 20 // ticks between keyframes
	minKeyframeInterval     = 1
	maxKeyframeInterval     = 600

	leaderboardTimeout = 2 * time.Second
)

func TickRate() int { return tickRate }

func HeartbeatInterval() time.Duration { return heartbeatInterval }
