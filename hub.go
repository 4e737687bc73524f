package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"playroom/server/internal/events"
	"playroom/server/internal/ident"
	"playroom/server/internal/leaderboard"
	"playroom/server/internal/model"
	"playroom/server/logging"
	"playroom/server/logging/game"
	"playroom/server/logging/lifecycle"
	"playroom/server/logging/network"
	"playroom/server/logging/social"
)

type userState struct {
	room          string
	nickname      string
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

type HubConfig struct {
	Logger           *log.Logger
	Leaderboard      leaderboard.Store
	KeyframeInterval int
	Clock            func() time.Time
}

func DefaultHubConfig() HubConfig {
	return HubConfig{KeyframeInterval: defaultKeyframeInterval}
}

// Hub owns the rooms, the users inside them, and the live subscriber
// connections. Applied events are journaled per room and fanned out to
// every subscriber of that room.
type Hub struct {
	mu          sync.Mutex
	rooms       map[string]*Room
	users       map[string]*userState
	subscribers map[string]*subscriber

	ids       *ident.Generator
	clock     func() time.Time
	logger    *log.Logger
	publisher logging.Publisher
	telemetry *telemetryCounters
	scores    leaderboard.Store

	keyframeInterval atomic.Int64
}

func NewHub(publisher logging.Publisher) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), publisher)
}

func NewHubWithConfig(cfg HubConfig, publisher logging.Publisher) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	scores := cfg.Leaderboard
	if scores == nil {
		scores = leaderboard.NewMemory()
	}

	h := &Hub{
		rooms:       make(map[string]*Room),
		users:       make(map[string]*userState),
		subscribers: make(map[string]*subscriber),
		ids:         ident.NewGenerator(),
		clock:       clock,
		logger:      logger,
		publisher:   publisher,
		telemetry:   newTelemetryCounters(),
		scores:      scores,
	}

	interval := cfg.KeyframeInterval
	if interval <= 0 {
		interval = defaultKeyframeInterval
	}
	h.keyframeInterval.Store(int64(clampKeyframeInterval(interval)))
	return h
}

func clampKeyframeInterval(interval int) int {
	if interval < minKeyframeInterval {
		return minKeyframeInterval
	}
	if interval > maxKeyframeInterval {
		return maxKeyframeInterval
	}
	return interval
}

// Join allocates a user id, applies the join event to the room document
// and returns the full snapshot. A non-empty reason means the join did not
// happen.
func (h *Hub) Join(roomName string, mode model.Mode, nickname string) (joinResponse, string) {
	if roomName == "" {
		roomName = "lobby"
	}
	if !model.ValidMode(mode) {
		return joinResponse{}, RejectInvalidMode
	}

	h.mu.Lock()
	room, ok := h.rooms[roomName]
	if !ok {
		room = newRoom(roomName, mode, h.clock, h.logger, h.telemetry)
		h.rooms[roomName] = room
	}
	if room.Mode() != mode {
		h.mu.Unlock()
		return joinResponse{}, RejectModeMismatch
	}
	userID := h.ids.Next("user")
	h.users[userID] = &userState{room: roomName, nickname: nickname, lastHeartbeat: h.clock()}
	h.mu.Unlock()

	payload, _ := json.Marshal(events.UserJoinPayload{Nickname: nickname})
	env := events.Envelope{
		Ver:     ProtocolVersion,
		ID:      h.ids.Next("evt"),
		Type:    events.TypeUserJoin,
		ActorID: userID,
		SentAt:  h.clock().UnixMilli(),
		Payload: payload,
	}

	outcome, seq, err := room.Apply(env)
	if err != nil || !outcome.Applied {
		h.mu.Lock()
		delete(h.users, userID)
		h.mu.Unlock()
		h.telemetry.RecordApply(false)
		reason := outcome.Reason
		if reason == "" {
			reason = RejectMalformed
		}
		lifecycle.JoinRejected(context.Background(), h.publisher, roomName, 0,
			logging.EntityRef{ID: userID, Kind: logging.EntityKindUser},
			lifecycle.JoinRejectedPayload{Reason: reason, MaxPlayers: room.rules.MaxPlayers}, nil)
		return joinResponse{}, reason
	}

	h.telemetry.RecordApply(true)
	lifecycle.UserJoined(context.Background(), h.publisher, roomName, seq,
		logging.EntityRef{ID: userID, Kind: logging.EntityKindUser},
		lifecycle.UserJoinedPayload{Nickname: nickname, Mode: string(mode)}, nil)
	h.broadcastEvent(room, env, seq)

	snapshot, seqNow := room.Snapshot()
	return joinResponse{
		Ver:              ProtocolVersion,
		UserID:           userID,
		Room:             roomName,
		Mode:             mode,
		Seq:              seqNow,
		Snapshot:         snapshot,
		KeyframeInterval: int(h.keyframeInterval.Load()),
	}, ""
}

// Subscribe associates a WebSocket connection with a joined user and
// returns the initial state message for that room.
func (h *Hub) Subscribe(userID string, conn *websocket.Conn) (*subscriber, stateMessage, bool) {
	h.mu.Lock()
	state, ok := h.users[userID]
	if !ok {
		h.mu.Unlock()
		return nil, stateMessage{}, false
	}
	state.lastHeartbeat = h.clock()
	room := h.rooms[state.room]
	if existing, ok := h.subscribers[userID]; ok {
		existing.Close()
	}
	sub := newSubscriber(conn)
	h.subscribers[userID] = sub
	h.mu.Unlock()

	if room == nil {
		return nil, stateMessage{}, false
	}
	snapshot, seq := room.Snapshot()
	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Room:       room.Name(),
		Seq:        seq,
		Snapshot:   snapshot,
		ServerTime: h.clock().UnixMilli(),
	}
	return sub, msg, true
}

// Disconnect removes the user, applies a leave event to the room and
// closes any live connection.
func (h *Hub) Disconnect(userID, reason string) bool {
	h.mu.Lock()
	sub, subOK := h.subscribers[userID]
	if subOK {
		delete(h.subscribers, userID)
	}
	state, userOK := h.users[userID]
	if userOK {
		delete(h.users, userID)
	}
	var room *Room
	if userOK {
		room = h.rooms[state.room]
	}
	h.mu.Unlock()

	if subOK {
		sub.Close()
	}
	if !userOK || room == nil {
		return false
	}

	payload, _ := json.Marshal(events.UserLeavePayload{Reason: reason})
	env := events.Envelope{
		Ver:     ProtocolVersion,
		ID:      h.ids.Next("evt"),
		Type:    events.TypeUserLeave,
		ActorID: userID,
		SentAt:  h.clock().UnixMilli(),
		Payload: payload,
	}
	outcome, seq, _ := room.Apply(env)
	if outcome.Applied {
		h.telemetry.RecordApply(true)
		lifecycle.UserLeft(context.Background(), h.publisher, room.Name(), seq,
			logging.EntityRef{ID: userID, Kind: logging.EntityKindUser},
			lifecycle.UserLeftPayload{Reason: reason}, nil)
		h.broadcastEvent(room, env, seq)
	}
	return true
}

// ApplyEvent validates and applies a client envelope on behalf of userID.
// Applied events are broadcast to the whole room before returning.
func (h *Hub) ApplyEvent(userID string, env events.Envelope) (model.Outcome, uint64) {
	h.mu.Lock()
	state, ok := h.users[userID]
	var room *Room
	if ok {
		state.lastHeartbeat = h.clock()
		room = h.rooms[state.room]
	}
	h.mu.Unlock()

	if !ok || room == nil {
		h.telemetry.RecordApply(false)
		return model.Outcome{Reason: RejectUnknownUser}, 0
	}
	if env.ActorID == "" {
		env.ActorID = userID
	}
	if env.ActorID != userID {
		h.telemetry.RecordApply(false)
		network.EventRejected(context.Background(), h.publisher, room.Name(), 0,
			logging.EntityRef{ID: userID, Kind: logging.EntityKindUser},
			network.RejectPayload{EventType: string(env.Type), Reason: RejectActorMismatch}, nil)
		return model.Outcome{Reason: RejectActorMismatch}, 0
	}
	if env.ID == "" {
		env.ID = h.ids.Next("evt")
	}
	if env.Ver == 0 {
		env.Ver = ProtocolVersion
	}

	outcome, seq, err := room.Apply(env)
	if err != nil {
		h.telemetry.RecordApply(false)
		h.logger.Printf("discarding malformed %s event from %s: %v", env.Type, userID, err)
		return outcome, seq
	}
	if !outcome.Applied {
		if outcome.Reason == model.RejectDuplicate {
			return outcome, seq
		}
		h.telemetry.RecordApply(false)
		network.EventRejected(context.Background(), h.publisher, room.Name(), seq,
			logging.EntityRef{ID: userID, Kind: logging.EntityKindUser},
			network.RejectPayload{EventType: string(env.Type), Reason: outcome.Reason}, nil)
		return outcome, seq
	}

	h.telemetry.RecordApply(true)
	if env.Type == events.TypeSetNickname {
		h.refreshNickname(userID, room)
	}
	h.broadcastEvent(room, env, seq)
	h.logApplied(room, userID, env, seq)
	if env.Type == events.TypePlayerAction || env.Type == events.TypeResetGame {
		h.recordScore(room, userID)
	}
	return outcome, seq
}

// logApplied publishes a structured log event for applied social and game
// events. Lifecycle and network events publish at their own call sites.
func (h *Hub) logApplied(room *Room, userID string, env events.Envelope, seq uint64) {
	ctx := context.Background()
	actor := logging.EntityRef{ID: userID, Kind: logging.EntityKindUser}

	switch env.Type {
	case events.TypeSendMessage:
		var payload events.SendMessagePayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		kind := string(payload.Kind)
		if kind == "" {
			kind = string(events.MessageText)
		}
		social.MessageSent(ctx, h.publisher, room.Name(), seq, actor,
			social.MessageSentPayload{MessageID: env.ID, Kind: kind, Length: len(payload.Text)}, nil)
	case events.TypeCreatePost:
		var payload events.CreatePostPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		social.PostCreated(ctx, h.publisher, room.Name(), seq, actor,
			social.PostCreatedPayload{PostID: env.ID, Length: len(payload.Content)}, nil)
	case events.TypeLikePost:
		var payload events.LikePostPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		post, ok := room.Post(payload.PostID)
		if !ok {
			return
		}
		liked := false
		for _, id := range post.LikedBy {
			if id == userID {
				liked = true
				break
			}
		}
		social.PostLiked(ctx, h.publisher, room.Name(), seq, actor,
			social.PostLikedPayload{PostID: post.ID, Liked: liked, Likes: post.Likes}, nil)
	case events.TypeAddReaction:
		var payload events.AddReactionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		added := false
		if post, ok := room.Post(payload.PostID); ok {
			for _, id := range post.Reactions[payload.Emoji] {
				if id == userID {
					added = true
					break
				}
			}
		}
		social.ReactionToggled(ctx, h.publisher, room.Name(), seq, actor,
			social.ReactionToggledPayload{PostID: payload.PostID, Emoji: payload.Emoji, Added: added}, nil)
	case events.TypePlayerAction:
		var payload events.PlayerActionPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}
		player, ok := room.Player(userID)
		if !ok {
			return
		}
		if payload.Action == events.ActionLevelComplete {
			game.LevelCompleted(ctx, h.publisher, room.Name(), seq, actor,
				game.LevelCompletedPayload{Level: player.Level, Score: player.Score}, nil)
			return
		}
		game.PlayerAction(ctx, h.publisher, room.Name(), seq, actor,
			game.PlayerActionPayload{Action: string(payload.Action), Score: player.Score, Lives: player.Lives}, nil)
	case events.TypeResetGame:
		game.SessionReset(ctx, h.publisher, room.Name(), seq,
			logging.EntityRef{ID: room.Name(), Kind: logging.EntityKindRoom},
			game.SessionResetPayload{Players: room.OnlineCount()}, nil)
	}
}

func (h *Hub) refreshNickname(userID string, room *Room) {
	player, ok := room.Player(userID)
	if !ok {
		return
	}
	h.mu.Lock()
	if state, exists := h.users[userID]; exists {
		state.nickname = player.Nickname
	}
	h.mu.Unlock()
}

// recordScore mirrors the player's best score into the leaderboard store.
// Failures degrade to a counter bump; gameplay never waits on Redis.
func (h *Hub) recordScore(room *Room, userID string) {
	player, ok := room.Player(userID)
	if !ok || player.Score <= 0 {
		return
	}
	mode := room.rules.GameMode
	if mode == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
		defer cancel()
		if err := h.scores.RecordScore(ctx, mode, userID, player.Nickname, int64(player.Score)); err != nil {
			h.telemetry.IncrementLeaderboardWriteFail()
			h.logger.Printf("failed to record score for %s: %v", userID, err)
		}
	}()
}

// TopScores reads the leaderboard for a game mode.
func (h *Hub) TopScores(ctx context.Context, mode string, limit int) ([]leaderboard.Entry, error) {
	return h.scores.Top(ctx, mode, limit)
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for a user.
func (h *Hub) UpdateHeartbeat(userID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.users[userID]
	if !ok {
		return 0, false
	}

	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}

	return state.lastRTT, true
}

// RunLoop drives the fixed-rate housekeeping loop until stop closes:
// heartbeat eviction, typing sweeps, keyframe cadence and resync hints.
func (h *Hub) RunLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	var tick uint64
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			tick++
			start := time.Now()
			h.evictStale(now)
			h.houseKeepRooms(tick)
			h.telemetry.RecordTickDuration(time.Since(start))
		}
	}
}

func (h *Hub) evictStale(now time.Time) {
	h.mu.Lock()
	stale := make([]string, 0)
	for id, state := range h.users {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	for _, id := range stale {
		h.telemetry.IncrementHeartbeatDisconnect()
		h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		h.Disconnect(id, "heartbeat-timeout")
	}
}

func (h *Hub) houseKeepRooms(tick uint64) {
	h.mu.Lock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.Unlock()
	interval := uint64(h.keyframeInterval.Load())

	for _, room := range rooms {
		if room.SweepTyping() > 0 {
			h.BroadcastRoomState(room, false)
		}
		if interval > 0 && tick%interval == 0 {
			result := room.RecordKeyframe(tick)
			h.telemetry.RecordKeyframeJournal(result.Size, result.OldestSeq, result.NewestSeq)
		}
		if signal, ok := room.ConsumeResyncHint(); ok {
			h.telemetry.IncrementResyncScheduled()
			network.ResyncScheduled(context.Background(), h.publisher, room.Name(), 0,
				logging.EntityRef{ID: room.Name(), Kind: logging.EntityKindRoom},
				network.ResyncPayload{
					DroppedEvents: signal.DroppedEvents,
					TotalEvents:   signal.TotalEvents,
					Detail:        signal.Summary(),
				}, nil)
			h.BroadcastRoomState(room, true)
		}
	}
}

// BroadcastRoomState sends the full snapshot to every subscriber of the
// room. Resync marks the snapshot as authoritative after journal loss.
func (h *Hub) BroadcastRoomState(room *Room, resync bool) {
	snapshot, seq := room.Snapshot()
	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Room:       room.Name(),
		Seq:        seq,
		Snapshot:   snapshot,
		ServerTime: h.clock().UnixMilli(),
		Resync:     resync,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}
	h.send(room.Name(), data, "state")
}

func (h *Hub) broadcastEvent(room *Room, env events.Envelope, seq uint64) {
	msg := eventMessage{
		Ver:        ProtocolVersion,
		Type:       "event",
		Room:       room.Name(),
		Seq:        seq,
		Event:      env,
		ServerTime: h.clock().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("failed to marshal event message: %v", err)
		return
	}
	h.send(room.Name(), data, "event")
}

func (h *Hub) send(roomName string, data []byte, messageType string) {
	h.mu.Lock()
	subs := make(map[string]*subscriber)
	for id, state := range h.users {
		if state.room != roomName {
			continue
		}
		if sub, ok := h.subscribers[id]; ok {
			subs[id] = sub
		}
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send %s to %s: %v", messageType, id, err)
			network.BroadcastFailed(context.Background(), h.publisher, roomName, 0,
				logging.EntityRef{ID: id, Kind: logging.EntityKindUser},
				network.BroadcastFailurePayload{MessageType: messageType, Error: err.Error()}, nil)
			go h.Disconnect(id, "write-failed")
		}
	}
	h.telemetry.RecordBroadcast(len(data), len(subs))
}

// CatchUp returns the journaled events after seq for the user's room. A
// false result means the window no longer reaches back that far and the
// client must take a full snapshot instead.
func (h *Hub) CatchUp(userID string, seq uint64) ([]eventMessage, bool) {
	h.mu.Lock()
	state, ok := h.users[userID]
	var room *Room
	if ok {
		room = h.rooms[state.room]
	}
	h.mu.Unlock()
	if !ok || room == nil {
		return nil, false
	}

	entries, ok := room.EntriesSince(seq)
	if !ok {
		return nil, false
	}
	now := h.clock().UnixMilli()
	out := make([]eventMessage, 0, len(entries))
	for _, entry := range entries {
		out = append(out, eventMessage{
			Ver:        ProtocolVersion,
			Type:       "event",
			Room:       room.Name(),
			Seq:        entry.Seq,
			Event:      entry.Envelope,
			ServerTime: now,
		})
	}
	return out, true
}

// StateFor builds a full state message for one user's room, used when a
// catch-up window miss forces a single-client resync.
func (h *Hub) StateFor(userID string, resync bool) (stateMessage, bool) {
	h.mu.Lock()
	state, ok := h.users[userID]
	var room *Room
	if ok {
		room = h.rooms[state.room]
	}
	h.mu.Unlock()
	if !ok || room == nil {
		return stateMessage{}, false
	}

	snapshot, seq := room.Snapshot()
	return stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Room:       room.Name(),
		Seq:        seq,
		Snapshot:   snapshot,
		ServerTime: h.clock().UnixMilli(),
		Resync:     resync,
	}, true
}

// HandleKeyframeRequest resolves a keyframe by sequence or returns a nack
// directing the client to resync.
func (h *Hub) HandleKeyframeRequest(userID string, seq uint64) (keyframeMessage, *keyframeNackMessage, bool) {
	h.mu.Lock()
	state, ok := h.users[userID]
	var room *Room
	if ok {
		room = h.rooms[state.room]
	}
	h.mu.Unlock()
	if !ok || room == nil {
		return keyframeMessage{}, nil, false
	}

	h.telemetry.RecordKeyframeRequest()
	frame, found := room.KeyframeBySequence(seq)
	if !found {
		h.telemetry.IncrementKeyframeExpired()
		nack := &keyframeNackMessage{
			Ver:    ProtocolVersion,
			Type:   "keyframeNack",
			Seq:    seq,
			Reason: "expired",
			Resync: true,
		}
		return keyframeMessage{}, nack, true
	}
	return keyframeMessage{
		Ver:      ProtocolVersion,
		Type:     "keyframe",
		Room:     room.Name(),
		Seq:      frame.Seq,
		Snapshot: frame.Snapshot,
	}, nil, true
}

// SetKeyframeInterval clamps and stores the keyframe cadence in ticks.
func (h *Hub) SetKeyframeInterval(requested int) int {
	if requested <= 0 {
		requested = defaultKeyframeInterval
	}
	applied := clampKeyframeInterval(requested)
	h.keyframeInterval.Store(int64(applied))
	return applied
}

func (h *Hub) KeyframeInterval() int {
	return int(h.keyframeInterval.Load())
}

// Room resolves a room by name. Exposed for diagnostics and tests.
func (h *Hub) Room(name string) (*Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[name]
	return room, ok
}

// DiagnosticsSnapshot exposes heartbeat data for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsUser {
	h.mu.Lock()
	defer h.mu.Unlock()

	users := make([]diagnosticsUser, 0, len(h.users))
	for id, state := range h.users {
		users = append(users, diagnosticsUser{
			Ver:           ProtocolVersion,
			ID:            id,
			Room:          state.room,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	return users
}

func (h *Hub) TelemetrySnapshot() telemetrySnapshot {
	return h.telemetry.Snapshot()
}
