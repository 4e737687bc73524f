package model

import (
	"fmt"
	"sort"
	"time"

	"playroom/server/internal/events"
	"playroom/server/internal/feed"
	"playroom/server/internal/ident"
	"playroom/server/internal/presence"
)

// Logger exposes the logging capability the document needs for its
// log-only failure modes.
type Logger interface {
	Printf(format string, args ...any)
}

// Reject reasons reported in Outcome. Handlers never return errors across
// the apply boundary; everything degrades to a no-op plus a reason.
const (
	RejectUnknownActor  = "unknown_actor"
	RejectUnknownTarget = "unknown_target"
	RejectDuplicate     = "duplicate"
	RejectCapacity      = "capacity"
	RejectDisabled      = "feature_disabled"
)

// Outcome reports whether an event mutated the document and, if not, why.
type Outcome struct {
	Applied bool
	Reason  string
}

func applied() Outcome            { return Outcome{Applied: true} }
func rejected(why string) Outcome { return Outcome{Reason: why} }

// Document is the replicated session state for one room. Every mutation
// goes through Apply with a decoded event; the owning room serializes
// access, so the document itself holds no locks.
type Document struct {
	rules    Ruleset
	presence *presence.Tracker
	messages *feed.Bounded[ChatMessage]
	posts    *feed.Bounded[Post]
	activity *feed.Bounded[Activity]
	events   *feed.Bounded[GameEvent]
	players  map[string]*Player
	spawnIdx map[string]int
	session  *GameSession
	ids      *ident.Generator
	clock    func() time.Time
	logger   Logger
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NewDocument constructs an empty document for the given ruleset. The
// initial declaration is deterministic so every replica starts identical.
func NewDocument(sessionID string, rules Ruleset, clock func() time.Time, logger Logger) *Document {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = nopLogger{}
	}
	doc := &Document{
		rules:    rules,
		presence: presence.NewTracker(clock),
		messages: feed.New[ChatMessage](rules.MessageCap, feed.OldestFirst),
		posts:    feed.New[Post](rules.PostCap, feed.NewestFirst),
		activity: feed.New[Activity](rules.ActivityCap, feed.NewestFirst),
		events:   feed.New[GameEvent](rules.EventCap, feed.OldestFirst),
		players:  make(map[string]*Player),
		spawnIdx: make(map[string]int),
		ids:      ident.NewGeneratorWithClock(clock),
		clock:    clock,
		logger:   logger,
	}
	if rules.EnableGame {
		doc.session = &GameSession{
			ID:           sessionID,
			CurrentLevel: rules.InitialLevel,
			MaxPlayers:   rules.MaxPlayers,
			GameMode:     rules.GameMode,
		}
	}
	return doc
}

// Rules returns the ruleset the document runs.
func (d *Document) Rules() Ruleset { return d.rules }

func (d *Document) timestamp(env events.Envelope) int64 {
	if env.SentAt > 0 {
		return env.SentAt
	}
	return d.clock().UnixMilli()
}

func (d *Document) entityID(env events.Envelope, prefix string) string {
	if env.ID != "" {
		return env.ID
	}
	return d.ids.Next(prefix)
}

// Apply routes a decoded event to its handler. It is the only mutation
// path into the document.
func (d *Document) Apply(decoded events.Decoded) Outcome {
	env := decoded.Envelope
	switch env.Type {
	case events.TypeUserJoin:
		return d.applyUserJoin(env, decoded.UserJoin)
	case events.TypeUserLeave:
		return d.applyUserLeave(env, decoded.UserLeave)
	case events.TypeSendMessage:
		return d.applySendMessage(env, decoded.SendMessage)
	case events.TypeCreatePost:
		return d.applyCreatePost(env, decoded.CreatePost)
	case events.TypeLikePost:
		return d.applyLikePost(env, decoded.LikePost)
	case events.TypeAddReaction:
		return d.applyAddReaction(env, decoded.AddReaction)
	case events.TypeUserTyping:
		return d.applyUserTyping(env)
	case events.TypeUserStopTyping:
		return d.applyUserStopTyping(env)
	case events.TypeSetNickname:
		return d.applySetNickname(env, decoded.SetNickname)
	case events.TypePlayerUpdate:
		return d.applyPlayerUpdate(env, decoded.PlayerUpdate)
	case events.TypePlayerAction:
		return d.applyPlayerAction(env, decoded.PlayerAction)
	case events.TypeResetGame:
		return d.applyResetGame(env)
	}
	return rejected(RejectUnknownTarget)
}

func (d *Document) applyUserJoin(env events.Envelope, payload *events.UserJoinPayload) Outcome {
	if user, ok := d.presence.Get(env.ActorID); ok && user.IsOnline {
		return rejected(RejectDuplicate)
	}

	if d.rules.EnableGame && d.activePlayerCount() >= d.rules.MaxPlayers {
		d.logger.Printf("join rejected for %s: session full (%d/%d)", env.ActorID, d.activePlayerCount(), d.rules.MaxPlayers)
		return rejected(RejectCapacity)
	}

	nickname := ""
	if payload != nil {
		nickname = payload.Nickname
	}
	user := d.presence.Join(env.ActorID, nickname)

	if d.rules.EnableGame {
		d.joinPlayer(user)
	}

	d.appendActivity(env, ActivityUserJoined, user.Nickname, fmt.Sprintf("%s joined the room", displayName(user.Nickname, env.ActorID)), nil)
	return applied()
}

func (d *Document) joinPlayer(user *presence.User) {
	player, ok := d.players[user.UserID]
	if !ok {
		idx := len(d.players)
		spawn := d.rules.SpawnFor(idx)
		player = &Player{
			ID:       user.UserID,
			Nickname: user.Nickname,
			X:        spawn.X,
			Y:        spawn.Y,
			State:    d.rules.DefaultState,
			Lives:    d.rules.InitialLives,
			Level:    d.rules.InitialLevel,
		}
		d.players[user.UserID] = player
		d.spawnIdx[user.UserID] = idx
	}
	player.Nickname = user.Nickname
	player.IsActive = true
	player.LastUpdate = d.clock().UnixMilli()

	if d.session != nil && !d.session.IsActive {
		d.session.IsActive = true
		d.session.StartTime = d.clock().UnixMilli()
	}
}

func (d *Document) applyUserLeave(env events.Envelope, payload *events.UserLeavePayload) Outcome {
	user, ok := d.presence.Leave(env.ActorID)
	if !ok {
		return rejected(RejectUnknownActor)
	}
	if player, ok := d.players[env.ActorID]; ok {
		player.IsActive = false
		player.LastUpdate = d.clock().UnixMilli()
	}
	if d.session != nil && d.presence.OnlineCount() == 0 {
		d.session.IsActive = false
	}
	d.appendActivity(env, ActivityUserLeft, user.Nickname, fmt.Sprintf("%s left the room", displayName(user.Nickname, env.ActorID)), nil)
	return applied()
}

func (d *Document) applySendMessage(env events.Envelope, payload *events.SendMessagePayload) Outcome {
	user, ok := d.presence.Get(env.ActorID)
	if !ok {
		return rejected(RejectUnknownActor)
	}

	msg := ChatMessage{
		ID:        d.entityID(env, "msg"),
		UserID:    env.ActorID,
		Nickname:  user.Nickname,
		Text:      payload.Text,
		Timestamp: d.timestamp(env),
		Kind:      payload.Kind,
	}
	if !d.messages.Insert(msg) {
		return rejected(RejectDuplicate)
	}
	d.presence.StopTyping(env.ActorID)
	d.presence.Touch(env.ActorID)
	d.appendActivity(env, ActivityMessageSent, user.Nickname,
		fmt.Sprintf("%s sent a message", displayName(user.Nickname, env.ActorID)),
		map[string]string{"preview": preview(payload.Text)})
	return applied()
}

func (d *Document) applyCreatePost(env events.Envelope, payload *events.CreatePostPayload) Outcome {
	if !d.rules.EnablePosts {
		return rejected(RejectDisabled)
	}
	user, ok := d.presence.Get(env.ActorID)
	if !ok {
		return rejected(RejectUnknownActor)
	}

	post := Post{
		ID:        d.entityID(env, "post"),
		UserID:    env.ActorID,
		Nickname:  user.Nickname,
		Content:   payload.Content,
		Timestamp: d.timestamp(env),
		LikedBy:   make([]string, 0),
	}
	if len(payload.Tags) > 0 {
		post.Tags = append([]string(nil), payload.Tags...)
	}
	post.Media = payload.Media
	if !d.posts.Insert(post) {
		return rejected(RejectDuplicate)
	}
	d.presence.Touch(env.ActorID)
	d.appendActivity(env, ActivityPostCreated, user.Nickname,
		fmt.Sprintf("%s created a post", displayName(user.Nickname, env.ActorID)),
		map[string]string{"preview": preview(payload.Content)})
	return applied()
}

func (d *Document) applyLikePost(env events.Envelope, payload *events.LikePostPayload) Outcome {
	if !d.rules.EnablePosts {
		return rejected(RejectDisabled)
	}
	liked := false
	nickname := ""
	if user, ok := d.presence.Get(env.ActorID); ok {
		nickname = user.Nickname
	}
	found := d.posts.Mutate(payload.PostID, func(post *Post) {
		idx := -1
		for i, id := range post.LikedBy {
			if id == env.ActorID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			post.LikedBy = append(post.LikedBy[:idx], post.LikedBy[idx+1:]...)
		} else {
			post.LikedBy = append(post.LikedBy, env.ActorID)
			liked = true
		}
		post.Likes = len(post.LikedBy)
	})
	if !found {
		return rejected(RejectUnknownTarget)
	}
	if liked {
		d.appendActivity(env, ActivityPostLiked, nickname,
			fmt.Sprintf("%s liked a post", displayName(nickname, env.ActorID)),
			map[string]string{"postId": payload.PostID})
	}
	return applied()
}

func (d *Document) applyAddReaction(env events.Envelope, payload *events.AddReactionPayload) Outcome {
	if !d.rules.EnablePosts {
		return rejected(RejectDisabled)
	}
	found := d.posts.Mutate(payload.PostID, func(post *Post) {
		if post.Reactions == nil {
			post.Reactions = make(map[string][]string)
		}
		reactors := post.Reactions[payload.Emoji]
		idx := -1
		for i, id := range reactors {
			if id == env.ActorID {
				idx = i
				break
			}
		}
		if idx >= 0 {
			reactors = append(reactors[:idx], reactors[idx+1:]...)
		} else {
			reactors = append(reactors, env.ActorID)
		}
		if len(reactors) == 0 {
			delete(post.Reactions, payload.Emoji)
		} else {
			post.Reactions[payload.Emoji] = reactors
		}
		if len(post.Reactions) == 0 {
			post.Reactions = nil
		}
	})
	if !found {
		return rejected(RejectUnknownTarget)
	}
	return applied()
}

func (d *Document) applyUserTyping(env events.Envelope) Outcome {
	if !d.presence.StartTyping(env.ActorID) {
		return rejected(RejectUnknownActor)
	}
	return applied()
}

func (d *Document) applyUserStopTyping(env events.Envelope) Outcome {
	if _, ok := d.presence.Get(env.ActorID); !ok {
		return rejected(RejectUnknownActor)
	}
	d.presence.StopTyping(env.ActorID)
	return applied()
}

func (d *Document) applySetNickname(env events.Envelope, payload *events.SetNicknamePayload) Outcome {
	if !d.presence.Rename(env.ActorID, payload.Nickname) {
		return rejected(RejectUnknownActor)
	}
	if player, ok := d.players[env.ActorID]; ok {
		player.Nickname = payload.Nickname
	}
	return applied()
}

func (d *Document) applyPlayerUpdate(env events.Envelope, payload *events.PlayerUpdatePayload) Outcome {
	if !d.rules.EnableGame {
		return rejected(RejectDisabled)
	}
	player, ok := d.players[env.ActorID]
	if !ok {
		return rejected(RejectUnknownActor)
	}
	player.X = payload.X
	player.Y = payload.Y
	player.VX = payload.VX
	player.VY = payload.VY
	if payload.State != "" {
		player.State = payload.State
	}
	player.IsActive = true
	player.LastUpdate = d.timestamp(env)
	d.presence.Touch(env.ActorID)
	return applied()
}

func (d *Document) applyPlayerAction(env events.Envelope, payload *events.PlayerActionPayload) Outcome {
	if !d.rules.EnableGame {
		return rejected(RejectDisabled)
	}
	player, ok := d.players[env.ActorID]
	if !ok {
		return rejected(RejectUnknownActor)
	}

	now := d.timestamp(env)
	data := GameEventData{}

	switch payload.Action {
	case events.ActionJump:
		player.State = "jump"
	case events.ActionLand:
		player.State = d.rules.DefaultState
	case events.ActionCollectStar:
		value := payload.Value
		if value <= 0 {
			value = 10
		}
		player.Score += value
		data.Value = value
	case events.ActionDefeatEnemy:
		value := payload.Value
		if value <= 0 {
			value = 25
		}
		player.Score += value
		data.Value = value
	case events.ActionLevelComplete:
		player.Level++
		data.Level = player.Level
		if d.session != nil && player.Level > d.session.CurrentLevel {
			d.session.CurrentLevel = player.Level
		}
		d.appendActivity(env, ActivityAchievementEarned, player.Nickname,
			fmt.Sprintf("%s completed level %d", displayName(player.Nickname, env.ActorID), player.Level-1),
			map[string]string{"level": fmt.Sprintf("%d", player.Level-1)})
	case events.ActionPlayerDeath:
		if player.Lives > 0 {
			player.Lives--
		}
		spawn := d.rules.SpawnFor(d.spawnIdx[env.ActorID])
		player.X = spawn.X
		player.Y = spawn.Y
		player.VX = 0
		player.VY = 0
		player.State = d.rules.DefaultState
		data.X = spawn.X
		data.Y = spawn.Y
	case events.ActionPowerupCollect:
		name := payload.Powerup
		if name == "" {
			name = "powerup"
		}
		player.Powerups = append(player.Powerups, name)
		data.Powerup = name
	}

	player.LastUpdate = now
	d.presence.Touch(env.ActorID)

	event := GameEvent{
		ID:        d.entityID(env, "gevt"),
		Type:      payload.Action,
		PlayerID:  env.ActorID,
		Timestamp: now,
		Data:      data,
	}
	if !d.events.Insert(event) {
		return rejected(RejectDuplicate)
	}
	return applied()
}

func (d *Document) applyResetGame(env events.Envelope) Outcome {
	if !d.rules.EnableGame {
		return rejected(RejectDisabled)
	}
	now := d.clock().UnixMilli()
	for id, player := range d.players {
		spawn := d.rules.SpawnFor(d.spawnIdx[id])
		player.X = spawn.X
		player.Y = spawn.Y
		player.VX = 0
		player.VY = 0
		player.State = d.rules.DefaultState
		player.Score = 0
		player.Lives = d.rules.InitialLives
		player.Level = d.rules.InitialLevel
		player.Powerups = nil
		player.LastUpdate = now
	}
	if d.session != nil {
		d.session.CurrentLevel = d.rules.InitialLevel
		d.session.StartTime = now
		d.session.IsActive = d.activePlayerCount() > 0
	}
	d.events.Clear()
	return applied()
}

func (d *Document) appendActivity(env events.Envelope, typ ActivityType, nickname, description string, metadata map[string]string) {
	entry := Activity{
		ID:          d.ids.Next("act"),
		UserID:      env.ActorID,
		Nickname:    nickname,
		Type:        typ,
		Description: description,
		Timestamp:   d.timestamp(env),
		Metadata:    metadata,
	}
	d.activity.Insert(entry)
}

func (d *Document) activePlayerCount() int {
	count := 0
	for _, player := range d.players {
		if player.IsActive {
			count++
		}
	}
	return count
}

const previewLimit = 80

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}

func displayName(nickname, userID string) string {
	if nickname != "" {
		return nickname
	}
	return userID
}

// OnlineUsers exposes the presence read accessor.
func (d *Document) OnlineUsers() []presence.User { return d.presence.OnlineUsers() }

// TypingUsers exposes the currently-typing read accessor with the
// staleness rule applied.
func (d *Document) TypingUsers() []presence.TypingIndicator { return d.presence.TypingUsers() }

// SweepTyping drops stale typing indicators and reports how many went.
func (d *Document) SweepTyping() int { return d.presence.SweepTyping() }

// Messages returns the retained chat feed, oldest first.
func (d *Document) Messages() []ChatMessage { return d.messages.Snapshot() }

// Posts returns the retained post feed, newest first.
func (d *Document) Posts() []Post { return d.posts.Snapshot() }

// ActivityFeed returns the live activity log, newest first.
func (d *Document) ActivityFeed() []Activity { return d.activity.Snapshot() }

// GameEvents returns the retained game event log, oldest first.
func (d *Document) GameEvents() []GameEvent { return d.events.Snapshot() }

// Player returns a copy of one player record.
func (d *Document) Player(userID string) (Player, bool) {
	player, ok := d.players[userID]
	if !ok {
		return Player{}, false
	}
	copied := *player
	copied.Powerups = append([]string(nil), player.Powerups...)
	return copied, true
}

// Players returns copies of every player record sorted by id for stable
// broadcast output.
func (d *Document) Players() []Player {
	players := make([]Player, 0, len(d.players))
	for _, player := range d.players {
		copied := *player
		copied.Powerups = append([]string(nil), player.Powerups...)
		players = append(players, copied)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// Session returns a copy of the game session record, if the mode has one.
func (d *Document) Session() (GameSession, bool) {
	if d.session == nil {
		return GameSession{}, false
	}
	return *d.session, true
}

// Snapshot copies the full document for join responses and keyframes.
func (d *Document) Snapshot() Snapshot {
	users := d.presence.Users()
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })

	snapshot := Snapshot{
		Users:    users,
		Typing:   d.presence.TypingUsers(),
		Messages: d.messages.Snapshot(),
		Activity: d.activity.Snapshot(),
	}
	if d.rules.EnablePosts {
		posts := d.posts.Snapshot()
		for i := range posts {
			posts[i] = clonePost(posts[i])
		}
		snapshot.Posts = posts
	}
	if d.rules.EnableGame {
		snapshot.Players = d.Players()
		if session, ok := d.Session(); ok {
			snapshot.Session = &session
		}
		snapshot.Events = d.events.Snapshot()
	}
	return snapshot
}

func clonePost(post Post) Post {
	cloned := post
	cloned.LikedBy = append([]string(nil), post.LikedBy...)
	if len(post.Tags) > 0 {
		cloned.Tags = append([]string(nil), post.Tags...)
	}
	if len(post.Reactions) > 0 {
		reactions := make(map[string][]string, len(post.Reactions))
		for emoji, reactors := range post.Reactions {
			reactions[emoji] = append([]string(nil), reactors...)
		}
		cloned.Reactions = reactions
	}
	return cloned
}
