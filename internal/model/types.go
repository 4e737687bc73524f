package model

import (
	"playroom/server/internal/events"
	"playroom/server/internal/presence"
)

// ChatMessage is one feed entry. Nickname is snapshotted at send time so a
// later rename never rewrites history.
type ChatMessage struct {
	ID        string             `json:"id"`
	UserID    string             `json:"userId"`
	Nickname  string             `json:"nickname"`
	Text      string             `json:"text"`
	Timestamp int64              `json:"timestamp"`
	Kind      events.MessageKind `json:"type"`
}

func (m ChatMessage) FeedID() string { return m.ID }

// Post is one social feed entry. Likes is always |LikedBy|.
type Post struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Nickname  string              `json:"nickname"`
	Content   string              `json:"content"`
	Timestamp int64               `json:"timestamp"`
	Likes     int                 `json:"likes"`
	LikedBy   []string            `json:"likedBy"`
	Tags      []string            `json:"tags,omitempty"`
	Media     string              `json:"media,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

func (p Post) FeedID() string { return p.ID }

// ActivityType enumerates the live-activity taxonomy.
type ActivityType string

const (
	ActivityPostCreated       ActivityType = "post_created"
	ActivityPostLiked         ActivityType = "post_liked"
	ActivityUserJoined        ActivityType = "user_joined"
	ActivityUserLeft          ActivityType = "user_left"
	ActivityMessageSent       ActivityType = "message_sent"
	ActivityAchievementEarned ActivityType = "achievement_earned"
)

// Activity is one live-activity entry. Metadata carries short previews,
// never full payloads.
type Activity struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Nickname    string            `json:"nickname"`
	Type        ActivityType      `json:"type"`
	Description string            `json:"description"`
	Timestamp   int64             `json:"timestamp"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (a Activity) FeedID() string { return a.ID }

// Player is one peer's transient game state. Records are marked inactive on
// leave, never deleted, and reset-game restores the transient fields while
// preserving identity.
type Player struct {
	ID         string   `json:"id"`
	Nickname   string   `json:"nickname"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	VX         float64  `json:"vx"`
	VY         float64  `json:"vy"`
	State      string   `json:"state"`
	Score      int      `json:"score"`
	Lives      int      `json:"lives"`
	Level      int      `json:"level"`
	Powerups   []string `json:"powerups,omitempty"`
	LastUpdate int64    `json:"lastUpdate"`
	IsActive   bool     `json:"isActive"`
}

// GameSession describes the single active game per room.
type GameSession struct {
	ID           string `json:"id"`
	CurrentLevel int    `json:"currentLevel"`
	IsActive     bool   `json:"isActive"`
	MaxPlayers   int    `json:"maxPlayers"`
	GameMode     string `json:"gameMode"`
	StartTime    int64  `json:"startTime"`
}

// GameEventData carries only the fields the emitting action needs.
type GameEventData struct {
	Powerup string  `json:"powerup,omitempty"`
	Value   int     `json:"value,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Level   int     `json:"level,omitempty"`
}

// GameEvent is one entry in the bounded game event log.
type GameEvent struct {
	ID        string        `json:"id"`
	Type      events.Action `json:"type"`
	PlayerID  string        `json:"playerId"`
	Timestamp int64         `json:"timestamp"`
	Data      GameEventData `json:"data"`
}

func (e GameEvent) FeedID() string { return e.ID }

// Snapshot is a full copy of a document, used for join responses and
// keyframes. Collections are copied so callers can hold them across ticks.
type Snapshot struct {
	Users    []presence.User            `json:"users"`
	Typing   []presence.TypingIndicator `json:"typing,omitempty"`
	Messages []ChatMessage              `json:"messages,omitempty"`
	Posts    []Post                     `json:"posts,omitempty"`
	Activity []Activity                 `json:"activity,omitempty"`
	Players  []Player                   `json:"players,omitempty"`
	Session  *GameSession               `json:"session,omitempty"`
	Events   []GameEvent                `json:"events,omitempty"`
}
