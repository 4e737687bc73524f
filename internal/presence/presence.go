package presence

import (
	"time"
)

// TypingStaleAfter is the window after the last keystroke event during
// which a peer still counts as typing. Indicators past the window are
// excluded from reads even before they are physically removed.
const TypingStaleAfter = 5 * time.Second

// User is one peer's presence record. Records survive leave so historical
// feed entries keep resolving their author.
type User struct {
	UserID          string `json:"userId"`
	Nickname        string `json:"nickname"`
	IsOnline        bool   `json:"isOnline"`
	JoinedAt        int64  `json:"joinedAt"`
	LastActive      int64  `json:"lastActive"`
	CurrentActivity string `json:"currentActivity,omitempty"`
}

// TypingIndicator records the last keystroke event for one peer.
type TypingIndicator struct {
	UserID    string `json:"userId"`
	Nickname  string `json:"nickname"`
	Timestamp int64  `json:"timestamp"`
}

// Tracker derives who is online and who is currently typing from the raw
// presence and typing maps. It is not safe for concurrent use; the owning
// document serializes access.
type Tracker struct {
	users  map[string]*User
	typing map[string]TypingIndicator
	clock  func() time.Time
}

// NewTracker constructs an empty tracker.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		users:  make(map[string]*User),
		typing: make(map[string]TypingIndicator),
		clock:  clock,
	}
}

// Join inserts or revives a presence record. Timestamps never go backwards.
func (t *Tracker) Join(userID, nickname string) *User {
	now := t.clock().UnixMilli()
	user, ok := t.users[userID]
	if !ok {
		user = &User{UserID: userID, JoinedAt: now}
		t.users[userID] = user
	}
	if nickname != "" {
		user.Nickname = nickname
	}
	user.IsOnline = true
	if now > user.LastActive {
		user.LastActive = now
	}
	return user
}

// Leave marks the record offline and stamps last-seen. The record is kept
// so message attribution keeps working. Any typing indicator is dropped.
func (t *Tracker) Leave(userID string) (*User, bool) {
	user, ok := t.users[userID]
	if !ok {
		return nil, false
	}
	user.IsOnline = false
	now := t.clock().UnixMilli()
	if now > user.LastActive {
		user.LastActive = now
	}
	delete(t.typing, userID)
	return user, true
}

// Touch refreshes the last-active timestamp for a known user.
func (t *Tracker) Touch(userID string) bool {
	user, ok := t.users[userID]
	if !ok {
		return false
	}
	now := t.clock().UnixMilli()
	if now > user.LastActive {
		user.LastActive = now
	}
	return true
}

// Rename updates the live presence record. Historical feed entries keep
// their creation-time nickname snapshot.
func (t *Tracker) Rename(userID, nickname string) bool {
	user, ok := t.users[userID]
	if !ok || nickname == "" {
		return false
	}
	user.Nickname = nickname
	if indicator, typing := t.typing[userID]; typing {
		indicator.Nickname = nickname
		t.typing[userID] = indicator
	}
	return true
}

// SetActivity updates the free-text activity field for a known user.
func (t *Tracker) SetActivity(userID, activity string) bool {
	user, ok := t.users[userID]
	if !ok {
		return false
	}
	user.CurrentActivity = activity
	return true
}

// Get returns the presence record for a user id.
func (t *Tracker) Get(userID string) (*User, bool) {
	user, ok := t.users[userID]
	return user, ok
}

// StartTyping upserts the typing indicator for a known user.
func (t *Tracker) StartTyping(userID string) bool {
	user, ok := t.users[userID]
	if !ok {
		return false
	}
	t.typing[userID] = TypingIndicator{
		UserID:    userID,
		Nickname:  user.Nickname,
		Timestamp: t.clock().UnixMilli(),
	}
	return true
}

// StopTyping removes the typing indicator, if any.
func (t *Tracker) StopTyping(userID string) {
	delete(t.typing, userID)
}

// OnlineUsers returns every record currently marked online.
func (t *Tracker) OnlineUsers() []User {
	online := make([]User, 0, len(t.users))
	for _, user := range t.users {
		if user.IsOnline {
			online = append(online, *user)
		}
	}
	return online
}

// OnlineCount reports the number of records currently marked online.
func (t *Tracker) OnlineCount() int {
	count := 0
	for _, user := range t.users {
		if user.IsOnline {
			count++
		}
	}
	return count
}

// TypingUsers returns indicators younger than the staleness window. Stale
// entries are purged opportunistically on the way through.
func (t *Tracker) TypingUsers() []TypingIndicator {
	now := t.clock().UnixMilli()
	cutoff := now - TypingStaleAfter.Milliseconds()
	typing := make([]TypingIndicator, 0, len(t.typing))
	for id, indicator := range t.typing {
		if indicator.Timestamp < cutoff {
			delete(t.typing, id)
			continue
		}
		typing = append(typing, indicator)
	}
	return typing
}

// SweepTyping drops every indicator past the staleness window and reports
// how many were removed.
func (t *Tracker) SweepTyping() int {
	cutoff := t.clock().UnixMilli() - TypingStaleAfter.Milliseconds()
	removed := 0
	for id, indicator := range t.typing {
		if indicator.Timestamp < cutoff {
			delete(t.typing, id)
			removed++
		}
	}
	return removed
}

// Users returns a copy of every presence record, online or not.
func (t *Tracker) Users() []User {
	users := make([]User, 0, len(t.users))
	for _, user := range t.users {
		users = append(users, *user)
	}
	return users
}
