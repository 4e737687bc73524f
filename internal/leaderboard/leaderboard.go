package leaderboard

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Entry is one ranked row for a game mode.
type Entry struct {
	UserID   string `json:"userId"`
	Nickname string `json:"nickname"`
	Score    int64  `json:"score"`
	Rank     int    `json:"rank"`
}

var ErrUnknownMode = errors.New("leaderboard: unknown mode")

// Store records best scores per game mode. Implementations must keep the
// highest score ever reported for a user.
type Store interface {
	RecordScore(ctx context.Context, mode, userID, nickname string, score int64) error
	Top(ctx context.Context, mode string, limit int) ([]Entry, error)
	Close() error
}

// Memory is the in-process fallback store used when no Redis address is
// configured and in tests.
type Memory struct {
	mu    sync.RWMutex
	modes map[string]map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{modes: make(map[string]map[string]Entry)}
}

func (m *Memory) RecordScore(_ context.Context, mode, userID, nickname string, score int64) error {
	if mode == "" || userID == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	board, ok := m.modes[mode]
	if !ok {
		board = make(map[string]Entry)
		m.modes[mode] = board
	}
	existing, ok := board[userID]
	if ok && existing.Score >= score {
		if nickname != "" && existing.Nickname != nickname {
			existing.Nickname = nickname
			board[userID] = existing
		}
		return nil
	}
	board[userID] = Entry{UserID: userID, Nickname: nickname, Score: score}
	return nil
}

func (m *Memory) Top(_ context.Context, mode string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	m.mu.RLock()
	board := m.modes[mode]
	entries := make([]Entry, 0, len(board))
	for _, entry := range board {
		entries = append(entries, entry)
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func (m *Memory) Close() error {
	return nil
}
