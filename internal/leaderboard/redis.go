package leaderboard

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	scoreKeyPrefix = "playroom:leaderboard:"
	nicknameKey    = "playroom:nicknames"
)

// Redis keeps leaderboards in sorted sets, one per game mode. Scores only
// move upward, so ZAddGT handles the best-score rule server side.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given Redis URL and verifies the connection.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client. Used by tests.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) RecordScore(ctx context.Context, mode, userID, nickname string, score int64) error {
	if mode == "" || userID == "" {
		return nil
	}
	pipe := r.client.Pipeline()
	pipe.ZAddGT(ctx, scoreKeyPrefix+mode, redis.Z{Score: float64(score), Member: userID})
	if nickname != "" {
		pipe.HSet(ctx, nicknameKey, userID, nickname)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (r *Redis) Top(ctx context.Context, mode string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.client.ZRevRangeWithScores(ctx, scoreKeyPrefix+mode, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if member, ok := row.Member.(string); ok {
			ids = append(ids, member)
		}
	}
	nicknames, err := r.client.HMGet(ctx, nicknameKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read nicknames: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		member, ok := row.Member.(string)
		if !ok {
			continue
		}
		entry := Entry{UserID: member, Score: int64(row.Score), Rank: i + 1}
		if i < len(nicknames) {
			if nickname, ok := nicknames[i].(string); ok {
				entry.Nickname = nickname
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
