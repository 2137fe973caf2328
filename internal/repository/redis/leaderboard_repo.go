package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

const (
	// Хеш-тег держит основной и временный ключ в одном слоте кластера (нужно для RENAME)
	leaderboardXPKey = "{leaderboard}:xp"
	// Размер пачки ZADD при полной перестройке рейтинга
	rebuildChunkSize = 500
)

// LeaderboardRepo - рейтинг по XP в sorted set: member = ID пользователя, score = XP
type LeaderboardRepo struct {
	client redis.UniversalClient
	key    string
}

// NewLeaderboardRepo создает репозиторий рейтинга
func NewLeaderboardRepo(client redis.UniversalClient, prefix string) (*LeaderboardRepo, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil for LeaderboardRepo")
	}
	return &LeaderboardRepo{client: client, key: prefix + leaderboardXPKey}, nil
}

func member(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// IncrementXP увеличивает XP пользователя в рейтинге
func (r *LeaderboardRepo) IncrementXP(ctx context.Context, userID uint, delta int) error {
	if err := r.client.ZIncrBy(ctx, r.key, float64(delta), member(userID)).Err(); err != nil {
		return fmt.Errorf("failed to increment leaderboard xp: %w", err)
	}
	return nil
}

// SetXP записывает точное значение XP пользователя
func (r *LeaderboardRepo) SetXP(ctx context.Context, userID uint, xp int) error {
	err := r.client.ZAdd(ctx, r.key, &redis.Z{Score: float64(xp), Member: member(userID)}).Err()
	if err != nil {
		return fmt.Errorf("failed to set leaderboard xp: %w", err)
	}
	return nil
}

// Remove убирает пользователя из рейтинга (например, при деактивации)
func (r *LeaderboardRepo) Remove(ctx context.Context, userID uint) error {
	if err := r.client.ZRem(ctx, r.key, member(userID)).Err(); err != nil {
		return fmt.Errorf("failed to remove user from leaderboard: %w", err)
	}
	return nil
}

// Top возвращает страницу рейтинга по убыванию XP
func (r *LeaderboardRepo) Top(ctx context.Context, offset, limit int) ([]repository.LeaderboardEntry, error) {
	if limit <= 0 {
		return []repository.LeaderboardEntry{}, nil
	}
	start := int64(offset)
	players, err := r.client.ZRevRangeWithScores(ctx, r.key, start, start+int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard page: %w", err)
	}

	entries := make([]repository.LeaderboardEntry, 0, len(players))
	for i, z := range players {
		raw, _ := z.Member.(string)
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, repository.LeaderboardEntry{
			UserID: uint(id),
			XP:     int(z.Score),
			Rank:   start + int64(i) + 1,
		})
	}
	return entries, nil
}

// Rank возвращает место пользователя (от 1)
func (r *LeaderboardRepo) Rank(ctx context.Context, userID uint) (int64, error) {
	rank, err := r.client.ZRevRank(ctx, r.key, member(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to get leaderboard rank: %w", err)
	}
	// ZRevRank отдает ранг с нуля
	return rank + 1, nil
}

// Count возвращает число пользователей в рейтинге
func (r *LeaderboardRepo) Count(ctx context.Context) (int64, error) {
	count, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get leaderboard size: %w", err)
	}
	return count, nil
}

// Rebuild собирает рейтинг во временном ключе и подменяет основной через RENAME,
// поэтому читатели не видят частично заполненный набор
func (r *LeaderboardRepo) Rebuild(ctx context.Context, entries []repository.LeaderboardEntry) error {
	if len(entries) == 0 {
		return r.client.Del(ctx, r.key).Err()
	}

	tmpKey := r.key + ":rebuild"
	pipe := r.client.Pipeline()
	pipe.Del(ctx, tmpKey)
	for start := 0; start < len(entries); start += rebuildChunkSize {
		end := start + rebuildChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		members := make([]*redis.Z, 0, end-start)
		for _, e := range entries[start:end] {
			members = append(members, &redis.Z{Score: float64(e.XP), Member: member(e.UserID)})
		}
		pipe.ZAdd(ctx, tmpKey, members...)
	}
	pipe.Rename(ctx, tmpKey, r.key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to rebuild leaderboard: %w", err)
	}
	return nil
}
