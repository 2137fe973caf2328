package repository

import "context"

// LeaderboardEntry - позиция пользователя в рейтинге по XP
type LeaderboardEntry struct {
	UserID uint
	XP     int
	Rank   int64
}

// LeaderboardRepository - быстрый рейтинг по XP (sorted set)
type LeaderboardRepository interface {
	IncrementXP(ctx context.Context, userID uint, delta int) error
	SetXP(ctx context.Context, userID uint, xp int) error
	// Remove убирает пользователя из рейтинга
	Remove(ctx context.Context, userID uint) error
	// Top возвращает записи, начиная с offset, с рангом от 1
	Top(ctx context.Context, offset, limit int) ([]LeaderboardEntry, error)
	// Rank возвращает место пользователя (от 1) или ErrNotFound
	Rank(ctx context.Context, userID uint) (int64, error)
	Count(ctx context.Context) (int64, error)
	// Rebuild атомарно заменяет содержимое рейтинга
	Rebuild(ctx context.Context, entries []LeaderboardEntry) error
}
