package repository

import (
	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByIDs(ids []uint) ([]entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	SetActive(userID uint, active bool) error
	UpdateLevel(userID uint, level int) error
	// ListBatch возвращает пользователей с ID > afterID по возрастанию ID (для пакетных пересчетов)
	ListBatch(afterID uint, limit int) ([]entity.User, error)
	// GetLeaderboard возвращает пользователей для лидерборда с пагинацией и общим количеством
	GetLeaderboard(limit, offset int) ([]entity.User, int64, error)
	// CountWithXPAbove возвращает число активных пользователей с XP строго больше xp
	CountWithXPAbove(xp int) (int64, error)
}
