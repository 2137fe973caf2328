package repository

import (
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// ChallengeFilter - фильтры списка челленджей
type ChallengeFilter struct {
	CategoryID *uint
	Difficulty string
	IsActive   *bool
	Search     string
}

// ParticipantRow - строка отчета об участниках челленджа
type ParticipantRow struct {
	UserID          uint
	Username        string
	Email           string
	Status          string
	StartedAt       time.Time
	CompletedAt     *time.Time
	CompletedStages int
}

// ChallengeRepository определяет методы для администрирования челленджей
type ChallengeRepository interface {
	// Create создает челлендж вместе с этапами
	Create(challenge *entity.Challenge) error
	// GetByID возвращает челлендж с категорией и этапами, отсортированными по порядку
	GetByID(id uint) (*entity.Challenge, error)
	List(filter ChallengeFilter, limit, offset int) ([]entity.Challenge, int64, error)
	// Update сохраняет поля челленджа; при replaceStages этапы полностью заменяются
	Update(challenge *entity.Challenge, replaceStages bool) error
	// Delete удаляет челлендж каскадно (этапы, участия, прогресс этапов)
	Delete(id uint) error
	CountParticipants(challengeID uint) (int64, error)
	ListParticipants(challengeID uint) ([]ParticipantRow, error)
}
