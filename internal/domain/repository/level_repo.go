package repository

import "github.com/yourusername/challengequest-api/internal/domain/entity"

// LevelRepository определяет методы для работы с таблицей уровней
type LevelRepository interface {
	Create(level *entity.Level) error
	GetByID(id uint) (*entity.Level, error)
	// List возвращает уровни по возрастанию MinXP
	List(activeOnly bool) ([]entity.Level, error)
	Update(level *entity.Level) error
	Delete(id uint) error
	// ListOverlapping возвращает активные уровни, пересекающие [minXP, maxXP], кроме excludeID
	ListOverlapping(minXP, maxXP int, excludeID uint) ([]entity.Level, error)
}
