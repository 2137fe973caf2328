package repository

import "github.com/yourusername/challengequest-api/internal/domain/entity"

// CategoryRepository определяет методы для работы с категориями
type CategoryRepository interface {
	Create(category *entity.Category) error
	GetByID(id uint) (*entity.Category, error)
	List() ([]entity.Category, error)
	Update(category *entity.Category) error
	Delete(id uint) error
}
