package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// LevelRepo реализует repository.LevelRepository
type LevelRepo struct {
	db *gorm.DB
}

// NewLevelRepo создает новый репозиторий уровней
func NewLevelRepo(db *gorm.DB) *LevelRepo {
	return &LevelRepo{db: db}
}

func (r *LevelRepo) Create(level *entity.Level) error {
	if err := r.db.Create(level).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("level %d: %w", level.Number, apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *LevelRepo) GetByID(id uint) (*entity.Level, error) {
	var level entity.Level
	if err := r.db.First(&level, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &level, nil
}

func (r *LevelRepo) List(activeOnly bool) ([]entity.Level, error) {
	var levels []entity.Level
	query := r.db.Order("min_xp ASC, number ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Find(&levels).Error
	return levels, err
}

func (r *LevelRepo) Update(level *entity.Level) error {
	res := r.db.Model(&entity.Level{}).Where("id = ?", level.ID).Updates(map[string]interface{}{
		"number":    level.Number,
		"name":      level.Name,
		"min_xp":    level.MinXP,
		"max_xp":    level.MaxXP,
		"is_active": level.IsActive,
	})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("level %d: %w", level.Number, apperrors.ErrConflict)
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *LevelRepo) Delete(id uint) error {
	res := r.db.Delete(&entity.Level{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListOverlapping ищет активные диапазоны, пересекающиеся с [minXP, maxXP]
func (r *LevelRepo) ListOverlapping(minXP, maxXP int, excludeID uint) ([]entity.Level, error) {
	var levels []entity.Level
	err := r.db.Where("is_active = ? AND min_xp <= ? AND max_xp >= ? AND id <> ?", true, maxXP, minXP, excludeID).
		Order("min_xp ASC").
		Find(&levels).Error
	return levels, err
}
