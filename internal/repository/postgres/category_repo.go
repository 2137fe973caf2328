package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// CategoryRepo реализует repository.CategoryRepository
type CategoryRepo struct {
	db *gorm.DB
}

// NewCategoryRepo создает новый репозиторий категорий
func NewCategoryRepo(db *gorm.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Create(category *entity.Category) error {
	if err := r.db.Create(category).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category %q: %w", category.Name, apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *CategoryRepo) GetByID(id uint) (*entity.Category, error) {
	var category entity.Category
	if err := r.db.First(&category, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &category, nil
}

func (r *CategoryRepo) List() ([]entity.Category, error) {
	var categories []entity.Category
	err := r.db.Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *CategoryRepo) Update(category *entity.Category) error {
	err := r.db.Model(&entity.Category{}).Where("id = ?", category.ID).Updates(map[string]interface{}{
		"name":        category.Name,
		"description": category.Description,
		"icon":        category.Icon,
	}).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", category.Name, apperrors.ErrConflict)
	}
	return err
}

// Delete удаляет категорию; челленджи остаются без категории
func (r *CategoryRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.Challenge{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.Category{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}
