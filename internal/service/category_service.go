package service

import (
	"errors"
	"strings"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// CategoryService управляет категориями челленджей
type CategoryService struct {
	categoryRepo repository.CategoryRepository
}

// NewCategoryService создает новый сервис категорий
func NewCategoryService(categoryRepo repository.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

func (s *CategoryService) ListCategories() ([]entity.Category, error) {
	categories, err := s.categoryRepo.List()
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []entity.Category{}
	}
	return categories, nil
}

func (s *CategoryService) CreateCategory(category *entity.Category) (*entity.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if err := s.categoryRepo.Create(category); err != nil {
		return nil, mapCategoryConflict(err)
	}
	return category, nil
}

func (s *CategoryService) UpdateCategory(id uint, category *entity.Category) (*entity.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if _, err := s.categoryRepo.GetByID(id); err != nil {
		return nil, err
	}
	category.ID = id
	if err := s.categoryRepo.Update(category); err != nil {
		return nil, mapCategoryConflict(err)
	}
	return s.categoryRepo.GetByID(id)
}

// DeleteCategory удаляет категорию; ее челленджи остаются без категории
func (s *CategoryService) DeleteCategory(id uint) error {
	return s.categoryRepo.Delete(id)
}

func mapCategoryConflict(err error) error {
	if errors.Is(err, apperrors.ErrConflict) {
		return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeCategoryExists, "category with this name already exists", err)
	}
	return err
}
