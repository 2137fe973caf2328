package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/service"
)

// CategoryHandler обрабатывает запросы категорий
type CategoryHandler struct {
	categoryService *service.CategoryService
}

// NewCategoryHandler создает новый обработчик категорий
func NewCategoryHandler(categoryService *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.ListCategories()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, categories)
}

func (h *CategoryHandler) CreateCategory(c *gin.Context) {
	var req dto.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.CreateCategory(&entity.Category{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, category)
}

func (h *CategoryHandler) UpdateCategory(c *gin.Context) {
	var req dto.CategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	category, err := h.categoryService.UpdateCategory(c.MustGet("categoryID").(uint), &entity.Category{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, category)
}

func (h *CategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryService.DeleteCategory(c.MustGet("categoryID").(uint)); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Category deleted")
}
