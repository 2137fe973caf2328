package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/handler/dto"
	"github.com/yourusername/challengequest-api/internal/middleware"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/service"
)

// UserHandler обрабатывает запросы, связанные с пользователями
type UserHandler struct {
	userService *service.UserService
}

// NewUserHandler создает новый обработчик пользователей
func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetLeaderboard обрабатывает запрос на получение лидерборда
func (h *UserHandler) GetLeaderboard(c *gin.Context) {
	page, pageSize := pageParams(c)

	leaderboard, err := h.userService.GetLeaderboard(c.Request.Context(), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, leaderboard)
}

// GetMyStats возвращает XP, уровень, прогресс и место текущего пользователя
func (h *UserHandler) GetMyStats(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	stats, err := h.userService.GetUserStats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// SetUserActive блокирует или разблокирует пользователя (админ)
func (h *UserHandler) SetUserActive(c *gin.Context) {
	var req dto.SetUserActiveRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.userService.SetUserActive(c.Request.Context(), c.MustGet("targetUserID").(uint), *req.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}
