package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/handler/dto"
	"github.com/yourusername/challengequest-api/internal/middleware"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/service"
)

// AuthHandler обрабатывает запросы, связанные с аутентификацией
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler создает новый обработчик аутентификации
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register обрабатывает запрос на регистрацию
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	log.Printf("[AuthHandler] Пользователь ID=%d (%s) успешно зарегистрирован", resp.User.ID, resp.User.Email)
	response.Created(c, resp)
}

// Login обрабатывает запрос на вход
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Logout отзывает текущий токен доступа
func (h *AuthHandler) Logout(c *gin.Context) {
	claims, _ := middleware.Claims(c)
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Logged out successfully")
}

// GetMe возвращает профиль текущего пользователя
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, user)
}

// GetWsTicket выдает короткоживущий тикет для подключения к /ws
func (h *AuthHandler) GetWsTicket(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
		return
	}

	ticket, err := h.authService.GenerateWsTicket(userID, c.GetString(middleware.ContextEmail))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, ticket)
}
