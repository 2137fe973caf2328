package middleware

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/pkg/auth"
)

// Ключи контекста Gin, которые заполняет RequireAuth
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// Коды ошибок аутентификации
const (
	CodeTokenMissing = "TOKEN_MISSING"
	CodeTokenFormat  = "TOKEN_FORMAT"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenRevoked = "TOKEN_REVOKED"
)

// AuthMiddleware обеспечивает аутентификацию для защищенных маршрутов
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

// NewAuthMiddleware создает новый middleware аутентификации
func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth проверяет токен из заголовка Authorization: Bearer {token}
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Fail(c, http.StatusUnauthorized, CodeTokenMissing, "Authorization header is required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			response.Fail(c, http.StatusUnauthorized, CodeTokenFormat, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := m.jwtService.ParseToken(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrExpiredToken):
				response.Fail(c, http.StatusUnauthorized, CodeTokenExpired, "Token has expired")
			case errors.Is(err, auth.ErrTokenRevoked):
				response.Fail(c, http.StatusUnauthorized, CodeTokenRevoked, "Token has been revoked")
			default:
				log.Printf("[AuthMiddleware] Отклонен токен для %s: %v", c.FullPath(), err)
				response.Fail(c, http.StatusUnauthorized, CodeTokenInvalid, "Invalid or expired token")
			}
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// AdminOnly пропускает только пользователей с ролью admin. Применяется после RequireAuth.
func (m *AuthMiddleware) AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			response.Fail(c, http.StatusUnauthorized, apperrors.CodeUnauthorized, "Unauthorized")
			return
		}
		if c.GetString(ContextRole) != entity.RoleAdmin {
			response.Fail(c, http.StatusForbidden, apperrors.CodeForbidden, "Admin rights required")
			return
		}
		c.Next()
	}
}

// UserID возвращает ID аутентифицированного пользователя
func UserID(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// Claims возвращает claims текущего токена
func Claims(c *gin.Context) (*auth.JWTCustomClaims, bool) {
	v, exists := c.Get(ContextClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.JWTCustomClaims)
	return claims, ok
}
