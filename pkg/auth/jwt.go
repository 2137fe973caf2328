package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

const (
	// UsageWSTicket помечает короткоживущий тикет для подключения к WebSocket
	UsageWSTicket = "websocket_auth"

	blacklistPrefix = "blacklist:"
	wsAudience      = "challengequest-ws"
)

// Ошибки разбора токенов
var (
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenInvalid   = errors.New("invalid token")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrTicketUsage    = errors.New("invalid ticket usage")
)

// JWTCustomClaims содержит пользовательские поля для токена
type JWTCustomClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Usage  string `json:"usage,omitempty"`
	jwt.RegisteredClaims
}

// JWTService выпускает и проверяет токены доступа и WS-тикеты.
// Отозванные токены хранятся в кеше по jti до истечения срока действия.
type JWTService struct {
	secret         []byte
	issuer         string
	tokenTTL       time.Duration
	wsTicketExpiry time.Duration
	cache          repository.CacheRepository
	now            func() time.Time
}

// NewJWTService создает новый сервис JWT. cache может быть nil - тогда отзыв токенов недоступен.
func NewJWTService(secret, issuer string, tokenTTL, wsTicketTTL time.Duration, cache repository.CacheRepository) (*JWTService, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret is required")
	}
	if issuer == "" {
		issuer = "challengequest-api"
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if wsTicketTTL <= 0 {
		wsTicketTTL = 60 * time.Second
	}
	return &JWTService{
		secret:         []byte(secret),
		issuer:         issuer,
		tokenTTL:       tokenTTL,
		wsTicketExpiry: wsTicketTTL,
		cache:          cache,
		now:            time.Now,
	}, nil
}

// SetClock подменяет источник времени выпуска токенов (используется в тестах)
func (s *JWTService) SetClock(now func() time.Time) {
	s.now = now
}

// TokenTTL возвращает время жизни токена доступа
func (s *JWTService) TokenTTL() time.Duration {
	return s.tokenTTL
}

// WSTicketTTL возвращает время жизни WS-тикета
func (s *JWTService) WSTicketTTL() time.Duration {
	return s.wsTicketExpiry
}

// GenerateToken создает токен доступа для пользователя
func (s *JWTService) GenerateToken(user *entity.User) (string, error) {
	now := s.now()
	claims := &JWTCustomClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации токена для пользователя ID=%d: %v", user.ID, err)
		return "", err
	}
	return tokenString, nil
}

// ParseToken проверяет токен доступа. WS-тикеты и отозванные токены отклоняются.
func (s *JWTService) ParseToken(ctx context.Context, tokenString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != "" {
		log.Printf("[JWT] Токен с назначением %q использован как токен доступа, пользователь ID=%d", claims.Usage, claims.UserID)
		return nil, ErrTicketUsage
	}

	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Недоступность кеша не блокирует вход
		log.Printf("[JWT] Не удалось проверить отзыв токена jti=%s: %v", claims.ID, err)
	} else if revoked {
		log.Printf("[JWT] Отозванный токен jti=%s, пользователь ID=%d", claims.ID, claims.UserID)
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// InvalidateToken отзывает токен до истечения его срока действия
func (s *JWTService) InvalidateToken(ctx context.Context, claims *JWTCustomClaims) error {
	if s.cache == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Time.Sub(s.now())
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, blacklistPrefix+claims.ID, claims.UserID, ttl); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	log.Printf("[JWT] Токен jti=%s пользователя ID=%d отозван на %v", claims.ID, claims.UserID, ttl)
	return nil
}

// IsRevoked сообщает, отозван ли токен с указанным jti
func (s *JWTService) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if s.cache == nil || jti == "" {
		return false, nil
	}
	return s.cache.Exists(ctx, blacklistPrefix+jti)
}

// GenerateWSTicket создает короткоживущий JWT для аутентификации WebSocket
func (s *JWTService) GenerateWSTicket(userID uint, email string) (string, error) {
	now := s.now()
	claims := &JWTCustomClaims{
		UserID: userID,
		Email:  email,
		Usage:  UsageWSTicket,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  jwt.ClaimStrings{wsAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.wsTicketExpiry)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		log.Printf("[JWT] Ошибка генерации WS-тикета для пользователя ID=%d: %v", userID, err)
		return "", err
	}
	log.Printf("[JWT] WS-тикет сгенерирован для пользователя ID=%d, истекает через %v", userID, s.wsTicketExpiry)
	return tokenString, nil
}

// ParseWSTicket проверяет JWT, используемый как WS-тикет
func (s *JWTService) ParseWSTicket(ticketString string) (*JWTCustomClaims, error) {
	claims, err := s.parse(ticketString)
	if err != nil {
		return nil, err
	}
	if claims.Usage != UsageWSTicket {
		return nil, ErrTicketUsage
	}
	return claims, nil
}

func (s *JWTService) parse(tokenString string) (*JWTCustomClaims, error) {
	claims := &JWTCustomClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) {
			switch {
			case ve.Errors&jwt.ValidationErrorMalformed != 0:
				return nil, ErrTokenMalformed
			case ve.Errors&jwt.ValidationErrorExpired != 0:
				return nil, apperrors.ErrExpiredToken
			case ve.Errors&jwt.ValidationErrorSignatureInvalid != 0:
				log.Printf("[JWT] Неверная подпись токена для пользователя ID=%d", claims.UserID)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
