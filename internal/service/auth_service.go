package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/pkg/auth"
)

var (
	errEmailTaken    = apperrors.New(apperrors.KindConflict, apperrors.CodeEmailTaken, "user with this email already exists")
	errUsernameTaken = apperrors.New(apperrors.KindConflict, apperrors.CodeUsernameTaken, "user with this username already exists")
	errInvalidCreds  = apperrors.New(apperrors.KindUnauthorized, apperrors.CodeInvalidCreds, "invalid email or password")
)

// AuthService предоставляет методы для регистрации, входа и выхода
type AuthService struct {
	userRepo    repository.UserRepository
	jwtService  *auth.JWTService
	leaderboard repository.LeaderboardRepository
}

// NewAuthService создает новый сервис аутентификации и возвращает ошибку при проблемах
func NewAuthService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	leaderboard repository.LeaderboardRepository,
) (*AuthService, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("UserRepository is required for AuthService")
	}
	if jwtService == nil {
		return nil, fmt.Errorf("JWTService is required for AuthService")
	}
	return &AuthService{
		userRepo:    userRepo,
		jwtService:  jwtService,
		leaderboard: leaderboard,
	}, nil
}

// Register создает пользователя с уровнем 1 и сразу выдает токен
func (s *AuthService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if username == "" || email == "" {
		return nil, apperrors.Validation("username and email are required")
	}
	if len(req.Password) < 6 {
		return nil, apperrors.Validation("password must be at least 6 characters")
	}

	_, err := s.userRepo.GetByEmail(email)
	if err == nil {
		return nil, errEmailTaken
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email existence: %w", err)
	}

	_, err = s.userRepo.GetByUsername(username)
	if err == nil {
		return nil, errUsernameTaken
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}

	user := &entity.User{
		Username: username,
		Email:    email,
		Password: req.Password,
		Role:     entity.RoleUser,
		Level:    1,
		XP:       0,
		IsActive: true,
	}
	if err := s.userRepo.Create(user); err != nil {
		// гонка между проверкой и вставкой
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, errEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	log.Printf("[AuthService] Зарегистрирован пользователь ID=%d (%s)", user.ID, user.Username)

	if s.leaderboard != nil {
		if err := s.leaderboard.SetXP(ctx, user.ID, 0); err != nil {
			log.Printf("[AuthService] Не удалось добавить пользователя ID=%d в рейтинг: %v", user.ID, err)
		}
	}

	return s.issue(user)
}

// Login проверяет email и пароль и выдает токен
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.GetByEmail(normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, errInvalidCreds
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CheckPassword(req.Password) {
		log.Printf("[AuthService] Неверный пароль для пользователя ID=%d", user.ID)
		return nil, errInvalidCreds
	}
	if !user.IsActive {
		return nil, apperrors.ErrUserInactive
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *entity.User) (*dto.AuthResponse, error) {
	token, err := s.jwtService.GenerateToken(user)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &dto.AuthResponse{
		User:        dto.NewUserDTO(user),
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.jwtService.TokenTTL().Seconds()),
	}, nil
}

// Logout отзывает текущий токен до конца его срока жизни
func (s *AuthService) Logout(ctx context.Context, claims *auth.JWTCustomClaims) error {
	if claims == nil {
		return apperrors.ErrUnauthorized
	}
	if err := s.jwtService.InvalidateToken(ctx, claims); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	log.Printf("[AuthService] Пользователь ID=%d вышел, токен %s отозван", claims.UserID, claims.ID)
	return nil
}

// GetUserByID возвращает профиль пользователя
func (s *AuthService) GetUserByID(userID uint) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return dto.NewUserDTO(user), nil
}

// GenerateWsTicket выдает короткоживущий тикет для подключения к WebSocket
func (s *AuthService) GenerateWsTicket(userID uint, email string) (*dto.WSTicketResponse, error) {
	ticket, err := s.jwtService.GenerateWSTicket(userID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ws ticket: %w", err)
	}
	return &dto.WSTicketResponse{
		Ticket:    ticket,
		ExpiresIn: int(s.jwtService.WSTicketTTL().Seconds()),
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
