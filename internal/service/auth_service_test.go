package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/pkg/auth"
)

func newTestAuthService(t *testing.T, userRepo *MockUserRepository, leaderboard *MockLeaderboardRepository) (*AuthService, *auth.JWTService) {
	t.Helper()
	jwtService, err := auth.NewJWTService("test-secret", "test", time.Hour, time.Minute, newMemCache())
	require.NoError(t, err)

	var svc *AuthService
	if leaderboard != nil {
		svc, err = NewAuthService(userRepo, jwtService, leaderboard)
	} else {
		svc, err = NewAuthService(userRepo, jwtService, nil)
	}
	require.NoError(t, err)
	return svc, jwtService
}

func hashedUser(t *testing.T, id uint, email, password string) *entity.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &entity.User{ID: id, Username: "user", Email: email, Password: string(hash), Role: entity.RoleUser, Level: 1, IsActive: true}
}

// ============================================================================
// Register
// ============================================================================

func TestAuthService_Register(t *testing.T) {
	// Arrange
	userRepo := new(MockUserRepository)
	leaderboard := new(MockLeaderboardRepository)
	userRepo.On("GetByEmail", "alice@example.com").Return(nil, apperrors.ErrNotFound)
	userRepo.On("GetByUsername", "alice").Return(nil, apperrors.ErrNotFound)
	userRepo.On("Create", mock.MatchedBy(func(u *entity.User) bool {
		return u.Email == "alice@example.com" && u.Level == 1 && u.XP == 0 && u.IsActive && u.Role == entity.RoleUser
	})).Run(func(args mock.Arguments) {
		args.Get(0).(*entity.User).ID = 7
	}).Return(nil)
	leaderboard.On("SetXP", mock.Anything, uint(7), 0).Return(nil)

	svc, jwtService := newTestAuthService(t, userRepo, leaderboard)

	// Act
	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Username: " alice ",
		Email:    " Alice@Example.com ",
		Password: "secret1",
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(7), resp.User.ID)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 3600, resp.ExpiresIn)

	claims, err := jwtService.ParseToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	userRepo.AssertExpectations(t)
	leaderboard.AssertExpectations(t)
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	t.Run("email занят", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetByEmail", "a@b.c").Return(&entity.User{ID: 1}, nil)
		svc, _ := newTestAuthService(t, userRepo, nil)

		_, err := svc.Register(context.Background(), dto.RegisterRequest{Username: "abc", Email: "a@b.c", Password: "123456"})

		assert.Equal(t, apperrors.CodeEmailTaken, apperrors.CodeOf(err))
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("username занят", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		userRepo.On("GetByEmail", "a@b.c").Return(nil, apperrors.ErrNotFound)
		userRepo.On("GetByUsername", "abc").Return(&entity.User{ID: 1}, nil)
		svc, _ := newTestAuthService(t, userRepo, nil)

		_, err := svc.Register(context.Background(), dto.RegisterRequest{Username: "abc", Email: "a@b.c", Password: "123456"})

		assert.Equal(t, apperrors.CodeUsernameTaken, apperrors.CodeOf(err))
		userRepo.AssertNotCalled(t, "Create", mock.Anything)
	})

	t.Run("короткий пароль", func(t *testing.T) {
		userRepo := new(MockUserRepository)
		svc, _ := newTestAuthService(t, userRepo, nil)

		_, err := svc.Register(context.Background(), dto.RegisterRequest{Username: "abc", Email: "a@b.c", Password: "123"})

		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})
}

// ============================================================================
// Login / Logout
// ============================================================================

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name     string
		user     func(t *testing.T) *entity.User
		password string
		wantCode string
	}{
		{
			name:     "успешный вход",
			user:     func(t *testing.T) *entity.User { return hashedUser(t, 3, "bob@example.com", "correct") },
			password: "correct",
		},
		{
			name:     "неверный пароль",
			user:     func(t *testing.T) *entity.User { return hashedUser(t, 3, "bob@example.com", "correct") },
			password: "wrong",
			wantCode: apperrors.CodeInvalidCreds,
		},
		{
			name:     "пользователь не найден",
			user:     func(t *testing.T) *entity.User { return nil },
			password: "any",
			wantCode: apperrors.CodeInvalidCreds,
		},
		{
			name: "пользователь отключен",
			user: func(t *testing.T) *entity.User {
				u := hashedUser(t, 3, "bob@example.com", "correct")
				u.IsActive = false
				return u
			},
			password: "correct",
			wantCode: apperrors.CodeUserInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := new(MockUserRepository)
			if u := tt.user(t); u != nil {
				userRepo.On("GetByEmail", "bob@example.com").Return(u, nil)
			} else {
				userRepo.On("GetByEmail", "bob@example.com").Return(nil, apperrors.ErrNotFound)
			}
			svc, _ := newTestAuthService(t, userRepo, nil)

			resp, err := svc.Login(context.Background(), dto.LoginRequest{Email: "BOB@example.com", Password: tt.password})

			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, resp.AccessToken)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
		})
	}
}

func TestAuthService_LogoutRevokesToken(t *testing.T) {
	// Arrange
	userRepo := new(MockUserRepository)
	svc, jwtService := newTestAuthService(t, userRepo, nil)
	ctx := context.Background()

	token, err := jwtService.GenerateToken(&entity.User{ID: 9, Email: "x@y.z", Role: entity.RoleUser})
	require.NoError(t, err)
	claims, err := jwtService.ParseToken(ctx, token)
	require.NoError(t, err)

	// Act
	require.NoError(t, svc.Logout(ctx, claims))

	// Assert
	_, err = jwtService.ParseToken(ctx, token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
	assert.ErrorIs(t, svc.Logout(ctx, nil), apperrors.ErrUnauthorized)
}

func TestAuthService_GenerateWsTicket(t *testing.T) {
	svc, jwtService := newTestAuthService(t, new(MockUserRepository), nil)

	resp, err := svc.GenerateWsTicket(9, "x@y.z")

	require.NoError(t, err)
	assert.Equal(t, 60, resp.ExpiresIn)
	claims, err := jwtService.ParseWSTicket(resp.Ticket)
	require.NoError(t, err)
	assert.Equal(t, uint(9), claims.UserID)
}
