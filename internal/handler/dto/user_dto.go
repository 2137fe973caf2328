package dto

import (
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// UserDTO - профиль пользователя без чувствительных полей
type UserDTO struct {
	ID             uint      `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture string    `json:"profile_picture"`
	Role           string    `json:"role"`
	Level          int       `json:"level"`
	XP             int       `json:"xp"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewUserDTO формирует профиль из сущности
func NewUserDTO(u *entity.User) *UserDTO {
	return &UserDTO{
		ID:             u.ID,
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
		Level:          u.Level,
		XP:             u.XP,
		IsActive:       u.IsActive,
		CreatedAt:      u.CreatedAt,
	}
}

// LeaderboardUserDTO представляет одного пользователя в лидерборде
type LeaderboardUserDTO struct {
	Rank           int    `json:"rank"`            // Место пользователя в рейтинге
	UserID         uint   `json:"user_id"`         // ID пользователя
	Username       string `json:"username"`        // Имя пользователя
	ProfilePicture string `json:"profile_picture"` // Аватар пользователя
	Level          int    `json:"level"`
	XP             int    `json:"xp"`
}

// PaginatedLeaderboardResponse представляет пагинированный ответ для лидерборда
type PaginatedLeaderboardResponse struct {
	Users   []*LeaderboardUserDTO `json:"users"`    // Список пользователей на странице
	Total   int64                 `json:"total"`    // Общее количество пользователей в лидерборде
	Page    int                   `json:"page"`     // Текущая страница
	PerPage int                   `json:"per_page"` // Количество пользователей на странице
}

// UserStatsDTO - игровая статистика пользователя
type UserStatsDTO struct {
	UserID              uint    `json:"user_id"`
	XP                  int     `json:"xp"`
	Level               int     `json:"level"`
	NextLevelXP         int     `json:"next_level_xp"` // 0 - максимальный уровень
	XPToNextLevel       int     `json:"xp_to_next_level"`
	LevelProgress       float64 `json:"level_progress"` // 0..1 внутри текущего уровня
	CompletedChallenges int     `json:"completed_challenges"`
	ActiveChallenges    int     `json:"active_challenges"`
	Rank                int64   `json:"rank"` // 0 - пользователь вне рейтинга
}

// SetUserActiveRequest - тело PUT /api/admin/users/:id/active
type SetUserActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}
