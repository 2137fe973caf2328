package service

import (
	"context"
	"errors"
	"log"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// ProgressLister отдает участия пользователя в челленджах
type ProgressLister interface {
	GetUserChallenges(ctx context.Context, userID uint, status string) ([]entity.ChallengeProgress, error)
}

// UserService предоставляет методы для работы с пользователями
type UserService struct {
	userRepo    repository.UserRepository
	leaderboard repository.LeaderboardRepository
	levels      *LevelService
	progress    ProgressLister
}

// NewUserService создает новый сервис пользователей. leaderboard может быть nil,
// тогда рейтинг строится только по PostgreSQL.
func NewUserService(
	userRepo repository.UserRepository,
	leaderboard repository.LeaderboardRepository,
	levels *LevelService,
	progress ProgressLister,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		leaderboard: leaderboard,
		levels:      levels,
		progress:    progress,
	}
}

// GetLeaderboard возвращает пагинированный список пользователей для лидерборда.
// Сначала читается sorted set в Redis, при ошибке или пустом наборе - PostgreSQL.
func (s *UserService) GetLeaderboard(ctx context.Context, page, pageSize int) (*dto.PaginatedLeaderboardResponse, error) {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	if s.leaderboard != nil {
		resp, err := s.leaderboardFromRedis(ctx, offset, pageSize)
		if err == nil && resp != nil {
			resp.Page = page
			resp.PerPage = pageSize
			return resp, nil
		}
		if err != nil {
			log.Printf("[UserService] Рейтинг в Redis недоступен, читаем из БД: %v", err)
		}
	}

	users, total, err := s.userRepo.GetLeaderboard(pageSize, offset)
	if err != nil {
		log.Printf("[UserService] Ошибка при получении лидерборда из репозитория: %v", err)
		return nil, err
	}

	userDTOs := make([]*dto.LeaderboardUserDTO, len(users))
	for i, user := range users {
		userDTOs[i] = leaderboardDTO(&user, offset+i+1)
	}

	return &dto.PaginatedLeaderboardResponse{
		Users:   userDTOs,
		Total:   total,
		Page:    page,
		PerPage: pageSize,
	}, nil
}

// leaderboardFromRedis возвращает nil без ошибки, если рейтинг еще не заполнен
func (s *UserService) leaderboardFromRedis(ctx context.Context, offset, limit int) (*dto.PaginatedLeaderboardResponse, error) {
	total, err := s.leaderboard.Count(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	entries, err := s.leaderboard.Top(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]uint, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]*entity.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	userDTOs := make([]*dto.LeaderboardUserDTO, 0, len(entries))
	for _, e := range entries {
		u, ok := byID[e.UserID]
		if !ok {
			continue
		}
		item := leaderboardDTO(u, int(e.Rank))
		item.XP = e.XP
		userDTOs = append(userDTOs, item)
	}

	return &dto.PaginatedLeaderboardResponse{Users: userDTOs, Total: total}, nil
}

func leaderboardDTO(u *entity.User, rank int) *dto.LeaderboardUserDTO {
	return &dto.LeaderboardUserDTO{
		Rank:           rank,
		UserID:         u.ID,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
		Level:          u.Level,
		XP:             u.XP,
	}
}

// GetUserStats возвращает игровую статистику пользователя
func (s *UserService) GetUserStats(ctx context.Context, userID uint) (*dto.UserStatsDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	info, err := s.levels.Describe(ctx, user.XP)
	if err != nil {
		return nil, err
	}

	stats := &dto.UserStatsDTO{
		UserID:      user.ID,
		XP:          user.XP,
		Level:       info.Level,
		NextLevelXP: info.NextLevelXP,
	}
	if info.NextLevelXP > 0 {
		stats.XPToNextLevel = info.NextLevelXP - user.XP
		if span := info.NextLevelXP - info.FloorXP; span > 0 {
			stats.LevelProgress = float64(user.XP-info.FloorXP) / float64(span)
		}
	} else {
		stats.LevelProgress = 1
	}

	progresses, err := s.progress.GetUserChallenges(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	for _, p := range progresses {
		switch p.Status {
		case entity.ProgressStatusCompleted:
			stats.CompletedChallenges++
		case entity.ProgressStatusActive:
			stats.ActiveChallenges++
		}
	}

	if user.IsActive {
		stats.Rank = s.rankOf(ctx, user)
	}
	return stats, nil
}

// rankOf берет место из Redis, иначе считает по БД
func (s *UserService) rankOf(ctx context.Context, user *entity.User) int64 {
	if s.leaderboard != nil {
		rank, err := s.leaderboard.Rank(ctx, user.ID)
		if err == nil {
			return rank
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[UserService] Ошибка чтения места пользователя ID=%d из Redis: %v", user.ID, err)
		}
	}
	above, err := s.userRepo.CountWithXPAbove(user.XP)
	if err != nil {
		log.Printf("[UserService] Ошибка подсчета места пользователя ID=%d: %v", user.ID, err)
		return 0
	}
	return above + 1
}

// SetUserActive включает или отключает пользователя и синхронизирует рейтинг
func (s *UserService) SetUserActive(ctx context.Context, userID uint, active bool) (*dto.UserDTO, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}

	if err := s.userRepo.SetActive(userID, active); err != nil {
		return nil, err
	}
	user.IsActive = active

	if s.leaderboard != nil {
		var lbErr error
		if active {
			lbErr = s.leaderboard.SetXP(ctx, userID, user.XP)
		} else {
			lbErr = s.leaderboard.Remove(ctx, userID)
		}
		if lbErr != nil {
			log.Printf("[UserService] Не удалось обновить рейтинг для пользователя ID=%d: %v", userID, lbErr)
		}
	}

	log.Printf("[UserService] Пользователь ID=%d: is_active=%v", userID, active)
	return dto.NewUserDTO(user), nil
}
