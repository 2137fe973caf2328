package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/handler/dto"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
	"github.com/yourusername/challengequest-api/internal/service/progression"
)

const (
	levelsCacheKeyActive = "levels:active"
	levelsCacheKeyAll    = "levels:all"
	recomputeBatchSize   = 500
)

// LevelService управляет таблицей уровней и пересчетом уровней пользователей.
// Номер уровня всегда вычисляется через progression.LevelFor.
type LevelService struct {
	levelRepo   repository.LevelRepository
	userRepo    repository.UserRepository
	leaderboard repository.LeaderboardRepository
	cache       repository.CacheRepository
	cacheTTL    time.Duration
	xpPerLevel  int
}

// NewLevelService создает сервис уровней. leaderboard и cache могут быть nil.
func NewLevelService(
	levelRepo repository.LevelRepository,
	userRepo repository.UserRepository,
	leaderboard repository.LeaderboardRepository,
	cache repository.CacheRepository,
	cacheTTL time.Duration,
	xpPerLevel int,
) *LevelService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if xpPerLevel <= 0 {
		xpPerLevel = progression.DefaultXPPerLevel
	}
	return &LevelService{
		levelRepo:   levelRepo,
		userRepo:    userRepo,
		leaderboard: leaderboard,
		cache:       cache,
		cacheTTL:    cacheTTL,
		xpPerLevel:  xpPerLevel,
	}
}

// ListLevels возвращает уровни по возрастанию MinXP, сначала из кеша
func (s *LevelService) ListLevels(ctx context.Context, activeOnly bool) ([]entity.Level, error) {
	key := levelsCacheKeyAll
	if activeOnly {
		key = levelsCacheKeyActive
	}

	if s.cache != nil {
		var cached []entity.Level
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Printf("[LevelService] Ошибка чтения кеша уровней: %v", err)
		}
	}

	levels, err := s.levelRepo.List(activeOnly)
	if err != nil {
		return nil, err
	}
	if levels == nil {
		levels = []entity.Level{}
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, levels, s.cacheTTL); err != nil {
			log.Printf("[LevelService] Ошибка записи кеша уровней: %v", err)
		}
	}
	return levels, nil
}

// LevelInfo - положение XP в таблице уровней
type LevelInfo struct {
	Level       int
	FloorXP     int
	NextLevelXP int // 0 - следующего уровня нет
}

// Describe вычисляет уровень и границы текущего уровня по активной таблице
func (s *LevelService) Describe(ctx context.Context, xp int) (LevelInfo, error) {
	bands, err := s.ListLevels(ctx, true)
	if err != nil {
		return LevelInfo{}, err
	}
	return LevelInfo{
		Level:       progression.LevelFor(bands, xp, s.xpPerLevel),
		FloorXP:     progression.LevelFloorXP(bands, xp, s.xpPerLevel),
		NextLevelXP: progression.NextLevelXP(bands, xp, s.xpPerLevel),
	}, nil
}

func (s *LevelService) CreateLevel(ctx context.Context, level *entity.Level) (*entity.Level, error) {
	if err := s.validate(level, 0); err != nil {
		return nil, err
	}
	if err := s.levelRepo.Create(level); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.KindConflict, apperrors.CodeConflict, fmt.Sprintf("level %d already exists", level.Number), err)
		}
		return nil, err
	}
	s.invalidate(ctx)
	log.Printf("[LevelService] Уровень %d создан: [%d, %d]", level.Number, level.MinXP, level.MaxXP)
	return level, nil
}

func (s *LevelService) UpdateLevel(ctx context.Context, id uint, level *entity.Level) (*entity.Level, error) {
	if _, err := s.levelRepo.GetByID(id); err != nil {
		return nil, err
	}
	level.ID = id
	if err := s.validate(level, id); err != nil {
		return nil, err
	}
	if err := s.levelRepo.Update(level); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Wrap(apperrors.KindConflict, apperrors.CodeConflict, fmt.Sprintf("level %d already exists", level.Number), err)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return s.levelRepo.GetByID(id)
}

func (s *LevelService) DeleteLevel(ctx context.Context, id uint) error {
	if err := s.levelRepo.Delete(id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// validate проверяет диапазон и отсутствие пересечений с другими активными уровнями
func (s *LevelService) validate(level *entity.Level, excludeID uint) error {
	level.Name = strings.TrimSpace(level.Name)
	switch {
	case level.Number < 1:
		return apperrors.Validation("level number must be at least 1")
	case level.MinXP < 0:
		return apperrors.Validation("minXp must not be negative")
	case level.MinXP > level.MaxXP:
		return apperrors.Validation("minXp must not exceed maxXp")
	}
	if !level.IsActive {
		return nil
	}

	overlapping, err := s.levelRepo.ListOverlapping(level.MinXP, level.MaxXP, excludeID)
	if err != nil {
		return err
	}
	if len(overlapping) > 0 {
		o := overlapping[0]
		return apperrors.New(apperrors.KindConflict, apperrors.CodeLevelOverlap,
			fmt.Sprintf("XP range [%d, %d] overlaps level %d [%d, %d]", level.MinXP, level.MaxXP, o.Number, o.MinXP, o.MaxXP))
	}
	return nil
}

func (s *LevelService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, levelsCacheKeyActive, levelsCacheKeyAll); err != nil {
		log.Printf("[LevelService] Ошибка сброса кеша уровней: %v", err)
	}
}

// RecomputeAllLevels пересчитывает уровень каждого пользователя по текущей таблице
// и перестраивает рейтинг. Пользователи обходятся пакетами по возрастанию ID.
func (s *LevelService) RecomputeAllLevels(ctx context.Context) (*dto.RecomputeLevelsResponse, error) {
	bands, err := s.levelRepo.List(true)
	if err != nil {
		return nil, fmt.Errorf("failed to load levels: %w", err)
	}

	result := &dto.RecomputeLevelsResponse{}
	var entries []repository.LeaderboardEntry
	var afterID uint

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		users, err := s.userRepo.ListBatch(afterID, recomputeBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to load users after ID=%d: %w", afterID, err)
		}
		if len(users) == 0 {
			break
		}

		for _, u := range users {
			result.Processed++
			level := progression.LevelFor(bands, u.XP, s.xpPerLevel)
			if level != u.Level {
				if err := s.userRepo.UpdateLevel(u.ID, level); err != nil {
					return nil, fmt.Errorf("failed to update level for user ID=%d: %w", u.ID, err)
				}
				result.Updated++
			}
			if u.IsActive {
				entries = append(entries, repository.LeaderboardEntry{UserID: u.ID, XP: u.XP})
			}
		}
		afterID = users[len(users)-1].ID
	}

	if s.leaderboard != nil {
		if err := s.leaderboard.Rebuild(ctx, entries); err != nil {
			return nil, fmt.Errorf("failed to rebuild leaderboard: %w", err)
		}
		result.Ranked = len(entries)
	}

	log.Printf("[LevelService] Пересчет уровней завершен: обработано %d, обновлено %d, в рейтинге %d",
		result.Processed, result.Updated, result.Ranked)
	return result, nil
}
