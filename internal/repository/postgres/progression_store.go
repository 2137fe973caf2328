package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// ProgressionStore реализует repository.ProgressionStore поверх GORM.
// Внутри WithinTransaction все методы работают через одну транзакцию.
type ProgressionStore struct {
	db *gorm.DB
}

// NewProgressionStore создает хранилище для движка прохождения челленджей
func NewProgressionStore(db *gorm.DB) *ProgressionStore {
	return &ProgressionStore{db: db}
}

var _ repository.ProgressionStore = (*ProgressionStore)(nil)

func orderedStages(db *gorm.DB) *gorm.DB {
	return db.Order("stage_order ASC")
}

// GetChallenge возвращает челлендж с этапами
func (s *ProgressionStore) GetChallenge(ctx context.Context, id uint) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := s.db.WithContext(ctx).Preload("Stages", orderedStages).First(&challenge, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &challenge, nil
}

// LockChallenge читает челлендж с блокировкой FOR UPDATE.
// Сериализует вступления в один челлендж, чтобы лимит участников соблюдался.
func (s *ProgressionStore) LockChallenge(ctx context.Context, id uint) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&challenge, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.db.WithContext(ctx).Where("challenge_id = ?", id).Order("stage_order ASC").Find(&challenge.Stages).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (s *ProgressionStore) GetStage(ctx context.Context, id uint) (*entity.Stage, error) {
	var stage entity.Stage
	if err := s.db.WithContext(ctx).First(&stage, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &stage, nil
}

func (s *ProgressionStore) GetUser(ctx context.Context, id uint) (*entity.User, error) {
	var user entity.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *ProgressionStore) GetProgress(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	var progress entity.ChallengeProgress
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&progress).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &progress, nil
}

// LockProgress читает участие с блокировкой FOR UPDATE.
// Параллельные отправки этапов одного участия выполняются по очереди.
func (s *ProgressionStore) LockProgress(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	var progress entity.ChallengeProgress
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&progress).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &progress, nil
}

func (s *ProgressionStore) CountParticipants(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.ChallengeProgress{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

// CreateProgress создает участие; повторное вступление упирается в уникальный индекс
func (s *ProgressionStore) CreateProgress(ctx context.Context, progress *entity.ChallengeProgress) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(progress).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("progress user=%d challenge=%d: %w", progress.UserID, progress.ChallengeID, apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *ProgressionStore) GetStageProgress(ctx context.Context, progressID, stageID uint) (*entity.StageProgress, error) {
	var sp entity.StageProgress
	err := s.db.WithContext(ctx).
		Where("progress_id = ? AND stage_id = ?", progressID, stageID).
		First(&sp).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sp, nil
}

// CompleteStage обновляет незавершенную запись или создает новую.
// Завершенная запись не трогается: completed_at остается прежним.
func (s *ProgressionStore) CompleteStage(ctx context.Context, sp *entity.StageProgress) (bool, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&entity.StageProgress{}).
		Where("progress_id = ? AND stage_id = ? AND status <> ?", sp.ProgressID, sp.StageID, entity.StageStatusCompleted).
		Updates(map[string]interface{}{
			"status":          entity.StageStatusCompleted,
			"submission_type": sp.SubmissionType,
			"content":         sp.Content,
			"latitude":        sp.Latitude,
			"longitude":       sp.Longitude,
			"completed_at":    sp.CompletedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		stored, err := s.GetStageProgress(ctx, sp.ProgressID, sp.StageID)
		if err != nil {
			return false, err
		}
		*sp = *stored
		return true, nil
	}

	if _, err := s.GetStageProgress(ctx, sp.ProgressID, sp.StageID); err == nil {
		// Запись есть, но уже COMPLETED
		return false, nil
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return false, err
	}

	sp.Status = entity.StageStatusCompleted
	if err := db.Omit(clause.Associations).Create(sp).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *ProgressionStore) CountCompletedStages(ctx context.Context, progressID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.StageProgress{}).
		Where("progress_id = ? AND status = ?", progressID, entity.StageStatusCompleted).
		Count(&count).Error
	return count, err
}

func (s *ProgressionStore) CountStages(ctx context.Context, challengeID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entity.Stage{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

// MarkProgressCompleted - compare-and-swap ACTIVE -> COMPLETED
func (s *ProgressionStore) MarkProgressCompleted(ctx context.Context, progressID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&entity.ChallengeProgress{}).
		Where("id = ? AND status = ?", progressID, entity.ProgressStatusActive).
		Updates(map[string]interface{}{
			"status":       entity.ProgressStatusCompleted,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkProgressAbandoned - compare-and-swap ACTIVE -> ABANDONED
func (s *ProgressionStore) MarkProgressAbandoned(ctx context.Context, progressID uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&entity.ChallengeProgress{}).
		Where("id = ? AND status = ?", progressID, entity.ProgressStatusActive).
		Update("status", entity.ProgressStatusAbandoned)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AddUserXP атомарно увеличивает XP через gorm.Expr и перечитывает значение
func (s *ProgressionStore) AddUserXP(ctx context.Context, userID uint, delta int) (int, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&entity.User{}).
		Where("id = ?", userID).
		UpdateColumn("xp", gorm.Expr("xp + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, apperrors.ErrNotFound
	}

	var xp int
	if err := db.Model(&entity.User{}).Where("id = ?", userID).Pluck("xp", &xp).Error; err != nil {
		return 0, err
	}
	return xp, nil
}

func (s *ProgressionStore) SetUserLevel(ctx context.Context, userID uint, level int) error {
	return s.db.WithContext(ctx).Model(&entity.User{}).
		Where("id = ?", userID).
		UpdateColumn("level", level).Error
}

func (s *ProgressionStore) ListActiveLevels(ctx context.Context) ([]entity.Level, error) {
	var levels []entity.Level
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("min_xp ASC, number ASC").
		Find(&levels).Error
	return levels, err
}

// ListUserProgress возвращает участия с челленджем, этапами и прогрессом этапов
func (s *ProgressionStore) ListUserProgress(ctx context.Context, userID uint, status string) ([]entity.ChallengeProgress, error) {
	var progresses []entity.ChallengeProgress
	query := s.db.WithContext(ctx).
		Preload("Challenge").
		Preload("Challenge.Stages", orderedStages).
		Preload("StageProgresses", func(db *gorm.DB) *gorm.DB { return db.Order("stage_id ASC") }).
		Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("started_at DESC, id DESC").Find(&progresses).Error
	return progresses, err
}

// WithinTransaction выполняет fn в транзакции GORM
func (s *ProgressionStore) WithinTransaction(ctx context.Context, fn func(tx repository.ProgressionStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ProgressionStore{db: tx})
	})
}
