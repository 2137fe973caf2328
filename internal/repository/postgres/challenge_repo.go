package postgres

import (
	"strings"

	"gorm.io/gorm"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// ChallengeRepo реализует repository.ChallengeRepository
type ChallengeRepo struct {
	db *gorm.DB
}

// NewChallengeRepo создает новый репозиторий челленджей
func NewChallengeRepo(db *gorm.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

// Create создает челлендж вместе с этапами
func (r *ChallengeRepo) Create(challenge *entity.Challenge) error {
	return r.db.Create(challenge).Error
}

// GetByID возвращает челлендж с категорией и этапами
func (r *ChallengeRepo) GetByID(id uint) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := r.db.Preload("Category").
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("stage_order ASC") }).
		First(&challenge, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &challenge, nil
}

// List возвращает челленджи с фильтрами и общим количеством
func (r *ChallengeRepo) List(filter repository.ChallengeFilter, limit, offset int) ([]entity.Challenge, int64, error) {
	var challenges []entity.Challenge
	var total int64

	query := r.db.Model(&entity.Challenge{})

	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Difficulty != "" {
		query = query.Where("difficulty = ?", filter.Difficulty)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Preload("Category").
		Order("start_date DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&challenges).Error
	if err != nil {
		return nil, 0, err
	}
	return challenges, total, nil
}

// Update сохраняет поля челленджа и при необходимости заменяет этапы
func (r *ChallengeRepo) Update(challenge *entity.Challenge, replaceStages bool) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entity.Challenge{}).Where("id = ?", challenge.ID).Updates(map[string]interface{}{
			"title":            challenge.Title,
			"description":      challenge.Description,
			"category_id":      challenge.CategoryID,
			"difficulty":       challenge.Difficulty,
			"xp_reward":        challenge.XPReward,
			"start_date":       challenge.StartDate,
			"end_date":         challenge.EndDate,
			"required_level":   challenge.RequiredLevel,
			"max_participants": challenge.MaxParticipants,
			"is_active":        challenge.IsActive,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}

		if !replaceStages {
			return nil
		}

		// Прогресс по старым этапам удаляется вместе с ними
		oldStages := tx.Model(&entity.Stage{}).Select("id").Where("challenge_id = ?", challenge.ID)
		if err := tx.Where("stage_id IN (?)", oldStages).Delete(&entity.StageProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", challenge.ID).Delete(&entity.Stage{}).Error; err != nil {
			return err
		}
		for i := range challenge.Stages {
			challenge.Stages[i].ID = 0
			challenge.Stages[i].ChallengeID = challenge.ID
		}
		if len(challenge.Stages) > 0 {
			if err := tx.Create(&challenge.Stages).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete удаляет челлендж и все зависимые записи
func (r *ChallengeRepo) Delete(id uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		progressIDs := tx.Model(&entity.ChallengeProgress{}).Select("id").Where("challenge_id = ?", id)
		if err := tx.Where("progress_id IN (?)", progressIDs).Delete(&entity.StageProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&entity.ChallengeProgress{}).Error; err != nil {
			return err
		}
		if err := tx.Where("challenge_id = ?", id).Delete(&entity.Stage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&entity.Challenge{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// CountParticipants считает участия в челлендже (любой статус)
func (r *ChallengeRepo) CountParticipants(challengeID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entity.ChallengeProgress{}).Where("challenge_id = ?", challengeID).Count(&count).Error
	return count, err
}

// ListParticipants возвращает строки отчета об участниках
func (r *ChallengeRepo) ListParticipants(challengeID uint) ([]repository.ParticipantRow, error) {
	var rows []repository.ParticipantRow
	err := r.db.Table("challenge_progresses AS cp").
		Select(`cp.user_id, u.username, u.email, cp.status, cp.started_at, cp.completed_at,
			(SELECT COUNT(*) FROM stage_progresses sp WHERE sp.progress_id = cp.id AND sp.status = ?) AS completed_stages`,
			entity.StageStatusCompleted).
		Joins("JOIN users u ON u.id = cp.user_id").
		Where("cp.challenge_id = ?", challengeID).
		Order("cp.started_at ASC, cp.id ASC").
		Scan(&rows).Error
	return rows, err
}
