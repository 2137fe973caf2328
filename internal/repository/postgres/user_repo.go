package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// UserRepo реализует repository.UserRepository
type UserRepo struct {
	db *gorm.DB
}

// NewUserRepo создает новый репозиторий пользователей
func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create создает нового пользователя
func (r *UserRepo) Create(user *entity.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user already exists: %w", apperrors.ErrConflict)
		}
		return err
	}
	return nil
}

// GetByID возвращает пользователя по ID
func (r *UserRepo) GetByID(id uint) (*entity.User, error) {
	var user entity.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByIDs возвращает пользователей по списку ID (порядок не гарантируется)
func (r *UserRepo) GetByIDs(ids []uint) ([]entity.User, error) {
	var users []entity.User
	if len(ids) == 0 {
		return users, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// GetByEmail возвращает пользователя по email
func (r *UserRepo) GetByEmail(email string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// GetByUsername возвращает пользователя по имени пользователя
func (r *UserRepo) GetByUsername(username string) (*entity.User, error) {
	var user entity.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// SetActive включает или отключает учетную запись
func (r *UserRepo) SetActive(userID uint, active bool) error {
	res := r.db.Model(&entity.User{}).Where("id = ?", userID).Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateLevel точечно обновляет уровень пользователя
func (r *UserRepo) UpdateLevel(userID uint, level int) error {
	return r.db.Model(&entity.User{}).Where("id = ?", userID).Update("level", level).Error
}

// ListBatch возвращает следующую порцию пользователей после afterID
func (r *UserRepo) ListBatch(afterID uint, limit int) ([]entity.User, error) {
	var users []entity.User
	err := r.db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&users).Error
	return users, err
}

// GetLeaderboard возвращает активных пользователей по убыванию XP с общим количеством
func (r *UserRepo) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	var users []entity.User
	var total int64

	// Читаем страницу и общее количество в одной транзакции
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.User{}).Where("is_active = ?", true).Count(&total).Error; err != nil {
			return err
		}
		return tx.Where("is_active = ?", true).
			Order("xp DESC, id ASC").
			Limit(limit).
			Offset(offset).
			Select("id", "username", "profile_picture", "level", "xp").
			Find(&users).Error
	})
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountWithXPAbove считает активных пользователей с XP больше заданного
func (r *UserRepo) CountWithXPAbove(xp int) (int64, error) {
	var count int64
	err := r.db.Model(&entity.User{}).Where("is_active = ? AND xp > ?", true, xp).Count(&count).Error
	return count, err
}
