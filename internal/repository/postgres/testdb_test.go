package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// bcrypt-префикс, чтобы BeforeSave не хешировал пароль в тестах
const fixturePassword = "$2a$10$fixturefixturefixturefixtureuO"

// newTestDB поднимает SQLite в памяти со схемой приложения
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Одна база в памяти существует в рамках одного соединения
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&entity.User{},
		&entity.Category{},
		&entity.Challenge{},
		&entity.Stage{},
		&entity.Level{},
		&entity.ChallengeProgress{},
		&entity.StageProgress{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username string, xp int) *entity.User {
	t.Helper()
	user := &entity.User{
		Username: username,
		Email:    username + "@example.com",
		Password: fixturePassword,
		Role:     entity.RoleUser,
		Level:    1,
		XP:       xp,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedChallenge(t *testing.T, db *gorm.DB, title string, stages int) *entity.Challenge {
	t.Helper()
	now := time.Now().UTC()
	challenge := &entity.Challenge{
		Title:         title,
		Difficulty:    entity.DifficultyEasy,
		XPReward:      500,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(24 * time.Hour),
		RequiredLevel: 1,
		IsActive:      true,
	}
	// Порядок намеренно обратный: выдача должна сортироваться по stage_order
	for i := stages; i >= 1; i-- {
		challenge.Stages = append(challenge.Stages, entity.Stage{
			Order: i,
			Title: title + " stage",
		})
	}
	require.NoError(t, db.Create(challenge).Error)
	return challenge
}

func floatPtr(v float64) *float64 { return &v }
