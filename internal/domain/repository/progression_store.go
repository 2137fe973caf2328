package repository

import (
	"context"
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// ProgressionStore - доступ к данным для движка прохождения челленджей.
// Методы возвращают apperrors.ErrNotFound, если запись не найдена.
// Все изменения, относящиеся к одной операции, выполняются внутри WithinTransaction.
type ProgressionStore interface {
	// GetChallenge возвращает челлендж с этапами, отсортированными по порядку
	GetChallenge(ctx context.Context, id uint) (*entity.Challenge, error)
	// LockChallenge читает челлендж с блокировкой строки до конца транзакции
	LockChallenge(ctx context.Context, id uint) (*entity.Challenge, error)
	GetStage(ctx context.Context, id uint) (*entity.Stage, error)
	GetUser(ctx context.Context, id uint) (*entity.User, error)

	GetProgress(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error)
	// LockProgress читает участие с блокировкой строки до конца транзакции
	LockProgress(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error)
	CountParticipants(ctx context.Context, challengeID uint) (int64, error)
	// CreateProgress создает участие; нарушение уникальности (user, challenge) дает ErrConflict
	CreateProgress(ctx context.Context, progress *entity.ChallengeProgress) error

	GetStageProgress(ctx context.Context, progressID, stageID uint) (*entity.StageProgress, error)
	// CompleteStage переводит прогресс этапа в COMPLETED (upsert).
	// Возвращает false, если этап уже был завершен; запись при этом не меняется.
	CompleteStage(ctx context.Context, sp *entity.StageProgress) (bool, error)
	CountCompletedStages(ctx context.Context, progressID uint) (int64, error)
	CountStages(ctx context.Context, challengeID uint) (int64, error)

	// MarkProgressCompleted выполняет ACTIVE -> COMPLETED. false, если статус уже не ACTIVE.
	MarkProgressCompleted(ctx context.Context, progressID uint, at time.Time) (bool, error)
	// MarkProgressAbandoned выполняет ACTIVE -> ABANDONED. false, если статус уже не ACTIVE.
	MarkProgressAbandoned(ctx context.Context, progressID uint) (bool, error)

	// AddUserXP атомарно увеличивает XP и возвращает новое значение
	AddUserXP(ctx context.Context, userID uint, delta int) (int, error)
	SetUserLevel(ctx context.Context, userID uint, level int) error
	ListActiveLevels(ctx context.Context) ([]entity.Level, error)

	// ListUserProgress возвращает участия пользователя (с челленджем и прогрессом этапов)
	// по убыванию started_at; пустой status - без фильтра
	ListUserProgress(ctx context.Context, userID uint, status string) ([]entity.ChallengeProgress, error)

	// WithinTransaction выполняет fn в одной транзакции: все изменения фиксируются вместе
	// или откатываются при ошибке
	WithinTransaction(ctx context.Context, fn func(tx ProgressionStore) error) error
}
