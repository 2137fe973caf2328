package progression

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// Engine управляет участием пользователя в челлендже:
// вступление, подтверждение этапов, завершение и начисление награды.
type Engine struct {
	store    repository.ProgressionStore
	notifier Notifier
	config   Config
	now      func() time.Time
}

// NewEngine создает движок. nil notifier и nil config заменяются значениями по умолчанию.
func NewEngine(store repository.ProgressionStore, notifier Notifier, config *Config) *Engine {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.normalize()

	return &Engine{
		store:    store,
		notifier: notifier,
		config:   cfg,
		now:      time.Now,
	}
}

// SetClock подменяет источник времени
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Config возвращает действующие настройки
func (e *Engine) Config() Config {
	return e.config
}

// LevelFor считает уровень по XP с настройками движка
func (e *Engine) LevelFor(bands []entity.Level, xp int) int {
	return LevelFor(bands, xp, e.config.XPPerLevel)
}

// JoinChallenge записывает пользователя в челлендж.
// Проверки идут строго по порядку, первая неудачная возвращает свою ошибку.
func (e *Engine) JoinChallenge(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	var progress *entity.ChallengeProgress

	err := e.store.WithinTransaction(ctx, func(tx repository.ProgressionStore) error {
		// Блокировка строки челленджа сериализует проверку лимита участников
		challenge, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrChallengeNotFound)
		}
		if !challenge.IsActive {
			return apperrors.ErrChallengeInactive
		}
		now := e.now()
		if !challenge.HasStarted(now) {
			return apperrors.ErrChallengeNotStarted
		}
		if challenge.HasEnded(now) {
			return apperrors.ErrChallengeEnded
		}

		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrUserNotFound)
		}
		if !user.IsActive {
			return apperrors.ErrUserInactive
		}

		bands, err := tx.ListActiveLevels(ctx)
		if err != nil {
			return fmt.Errorf("list levels: %w", err)
		}
		if e.LevelFor(bands, user.XP) < challenge.RequiredLevel {
			return apperrors.ErrLevelTooLow
		}

		if _, err := tx.GetProgress(ctx, userID, challengeID); err == nil {
			return apperrors.ErrAlreadyJoined
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("get progress: %w", err)
		}

		if challenge.HasCapacityLimit() {
			count, err := tx.CountParticipants(ctx, challengeID)
			if err != nil {
				return fmt.Errorf("count participants: %w", err)
			}
			if count >= int64(*challenge.MaxParticipants) {
				return apperrors.ErrChallengeFull
			}
		}

		p := &entity.ChallengeProgress{
			UserID:      userID,
			ChallengeID: challengeID,
			Status:      entity.ProgressStatusActive,
			StartedAt:   now,
		}
		if err := tx.CreateProgress(ctx, p); err != nil {
			// Параллельное вступление упирается в уникальный индекс
			if errors.Is(err, apperrors.ErrConflict) {
				return apperrors.ErrAlreadyJoined
			}
			return fmt.Errorf("create progress: %w", err)
		}
		p.Challenge = challenge
		p.StageProgresses = []entity.StageProgress{}
		progress = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ProgressionEngine] Пользователь #%d вступил в челлендж #%d (progress #%d)", userID, challengeID, progress.ID)
	e.notifier.ChallengeJoined(ctx, userID, progress)
	return progress, nil
}

// SubmitStage подтверждает прохождение этапа. Когда пройдены все этапы,
// участие завершается, а награда начисляется ровно один раз.
func (e *Engine) SubmitStage(ctx context.Context, userID uint, sub StageSubmission) (*SubmitResult, error) {
	if !entity.IsValidSubmissionType(sub.SubmissionType) {
		return nil, apperrors.ErrInvalidSubmissionType
	}
	sub.Content = strings.TrimSpace(sub.Content)

	var (
		result    *SubmitResult
		challenge *entity.Challenge
	)

	err := e.store.WithinTransaction(ctx, func(tx repository.ProgressionStore) error {
		stage, err := tx.GetStage(ctx, sub.StageID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrStageNotFound)
		}

		// Блокировка участия: параллельные отправки одного пользователя идут по очереди
		progress, err := tx.LockProgress(ctx, userID, stage.ChallengeID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrNotJoined)
		}
		if !progress.IsActive() {
			return apperrors.ErrProgressNotActive
		}

		existing, err := tx.GetStageProgress(ctx, progress.ID, stage.ID)
		if err == nil && existing.IsCompleted() {
			return apperrors.ErrStageAlreadyCompleted
		} else if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("get stage progress: %w", err)
		}

		if err := e.checkProof(stage, sub); err != nil {
			return err
		}

		now := e.now()
		sp := &entity.StageProgress{
			ProgressID:     progress.ID,
			StageID:        stage.ID,
			Status:         entity.StageStatusCompleted,
			SubmissionType: sub.SubmissionType,
			Content:        sub.Content,
			Latitude:       sub.Latitude,
			Longitude:      sub.Longitude,
			CompletedAt:    &now,
		}
		changed, err := tx.CompleteStage(ctx, sp)
		if err != nil {
			return fmt.Errorf("complete stage: %w", err)
		}
		if !changed {
			return apperrors.ErrStageAlreadyCompleted
		}

		completed, err := tx.CountCompletedStages(ctx, progress.ID)
		if err != nil {
			return fmt.Errorf("count completed stages: %w", err)
		}
		total, err := tx.CountStages(ctx, stage.ChallengeID)
		if err != nil {
			return fmt.Errorf("count stages: %w", err)
		}

		res := &SubmitResult{
			StageProgress:   sp,
			ChallengeID:     stage.ChallengeID,
			ProgressID:      progress.ID,
			CompletedStages: int(completed),
			TotalStages:     int(total),
		}

		challenge, err = tx.GetChallenge(ctx, stage.ChallengeID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrChallengeNotFound)
		}

		if total > 0 && completed >= total {
			if err := e.applyCompletion(ctx, tx, userID, progress.ID, challenge, now, res); err != nil {
				return err
			}
		}

		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.ChallengeCompleted {
		log.Printf("[ProgressionEngine] Пользователь #%d завершил челлендж #%d: +%d XP (xp=%d, level %d -> %d)",
			userID, result.ChallengeID, result.XPAwarded, result.NewXP, result.PreviousLevel, result.NewLevel)
	}
	e.notifier.StageSubmitted(ctx, userID, challenge, result)
	return result, nil
}

// applyCompletion завершает участие и начисляет награду.
// Начисляет только та транзакция, которая выиграла переход ACTIVE -> COMPLETED.
func (e *Engine) applyCompletion(
	ctx context.Context,
	tx repository.ProgressionStore,
	userID, progressID uint,
	challenge *entity.Challenge,
	now time.Time,
	res *SubmitResult,
) error {
	swapped, err := tx.MarkProgressCompleted(ctx, progressID, now)
	if err != nil {
		return fmt.Errorf("mark progress completed: %w", err)
	}
	if !swapped {
		return nil
	}

	user, err := tx.GetUser(ctx, userID)
	if err != nil {
		return mapNotFound(err, apperrors.ErrUserNotFound)
	}

	newXP, err := tx.AddUserXP(ctx, userID, challenge.XPReward)
	if err != nil {
		return fmt.Errorf("add user xp: %w", err)
	}
	bands, err := tx.ListActiveLevels(ctx)
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}
	newLevel := e.LevelFor(bands, newXP)
	if err := tx.SetUserLevel(ctx, userID, newLevel); err != nil {
		return fmt.Errorf("set user level: %w", err)
	}

	res.ChallengeCompleted = true
	res.XPAwarded = challenge.XPReward
	res.NewXP = newXP
	res.PreviousLevel = user.Level
	res.NewLevel = newLevel
	res.LeveledUp = newLevel > user.Level
	return nil
}

// checkProof проверяет тип подтверждения и, если включено, содержимое QR и расстояние
func (e *Engine) checkProof(stage *entity.Stage, sub StageSubmission) error {
	if stage.RequiresQR() {
		if sub.SubmissionType != entity.SubmissionQRCode {
			return apperrors.ErrQRRequired
		}
		if sub.Content == "" {
			return apperrors.ErrQRContentRequired
		}
		if e.config.MatchQRContent && sub.Content != strings.TrimSpace(*stage.QRCode) {
			return apperrors.ErrQRMismatch
		}
	} else if sub.SubmissionType == entity.SubmissionQRCode {
		return apperrors.ErrQRNotExpected
	}

	if e.config.RequireLocationProximity && stage.HasLocation() {
		if sub.Latitude == nil || sub.Longitude == nil {
			return apperrors.ErrLocationRequired
		}
		radius := e.config.DefaultRadiusMeters
		if stage.Radius != nil && *stage.Radius > 0 {
			radius = *stage.Radius
		}
		if DistanceMeters(*stage.Latitude, *stage.Longitude, *sub.Latitude, *sub.Longitude) > radius {
			return apperrors.ErrLocationTooFar
		}
	}
	return nil
}

// GetUserChallenges возвращает участия пользователя, новые первыми.
// Пустой status - все участия.
func (e *Engine) GetUserChallenges(ctx context.Context, userID uint, status string) ([]entity.ChallengeProgress, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status != "" && !entity.IsValidProgressStatus(status) {
		return nil, apperrors.ErrInvalidStatusFilter
	}
	progresses, err := e.store.ListUserProgress(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("list user progress: %w", err)
	}
	if progresses == nil {
		progresses = []entity.ChallengeProgress{}
	}
	return progresses, nil
}

// AbandonChallenge переводит активное участие в ABANDONED.
// Участие не удаляется, поэтому повторно вступить в тот же челлендж нельзя.
func (e *Engine) AbandonChallenge(ctx context.Context, userID, challengeID uint) (*entity.ChallengeProgress, error) {
	var progress *entity.ChallengeProgress

	err := e.store.WithinTransaction(ctx, func(tx repository.ProgressionStore) error {
		p, err := tx.LockProgress(ctx, userID, challengeID)
		if err != nil {
			return mapNotFound(err, apperrors.ErrNotJoined)
		}
		swapped, err := tx.MarkProgressAbandoned(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("mark progress abandoned: %w", err)
		}
		if !swapped {
			return apperrors.ErrProgressNotActive
		}
		p.Status = entity.ProgressStatusAbandoned
		progress = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ProgressionEngine] Пользователь #%d покинул челлендж #%d", userID, challengeID)
	e.notifier.ChallengeAbandoned(ctx, userID, progress)
	return progress, nil
}

// mapNotFound заменяет общий ErrNotFound конкретной ошибкой
func mapNotFound(err, specific error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return specific
	}
	return err
}
