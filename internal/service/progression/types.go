package progression

import (
	"context"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
)

// StageSubmission - подтверждение прохождения этапа
type StageSubmission struct {
	StageID        uint
	SubmissionType string
	Content        string
	Latitude       *float64
	Longitude      *float64
}

// SubmitResult - итог отправки этапа
type SubmitResult struct {
	StageProgress      *entity.StageProgress
	ChallengeID        uint
	ProgressID         uint
	CompletedStages    int
	TotalStages        int
	ChallengeCompleted bool
	XPAwarded          int
	NewXP              int
	PreviousLevel      int
	NewLevel           int
	LeveledUp          bool
}

// Notifier получает события после фиксации транзакции.
// Ошибки уведомлений не влияют на результат операции.
type Notifier interface {
	ChallengeJoined(ctx context.Context, userID uint, progress *entity.ChallengeProgress)
	StageSubmitted(ctx context.Context, userID uint, challenge *entity.Challenge, result *SubmitResult)
	ChallengeAbandoned(ctx context.Context, userID uint, progress *entity.ChallengeProgress)
}

// NoopNotifier ничего не делает
type NoopNotifier struct{}

func (NoopNotifier) ChallengeJoined(context.Context, uint, *entity.ChallengeProgress) {}
func (NoopNotifier) StageSubmitted(context.Context, uint, *entity.Challenge, *SubmitResult) {}
func (NoopNotifier) ChallengeAbandoned(context.Context, uint, *entity.ChallengeProgress) {}
