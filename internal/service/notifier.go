package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	"github.com/yourusername/challengequest-api/internal/service/progression"
	"github.com/yourusername/challengequest-api/internal/websocket"
)

const emailSendTimeout = 30 * time.Second

// EventPublisher доставляет события клиентам WebSocket
type EventPublisher interface {
	SendEventToUser(userID uint, eventType string, data interface{}) error
	BroadcastEventToRoom(room string, eventType string, data interface{}) error
	BroadcastEvent(eventType string, data interface{}) error
}

// ProgressNotifier рассылает события движка после фиксации транзакции:
// WebSocket-события, обновление рейтинга в Redis и письмо о завершении челленджа.
// Ошибки только логируются.
type ProgressNotifier struct {
	publisher   EventPublisher
	leaderboard repository.LeaderboardRepository
	userRepo    repository.UserRepository
	email       EmailService
	wg          sync.WaitGroup
}

var _ progression.Notifier = (*ProgressNotifier)(nil)

// NewProgressNotifier создает получателя событий. Любая зависимость, кроме userRepo, может быть nil.
func NewProgressNotifier(
	publisher EventPublisher,
	leaderboard repository.LeaderboardRepository,
	userRepo repository.UserRepository,
	email EmailService,
) *ProgressNotifier {
	return &ProgressNotifier{
		publisher:   publisher,
		leaderboard: leaderboard,
		userRepo:    userRepo,
		email:       email,
	}
}

func (n *ProgressNotifier) ChallengeJoined(ctx context.Context, userID uint, progress *entity.ChallengeProgress) {
	data := map[string]interface{}{
		"challenge_id": progress.ChallengeID,
		"progress_id":  progress.ID,
		"user_id":      userID,
		"started_at":   progress.StartedAt,
	}
	n.toUser(userID, websocket.CHALLENGE_JOINED, data)
	n.toRoom(websocket.ChallengeRoom(progress.ChallengeID), websocket.CHALLENGE_JOINED, data)
}

func (n *ProgressNotifier) StageSubmitted(ctx context.Context, userID uint, challenge *entity.Challenge, result *progression.SubmitResult) {
	n.toUser(userID, websocket.STAGE_COMPLETED, map[string]interface{}{
		"challenge_id":     result.ChallengeID,
		"stage_id":         result.StageProgress.StageID,
		"completed_stages": result.CompletedStages,
		"total_stages":     result.TotalStages,
	})

	if !result.ChallengeCompleted {
		return
	}

	completed := map[string]interface{}{
		"challenge_id": result.ChallengeID,
		"user_id":      userID,
		"xp_awarded":   result.XPAwarded,
		"new_xp":       result.NewXP,
		"new_level":    result.NewLevel,
	}
	n.toUser(userID, websocket.CHALLENGE_COMPLETED, completed)
	n.toRoom(websocket.ChallengeRoom(result.ChallengeID), websocket.CHALLENGE_COMPLETED, completed)

	if result.LeveledUp {
		n.toUser(userID, websocket.LEVEL_UP, map[string]interface{}{
			"previous_level": result.PreviousLevel,
			"new_level":      result.NewLevel,
			"xp":             result.NewXP,
		})
	}

	if n.leaderboard != nil {
		if err := n.leaderboard.SetXP(ctx, userID, result.NewXP); err != nil {
			log.Printf("[Notifier] Не удалось обновить рейтинг пользователя ID=%d: %v", userID, err)
		} else if n.publisher != nil {
			if err := n.publisher.BroadcastEvent(websocket.LEADERBOARD_UPDATED, map[string]interface{}{
				"user_id": userID,
				"xp":      result.NewXP,
			}); err != nil {
				log.Printf("[Notifier] Ошибка рассылки %s: %v", websocket.LEADERBOARD_UPDATED, err)
			}
		}
	}

	n.sendCompletionEmail(userID, challenge, result)
}

func (n *ProgressNotifier) ChallengeAbandoned(ctx context.Context, userID uint, progress *entity.ChallengeProgress) {
	log.Printf("[Notifier] Пользователь ID=%d покинул челлендж ID=%d", userID, progress.ChallengeID)
}

// sendCompletionEmail отправляет письмо в фоне, не задерживая ответ
func (n *ProgressNotifier) sendCompletionEmail(userID uint, challenge *entity.Challenge, result *progression.SubmitResult) {
	if n.email == nil || n.userRepo == nil {
		return
	}
	title := ""
	if challenge != nil {
		title = challenge.Title
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), emailSendTimeout)
		defer cancel()

		user, err := n.userRepo.GetByID(userID)
		if err != nil {
			log.Printf("[Notifier] Не удалось загрузить пользователя ID=%d для письма: %v", userID, err)
			return
		}
		err = n.email.SendChallengeCompleted(ctx, ChallengeCompletedEmail{
			ToEmail:        user.Email,
			Username:       user.Username,
			ChallengeID:    result.ChallengeID,
			ChallengeTitle: title,
			XPAwarded:      result.XPAwarded,
			NewLevel:       result.NewLevel,
			LeveledUp:      result.LeveledUp,
		})
		if err != nil {
			log.Printf("[Notifier] Ошибка отправки письма пользователю ID=%d: %v", userID, err)
		}
	}()
}

// Wait дожидается фоновых отправок писем (при остановке сервера)
func (n *ProgressNotifier) Wait() {
	n.wg.Wait()
}

func (n *ProgressNotifier) toUser(userID uint, eventType string, data interface{}) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.SendEventToUser(userID, eventType, data); err != nil {
		log.Printf("[Notifier] Ошибка отправки %s пользователю ID=%d: %v", eventType, userID, err)
	}
}

func (n *ProgressNotifier) toRoom(room, eventType string, data interface{}) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.BroadcastEventToRoom(room, eventType, data); err != nil {
		log.Printf("[Notifier] Ошибка рассылки %s в комнату %s: %v", eventType, room, err)
	}
}
