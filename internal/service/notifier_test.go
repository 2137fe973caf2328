package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/service/progression"
)

func TestProgressNotifier_ChallengeJoined(t *testing.T) {
	pub := &fakePublisher{}
	n := NewProgressNotifier(pub, nil, nil, nil)

	n.ChallengeJoined(context.Background(), 3, &entity.ChallengeProgress{ID: 1, ChallengeID: 8})

	assert.Equal(t, []string{
		"user:3 CHALLENGE_JOINED",
		"challenge:8 CHALLENGE_JOINED",
	}, pub.types())
}

func TestProgressNotifier_StageSubmittedWithoutCompletion(t *testing.T) {
	pub := &fakePublisher{}
	leaderboard := new(MockLeaderboardRepository)
	email := &fakeEmail{}
	n := NewProgressNotifier(pub, leaderboard, new(MockUserRepository), email)

	n.StageSubmitted(context.Background(), 3, &entity.Challenge{ID: 8}, &progression.SubmitResult{
		StageProgress:   &entity.StageProgress{StageID: 11},
		ChallengeID:     8,
		CompletedStages: 1,
		TotalStages:     2,
	})
	n.Wait()

	assert.Equal(t, []string{"user:3 STAGE_COMPLETED"}, pub.types())
	leaderboard.AssertNotCalled(t, "SetXP", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, email.sent)
}

func TestProgressNotifier_ChallengeCompletedWithLevelUp(t *testing.T) {
	// Arrange
	pub := &fakePublisher{}
	leaderboard := new(MockLeaderboardRepository)
	userRepo := new(MockUserRepository)
	email := &fakeEmail{}
	leaderboard.On("SetXP", mock.Anything, uint(3), 1500).Return(nil)
	userRepo.On("GetByID", uint(3)).Return(&entity.User{ID: 3, Username: "alice", Email: "alice@example.com"}, nil)
	n := NewProgressNotifier(pub, leaderboard, userRepo, email)

	// Act
	n.StageSubmitted(context.Background(), 3, &entity.Challenge{ID: 8, Title: "City Walk"}, &progression.SubmitResult{
		StageProgress:      &entity.StageProgress{StageID: 12},
		ChallengeID:        8,
		CompletedStages:    2,
		TotalStages:        2,
		ChallengeCompleted: true,
		XPAwarded:          1000,
		NewXP:              1500,
		PreviousLevel:      1,
		NewLevel:           2,
		LeveledUp:          true,
	})
	n.Wait()

	// Assert
	assert.Equal(t, []string{
		"user:3 STAGE_COMPLETED",
		"user:3 CHALLENGE_COMPLETED",
		"challenge:8 CHALLENGE_COMPLETED",
		"user:3 LEVEL_UP",
		"* LEADERBOARD_UPDATED",
	}, pub.types())
	leaderboard.AssertExpectations(t)

	require.Len(t, email.sent, 1)
	assert.Equal(t, "alice@example.com", email.sent[0].ToEmail)
	assert.Equal(t, "City Walk", email.sent[0].ChallengeTitle)
	assert.True(t, email.sent[0].LeveledUp)
}

func TestProgressNotifier_LeaderboardFailureSkipsBroadcast(t *testing.T) {
	pub := &fakePublisher{}
	leaderboard := new(MockLeaderboardRepository)
	leaderboard.On("SetXP", mock.Anything, uint(3), 700).Return(errors.New("redis down"))
	n := NewProgressNotifier(pub, leaderboard, nil, nil)

	n.StageSubmitted(context.Background(), 3, &entity.Challenge{ID: 8}, &progression.SubmitResult{
		StageProgress:      &entity.StageProgress{StageID: 12},
		ChallengeID:        8,
		ChallengeCompleted: true,
		NewXP:              700,
	})

	assert.NotContains(t, pub.types(), "* LEADERBOARD_UPDATED")
}

func TestRenderChallengeCompletedEscapesHTML(t *testing.T) {
	text, body := renderChallengeCompleted(ChallengeCompletedEmail{
		Username:       "<b>eve</b>",
		ChallengeTitle: "Tom & Jerry",
		XPAwarded:      50,
		NewLevel:       3,
		LeveledUp:      true,
	})

	assert.Contains(t, text, "Tom & Jerry")
	assert.Contains(t, body, "Tom &amp; Jerry")
	assert.Contains(t, body, "&lt;b&gt;eve&lt;/b&gt;")
	assert.Contains(t, body, "level <strong>3</strong>")
}
