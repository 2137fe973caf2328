package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

func TestLevelRepo_ListOverlapping(t *testing.T) {
	db := newTestDB(t)
	repo := NewLevelRepo(db)
	l1 := &entity.Level{Number: 1, Name: "Rookie", MinXP: 0, MaxXP: 999, IsActive: true}
	l2 := &entity.Level{Number: 2, Name: "Scout", MinXP: 1000, MaxXP: 1999, IsActive: true}
	require.NoError(t, repo.Create(l1))
	require.NoError(t, repo.Create(l2))

	overlapping, err := repo.ListOverlapping(900, 1100, 0)
	require.NoError(t, err)
	assert.Len(t, overlapping, 2)

	overlapping, err = repo.ListOverlapping(1000, 1999, l2.ID)
	require.NoError(t, err)
	assert.Empty(t, overlapping, "собственный диапазон не считается пересечением")

	overlapping, err = repo.ListOverlapping(2000, 2999, 0)
	require.NoError(t, err)
	assert.Empty(t, overlapping)
}

func TestLevelRepo_CRUD(t *testing.T) {
	db := newTestDB(t)
	repo := NewLevelRepo(db)
	level := &entity.Level{Number: 1, Name: "Rookie", MinXP: 0, MaxXP: 999, IsActive: true}
	require.NoError(t, repo.Create(level))
	assert.ErrorIs(t, repo.Create(&entity.Level{Number: 1, MinXP: 5000, MaxXP: 6000}), apperrors.ErrConflict)

	level.Name = "Novice"
	level.IsActive = false
	require.NoError(t, repo.Update(level))

	all, err := repo.List(false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Novice", all[0].Name)

	active, err := repo.List(true)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, repo.Update(&entity.Level{ID: 42, Number: 9}), apperrors.ErrNotFound)
	require.NoError(t, repo.Delete(level.ID))
	_, err = repo.GetByID(level.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUserRepo_LeaderboardAndRank(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)
	seedUser(t, db, "low", 100)
	top := seedUser(t, db, "top", 3000)
	mid := seedUser(t, db, "mid", 1500)
	hidden := seedUser(t, db, "hidden", 9000)
	require.NoError(t, repo.SetActive(hidden.ID, false))

	users, total, err := repo.GetLeaderboard(2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, users, 2)
	assert.Equal(t, top.ID, users[0].ID)
	assert.Equal(t, mid.ID, users[1].ID)

	above, err := repo.CountWithXPAbove(mid.XP)
	require.NoError(t, err)
	assert.Equal(t, int64(1), above, "неактивные пользователи не учитываются")

	assert.ErrorIs(t, repo.SetActive(999, true), apperrors.ErrNotFound)
}

func TestUserRepo_CreateConflictAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepo(db)
	user := seedUser(t, db, "walker", 0)

	err := repo.Create(&entity.User{Username: "walker", Email: "other@example.com", Password: fixturePassword})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	byEmail, err := repo.GetByEmail("walker@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	batch, err := repo.ListBatch(0, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)

	require.NoError(t, repo.UpdateLevel(user.ID, 4))
	got, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Level)
}
