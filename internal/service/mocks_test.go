package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	"github.com/yourusername/challengequest-api/internal/domain/repository"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

// ============================================================================
// Моки репозиториев
// ============================================================================

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByIDs(ids []uint) ([]entity.User, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) SetActive(userID uint, active bool) error {
	args := m.Called(userID, active)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateLevel(userID uint, level int) error {
	args := m.Called(userID, level)
	return args.Error(0)
}

func (m *MockUserRepository) ListBatch(afterID uint, limit int) ([]entity.User, error) {
	args := m.Called(afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) GetLeaderboard(limit, offset int) ([]entity.User, int64, error) {
	args := m.Called(limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.User), args.Get(1).(int64), args.Error(2)
}

func (m *MockUserRepository) CountWithXPAbove(xp int) (int64, error) {
	args := m.Called(xp)
	return args.Get(0).(int64), args.Error(1)
}

// MockLevelRepository реализует repository.LevelRepository
type MockLevelRepository struct {
	mock.Mock
}

func (m *MockLevelRepository) Create(level *entity.Level) error {
	args := m.Called(level)
	return args.Error(0)
}

func (m *MockLevelRepository) GetByID(id uint) (*entity.Level, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Level), args.Error(1)
}

func (m *MockLevelRepository) List(activeOnly bool) ([]entity.Level, error) {
	args := m.Called(activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Level), args.Error(1)
}

func (m *MockLevelRepository) Update(level *entity.Level) error {
	args := m.Called(level)
	return args.Error(0)
}

func (m *MockLevelRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockLevelRepository) ListOverlapping(minXP, maxXP int, excludeID uint) ([]entity.Level, error) {
	args := m.Called(minXP, maxXP, excludeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Level), args.Error(1)
}

// MockChallengeRepository реализует repository.ChallengeRepository
type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) Create(challenge *entity.Challenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockChallengeRepository) GetByID(id uint) (*entity.Challenge, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) List(filter repository.ChallengeFilter, limit, offset int) ([]entity.Challenge, int64, error) {
	args := m.Called(filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]entity.Challenge), args.Get(1).(int64), args.Error(2)
}

func (m *MockChallengeRepository) Update(challenge *entity.Challenge, replaceStages bool) error {
	args := m.Called(challenge, replaceStages)
	return args.Error(0)
}

func (m *MockChallengeRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChallengeRepository) CountParticipants(challengeID uint) (int64, error) {
	args := m.Called(challengeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockChallengeRepository) ListParticipants(challengeID uint) ([]repository.ParticipantRow, error) {
	args := m.Called(challengeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.ParticipantRow), args.Error(1)
}

// MockCategoryRepository реализует repository.CategoryRepository
type MockCategoryRepository struct {
	mock.Mock
}

func (m *MockCategoryRepository) Create(category *entity.Category) error {
	args := m.Called(category)
	return args.Error(0)
}

func (m *MockCategoryRepository) GetByID(id uint) (*entity.Category, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Category), args.Error(1)
}

func (m *MockCategoryRepository) List() ([]entity.Category, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Category), args.Error(1)
}

func (m *MockCategoryRepository) Update(category *entity.Category) error {
	args := m.Called(category)
	return args.Error(0)
}

func (m *MockCategoryRepository) Delete(id uint) error {
	args := m.Called(id)
	return args.Error(0)
}

// MockLeaderboardRepository реализует repository.LeaderboardRepository
type MockLeaderboardRepository struct {
	mock.Mock
}

func (m *MockLeaderboardRepository) IncrementXP(ctx context.Context, userID uint, delta int) error {
	args := m.Called(ctx, userID, delta)
	return args.Error(0)
}

func (m *MockLeaderboardRepository) SetXP(ctx context.Context, userID uint, xp int) error {
	args := m.Called(ctx, userID, xp)
	return args.Error(0)
}

func (m *MockLeaderboardRepository) Remove(ctx context.Context, userID uint) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockLeaderboardRepository) Top(ctx context.Context, offset, limit int) ([]repository.LeaderboardEntry, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.LeaderboardEntry), args.Error(1)
}

func (m *MockLeaderboardRepository) Rank(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeaderboardRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeaderboardRepository) Rebuild(ctx context.Context, entries []repository.LeaderboardEntry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

// ============================================================================
// Фейки
// ============================================================================

// memCache - кеш в памяти, совместимый с repository.CacheRepository
type memCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemCache() *memCache {
	return &memCache{values: make(map[string]string)}
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, _ := json.Marshal(value)
	c.values[key] = string(b)
	return nil
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *memCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Set(ctx, key, value, ttl)
}

func (c *memCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (c *memCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok, nil
}

// sentEvent - событие, перехваченное фейковым издателем
type sentEvent struct {
	Target string // "user:<id>", комната или "*"
	Type   string
	Data   interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []sentEvent
}

func (p *fakePublisher) record(target, eventType string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, sentEvent{Target: target, Type: eventType, Data: data})
	return nil
}

func (p *fakePublisher) SendEventToUser(userID uint, eventType string, data interface{}) error {
	return p.record("user:"+uintToString(userID), eventType, data)
}

func (p *fakePublisher) BroadcastEventToRoom(room string, eventType string, data interface{}) error {
	return p.record(room, eventType, data)
}

func (p *fakePublisher) BroadcastEvent(eventType string, data interface{}) error {
	return p.record("*", eventType, data)
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Target + " " + e.Type
	}
	return out
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []ChallengeCompletedEmail
}

func (f *fakeEmail) SendChallengeCompleted(_ context.Context, msg ChallengeCompletedEmail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

type fakeProgressLister struct {
	progresses []entity.ChallengeProgress
	err        error
}

func (f *fakeProgressLister) GetUserChallenges(_ context.Context, _ uint, _ string) ([]entity.ChallengeProgress, error) {
	return f.progresses, f.err
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func intPtr(v int) *int { return &v }

func uintPtr(v uint) *uint { return &v }
