package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/challengequest-api/internal/domain/entity"
	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

const testSecret = "test-secret-0123456789"

// fakeCache - кеш в памяти с запоминанием TTL
type fakeCache struct {
	mu      sync.Mutex
	values  map[string]interface{}
	ttls    map[string]time.Duration
	failErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]interface{}{}, ttls: map[string]time.Duration{}}
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.values[key] = value
	c.ttls[key] = expiration
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		return "", apperrors.ErrNotFound
	}
	return "1", nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.Set(ctx, key, value, expiration)
}

func (c *fakeCache) GetJSON(_ context.Context, _ string, _ interface{}) error {
	return apperrors.ErrNotFound
}

func (c *fakeCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return false, c.failErr
	}
	_, ok := c.values[key]
	return ok, nil
}

func newTestService(t *testing.T, cache *fakeCache) *JWTService {
	t.Helper()
	var svc *JWTService
	var err error
	if cache == nil {
		svc, err = NewJWTService(testSecret, "test", time.Hour, 30*time.Second, nil)
	} else {
		svc, err = NewJWTService(testSecret, "test", time.Hour, 30*time.Second, cache)
	}
	require.NoError(t, err)
	return svc
}

func testUser() *entity.User {
	return &entity.User{ID: 42, Email: "alice@example.com", Role: entity.RoleAdmin}
}

func TestNewJWTService_RequiresSecret(t *testing.T) {
	_, err := NewJWTService("", "test", time.Hour, time.Minute, nil)
	assert.Error(t, err)
}

func TestGenerateAndParseToken(t *testing.T) {
	// Arrange
	svc := newTestService(t, newFakeCache())

	// Act
	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)
	claims, err := svc.ParseToken(context.Background(), token)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, entity.RoleAdmin, claims.Role)
	assert.Equal(t, "test", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.Empty(t, claims.Usage)
}

func TestParseToken_Rejects(t *testing.T) {
	svc := newTestService(t, nil)
	other, err := NewJWTService("another-secret-0123456789", "test", time.Hour, time.Minute, nil)
	require.NoError(t, err)
	foreign, err := other.GenerateToken(testUser())
	require.NoError(t, err)

	expiredSvc := newTestService(t, nil)
	expiredSvc.SetClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, err := expiredSvc.GenerateToken(testUser())
	require.NoError(t, err)

	ticket, err := svc.GenerateWSTicket(42, "alice@example.com")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"мусор", "not-a-token", ErrTokenMalformed},
		{"чужая подпись", foreign, ErrTokenInvalid},
		{"истекший", expired, apperrors.ErrExpiredToken},
		{"WS-тикет вместо токена", ticket, ErrTicketUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ParseToken(context.Background(), tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvalidateToken(t *testing.T) {
	// Arrange
	cache := newFakeCache()
	svc := newTestService(t, cache)
	ctx := context.Background()
	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)
	claims, err := svc.ParseToken(ctx, token)
	require.NoError(t, err)

	// Act
	require.NoError(t, svc.InvalidateToken(ctx, claims))

	// Assert
	_, err = svc.ParseToken(ctx, token)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	ttl := cache.ttls[blacklistPrefix+claims.ID]
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "TTL отзыва равен оставшемуся сроку токена, получено %v", ttl)

	// Новый токен того же пользователя не затронут
	fresh, err := svc.GenerateToken(testUser())
	require.NoError(t, err)
	_, err = svc.ParseToken(ctx, fresh)
	assert.NoError(t, err)
}

func TestParseToken_CacheUnavailable(t *testing.T) {
	cache := newFakeCache()
	svc := newTestService(t, cache)
	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)

	cache.failErr = errors.New("redis down")
	claims, err := svc.ParseToken(context.Background(), token)

	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Error(t, svc.InvalidateToken(context.Background(), claims))
}

func TestWSTicket(t *testing.T) {
	svc := newTestService(t, nil)

	ticket, err := svc.GenerateWSTicket(7, "bob@example.com")
	require.NoError(t, err)
	claims, err := svc.ParseWSTicket(ticket)

	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, UsageWSTicket, claims.Usage)
	assert.Equal(t, time.Duration(30)*time.Second, claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time))

	token, err := svc.GenerateToken(testUser())
	require.NoError(t, err)
	_, err = svc.ParseWSTicket(token)
	assert.ErrorIs(t, err, ErrTicketUsage, "обычный токен не принимается как тикет")
}
