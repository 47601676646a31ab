package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/masterboy376/cphere/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) Incr(ctx context.Context, key string) *redis.IntCmd {
	return m.Called(ctx, key).Get(0).(*redis.IntCmd)
}

func (m *mockRedis) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	return m.Called(ctx, key, expiration).Get(0).(*redis.BoolCmd)
}

func (m *mockRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	return m.Called(ctx, key, value, expiration).Get(0).(*redis.StatusCmd)
}

func (m *mockRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	return m.Called(ctx, keys).Get(0).(*redis.IntCmd)
}

func intCmd(ctx context.Context, v int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(v)
	cmd.SetErr(err)
	return cmd
}

func boolCmd(ctx context.Context, v bool) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	cmd.SetVal(v)
	return cmd
}

func fixedLimiter(rdb limiterClient, limit int) (*RedisRateLimiter, string) {
	l := NewRedisRateLimiter(rdb, limit, time.Minute)
	at := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return at }
	return l, l.windowKey("10.0.0.1")
}

func TestRateLimiter_FirstHitSetsExpiry(t *testing.T) {
	ctx := context.Background()
	rdb := new(mockRedis)
	l, key := fixedLimiter(rdb, 2)
	rdb.On("Incr", ctx, key).Return(intCmd(ctx, 1, nil)).Once()
	rdb.On("Expire", ctx, key, time.Minute).Return(boolCmd(ctx, true)).Once()

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	rdb.AssertExpectations(t)
}

func TestRateLimiter_OverLimit(t *testing.T) {
	ctx := context.Background()
	rdb := new(mockRedis)
	l, key := fixedLimiter(rdb, 2)
	rdb.On("Incr", ctx, key).Return(intCmd(ctx, 3, nil)).Once()

	ok, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)
	rdb.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything, mock.Anything)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	ctx := context.Background()
	rdb := new(mockRedis)
	l, key := fixedLimiter(rdb, 2)
	rdb.On("Incr", ctx, key).Return(intCmd(ctx, 0, errors.New("connection refused"))).Once()

	ok, err := l.Allow(ctx, "10.0.0.1")
	assert.Error(t, err)
	assert.True(t, ok)
}

func TestRateLimiter_WindowKeyChangesEachPeriod(t *testing.T) {
	l := NewRedisRateLimiter(nil, 1, time.Minute)
	at := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return at }
	first := l.windowKey("k")
	at = at.Add(time.Minute)
	assert.NotEqual(t, first, l.windowKey("k"))
}

func TestTokenRevoker(t *testing.T) {
	ctx := context.Background()
	rdb := new(mockRedis)
	r := NewRedisTokenRevoker(rdb)

	status := redis.NewStatusCmd(ctx)
	status.SetVal("OK")
	rdb.On("Set", ctx, "revoked:jti-1", 1, time.Hour).Return(status).Once()
	rdb.On("Exists", ctx, []string{"revoked:jti-1"}).Return(intCmd(ctx, 1, nil)).Once()
	rdb.On("Exists", ctx, []string{"revoked:jti-2"}).Return(intCmd(ctx, 0, nil)).Once()

	require.NoError(t, r.Revoke(ctx, "jti-1", time.Hour))

	revoked, err := r.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = r.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
	rdb.AssertExpectations(t)
}

func TestNewRedisClient_RejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), config.RedisConfig{URL: "http://localhost:6379", PingTimeout: time.Second})
	assert.ErrorContains(t, err, "parse redis url")
}
