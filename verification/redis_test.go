package verification

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, clock *testClock, codes ...string) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	i := 0
	gen := func() string {
		if len(codes) == 0 {
			return GenerateCode()
		}
		code := codes[i%len(codes)]
		i++
		return code
	}
	return NewRedisStore(client, "verify", WithRedisClock(clock.Now), WithRedisCodeGenerator(gen))
}

func TestRedisStore_RequestCooldown(t *testing.T) {
	clock := newTestClock()
	s := newTestRedisStore(t, clock)
	ctx := context.Background()

	_, err := s.RequestCode(ctx, "b@x.com")
	require.NoError(t, err)

	clock.Advance(10 * time.Second)

	_, err = s.RequestCode(ctx, "b@x.com")
	var rl *RateLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 50, rl.RetryAfterSeconds())

	clock.Advance(51 * time.Second)
	_, err = s.RequestCode(ctx, "b@x.com")
	assert.NoError(t, err)
}

func TestRedisStore_ConfirmLifecycle(t *testing.T) {
	clock := newTestClock()
	s := newTestRedisStore(t, clock, "123456")
	ctx := context.Background()

	assert.ErrorIs(t, s.ConfirmCode(ctx, "a@x.com", "123456"), ErrNotFound)

	_, err := s.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ConfirmCode(ctx, "a@x.com", "999999"), ErrMismatch)
	require.NoError(t, s.ConfirmCode(ctx, "a@x.com", "123456"))

	verified, err := s.CheckVerified(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, verified)
}

func TestRedisStore_ExpiredCodeRemoved(t *testing.T) {
	clock := newTestClock()
	s := newTestRedisStore(t, clock, "123456")
	ctx := context.Background()

	_, err := s.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)

	clock.Advance(10*time.Minute + time.Second)

	assert.ErrorIs(t, s.ConfirmCode(ctx, "a@x.com", "123456"), ErrExpired)
	assert.ErrorIs(t, s.ConfirmCode(ctx, "a@x.com", "123456"), ErrNotFound)
}

func TestRedisStore_ConsumeIsSingleUse(t *testing.T) {
	clock := newTestClock()
	s := newTestRedisStore(t, clock, "123456")
	ctx := context.Background()

	_, err := s.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, s.ConfirmCode(ctx, "a@x.com", "123456"))

	ok, err := s.ConsumeVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ConsumeVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)

	// cooldown still holds after consumption
	_, err = s.RequestCode(ctx, "a@x.com")
	var rl *RateLimitError
	assert.ErrorAs(t, err, &rl)
}

func TestRedisStore_VerifiedWindowExpires(t *testing.T) {
	clock := newTestClock()
	s := newTestRedisStore(t, clock, "123456")
	ctx := context.Background()

	_, err := s.RequestCode(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, s.ConfirmCode(ctx, "a@x.com", "123456"))

	clock.Advance(30*time.Minute + time.Second)

	verified, err := s.CheckVerified(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, verified)

	ok, err := s.ConsumeVerification(ctx, "a@x.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
