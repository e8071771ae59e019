package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeScripter replays the bucket arithmetic without a clock: tokens never
// refill.
type fakeScripter struct {
	tokens map[string]float64
	keys   []string
}

func newFakeScripter() *fakeScripter {
	return &fakeScripter{tokens: map[string]float64{}}
}

func (f *fakeScripter) run(keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	f.keys = append(f.keys, key)
	burst := float64(args[1].(int))
	tokens, ok := f.tokens[key]
	if !ok {
		tokens = burst
	}
	allowed := int64(0)
	if tokens >= 1 {
		allowed = 1
		tokens--
	}
	f.tokens[key] = tokens
	return redis.NewCmdResult([]any{allowed, strconv.FormatFloat(tokens, 'f', -1, 64), int64(1700000000000)}, nil)
}

func (f *fakeScripter) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return f.run(keys, args...)
}

func (f *fakeScripter) ScriptExists(ctx context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult([]bool{true}, nil)
}

func (f *fakeScripter) ScriptLoad(ctx context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestPublicLimiterDeniesAfterBurst(t *testing.T) {
	scripter := newFakeScripter()
	limiter := NewScriptedPublicLimiter(scripter, 0.5, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := limiter.Allow(ctx, "submit", "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}

	res, err := limiter.Allow(ctx, "submit", "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 2, res.Limit)
	assert.Equal(t, 2*time.Second, res.RetryAfter)

	res, err = limiter.Allow(ctx, "submit", "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, "kay:ratelimit:public:submit:10.0.0.2", scripter.keys[len(scripter.keys)-1])
}

func TestDisabledLimiterAllows(t *testing.T) {
	var limiter *PublicLimiter
	res, err := limiter.Allow(context.Background(), "submit", "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	client, err := NewClient(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, client)

	limiter, err = NewPublicLimiter(config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, limiter.Enabled())
}

func TestTokenBucketValidatesInput(t *testing.T) {
	bucket := NewTokenBucket(newFakeScripter())
	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidRate)

	var nilBucket *TokenBucket
	_, err = nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 20*time.Second, bucketTTL(0.5, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestNilLockerIsSafe(t *testing.T) {
	var locker *Locker
	_, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, ok)
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
}
