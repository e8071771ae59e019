package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/kay/internal/config"
)

const keyPublic = "kay:ratelimit:public:%s:%s"

// PublicLimiter throttles unauthenticated endpoints per client IP. A nil
// limiter allows everything.
type PublicLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewClient returns nil when rate limiting is disabled.
func NewClient(cfg config.Config) (*redis.Client, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	}), nil
}

func NewPublicLimiter(cfg config.Config, client *redis.Client) (*PublicLimiter, error) {
	if client == nil {
		return nil, nil
	}
	limitCfg := cfg.RateLimit
	if limitCfg.PublicRate <= 0 || limitCfg.PublicBurst <= 0 {
		return nil, errors.New("public rate limit must be positive")
	}
	return NewScriptedPublicLimiter(client, limitCfg.PublicRate, limitCfg.PublicBurst), nil
}

// NewScriptedPublicLimiter builds a limiter over any script runner.
func NewScriptedPublicLimiter(client redis.Scripter, rate float64, burst int) *PublicLimiter {
	return &PublicLimiter{
		bucket: NewTokenBucket(client),
		rate:   rate,
		burst:  burst,
	}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *PublicLimiter) Allow(ctx context.Context, endpoint, clientIP string) (Result, error) {
	if !l.Enabled() {
		return Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyPublic, strings.TrimSpace(endpoint), strings.TrimSpace(clientIP))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
