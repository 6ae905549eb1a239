package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RateLimiter is a fixed-window per-key limiter on Redis. A Redis failure
// lets the request through; limiting is protection, not a dependency.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	log    *zap.Logger
}

// NewRateLimiter returns a limiter allowing limit requests per window per key.
// Returns nil when client is nil or limit is 0; a nil limiter allows everything.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration, log *zap.Logger) *RateLimiter {
	if client == nil || limit <= 0 {
		return nil
	}
	if window <= 0 {
		window = time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{client: client, limit: limit, window: window, log: log}
}

// Allow reports whether the key may proceed, counting this attempt.
func (l *RateLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil {
		return true
	}
	redisKey := "rate:" + key

	count, err := l.client.Get(ctx, redisKey).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn("rate limiter redis get failed", zap.Error(err), zap.String("key", key))
		return true
	}
	if errors.Is(err, redis.Nil) {
		if err := l.client.Set(ctx, redisKey, 1, l.window).Err(); err != nil {
			l.log.Warn("rate limiter redis set failed", zap.Error(err), zap.String("key", key))
		}
		return true
	}
	if count >= l.limit {
		return false
	}
	if err := l.client.Incr(ctx, redisKey).Err(); err != nil {
		l.log.Warn("rate limiter redis incr failed", zap.Error(err), zap.String("key", key))
	}
	return true
}

// LimitByIP rejects requests over the per-client-IP budget with a 429.
// Safe to call on a nil limiter.
func (l *RateLimiter) LimitByIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.Request.Context(), c.ClientIP()) {
			respondError(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}
