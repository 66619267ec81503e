package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"eventTickets/internal/dto"
	"eventTickets/internal/identity"
)

// RateLimiter is a fixed-window request counter kept in Redis. A nil
// limiter lets everything through.
type RateLimiter struct {
	redis  redis.Cmdable
	log    *zerolog.Logger
	limits map[string]int64
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter allows limits[scope] hits per window; scopes without a
// positive limit are not counted.
func NewRateLimiter(client redis.Cmdable, log *zerolog.Logger, window time.Duration, limits map[string]int) *RateLimiter {
	if client == nil || window <= 0 {
		return nil
	}
	r := &RateLimiter{
		redis:  client,
		log:    log,
		limits: make(map[string]int64, len(limits)),
		window: window,
		now:    time.Now,
	}
	for scope, n := range limits {
		if n > 0 {
			r.limits[scope] = int64(n)
		}
	}
	return r
}

// Allow counts one hit for subject in the current window.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (bool, error) {
	limit, ok := r.limits[scope]
	if !ok {
		return true, nil
	}
	slot := r.now().UnixNano() / int64(r.window)
	key := fmt.Sprintf("ratelimit:%s:%s:%d", scope, subject, slot)

	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, r.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= limit, nil
}

// Limit keys by principal when authenticated and by client IP otherwise.
// Redis failures are logged and the request is let through.
func (r *RateLimiter) Limit(scope string) gin.HandlerFunc {
	return func(c *ginext.Context) {
		if r == nil {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if p, ok := identity.FromContext(c); ok {
			subject = "user:" + p.UserID
		}

		allowed, err := r.Allow(c.Request.Context(), scope, subject)
		if err != nil {
			r.log.Warn().Err(err).Str("scope", scope).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			r.log.Info().Str("scope", scope).Str("subject", subject).Msg("rate limit exceeded")
			dto.TooManyRequestsError(c)
			return
		}
		c.Next()
	}
}
